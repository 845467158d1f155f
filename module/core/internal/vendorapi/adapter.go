// Package vendorapi talks to the three vendor GPS backends. Each vendor
// has its own base URL, auth scheme, and payload shapes; the adapters
// normalize all of that behind one capability set.
//
// Adapter calls never return errors: a network failure, non-200 status,
// or malformed payload is logged together with the request parameters
// and surfaces as an empty result. The caller treats "no data this
// cycle" as recoverable on the next tick.
package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JunjieYe1/cars-info/module/core/domain"
)

type Adapter interface {
	Name() string

	// MinPointSpacing is the minimum interval between stored track
	// points for this vendor.
	MinPointSpacing() time.Duration

	// FetchTrackWindow returns the vehicle's raw track points in
	// [start, end), already converted to the storage coordinate
	// system. Empty on any failure.
	FetchTrackWindow(ctx context.Context, v domain.Vehicle, start, end time.Time) []domain.TrackPoint

	// FetchLiveStatus returns the current status of every vehicle the
	// vendor knows, keyed by the vendor's vehicle reference (device id
	// or license plate). Nil when the vendor has no status feed or the
	// call failed.
	FetchLiveStatus(ctx context.Context, start, end time.Time) map[string]domain.StatusCode

	// FetchCountMetrics returns the vendor's day-level rollup for the
	// vehicle, or nil when no usable data came back.
	FetchCountMetrics(ctx context.Context, v domain.Vehicle, start, end time.Time) *domain.CountMetrics
}

// Registry holds one adapter per vendor and selects the right one for a
// vehicle from its project category. A legacy-urban vehicle without an
// installed terminal has no device id and falls back to the plate-keyed
// earthwork backend.
type Registry struct {
	LegacyUrban Adapter
	Earthwork   Adapter
	NewDistrict Adapter
}

func (r *Registry) ForVehicle(v domain.Vehicle) Adapter {
	switch v.Category {
	case domain.CategoryLegacyUrban:
		if v.DeviceID != "" {
			return r.LegacyUrban
		}
		return r.Earthwork
	case domain.CategoryEarthwork:
		return r.Earthwork
	case domain.CategoryNewDistrict:
		return r.NewDistrict
	}
	return nil
}

func getJSON(ctx context.Context, hc *http.Client, rawURL string, params url.Values, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := rawURL
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func postJSON(ctx context.Context, hc *http.Client, rawURL string, payload any, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// flexNum tolerates vendors that report numerics as either JSON numbers
// or quoted strings. Unparseable values decode to zero rather than
// failing the whole payload.
type flexNum float64

func (n *flexNum) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexNum(f)
	return nil
}

func (n flexNum) Float64() float64 { return float64(n) }

func (n flexNum) Int() int { return int(n) }

// flexString tolerates vendors that report identifiers as either JSON
// strings or bare numbers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = flexString(b)
	return nil
}
