package vendorapi

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/geo"
)

// EarthworkAdapter covers the construction-truck backend: an
// unauthenticated paged GET keyed by license plate. Coordinates come
// back as WGS-84 microdegrees and need the display transform.
type EarthworkAdapter struct {
	baseURL string
	spacing time.Duration
	hc      *http.Client
	log     *logrus.Entry
}

const earthworkTimeLayout = "2006-01-02 15:04:05"

func NewEarthworkAdapter(baseURL string, spacing time.Duration, logger *logrus.Logger) *EarthworkAdapter {
	return &EarthworkAdapter{
		baseURL: baseURL,
		spacing: spacing,
		hc:      &http.Client{},
		log:     logger.WithField("vendor", "earthwork"),
	}
}

func (a *EarthworkAdapter) Name() string { return "earthwork" }

func (a *EarthworkAdapter) MinPointSpacing() time.Duration { return a.spacing }

type earthworkResponse struct {
	Hdr struct {
		Code int `json:"code"`
	} `json:"hdr"`
	Data struct {
		DataList []earthworkPoint `json:"dataList"`
	} `json:"data"`
}

type earthworkPoint struct {
	Lat           float64 `json:"latitude"`
	Lng           float64 `json:"longitude"`
	Time          int64   `json:"time"`
	DeviceMileage flexNum `json:"deviceMileage"`
	DriveTimeLen  flexNum `json:"driveTimeLen"`
}

func (a *EarthworkAdapter) queryWindow(ctx context.Context, plate string, start, end time.Time, timeout time.Duration) ([]earthworkPoint, bool) {
	params := url.Values{}
	params.Set("vehicleNo", plate)
	params.Set("startTime", start.Format(earthworkTimeLayout))
	params.Set("endTime", end.Format(earthworkTimeLayout))
	params.Set("curPage", "1")
	params.Set("pageNum", "9999")

	var resp earthworkResponse
	if err := getJSON(ctx, a.hc, a.baseURL+"/info_report/v1/query_track_data", params, timeout, &resp); err != nil {
		a.log.WithFields(logrus.Fields{"vehicleNo": plate, "startTime": params.Get("startTime"), "endTime": params.Get("endTime")}).
			WithError(err).Error("track query failed")
		return nil, false
	}
	if resp.Hdr.Code != 200 {
		a.log.WithFields(logrus.Fields{"vehicleNo": plate, "code": strconv.Itoa(resp.Hdr.Code)}).
			Error("track query returned error code")
		return nil, false
	}
	return resp.Data.DataList, true
}

func (a *EarthworkAdapter) FetchTrackWindow(ctx context.Context, v domain.Vehicle, start, end time.Time) []domain.TrackPoint {
	if v.LicensePlate == "" {
		return nil
	}

	entries, ok := a.queryWindow(ctx, v.LicensePlate, start, end, 10*time.Second)
	if !ok {
		return nil
	}

	points := make([]domain.TrackPoint, 0, len(entries))
	for _, entry := range entries {
		lng, lat := geo.ToDisplayCoordinate(entry.Lng/1e6, entry.Lat/1e6)
		points = append(points, domain.TrackPoint{
			VehicleID: v.ID,
			Lat:       lat,
			Lng:       lng,
			Time:      time.Unix(entry.Time, 0),
		})
	}
	return points
}

// FetchLiveStatus is unsupported: this vendor has no live-status feed.
// Daily status for its vehicles is derived from mileage instead.
func (a *EarthworkAdapter) FetchLiveStatus(ctx context.Context, start, end time.Time) map[string]domain.StatusCode {
	return nil
}

// FetchCountMetrics derives the day rollup from the raw track: mileage
// is the odometer delta between the first and last fix. Fewer than 3
// points is not enough signal for a meaningful delta and yields nil.
func (a *EarthworkAdapter) FetchCountMetrics(ctx context.Context, v domain.Vehicle, start, end time.Time) *domain.CountMetrics {
	if v.LicensePlate == "" {
		return nil
	}

	entries, ok := a.queryWindow(ctx, v.LicensePlate, start, end, 15*time.Second)
	if !ok || len(entries) < 3 {
		return nil
	}

	first := entries[0]
	last := entries[len(entries)-1]
	mileageKm := (last.DeviceMileage.Float64() - first.DeviceMileage.Float64()) / 1000
	return &domain.CountMetrics{
		Mileage:     math.Round(mileageKm*100) / 100,
		DrivingSecs: last.DriveTimeLen.Int(),
	}
}
