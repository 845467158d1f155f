package vendorapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JunjieYe1/cars-info/module/core/domain"
)

// LegacyUrbanAdapter covers the sanitation-fleet backend: query-string
// GETs authenticated with a shared session id, compact timestamps, and
// coordinates already in the storage system (no transform needed).
type LegacyUrbanAdapter struct {
	baseURL   string
	sessionID string
	spacing   time.Duration
	hc        *http.Client
	log       *logrus.Entry
}

const legacyTimeLayout = "20060102150405"

func NewLegacyUrbanAdapter(baseURL, sessionID string, spacing time.Duration, logger *logrus.Logger) *LegacyUrbanAdapter {
	return &LegacyUrbanAdapter{
		baseURL:   baseURL,
		sessionID: sessionID,
		spacing:   spacing,
		hc:        &http.Client{},
		log:       logger.WithField("vendor", "legacy_urban"),
	}
}

func (a *LegacyUrbanAdapter) Name() string { return "legacy_urban" }

func (a *LegacyUrbanAdapter) MinPointSpacing() time.Duration { return a.spacing }

type legacyHistoryResponse struct {
	List []struct {
		Time string  `json:"time"`
		GLat flexNum `json:"glat"`
		GLng flexNum `json:"glng"`
	} `json:"list"`
	CountData *legacyCountData `json:"countData"`
}

type legacyCountData struct {
	Mile        flexNum `json:"mile"`
	MoveLongNum flexNum `json:"move_long_num"`
	StopLongNum flexNum `json:"stop_long_num"`
}

type legacyStatusResponse struct {
	List []struct {
		CarID flexString `json:"carId"`
		State flexNum    `json:"state"`
	} `json:"list"`
}

func (a *LegacyUrbanAdapter) historyParams(deviceID string, start, end time.Time) url.Values {
	params := url.Values{}
	params.Set("sessionId", a.sessionID)
	params.Set("carId", deviceID)
	params.Set("startTime", start.Format(legacyTimeLayout))
	params.Set("endTime", end.Format(legacyTimeLayout))
	return params
}

func (a *LegacyUrbanAdapter) FetchTrackWindow(ctx context.Context, v domain.Vehicle, start, end time.Time) []domain.TrackPoint {
	if v.DeviceID == "" {
		return nil
	}

	params := a.historyParams(v.DeviceID, start, end)
	var resp legacyHistoryResponse
	if err := getJSON(ctx, a.hc, a.baseURL+"/get_gps_h.jsp", params, 10*time.Second, &resp); err != nil {
		a.log.WithFields(logrus.Fields{"carId": v.DeviceID, "startTime": params.Get("startTime"), "endTime": params.Get("endTime")}).
			WithError(err).Error("track fetch failed")
		return nil
	}

	points := make([]domain.TrackPoint, 0, len(resp.List))
	for _, entry := range resp.List {
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", entry.Time, time.Local)
		if err != nil {
			a.log.WithFields(logrus.Fields{"carId": v.DeviceID, "time": entry.Time}).
				WithError(err).Warn("skipping point with bad timestamp")
			continue
		}
		points = append(points, domain.TrackPoint{
			VehicleID: v.ID,
			Lat:       entry.GLat.Float64(),
			Lng:       entry.GLng.Float64(),
			Time:      ts,
		})
	}
	return points
}

func (a *LegacyUrbanAdapter) FetchLiveStatus(ctx context.Context, start, end time.Time) map[string]domain.StatusCode {
	params := url.Values{}
	params.Set("sessionId", a.sessionID)
	params.Set("startTime", start.Format(legacyTimeLayout))
	params.Set("endTime", end.Format(legacyTimeLayout))

	var resp legacyStatusResponse
	if err := getJSON(ctx, a.hc, a.baseURL+"/get_gps_r.jsp", params, 5*time.Second, &resp); err != nil {
		a.log.WithFields(logrus.Fields{"startTime": params.Get("startTime"), "endTime": params.Get("endTime")}).
			WithError(err).Error("status fetch failed")
		return nil
	}

	statuses := make(map[string]domain.StatusCode, len(resp.List))
	for _, entry := range resp.List {
		if entry.CarID == "" {
			continue
		}
		statuses[string(entry.CarID)] = mapAlarmStatus(entry.State.Int())
	}
	return statuses
}

func (a *LegacyUrbanAdapter) FetchCountMetrics(ctx context.Context, v domain.Vehicle, start, end time.Time) *domain.CountMetrics {
	if v.DeviceID == "" {
		return nil
	}

	params := a.historyParams(v.DeviceID, start, end)
	var resp legacyHistoryResponse
	if err := getJSON(ctx, a.hc, a.baseURL+"/get_gps_h.jsp", params, 15*time.Second, &resp); err != nil {
		a.log.WithFields(logrus.Fields{"carId": v.DeviceID, "startTime": params.Get("startTime"), "endTime": params.Get("endTime")}).
			WithError(err).Error("count fetch failed")
		return nil
	}
	if resp.CountData == nil {
		return nil
	}

	return &domain.CountMetrics{
		Mileage:     resp.CountData.Mile.Float64(),
		DrivingSecs: resp.CountData.MoveLongNum.Int(),
		ParkingSecs: resp.CountData.StopLongNum.Int(),
	}
}

// mapAlarmStatus collapses the vendor's alarm-type vocabulary into the
// simplified status codes.
func mapAlarmStatus(alarmType int) domain.StatusCode {
	switch alarmType {
	case 1, 2, 3, 4:
		return domain.StatusOffline
	case 5, 6, 9, 10, 11, 12:
		return domain.StatusParked
	case 7, 8:
		return domain.StatusDriving
	case 13:
		return domain.StatusEngineOff
	default:
		return domain.StatusUnknown
	}
}
