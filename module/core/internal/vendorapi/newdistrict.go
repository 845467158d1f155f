package vendorapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/geo"
)

// NewDistrictAdapter covers the contractor-fleet backend: JSON POSTs
// authenticated with a login session from the SessionManager.
// Coordinates are WGS-84 decimal degrees and need the display transform.
type NewDistrictAdapter struct {
	baseURL  string
	username string
	password string
	sessions *SessionManager
	spacing  time.Duration
	hc       *http.Client
	log      *logrus.Entry
	now      func() time.Time
}

const newDistrictTimeLayout = "2006-01-02 15:04:05"

// Vehicle state tokens as the vendor reports them.
const (
	stateIgnitionOn  = "车辆点火"
	stateIgnitionOff = "车辆熄火"
)

func NewNewDistrictAdapter(baseURL, username, password string, sessions *SessionManager, spacing time.Duration, logger *logrus.Logger) *NewDistrictAdapter {
	return &NewDistrictAdapter{
		baseURL:  baseURL,
		username: username,
		password: password,
		sessions: sessions,
		spacing:  spacing,
		hc:       &http.Client{},
		log:      logger.WithField("vendor", "new_district"),
		now:      time.Now,
	}
}

func (a *NewDistrictAdapter) Name() string { return "new_district" }

func (a *NewDistrictAdapter) MinPointSpacing() time.Duration { return a.spacing }

type newDistrictTrackResponse struct {
	ResultCode int `json:"resultCode"`
	Data       []struct {
		GpsTime string  `json:"gpsTime"`
		Lon     flexNum `json:"lon"`
		Lat     flexNum `json:"lat"`
	} `json:"data"`
}

func (a *NewDistrictAdapter) FetchTrackWindow(ctx context.Context, v domain.Vehicle, start, end time.Time) []domain.TrackPoint {
	if v.LicensePlate == "" {
		return nil
	}
	token, err := a.sessions.Token(ctx)
	if err != nil {
		a.log.WithField("vehicleNum", v.LicensePlate).WithError(err).Error("no session token, skipping track fetch")
		return nil
	}

	// The history endpoint cannot cross a month boundary; clamp the
	// window start to the first of the end month when it would.
	if start.Month() != end.Month() || start.Year() != end.Year() {
		start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	}

	payload := map[string]string{
		"beginTime":  start.Format(newDistrictTimeLayout),
		"endTime":    end.Format(newDistrictTimeLayout),
		"vehicleNum": v.LicensePlate,
		"sessionId":  token,
	}
	var resp newDistrictTrackResponse
	if err := postJSON(ctx, a.hc, a.baseURL+"/stdHisAlarm/getHisGPS.do", payload, 10*time.Second, &resp); err != nil {
		a.log.WithFields(logrus.Fields{"vehicleNum": v.LicensePlate, "beginTime": payload["beginTime"], "endTime": payload["endTime"]}).
			WithError(err).Error("track fetch failed")
		return nil
	}
	if resp.ResultCode != 0 {
		a.log.WithFields(logrus.Fields{"vehicleNum": v.LicensePlate, "resultCode": resp.ResultCode}).
			Error("track fetch returned error code")
		return nil
	}

	points := make([]domain.TrackPoint, 0, len(resp.Data))
	for _, entry := range resp.Data {
		ts, err := time.ParseInLocation(newDistrictTimeLayout, entry.GpsTime, time.Local)
		if err != nil {
			a.log.WithFields(logrus.Fields{"vehicleNum": v.LicensePlate, "gpsTime": entry.GpsTime}).
				WithError(err).Warn("skipping point with bad timestamp")
			continue
		}
		lng, lat := geo.ToDisplayCoordinate(entry.Lon.Float64(), entry.Lat.Float64())
		points = append(points, domain.TrackPoint{
			VehicleID: v.ID,
			Lat:       lat,
			Lng:       lng,
			Time:      ts,
		})
	}
	return points
}

type newDistrictStatusResponse struct {
	ResultCode int `json:"resultCode"`
	Data       []struct {
		VehicleNum string  `json:"vehicleNum"`
		StateStr   string  `json:"stateStr"`
		Speed      flexNum `json:"speed"`
		GpsTime    string  `json:"gpsTime"`
	} `json:"data"`
}

func (a *NewDistrictAdapter) FetchLiveStatus(ctx context.Context, start, end time.Time) map[string]domain.StatusCode {
	token, err := a.sessions.Token(ctx)
	if err != nil {
		a.log.WithError(err).Error("no session token, skipping status fetch")
		return nil
	}

	payload := map[string]string{"sessionId": token}
	var resp newDistrictStatusResponse
	if err := postJSON(ctx, a.hc, a.baseURL+"/stdHisAlarm/getGPS.do", payload, 10*time.Second, &resp); err != nil {
		a.log.WithError(err).Error("status fetch failed")
		return nil
	}
	if resp.ResultCode != 0 {
		a.log.WithField("resultCode", resp.ResultCode).Error("status fetch returned error code")
		return nil
	}

	today := a.now()
	statuses := make(map[string]domain.StatusCode, len(resp.Data))
	for _, entry := range resp.Data {
		if entry.VehicleNum == "" {
			continue
		}
		statuses[entry.VehicleNum] = a.entryStatus(entry.StateStr, entry.Speed.Float64(), entry.GpsTime, today)
	}
	return statuses
}

// entryStatus derives a status code from the vendor's delimited state
// string. A fix older than today means the terminal is offline no
// matter what state it last reported.
func (a *NewDistrictAdapter) entryStatus(stateStr string, speed float64, gpsTime string, today time.Time) domain.StatusCode {
	ts, err := time.ParseInLocation(newDistrictTimeLayout, gpsTime, time.Local)
	if err != nil || ts.Year() != today.Year() || ts.YearDay() != today.YearDay() {
		return domain.StatusOffline
	}
	return parseStateString(stateStr, speed)
}

func parseStateString(stateStr string, speed float64) domain.StatusCode {
	if stateStr == "" {
		return domain.StatusUnknown
	}
	normalized := strings.ReplaceAll(stateStr, ";", ",")
	switch strings.SplitN(normalized, ",", 2)[0] {
	case stateIgnitionOn:
		if speed > 0 {
			return domain.StatusDriving
		}
		return domain.StatusParked
	case stateIgnitionOff:
		return domain.StatusEngineOff
	default:
		return domain.StatusUnknown
	}
}

type newDistrictCountResponse struct {
	ResultCode int `json:"resultCode"`
	Data       []struct {
		OperatingMileage flexNum `json:"operatingMileage"`
		DrivingDuration  flexNum `json:"drivingDuration"`
		ParkingDuration  flexNum `json:"parkingDuration"`
		ShutdownDuration flexNum `json:"shutdownDuration"`
	} `json:"data"`
}

func (a *NewDistrictAdapter) FetchCountMetrics(ctx context.Context, v domain.Vehicle, start, end time.Time) *domain.CountMetrics {
	if v.LicensePlate == "" {
		return nil
	}
	token, err := a.sessions.Token(ctx)
	if err != nil {
		a.log.WithField("vehicleNo", v.LicensePlate).WithError(err).Error("no session token, skipping count fetch")
		return nil
	}

	payload := map[string]string{
		"userName":  a.username,
		"password":  a.password,
		"vehicleNo": v.LicensePlate,
		"sessionId": token,
	}
	var resp newDistrictCountResponse
	if err := postJSON(ctx, a.hc, a.baseURL+"/drivingInFoProvider/getDrivingInfo.do", payload, 15*time.Second, &resp); err != nil {
		a.log.WithField("vehicleNo", v.LicensePlate).WithError(err).Error("count fetch failed")
		return nil
	}
	if resp.ResultCode != 0 || len(resp.Data) == 0 {
		return nil
	}

	entry := resp.Data[0]
	return &domain.CountMetrics{
		Mileage:       entry.OperatingMileage.Float64(),
		DrivingSecs:   entry.DrivingDuration.Int(),
		ParkingSecs:   entry.ParkingDuration.Int(),
		EngineOffSecs: entry.ShutdownDuration.Int(),
	}
}
