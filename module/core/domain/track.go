package domain

import "time"

// TrackPoint is one stored GPS fix in the display (GCJ-02) coordinate
// system. The track log is append-only.
type TrackPoint struct {
	VehicleID int64     `json:"vehicle_id"`
	Lat       float64   `json:"latitude"`
	Lng       float64   `json:"longitude"`
	Time      time.Time `json:"track_time"`
}
