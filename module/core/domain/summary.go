package domain

import "time"

// StatusCode is the simplified live status stored on a daily summary.
type StatusCode int

const (
	StatusUnknown   StatusCode = -1
	StatusOffline   StatusCode = 0
	StatusParked    StatusCode = 1
	StatusDriving   StatusCode = 2
	StatusEngineOff StatusCode = 3
)

// CountMetrics is a vendor's day-level rollup for one vehicle. Which
// fields are populated depends on the vendor; interpretation happens in
// the aggregation engine per project category.
type CountMetrics struct {
	Mileage       float64
	DrivingSecs   int
	ParkingSecs   int
	EngineOffSecs int
}

// DailySummary is one per-vehicle/per-day operational record, upserted
// keyed by (VehicleID, Date). Writes replace all metric fields.
type DailySummary struct {
	VehicleID     int64      `json:"vehicle_id"`
	LicensePlate  string     `json:"license_plate"`
	Date          time.Time  `json:"date"`
	Mileage       float64    `json:"running_mileage"`
	DrivingSecs   int        `json:"driving_duration"`
	ParkingSecs   int        `json:"parking_duration"`
	EngineOffSecs int        `json:"engine_off_duration"`
	Status        StatusCode `json:"current_status"`
}
