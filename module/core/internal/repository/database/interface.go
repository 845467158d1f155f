package database

import (
	"context"
	"time"

	"github.com/JunjieYe1/cars-info/module/core/domain"
)

// VehicleRepository reads the fleet registry. The registry is written
// by external registration tooling only.
type VehicleRepository interface {
	ListAll(ctx context.Context) ([]domain.Vehicle, error)
}

// TrackRepository owns the append-only raw track log.
type TrackRepository interface {
	// LastPointTime returns the newest stored point time for the
	// vehicle; ok is false when no point exists.
	LastPointTime(ctx context.Context, vehicleID int64) (t time.Time, ok bool, err error)

	// InsertBatch appends all points in one transaction.
	InsertBatch(ctx context.Context, points []domain.TrackPoint) error

	// TracksForDay returns a vehicle's points for one calendar day,
	// ordered by time.
	TracksForDay(ctx context.Context, vehicleID int64, day time.Time) ([]domain.TrackPoint, error)

	// LatestForDay returns a vehicle's newest point of the day, or
	// ok=false when none exists.
	LatestForDay(ctx context.Context, vehicleID int64, day time.Time) (p domain.TrackPoint, ok bool, err error)
}

// SummaryRepository owns the per-vehicle/per-day operational summaries.
type SummaryRepository interface {
	// UpsertBatch writes the rows keyed by (vehicle_id, date),
	// replacing all metric fields on conflict.
	UpsertBatch(ctx context.Context, rows []domain.DailySummary) error

	// ForDay returns a vehicle's summary for one day, or ok=false.
	ForDay(ctx context.Context, vehicleID int64, day time.Time) (s domain.DailySummary, ok bool, err error)
}
