package service

import (
	"context"
	"time"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/internal/repository/database"
)

// VehicleDayStatus is the dashboard's per-vehicle view of one day:
// registry fields, the day's latest fix, and the rolled-up totals.
type VehicleDayStatus struct {
	Vehicle  domain.Vehicle
	Online   bool
	Lat      float64
	Lng      float64
	LastTime time.Time
	Mileage  float64
	Driving  int
}

// QueryService serves the dashboard's cached reads over the
// materialized tables.
type QueryService struct {
	vehicles  database.VehicleRepository
	tracks    database.TrackRepository
	summaries database.SummaryRepository
}

func NewQueryService(vehicles database.VehicleRepository, tracks database.TrackRepository, summaries database.SummaryRepository) *QueryService {
	return &QueryService{vehicles: vehicles, tracks: tracks, summaries: summaries}
}

func (s *QueryService) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	return s.vehicles.ListAll(ctx)
}

func (s *QueryService) LastLocations(ctx context.Context, day time.Time) ([]VehicleDayStatus, error) {
	vehicles, err := s.vehicles.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]VehicleDayStatus, 0, len(vehicles))
	for _, v := range vehicles {
		entry := VehicleDayStatus{Vehicle: v}

		point, ok, err := s.tracks.LatestForDay(ctx, v.ID, day)
		if err != nil {
			return nil, err
		}
		if ok {
			entry.Online = true
			entry.Lat = point.Lat
			entry.Lng = point.Lng
			entry.LastTime = point.Time
		}

		summary, ok, err := s.summaries.ForDay(ctx, v.ID, day)
		if err != nil {
			return nil, err
		}
		if ok {
			entry.Mileage = summary.Mileage
			entry.Driving = summary.DrivingSecs
		}

		results = append(results, entry)
	}
	return results, nil
}

func (s *QueryService) VehicleTracks(ctx context.Context, vehicleID int64, day time.Time) ([]domain.TrackPoint, error) {
	return s.tracks.TracksForDay(ctx, vehicleID, day)
}
