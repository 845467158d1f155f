package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/internal/repository/database"
	"github.com/JunjieYe1/cars-info/module/core/internal/vendorapi"
)

// DailyService is the aggregation engine: on its own interval it pulls
// each vendor's day rollup and live status for every vehicle and
// upserts one summary row per vehicle per day. Each write recomputes
// the full-day total from the vendor; rows are replaced, never
// accumulated.
type DailyService struct {
	vehicles  database.VehicleRepository
	summaries database.SummaryRepository
	adapters  *vendorapi.Registry

	interval time.Duration
	sem      chan struct{}
	log      *logrus.Entry
	now      func() time.Time
}

func NewDailyService(
	vehicles database.VehicleRepository,
	summaries database.SummaryRepository,
	adapters *vendorapi.Registry,
	interval time.Duration,
	sem chan struct{},
	logger *logrus.Logger,
) *DailyService {
	return &DailyService{
		vehicles:  vehicles,
		summaries: summaries,
		adapters:  adapters,
		interval:  interval,
		sem:       sem,
		log:       logger.WithField("component", "daily_aggregator"),
		now:       time.Now,
	}
}

func (s *DailyService) Run(ctx context.Context) {
	if err := s.tick(ctx); err != nil {
		s.log.WithError(err).Error("aggregation tick failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.log.WithError(err).Error("aggregation tick failed")
			}
		}
	}
}

func (s *DailyService) tick(ctx context.Context) error {
	vehicles, err := s.vehicles.ListAll(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	statuses := s.fetchAllStatuses(ctx, day, dayEnd)

	metrics := make([]*domain.CountMetrics, len(vehicles))
	var wg sync.WaitGroup
	for i, v := range vehicles {
		adapter := s.adapters.ForVehicle(v)
		if adapter == nil {
			continue
		}
		wg.Add(1)
		go func(i int, v domain.Vehicle, adapter vendorapi.Adapter) {
			defer wg.Done()
			s.sem <- struct{}{}
			defer func() { <-s.sem }()
			metrics[i] = adapter.FetchCountMetrics(ctx, v, day, dayEnd)
		}(i, v, adapter)
	}
	wg.Wait()

	var rows []domain.DailySummary
	for i, v := range vehicles {
		// No count data for the day: leave any earlier-computed row
		// alone rather than zeroing it over a vendor outage.
		if metrics[i] == nil {
			continue
		}
		row, ok := buildSummary(v, metrics[i], statuses, day)
		if !ok {
			s.log.WithField("vehicle_id", v.ID).Warn("discarding summary with invalid vendor metrics")
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		s.log.Debug("no summary rows this tick")
		return nil
	}
	if err := s.summaries.UpsertBatch(ctx, rows); err != nil {
		return err
	}
	s.log.WithField("rows", len(rows)).Info("upserted daily summaries")
	return nil
}

// fetchAllStatuses merges the per-vendor live-status batches. Legacy
// entries are keyed by device id, new-district entries by license
// plate; the namespaces do not collide.
func (s *DailyService) fetchAllStatuses(ctx context.Context, start, end time.Time) map[string]domain.StatusCode {
	merged := make(map[string]domain.StatusCode)
	for _, adapter := range []vendorapi.Adapter{s.adapters.LegacyUrban, s.adapters.NewDistrict} {
		if adapter == nil {
			continue
		}
		for ref, status := range adapter.FetchLiveStatus(ctx, start, end) {
			merged[ref] = status
		}
	}
	return merged
}

// buildSummary interprets a vendor rollup according to the vehicle's
// project category. ok=false means the record failed the validity check
// and must not be written.
func buildSummary(v domain.Vehicle, m *domain.CountMetrics, statuses map[string]domain.StatusCode, day time.Time) (domain.DailySummary, bool) {
	row := domain.DailySummary{
		VehicleID:    v.ID,
		LicensePlate: v.LicensePlate,
		Date:         day,
		Status:       domain.StatusUnknown,
	}

	switch {
	case v.Category == domain.CategoryLegacyUrban && v.DeviceID != "":
		row.Mileage = m.Mileage
		row.DrivingSecs = m.DrivingSecs
		row.ParkingSecs = m.ParkingSecs
		// Vendor glitches occasionally report negative totals.
		if row.Mileage < 0 || row.DrivingSecs < 0 || row.ParkingSecs < 0 {
			return domain.DailySummary{}, false
		}
		if status, ok := statuses[v.DeviceID]; ok {
			row.Status = status
		}

	case (v.Category == domain.CategoryLegacyUrban || v.Category == domain.CategoryEarthwork) && v.LicensePlate != "":
		// Only mileage and driving time exist for these vehicles;
		// status is inferred from movement.
		row.Mileage = m.Mileage
		row.DrivingSecs = m.DrivingSecs
		if row.Mileage > 0 {
			row.Status = domain.StatusDriving
		} else {
			row.Status = domain.StatusOffline
		}

	case v.Category == domain.CategoryNewDistrict && v.LicensePlate != "":
		// This vendor reports mileage in hectometers.
		row.Mileage = m.Mileage / 10
		row.DrivingSecs = m.DrivingSecs
		row.ParkingSecs = m.ParkingSecs
		row.EngineOffSecs = m.EngineOffSecs
		if status, ok := statuses[v.LicensePlate]; ok {
			row.Status = status
		}

	default:
		// Unknown category or missing identifier: zero-filled record
		// with unknown status.
	}

	return row, true
}
