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

// TrackerService is the incremental track poller: on a fixed interval
// it fetches each vehicle's track since its last stored point, compacts
// it, and commits the tick's inserts in one batch.
type TrackerService struct {
	vehicles database.VehicleRepository
	tracks   database.TrackRepository
	adapters *vendorapi.Registry

	interval  time.Duration
	staleness time.Duration
	backfill  time.Duration
	sem       chan struct{}
	log       *logrus.Entry
	now       func() time.Time
}

func NewTrackerService(
	vehicles database.VehicleRepository,
	tracks database.TrackRepository,
	adapters *vendorapi.Registry,
	interval, staleness, backfill time.Duration,
	sem chan struct{},
	logger *logrus.Logger,
) *TrackerService {
	return &TrackerService{
		vehicles:  vehicles,
		tracks:    tracks,
		adapters:  adapters,
		interval:  interval,
		staleness: staleness,
		backfill:  backfill,
		sem:       sem,
		log:       logger.WithField("component", "tracker"),
		now:       time.Now,
	}
}

// Run executes one tick immediately, then on every interval until the
// context is cancelled. A failed tick is logged and the loop proceeds
// to the next one; the incremental window recovers missed data.
func (s *TrackerService) Run(ctx context.Context) {
	if err := s.tick(ctx); err != nil {
		s.log.WithError(err).Error("track tick failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.log.WithError(err).Error("track tick failed")
			}
		}
	}
}

func (s *TrackerService) tick(ctx context.Context) error {
	vehicles, err := s.vehicles.ListAll(ctx)
	if err != nil {
		return err
	}

	end := s.now()
	var (
		mu    sync.Mutex
		batch []domain.TrackPoint
		wg    sync.WaitGroup
	)

	for _, v := range vehicles {
		adapter := s.adapters.ForVehicle(v)
		if adapter == nil {
			continue
		}

		last, hasLast, err := s.tracks.LastPointTime(ctx, v.ID)
		if err != nil {
			return err
		}
		start := windowStart(last, hasLast, end, s.staleness, s.backfill)

		wg.Add(1)
		go func(v domain.Vehicle, adapter vendorapi.Adapter, start time.Time) {
			defer wg.Done()
			s.sem <- struct{}{}
			defer func() { <-s.sem }()

			raw := adapter.FetchTrackWindow(ctx, v, start, end)
			compacted := CompactTrack(raw, adapter.MinPointSpacing())
			if len(compacted) == 0 {
				return
			}
			mu.Lock()
			batch = append(batch, compacted...)
			mu.Unlock()
		}(v, adapter, start)
	}
	wg.Wait()

	if len(batch) == 0 {
		s.log.Debug("no new track points this tick")
		return nil
	}
	if err := s.tracks.InsertBatch(ctx, batch); err != nil {
		return err
	}
	s.log.WithField("points", len(batch)).Info("stored track points")
	return nil
}

// windowStart picks the fetch window start: the last stored point time,
// unless it is missing or older than the staleness ceiling, in which
// case the window falls back to a bounded backfill behind now. The
// ceiling prevents unbounded backfill after a long outage.
func windowStart(last time.Time, hasLast bool, now time.Time, staleness, backfill time.Duration) time.Time {
	if hasLast && now.Sub(last) < staleness {
		return last
	}
	return now.Add(-backfill)
}
