package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/internal/vendorapi"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockVehicleRepo struct {
	listAllFn func(ctx context.Context) ([]domain.Vehicle, error)
}

func (m *mockVehicleRepo) ListAll(ctx context.Context) ([]domain.Vehicle, error) {
	return m.listAllFn(ctx)
}

type mockTrackRepo struct {
	mu          sync.Mutex
	lastTimes   map[int64]time.Time
	inserted    []domain.TrackPoint
	insertErr   error
	lastTimeErr error
}

func (m *mockTrackRepo) LastPointTime(_ context.Context, vehicleID int64) (time.Time, bool, error) {
	if m.lastTimeErr != nil {
		return time.Time{}, false, m.lastTimeErr
	}
	t, ok := m.lastTimes[vehicleID]
	return t, ok, nil
}

func (m *mockTrackRepo) InsertBatch(_ context.Context, points []domain.TrackPoint) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, points...)
	return nil
}

func (m *mockTrackRepo) TracksForDay(context.Context, int64, time.Time) ([]domain.TrackPoint, error) {
	return nil, nil
}

func (m *mockTrackRepo) LatestForDay(context.Context, int64, time.Time) (domain.TrackPoint, bool, error) {
	return domain.TrackPoint{}, false, nil
}

type fakeAdapter struct {
	name    string
	spacing time.Duration
	trackFn func(ctx context.Context, v domain.Vehicle, start, end time.Time) []domain.TrackPoint
	statusT map[string]domain.StatusCode
	countFn func(ctx context.Context, v domain.Vehicle, start, end time.Time) *domain.CountMetrics
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) MinPointSpacing() time.Duration { return f.spacing }

func (f *fakeAdapter) FetchTrackWindow(ctx context.Context, v domain.Vehicle, start, end time.Time) []domain.TrackPoint {
	if f.trackFn == nil {
		return nil
	}
	return f.trackFn(ctx, v, start, end)
}

func (f *fakeAdapter) FetchLiveStatus(context.Context, time.Time, time.Time) map[string]domain.StatusCode {
	return f.statusT
}

func (f *fakeAdapter) FetchCountMetrics(ctx context.Context, v domain.Vehicle, start, end time.Time) *domain.CountMetrics {
	if f.countFn == nil {
		return nil
	}
	return f.countFn(ctx, v, start, end)
}

func TestWindowStart_RecentLastPoint(t *testing.T) {
	now := time.Date(2024, 5, 6, 20, 5, 0, 0, time.UTC)
	last := now.Add(-time.Hour)

	got := windowStart(last, true, now, 48*time.Hour, 24*time.Hour)
	if !got.Equal(last) {
		t.Fatalf("expected window start %v, got %v", last, got)
	}
}

func TestWindowStart_StaleLastPoint(t *testing.T) {
	now := time.Date(2024, 5, 6, 20, 5, 0, 0, time.UTC)
	last := now.Add(-72 * time.Hour)

	got := windowStart(last, true, now, 48*time.Hour, 24*time.Hour)
	want := now.Add(-24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expected fallback to %v, got %v", want, got)
	}
}

func TestWindowStart_NoLastPoint(t *testing.T) {
	now := time.Date(2024, 5, 6, 20, 5, 0, 0, time.UTC)

	got := windowStart(time.Time{}, false, now, 48*time.Hour, 24*time.Hour)
	want := now.Add(-24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("expected fallback to %v, got %v", want, got)
	}
}

// A legacy vehicle with a last point at 20:00 polled at 20:05, with the
// vendor returning 3 points 5s apart and a 10s threshold, stores
// exactly 2 points (first and third), fetched from 20:00.
func TestTrackerTick_CompactsAndStores(t *testing.T) {
	now := time.Date(2024, 5, 6, 20, 5, 0, 0, time.UTC)
	lastStored := time.Date(2024, 5, 6, 20, 0, 0, 0, time.UTC)

	v1 := domain.Vehicle{ID: 1, LicensePlate: "皖A00001", DeviceID: "C1", Category: domain.CategoryLegacyUrban}
	vehicles := &mockVehicleRepo{
		listAllFn: func(context.Context) ([]domain.Vehicle, error) {
			return []domain.Vehicle{v1}, nil
		},
	}
	tracks := &mockTrackRepo{lastTimes: map[int64]time.Time{1: lastStored}}

	var gotStart time.Time
	legacy := &fakeAdapter{
		name:    "legacy_urban",
		spacing: 10 * time.Second,
		trackFn: func(_ context.Context, v domain.Vehicle, start, end time.Time) []domain.TrackPoint {
			gotStart = start
			base := start.Add(time.Second)
			return []domain.TrackPoint{
				{VehicleID: v.ID, Time: base},
				{VehicleID: v.ID, Time: base.Add(5 * time.Second)},
				{VehicleID: v.ID, Time: base.Add(10 * time.Second)},
			}
		},
	}

	svc := NewTrackerService(vehicles, tracks, &vendorapi.Registry{LegacyUrban: legacy},
		5*time.Minute, 48*time.Hour, 24*time.Hour, make(chan struct{}, 10), testLogger())
	svc.now = func() time.Time { return now }

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !gotStart.Equal(lastStored) {
		t.Errorf("expected fetch window start %v, got %v", lastStored, gotStart)
	}
	if len(tracks.inserted) != 2 {
		t.Fatalf("expected 2 stored points, got %d", len(tracks.inserted))
	}
}

func TestTrackerTick_DBErrorAborts(t *testing.T) {
	vehicles := &mockVehicleRepo{
		listAllFn: func(context.Context) ([]domain.Vehicle, error) {
			return []domain.Vehicle{{ID: 1, DeviceID: "C1", Category: domain.CategoryLegacyUrban}}, nil
		},
	}
	tracks := &mockTrackRepo{
		lastTimes: map[int64]time.Time{},
		insertErr: errors.New("db down"),
	}
	legacy := &fakeAdapter{
		name:    "legacy_urban",
		spacing: 10 * time.Second,
		trackFn: func(_ context.Context, v domain.Vehicle, start, _ time.Time) []domain.TrackPoint {
			return []domain.TrackPoint{{VehicleID: v.ID, Time: start}}
		},
	}

	svc := NewTrackerService(vehicles, tracks, &vendorapi.Registry{LegacyUrban: legacy},
		5*time.Minute, 48*time.Hour, 24*time.Hour, make(chan struct{}, 10), testLogger())

	if err := svc.tick(context.Background()); err == nil {
		t.Fatal("expected tick to report the batch insert error")
	}
}

func TestTrackerTick_SkipsUnknownCategory(t *testing.T) {
	vehicles := &mockVehicleRepo{
		listAllFn: func(context.Context) ([]domain.Vehicle, error) {
			return []domain.Vehicle{{ID: 9, LicensePlate: "皖A99999", Category: domain.CategoryOther}}, nil
		},
	}
	tracks := &mockTrackRepo{lastTimes: map[int64]time.Time{}}

	svc := NewTrackerService(vehicles, tracks, &vendorapi.Registry{},
		5*time.Minute, 48*time.Hour, 24*time.Hour, make(chan struct{}, 10), testLogger())

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracks.inserted) != 0 {
		t.Fatalf("expected no inserts, got %d", len(tracks.inserted))
	}
}
