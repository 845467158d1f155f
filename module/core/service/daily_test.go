package service

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/internal/vendorapi"
)

type memorySummaryRepo struct {
	mu      sync.Mutex
	rows    map[string]domain.DailySummary
	upserts int
}

func newMemorySummaryRepo() *memorySummaryRepo {
	return &memorySummaryRepo{rows: make(map[string]domain.DailySummary)}
}

func summaryKey(vehicleID int64, day time.Time) string {
	return fmt.Sprintf("%d/%s", vehicleID, day.Format("20060102"))
}

func (m *memorySummaryRepo) UpsertBatch(_ context.Context, rows []domain.DailySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.rows[summaryKey(row.VehicleID, row.Date)] = row
		m.upserts++
	}
	return nil
}

func (m *memorySummaryRepo) ForDay(_ context.Context, vehicleID int64, day time.Time) (domain.DailySummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[summaryKey(vehicleID, day)]
	return row, ok, nil
}

var testDay = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func TestBuildSummary_LegacyWithDevice(t *testing.T) {
	v := domain.Vehicle{ID: 1, LicensePlate: "皖A00001", DeviceID: "C1", Category: domain.CategoryLegacyUrban}
	m := &domain.CountMetrics{Mileage: 42.5, DrivingSecs: 3600, ParkingSecs: 1200}
	statuses := map[string]domain.StatusCode{"C1": domain.StatusDriving}

	row, ok := buildSummary(v, m, statuses, testDay)
	if !ok {
		t.Fatal("expected a valid row")
	}
	if row.Mileage != 42.5 || row.DrivingSecs != 3600 || row.ParkingSecs != 1200 {
		t.Errorf("unexpected metrics: %+v", row)
	}
	if row.Status != domain.StatusDriving {
		t.Errorf("expected driving status, got %d", row.Status)
	}
}

func TestBuildSummary_LegacyNegativeMetricsDiscarded(t *testing.T) {
	v := domain.Vehicle{ID: 1, DeviceID: "C1", Category: domain.CategoryLegacyUrban}
	cases := []struct {
		name string
		m    domain.CountMetrics
	}{
		{"negative mileage", domain.CountMetrics{Mileage: -1}},
		{"negative driving", domain.CountMetrics{DrivingSecs: -10}},
		{"negative parking", domain.CountMetrics{ParkingSecs: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := buildSummary(v, &tc.m, nil, testDay); ok {
				t.Fatal("expected record to be discarded")
			}
		})
	}
}

func TestBuildSummary_EarthworkStatusFromMileage(t *testing.T) {
	v := domain.Vehicle{ID: 2, LicensePlate: "皖B00002", Category: domain.CategoryEarthwork}

	row, ok := buildSummary(v, &domain.CountMetrics{Mileage: 12.3, DrivingSecs: 1800}, nil, testDay)
	if !ok {
		t.Fatal("expected a valid row")
	}
	if row.Status != domain.StatusDriving {
		t.Errorf("expected driving for mileage > 0, got %d", row.Status)
	}

	row, _ = buildSummary(v, &domain.CountMetrics{Mileage: 0}, nil, testDay)
	if row.Status != domain.StatusOffline {
		t.Errorf("expected offline for zero mileage, got %d", row.Status)
	}
}

func TestBuildSummary_LegacyWithoutDeviceFallsBack(t *testing.T) {
	v := domain.Vehicle{ID: 3, LicensePlate: "皖C00003", Category: domain.CategoryLegacyUrban}

	row, ok := buildSummary(v, &domain.CountMetrics{Mileage: 5, DrivingSecs: 600, ParkingSecs: 99}, nil, testDay)
	if !ok {
		t.Fatal("expected a valid row")
	}
	// Only mileage and driving time exist for this category.
	if row.ParkingSecs != 0 {
		t.Errorf("expected parking duration dropped, got %d", row.ParkingSecs)
	}
	if row.Status != domain.StatusDriving {
		t.Errorf("expected driving status, got %d", row.Status)
	}
}

func TestBuildSummary_NewDistrictMileageScale(t *testing.T) {
	v := domain.Vehicle{ID: 4, LicensePlate: "皖D00004", Category: domain.CategoryNewDistrict}
	m := &domain.CountMetrics{Mileage: 500, DrivingSecs: 3600, ParkingSecs: 600, EngineOffSecs: 300}
	statuses := map[string]domain.StatusCode{"皖D00004": domain.StatusParked}

	row, ok := buildSummary(v, m, statuses, testDay)
	if !ok {
		t.Fatal("expected a valid row")
	}
	if row.Mileage != 50.0 {
		t.Errorf("expected mileage 50.0 after unit correction, got %v", row.Mileage)
	}
	if row.EngineOffSecs != 300 {
		t.Errorf("expected engine-off duration kept, got %d", row.EngineOffSecs)
	}
	if row.Status != domain.StatusParked {
		t.Errorf("expected status from live feed, got %d", row.Status)
	}
}

func TestBuildSummary_UnknownCategoryZeroFilled(t *testing.T) {
	v := domain.Vehicle{ID: 5, LicensePlate: "皖E00005", Category: domain.CategoryOther}

	row, ok := buildSummary(v, &domain.CountMetrics{Mileage: 99}, nil, testDay)
	if !ok {
		t.Fatal("expected a valid row")
	}
	if row.Mileage != 0 || row.DrivingSecs != 0 {
		t.Errorf("expected zero-filled record, got %+v", row)
	}
	if row.Status != domain.StatusUnknown {
		t.Errorf("expected unknown status, got %d", row.Status)
	}
}

func newDailyFixture(vehicles []domain.Vehicle, legacy, earthwork, newDistrict vendorapi.Adapter) (*DailyService, *memorySummaryRepo) {
	repo := newMemorySummaryRepo()
	svc := NewDailyService(
		&mockVehicleRepo{listAllFn: func(context.Context) ([]domain.Vehicle, error) { return vehicles, nil }},
		repo,
		&vendorapi.Registry{LegacyUrban: legacy, Earthwork: earthwork, NewDistrict: newDistrict},
		5*time.Minute,
		make(chan struct{}, 10),
		testLogger(),
	)
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC) }
	return svc, repo
}

// Running the engine twice with unchanged vendor data leaves one row
// whose fields equal a single run's result.
func TestDailyTick_Idempotent(t *testing.T) {
	v := domain.Vehicle{ID: 1, LicensePlate: "皖A00001", DeviceID: "C1", Category: domain.CategoryLegacyUrban}
	legacy := &fakeAdapter{
		name:    "legacy_urban",
		statusT: map[string]domain.StatusCode{"C1": domain.StatusParked},
		countFn: func(context.Context, domain.Vehicle, time.Time, time.Time) *domain.CountMetrics {
			return &domain.CountMetrics{Mileage: 10, DrivingSecs: 100, ParkingSecs: 50}
		},
	}
	svc, repo := newDailyFixture([]domain.Vehicle{v}, legacy, nil, nil)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	first := make(map[string]domain.DailySummary, len(repo.rows))
	for k, row := range repo.rows {
		first[k] = row
	}

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}

	if len(repo.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(repo.rows))
	}
	if !reflect.DeepEqual(first, repo.rows) {
		t.Errorf("expected identical rows after rerun: %+v vs %+v", first, repo.rows)
	}
}

// A vehicle whose vendor returned no count data is skipped: no row is
// written and an existing row survives.
func TestDailyTick_SkipsVehicleWithoutCountData(t *testing.T) {
	v := domain.Vehicle{ID: 2, LicensePlate: "皖B00002", Category: domain.CategoryEarthwork}
	earthwork := &fakeAdapter{
		name: "earthwork",
		countFn: func(context.Context, domain.Vehicle, time.Time, time.Time) *domain.CountMetrics {
			return nil
		},
	}
	svc, repo := newDailyFixture([]domain.Vehicle{v}, nil, earthwork, nil)

	existing := domain.DailySummary{VehicleID: 2, Date: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), Mileage: 7}
	_ = repo.UpsertBatch(context.Background(), []domain.DailySummary{existing})
	before := repo.upserts

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.upserts != before {
		t.Fatal("expected no new upsert for a vehicle without count data")
	}
	row, ok, _ := repo.ForDay(context.Background(), 2, existing.Date)
	if !ok || row.Mileage != 7 {
		t.Errorf("expected prior row untouched, got %+v (ok=%v)", row, ok)
	}
}

func TestDailyTick_DiscardsInvalidLegacyRecord(t *testing.T) {
	v := domain.Vehicle{ID: 3, LicensePlate: "皖C00003", DeviceID: "C3", Category: domain.CategoryLegacyUrban}
	legacy := &fakeAdapter{
		name: "legacy_urban",
		countFn: func(context.Context, domain.Vehicle, time.Time, time.Time) *domain.CountMetrics {
			return &domain.CountMetrics{Mileage: -3}
		},
	}
	svc, repo := newDailyFixture([]domain.Vehicle{v}, legacy, nil, nil)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("expected no rows for invalid vendor data, got %d", len(repo.rows))
	}
}
