package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/internal/repository/database"
)

var _ database.SummaryRepository = (*SummaryRepo)(nil)

type SummaryRepo struct {
	db *sql.DB
}

func NewSummaryRepo(db *sql.DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

const upsertSummaryQuery = `INSERT INTO vehicle_daily_data
	(vehicle_id, license_plate, date, running_mileage, driving_duration, parking_duration, engine_off_duration, current_status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (vehicle_id, date) DO UPDATE SET
	running_mileage = EXCLUDED.running_mileage,
	driving_duration = EXCLUDED.driving_duration,
	parking_duration = EXCLUDED.parking_duration,
	engine_off_duration = EXCLUDED.engine_off_duration,
	current_status = EXCLUDED.current_status,
	updated_at = NOW()`

func (r *SummaryRepo) UpsertBatch(ctx context.Context, rows []domain.DailySummary) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summary batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSummaryQuery)
	if err != nil {
		return fmt.Errorf("prepare summary upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range rows {
		if _, err := stmt.ExecContext(ctx,
			s.VehicleID, s.LicensePlate, s.Date, s.Mileage, s.DrivingSecs, s.ParkingSecs, s.EngineOffSecs, int(s.Status),
		); err != nil {
			return fmt.Errorf("upsert summary for vehicle %d: %w", s.VehicleID, err)
		}
	}

	return tx.Commit()
}

func (r *SummaryRepo) ForDay(ctx context.Context, vehicleID int64, day time.Time) (domain.DailySummary, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT vehicle_id, license_plate, date, running_mileage, driving_duration, parking_duration, engine_off_duration, current_status FROM vehicle_daily_data WHERE vehicle_id = $1 AND date = $2`,
		vehicleID, day,
	)

	var s domain.DailySummary
	var status int
	if err := row.Scan(&s.VehicleID, &s.LicensePlate, &s.Date, &s.Mileage, &s.DrivingSecs, &s.ParkingSecs, &s.EngineOffSecs, &status); err != nil {
		if err == sql.ErrNoRows {
			return domain.DailySummary{}, false, nil
		}
		return domain.DailySummary{}, false, err
	}
	s.Status = domain.StatusCode(status)
	return s, true, nil
}
