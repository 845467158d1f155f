package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/internal/repository/database"
)

var _ database.TrackRepository = (*TrackRepo)(nil)

type TrackRepo struct {
	db *sql.DB
}

func NewTrackRepo(db *sql.DB) *TrackRepo {
	return &TrackRepo{db: db}
}

func (r *TrackRepo) LastPointTime(ctx context.Context, vehicleID int64) (time.Time, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT MAX(track_time) FROM vehicle_track WHERE vehicle_id = $1`,
		vehicleID,
	)

	var last sql.NullTime
	if err := row.Scan(&last); err != nil {
		return time.Time{}, false, err
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return last.Time, true, nil
}

func (r *TrackRepo) InsertBatch(ctx context.Context, points []domain.TrackPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin track batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vehicle_track (vehicle_id, latitude, longitude, track_time) VALUES ($1, $2, $3, $4)`,
	)
	if err != nil {
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.VehicleID, p.Lat, p.Lng, p.Time); err != nil {
			return fmt.Errorf("insert track point: %w", err)
		}
	}

	return tx.Commit()
}

func (r *TrackRepo) TracksForDay(ctx context.Context, vehicleID int64, day time.Time) ([]domain.TrackPoint, error) {
	start, end := dayBounds(day)
	rows, err := r.db.QueryContext(ctx,
		`SELECT vehicle_id, latitude, longitude, track_time FROM vehicle_track WHERE vehicle_id = $1 AND track_time >= $2 AND track_time < $3 ORDER BY track_time ASC`,
		vehicleID, start, end,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.TrackPoint
	for rows.Next() {
		var p domain.TrackPoint
		if err := rows.Scan(&p.VehicleID, &p.Lat, &p.Lng, &p.Time); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *TrackRepo) LatestForDay(ctx context.Context, vehicleID int64, day time.Time) (domain.TrackPoint, bool, error) {
	start, end := dayBounds(day)
	row := r.db.QueryRowContext(ctx,
		`SELECT vehicle_id, latitude, longitude, track_time FROM vehicle_track WHERE vehicle_id = $1 AND track_time >= $2 AND track_time < $3 ORDER BY track_time DESC LIMIT 1`,
		vehicleID, start, end,
	)

	var p domain.TrackPoint
	if err := row.Scan(&p.VehicleID, &p.Lat, &p.Lng, &p.Time); err != nil {
		if err == sql.ErrNoRows {
			return domain.TrackPoint{}, false, nil
		}
		return domain.TrackPoint{}, false, err
	}
	return p, true, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
