package postgres

import (
	"context"
	"database/sql"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/internal/repository/database"
)

var _ database.VehicleRepository = (*VehicleRepo)(nil)

type VehicleRepo struct {
	db *sql.DB
}

func NewVehicleRepo(db *sql.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

func (r *VehicleRepo) ListAll(ctx context.Context) ([]domain.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, license_plate, COALESCE(device_id, ''), project_category, COALESCE(brand_model, ''), COALESCE(owner, ''), COALESCE(driver, ''), COALESCE(vehicle_name, '') FROM vehicle_info ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(&v.ID, &v.LicensePlate, &v.DeviceID, &v.Category, &v.BrandModel, &v.Owner, &v.Driver, &v.VehicleName); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}
