package domain

// ProjectCategory decides which vendor backend reports for a vehicle.
type ProjectCategory string

const (
	CategoryLegacyUrban ProjectCategory = "legacy_urban_sanitation"
	CategoryEarthwork   ProjectCategory = "earthwork"
	CategoryNewDistrict ProjectCategory = "new_district"
	CategoryOther       ProjectCategory = "other"
)

// Vehicle is a row of the fleet registry. The registry is maintained by
// external registration tooling and read-only here.
type Vehicle struct {
	ID           int64           `json:"id"`
	LicensePlate string          `json:"license_plate"`
	DeviceID     string          `json:"device_id"`
	Category     ProjectCategory `json:"project_category"`
	BrandModel   string          `json:"brand_model"`
	Owner        string          `json:"owner"`
	Driver       string          `json:"driver"`
	VehicleName  string          `json:"vehicle_name"`
}
