package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JunjieYe1/cars-info/module/core/domain"
	"github.com/JunjieYe1/cars-info/module/core/service"
)

const dateLayout = "20060102"

type queryService interface {
	ListVehicles(ctx context.Context) ([]domain.Vehicle, error)
	LastLocations(ctx context.Context, day time.Time) ([]service.VehicleDayStatus, error)
	VehicleTracks(ctx context.Context, vehicleID int64, day time.Time) ([]domain.TrackPoint, error)
}

type lastLocationResponse struct {
	ID              int64    `json:"id"`
	LicensePlate    string   `json:"license_plate"`
	DeviceID        string   `json:"device_id"`
	ProjectCategory string   `json:"project_category"`
	Status          string   `json:"status"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	LastTime        *string  `json:"last_time"`
	Mileage         float64  `json:"mile"`
	DrivingSecs     int      `json:"move_long"`
}

type trackResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Time      string  `json:"time"`
}

type VehicleHandler struct {
	querySvc queryService
}

func NewVehicleHandler(querySvc queryService) *VehicleHandler {
	return &VehicleHandler{querySvc: querySvc}
}

func (h *VehicleHandler) Register(r *gin.RouterGroup) {
	r.GET("/vehicles", h.GetVehicles)
	r.GET("/last_locations", h.GetLastLocations)
	r.GET("/vehicle_tracks", h.GetVehicleTracks)
}

func (h *VehicleHandler) GetVehicles(c *gin.Context) {
	vehicles, err := h.querySvc.ListVehicles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch vehicles"})
		return
	}

	c.JSON(http.StatusOK, vehicles)
}

func (h *VehicleHandler) GetLastLocations(c *gin.Context) {
	day, ok := parseDate(c)
	if !ok {
		return
	}

	entries, err := h.querySvc.LastLocations(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch locations"})
		return
	}

	results := make([]lastLocationResponse, len(entries))
	for i, entry := range entries {
		results[i] = toLastLocationResponse(entry)
	}
	c.JSON(http.StatusOK, results)
}

func (h *VehicleHandler) GetVehicleTracks(c *gin.Context) {
	vehicleID, err := strconv.ParseInt(c.Query("vehicle_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle_id parameter"})
		return
	}
	day, ok := parseDate(c)
	if !ok {
		return
	}

	points, err := h.querySvc.VehicleTracks(c.Request.Context(), vehicleID, day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tracks"})
		return
	}

	results := make([]trackResponse, len(points))
	for i, p := range points {
		results[i] = trackResponse{
			Latitude:  p.Lat,
			Longitude: p.Lng,
			Time:      p.Time.Format("2006-01-02 15:04:05"),
		}
	}
	c.JSON(http.StatusOK, results)
}

func parseDate(c *gin.Context) (time.Time, bool) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date parameter is required"})
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(dateLayout, dateStr, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format"})
		return time.Time{}, false
	}
	return day, true
}

func toLastLocationResponse(entry service.VehicleDayStatus) lastLocationResponse {
	resp := lastLocationResponse{
		ID:              entry.Vehicle.ID,
		LicensePlate:    entry.Vehicle.LicensePlate,
		DeviceID:        entry.Vehicle.DeviceID,
		ProjectCategory: string(entry.Vehicle.Category),
		Status:          "offline",
		Mileage:         entry.Mileage,
		DrivingSecs:     entry.Driving,
	}
	if entry.Online {
		resp.Status = "online"
		lat, lng := entry.Lat, entry.Lng
		last := entry.LastTime.Format("2006-01-02 15:04:05")
		resp.Latitude = &lat
		resp.Longitude = &lng
		resp.LastTime = &last
	}
	return resp
}
