package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JunjieYe1/cars-info/config"
	handler "github.com/JunjieYe1/cars-info/module/core/internal/handler/http"
	"github.com/JunjieYe1/cars-info/module/core/internal/repository/database/postgres"
	"github.com/JunjieYe1/cars-info/module/core/internal/vendorapi"
	"github.com/JunjieYe1/cars-info/module/core/service"
)

type Module struct {
	TrackerSvc *service.TrackerService
	DailySvc   *service.DailyService
	QuerySvc   *service.QueryService
	handler    *handler.VehicleHandler
}

func Build(db *sql.DB, cfg *config.Config, logger *logrus.Logger) *Module {
	vehicleRepo := postgres.NewVehicleRepo(db)
	trackRepo := postgres.NewTrackRepo(db)
	summaryRepo := postgres.NewSummaryRepo(db)

	sessions := vendorapi.NewSessionManager(
		cfg.Vendors.NewDistrict.BaseURL+"/shiro/login.do",
		cfg.Vendors.NewDistrict.Username,
		cfg.Vendors.NewDistrict.Password,
		cfg.Vendors.NewDistrict.TokenCachePath,
		time.Duration(cfg.Vendors.NewDistrict.SessionTTLHours)*time.Hour,
		logger,
	)

	adapters := &vendorapi.Registry{
		LegacyUrban: vendorapi.NewLegacyUrbanAdapter(
			cfg.Vendors.LegacyUrban.BaseURL,
			cfg.Vendors.LegacyUrban.SessionID,
			time.Duration(cfg.Vendors.LegacyUrban.MinSpacingSeconds)*time.Second,
			logger,
		),
		Earthwork: vendorapi.NewEarthworkAdapter(
			cfg.Vendors.Earthwork.BaseURL,
			time.Duration(cfg.Vendors.Earthwork.MinSpacingSeconds)*time.Second,
			logger,
		),
		NewDistrict: vendorapi.NewNewDistrictAdapter(
			cfg.Vendors.NewDistrict.BaseURL,
			cfg.Vendors.NewDistrict.Username,
			cfg.Vendors.NewDistrict.Password,
			sessions,
			time.Duration(cfg.Vendors.NewDistrict.MinSpacingSeconds)*time.Second,
			logger,
		),
	}

	// One limiter for both loops: vendor rate limits apply to the
	// process, not to a single loop.
	sem := make(chan struct{}, cfg.Poller.ConcurrencyLimit)

	trackerSvc := service.NewTrackerService(
		vehicleRepo, trackRepo, adapters,
		time.Duration(cfg.Poller.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Poller.StalenessDays)*24*time.Hour,
		time.Duration(cfg.Poller.BackfillHours)*time.Hour,
		sem, logger,
	)
	dailySvc := service.NewDailyService(
		vehicleRepo, summaryRepo, adapters,
		time.Duration(cfg.Aggregator.IntervalMinutes)*time.Minute,
		sem, logger,
	)
	querySvc := service.NewQueryService(vehicleRepo, trackRepo, summaryRepo)

	return &Module{
		TrackerSvc: trackerSvc,
		DailySvc:   dailySvc,
		QuerySvc:   querySvc,
		handler:    handler.NewVehicleHandler(querySvc),
	}
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.handler.Register(r)
}

// StartLoops launches the poller and aggregator on their own schedules.
// They stop when the context is cancelled.
func (m *Module) StartLoops(ctx context.Context) {
	go m.TrackerSvc.Run(ctx)
	go m.DailySvc.Run(ctx)
}
