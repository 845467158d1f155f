package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/JunjieYe1/cars-info/config"
	"github.com/JunjieYe1/cars-info/module/core"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := config.NewLogger(cfg)

	db, err := config.NewPostgres(cfg)
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer func() { _ = db.Close() }()

	coreModule := core.Build(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coreModule.StartLoops(ctx)

	r := gin.Default()

	health := config.NewHealthChecker(db)
	health.Register(r)

	coreModule.RegisterRoutes(r.Group("/api"))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
