package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinrota/clinrota-api/internal/handler"
	"github.com/clinrota/clinrota-api/internal/middleware"
	"github.com/clinrota/clinrota-api/internal/repository"
	"github.com/clinrota/clinrota-api/internal/scheduler"
	"github.com/clinrota/clinrota-api/internal/service"
	"github.com/clinrota/clinrota-api/internal/swap"
	"github.com/clinrota/clinrota-api/pkg/cache"
	"github.com/clinrota/clinrota-api/pkg/config"
	"github.com/clinrota/clinrota-api/pkg/database"
	"github.com/clinrota/clinrota-api/pkg/logger"
	corsmiddleware "github.com/clinrota/clinrota-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clinrota/clinrota-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var resultCache scheduler.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		resultCache = cache.NewRedisResultCache(redisClient, logr)
	}

	rosterRepo := repository.NewRosterRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	swapRepo := repository.NewSwapRepository(db)

	coordinator := scheduler.NewCoordinator(scheduler.CoordinatorConfig{
		ResultTTL:         cfg.Scheduler.ResultTTL,
		StrictRest:        cfg.Scheduler.StrictRest,
		Logger:            logr,
		Cache:             resultCache,
		DefaultTimeout:    cfg.Scheduler.DefaultTimeout,
		ResidentsPerBlock: cfg.Scheduler.ResidentsPerBlock,
	})
	engine := swap.NewEngine(swap.Config{
		RollbackWindow: cfg.Swaps.RollbackWindow,
		Logger:         logr,
	})

	metricsSvc := service.NewMetricsService()
	scheduleSvc := service.NewScheduleService(rosterRepo, assignmentRepo, coordinator, db, nil, logr, metricsSvc)
	swapSvc := service.NewSwapService(engine, rosterRepo, assignmentRepo, swapRepo, db, nil, logr, metricsSvc)

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	swapHandler := handler.NewSwapHandler(swapSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/schedules/generate", scheduleHandler.Generate)
		api.GET("/schedules/runs/:id", scheduleHandler.Run)
		api.POST("/swaps/validate", swapHandler.Validate)
		api.POST("/swaps", swapHandler.Execute)
		api.POST("/swaps/:id/rollback", swapHandler.Rollback)
		api.GET("/swaps/:id", swapHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
