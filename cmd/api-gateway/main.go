package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/oculohealth/rota-api/api/swagger"
	"github.com/oculohealth/rota-api/internal/handler"
	"github.com/oculohealth/rota-api/internal/middleware"
	"github.com/oculohealth/rota-api/internal/models"
	"github.com/oculohealth/rota-api/internal/repository"
	"github.com/oculohealth/rota-api/internal/service"
	"github.com/oculohealth/rota-api/pkg/cache"
	"github.com/oculohealth/rota-api/pkg/config"
	"github.com/oculohealth/rota-api/pkg/database"
	"github.com/oculohealth/rota-api/pkg/jobs"
	"github.com/oculohealth/rota-api/pkg/logger"
	corsmiddleware "github.com/oculohealth/rota-api/pkg/middleware/cors"
	reqidmiddleware "github.com/oculohealth/rota-api/pkg/middleware/requestid"
	"github.com/oculohealth/rota-api/pkg/storage"
)

// @title Rota API
// @version 1.0.0
// @description Shift rota generation, swap noticeboard and staff views
// @BasePath /
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The coordinator degrades to its in-process copy without redis.
		logr.Sugar().Warnw("redis unavailable, view cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	userRepo := repository.NewRotaUserRepository(db)
	typeRepo := repository.NewShiftTypeRepository(db)
	reqRepo := repository.NewShiftRequirementRepository(db)
	prefRepo := repository.NewShiftPreferenceRepository(db)
	schedRepo := repository.NewRotaScheduleRepository(db)
	listingRepo := repository.NewSwapListingRepository(db)
	accountRepo := repository.NewUserRepository(db)
	exportRepo := repository.NewExportRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Shared by the engine and swap validation so both cost a weightless
	// shift type the same way.
	shiftWeights := map[models.ShiftTypeCode]float64{
		models.ShiftDay:     cfg.Engine.DayShiftWeight,
		models.ShiftNight:   cfg.Engine.NightShiftWeight,
		models.ShiftWeekend: cfg.Engine.WeekendShiftWeight,
		models.ShiftOnCall:  cfg.Engine.OnCallShiftWeight,
	}

	engineSvc := service.NewRotaEngineService(
		userRepo, typeRepo, reqRepo, prefRepo, schedRepo, userRepo, db,
		validate, logr, metricsSvc,
		service.RotaEngineConfig{
			ProposalTTL: cfg.Engine.ProposalTTL,
			Weights: service.EngineWeights{
				StronglyPrefer:        cfg.Engine.StronglyPreferWeight,
				Prefer:                cfg.Engine.PreferWeight,
				Neutral:               cfg.Engine.NeutralWeight,
				Avoid:                 cfg.Engine.AvoidWeight,
				FairnessPenaltyFactor: cfg.Engine.FairnessPenaltyFactor,
				DefaultShiftWeights:   shiftWeights,
			},
		},
	)

	swapSvc := service.NewSwapService(
		schedRepo, userRepo, typeRepo, listingRepo, schedRepo, userRepo, db,
		validate, logr, metricsSvc,
		service.SwapRules{
			MinRest:             time.Duration(cfg.Swaps.MinRestHours) * time.Hour,
			FairnessDriftLimit:  cfg.Swaps.FairnessDriftLimit,
			ListingTTL:          cfg.Swaps.ListingTTL,
			DefaultShiftWeights: shiftWeights,
		},
		nil,
	)

	coordinator := service.NewRotaService(schedRepo, userRepo, typeRepo, redisClient, cfg.Views.CacheTTL, logr, metricsSvc, nil)
	prefSvc := service.NewPreferenceService(prefRepo, schedRepo, validate, logr, nil)
	rosterSvc := service.NewRosterService(userRepo, reqRepo, typeRepo, validate, logr, nil)

	authSvc := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "rota-api",
	})

	if err := coordinator.RefreshRoster(ctx); err != nil {
		logr.Sugar().Warnw("roster warm-up failed", "error", err)
	}

	coordinator.Subscribe(func(event service.RotaEvent) {
		logr.Sugar().Infow("rota changed",
			"kind", event.Kind,
			"schedule_id", event.ScheduleID,
			"period_id", event.PeriodID)
	})

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	rotaHandler := handler.NewRotaHandler(engineSvc, coordinator)
	viewHandler := handler.NewViewHandler(coordinator)
	prefHandler := handler.NewPreferenceHandler(prefSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	swapHandler := handler.NewSwapHandler(swapSvc, coordinator)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	auth := r.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		session := auth.Group("", middleware.JWT(authSvc))
		session.POST("/logout", authHandler.Logout)
		session.POST("/change-password", authHandler.ChangePassword)
		session.GET("/me", authHandler.Me)
	}

	api := r.Group("", middleware.JWT(authSvc))

	rota := api.Group("/rota")
	{
		rota.GET("/current", viewHandler.Current)

		manage := rota.Group("", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin))
		manage.POST("/current/refresh", viewHandler.Refresh)
		manage.POST("/generate",
			middleware.Audit(accountRepo, models.AuditActionRotaGenerate, "rota"),
			rotaHandler.Generate)
		manage.POST("/save",
			middleware.Audit(accountRepo, models.AuditActionRotaPublish, "rota"),
			rotaHandler.Save)
		manage.GET("/schedules", rotaHandler.List)
		manage.GET("/schedules/:id", rotaHandler.Get)
		manage.POST("/schedules/:id/publish",
			middleware.Audit(accountRepo, models.AuditActionRotaPublish, "rota"),
			rotaHandler.Publish)
		manage.DELETE("/schedules/:id", rotaHandler.Delete)
	}

	me := api.Group("/me")
	{
		me.GET("/rota", viewHandler.MyRota)
		me.GET("/next-shift", viewHandler.NextShift)
		me.GET("/fairness", viewHandler.MyFairness)
	}

	prefs := api.Group("/preferences")
	{
		prefs.PUT("", prefHandler.Submit)
		prefs.GET("", prefHandler.ListMine)
		prefs.GET("/all", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin), prefHandler.ListByPeriod)
	}

	roster := api.Group("/roster")
	{
		roster.GET("", rosterHandler.List)
		roster.GET("/:id", rosterHandler.Get)

		manage := roster.Group("", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin))
		manage.POST("", rosterHandler.Create)
		manage.PUT("/:id", rosterHandler.Update)
		manage.DELETE("/:id", rosterHandler.Deactivate)
	}

	api.GET("/shift-types", rosterHandler.ShiftTypes)

	requirements := api.Group("/requirements", middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin))
	{
		requirements.GET("", rosterHandler.ListRequirements)
		requirements.POST("", rosterHandler.CreateRequirement)
		requirements.DELETE("/:id", rosterHandler.DeleteRequirement)
	}

	swaps := api.Group("/swaps")
	{
		swaps.POST("/listings", swapHandler.CreateListing)
		swaps.GET("/listings", swapHandler.ListOpen)
		swaps.POST("/accept",
			middleware.Audit(accountRepo, models.AuditActionSwapAccept, "swap"),
			swapHandler.Accept)
		swaps.DELETE("/listings/:id",
			middleware.Audit(accountRepo, models.AuditActionSwapCancel, "swap"),
			swapHandler.Cancel)
	}

	api.GET("/ops/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(exportRepo, schedRepo, userRepo, files, signer, logr, nil)

		exportQueue = jobs.NewQueue("exports", exportSvc.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		exportSvc.AttachQueue(exportQueue)

		exportHandler := handler.NewExportHandler(exportSvc, files)
		api.POST("/exports", exportHandler.Request)
		api.GET("/exports/:id", exportHandler.Status)
		// Download authenticates via the signed token, not a session.
		r.GET("/exports/download", exportHandler.Download)

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					removed, err := files.CleanupOlderThan(cfg.Exports.SignedURLTTL)
					if err != nil {
						logr.Sugar().Warnw("export cleanup failed", "error", err)
						continue
					}
					if len(removed) > 0 {
						logr.Sugar().Infow("expired exports removed", "count", len(removed))
					}
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(cfg.Swaps.ExpirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := swapSvc.ExpireListings(ctx)
				if err != nil {
					logr.Sugar().Warnw("listing expiry sweep failed", "error", err)
					continue
				}
				if expired > 0 {
					logr.Sugar().Infow("stale listings expired", "count", expired)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
	logr.Sugar().Infow("server stopped")
}
