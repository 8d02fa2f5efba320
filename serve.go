package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community-help/cache"
	"community-help/controllers"
	db "community-help/database"
	"community-help/events"
	"community-help/gcs"
	"community-help/logger"
	middlewares "community-help/middleware"
	"community-help/routes"
	"community-help/scheduler"
	"community-help/services"
	"community-help/utils"

	"github.com/gin-gonic/gin"
)

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer db.Disconnect(database)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	images, err := gcs.NewImageStore(ctx, cfg.GCSBucket, cfg.GCPCredentials)
	if err != nil {
		return err
	}
	defer images.Close()

	var markerCache services.MarkerCache = services.NoopCache()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.MarkerCacheTTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		markerCache = rc
	} else {
		logger.Log.Info("REDIS_URL not set, marker cache disabled")
	}

	var publisher services.EventPublisher = services.NoopPublisher()
	if cfg.NATSURL != "" {
		p, err := events.Connect(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Log.Info("NATS_URL not set, status events disabled")
	}

	var notifier services.Notifier = services.NoopNotifier()
	if cfg.SMTPEnabled() {
		notifier = utils.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	} else {
		logger.Log.Info("SMTP not configured, reporter e-mails disabled")
	}

	users := db.NewUserStore(database)
	reports := db.NewReportStore(database)
	authSvc := services.NewAuthService(users, cfg.JWTSecret, cfg.TokenTTL)
	reportSvc := services.NewReportService(reports, users, images, markerCache, publisher, notifier)
	mapSvc := services.NewMapService(reports, markerCache)

	jobs, err := scheduler.New(scheduler.Config{
		BacklogSpec:       cfg.CronSpecBacklog,
		WarmMarkersSpec:   cfg.CronSpecWarmMaps,
		StalePendingAfter: cfg.StalePendingAfter,
	}, reportSvc, mapSvc)
	if err != nil {
		return err
	}
	jobs.Start()

	production := cfg.Environment == "production" || cfg.Environment == "staging"
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, routes.Deps{
		Auth:        controllers.NewAuthController(authSvc, cfg.TokenTTL, production),
		Reports:     controllers.NewReportController(reportSvc),
		Map:         controllers.NewMapController(mapSvc),
		Tokens:      authSvc,
		Limiter:     middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		CORSOrigins: cfg.CORSOrigins,
		Ping: func(ctx context.Context) error {
			return database.Client().Ping(ctx, nil)
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Log.WithField("port", cfg.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	jobs.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server shutdown failed")
		return err
	}
	logger.Log.Info("Server stopped")
	return nil
}
