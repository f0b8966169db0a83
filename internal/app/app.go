// Package app assembles the service from configuration. Both the HTTP
// server and the operator CLI are built on it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stwalsh4118/tokkosync/internal/config"
	"github.com/stwalsh4118/tokkosync/internal/credential"
	"github.com/stwalsh4118/tokkosync/internal/database"
	"github.com/stwalsh4118/tokkosync/internal/handlers"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/middleware"
	"github.com/stwalsh4118/tokkosync/internal/rates"
	"github.com/stwalsh4118/tokkosync/internal/repository"
	"github.com/stwalsh4118/tokkosync/internal/services"
	"github.com/stwalsh4118/tokkosync/internal/storage"
	"github.com/stwalsh4118/tokkosync/internal/tokko"
	"github.com/stwalsh4118/tokkosync/internal/worker"
)

const defaultPhotoRoute = "/photos"

// App holds the wired service graph.
type App struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *database.Database
	Runner *worker.Runner
	Store  storage.ObjectStore
	Sync   services.SyncService
	Photos services.PhotoMigrationService
	Leads  services.LeadService
	Rates  handlers.RateSource
}

// New connects to the database and object store and wires every service.
// The background runner is started; call Close to stop it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	sealer, err := credential.NewSealer(cfg.Credential.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential key: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open object storage: %w", err)
	}

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Database schema migrated", nil)
	}

	users := repository.NewUserRepository(db)
	listings := repository.NewListingRepository(db)
	photos := repository.NewPhotoRepository(db)

	feed := tokko.NewClient(tokko.Config{
		BaseURL:          cfg.Tokko.BaseURL,
		Lang:             cfg.Tokko.Lang,
		Timeout:          cfg.Tokko.Timeout,
		RateLimit:        cfg.Tokko.RateLimit,
		RateBurst:        cfg.Tokko.RateBurst,
		MaxRetries:       cfg.Tokko.MaxRetries,
		LocationCacheTTL: cfg.Tokko.LocationCacheTTL,
	}, log)

	runner := worker.NewRunner(cfg.Sync.Workers, cfg.Sync.QueueSize, log)
	runner.Start()

	return &App{
		Config: cfg,
		Log:    log,
		DB:     db,
		Runner: runner,
		Store:  store,
		Sync: services.NewSyncService(users, listings, feed, sealer, runner, services.SyncConfig{
			DefaultLimit: cfg.Sync.DefaultLimit,
			MaxLimit:     cfg.Sync.MaxLimit,
			PageSize:     cfg.Tokko.PageSize,
			Timeout:      cfg.Sync.Timeout,
			LockTTL:      cfg.Sync.LockTTL,
		}, log),
		Photos: services.NewPhotoMigrationService(photos, users, store, &http.Client{}, services.PhotoConfig{
			BatchSize:       cfg.Photos.BatchSize,
			Concurrency:     cfg.Photos.Concurrency,
			MaxBytes:        cfg.Photos.MaxBytes,
			Timeout:         cfg.Photos.Timeout,
			DownloadTimeout: cfg.Photos.DownloadTimeout,
		}, log),
		Leads: services.NewLeadService(listings, users, feed, sealer, log),
		Rates: rates.NewService(rates.Config{
			PrimaryURL:  cfg.Rates.PrimaryURL,
			FallbackURL: cfg.Rates.FallbackURL,
			House:       cfg.Rates.Casa,
			TTL:         cfg.Rates.TTL,
		}, log),
	}, nil
}

// Router builds the HTTP routes.
func (a *App) Router() *gin.Engine {
	handlers.UseJSONFieldNames()

	router := gin.New()

	// Order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.Log))
	router.Use(middleware.Recovery(a.Log))
	router.Use(middleware.CORS(a.Config.CORS.Origins))

	var db handlers.Pinger
	if a.DB != nil {
		db = a.DB
	}
	health := handlers.NewHealthHandler(db, a.Config.Server.Env, a.Config.Storage.Driver)
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if local, ok := a.Store.(*storage.Local); ok {
		router.Static(photoRoute(a.Config.Storage.PublicURL), local.Root())
	}

	syncHandler := handlers.NewSyncHandler(a.Sync)
	photoHandler := handlers.NewPhotoHandler(a.Photos)
	leadHandler := handlers.NewLeadHandler(a.Leads)
	rateHandler := handlers.NewRateHandler(a.Rates)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", health.Info)

		tokkoGroup := v1.Group("/tokko")
		{
			tokkoGroup.POST("/sync", syncHandler.Sync)
			tokkoGroup.GET("/sync/status", syncHandler.Status)
			tokkoGroup.POST("/check", syncHandler.Check)
		}

		v1.POST("/photos/migrate", photoHandler.Migrate)
		v1.POST("/leads", leadHandler.Create)
		v1.GET("/exchange-rate", rateHandler.Get)
	}

	return router
}

// DrainErrors logs background task failures until the runner stops.
func (a *App) DrainErrors() {
	if a.Runner == nil {
		return
	}
	for err := range a.Runner.Errors() {
		a.Log.Error("Background task failed", err, nil)
	}
}

// Close stops the runner, waiting up to timeout for running tasks, then
// closes the database pool.
func (a *App) Close(timeout time.Duration) {
	if a.Runner != nil {
		a.Runner.Stop(timeout)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// photoRoute is the path part of the public photo URL, where the local
// store is served.
func photoRoute(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return defaultPhotoRoute
	}
	return u.Path
}
