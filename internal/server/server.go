// Package server wires the bridge components into one HTTP handler.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/api"
	"github.com/strefethen/connect-bridge-go/internal/audit"
	"github.com/strefethen/connect-bridge-go/internal/auth"
	"github.com/strefethen/connect-bridge-go/internal/config"
	"github.com/strefethen/connect-bridge-go/internal/db"
	"github.com/strefethen/connect-bridge-go/internal/dedup"
	"github.com/strefethen/connect-bridge-go/internal/host/mopidy"
	"github.com/strefethen/connect-bridge-go/internal/jobs"
	"github.com/strefethen/connect-bridge-go/internal/librespot"
	"github.com/strefethen/connect-bridge-go/internal/notify"
	"github.com/strefethen/connect-bridge-go/internal/provider"
	"github.com/strefethen/connect-bridge-go/internal/reconcile"
	"github.com/strefethen/connect-bridge-go/internal/session"
	"github.com/strefethen/connect-bridge-go/internal/spotifyapi"
)

// Options controls server wiring.
type Options struct {
	// Remote replaces the Spotify Web API client.
	Remote session.Remote
	// DisableJobs skips the background scheduler.
	DisableJobs bool
}

// NewHandler builds the HTTP handler and returns a shutdown function.
func NewHandler(cfg config.Config, logger logrus.FieldLogger, options Options) (http.Handler, func(context.Context) error, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	logger.WithField("path", cfg.SQLiteDBPath).Info("Using database")
	dbPair, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, err
	}
	auditService := audit.NewService(dbPair, cfg.AuditRetentionDays, logger)

	remote := options.Remote
	if remote == nil {
		remote = spotifyapi.NewClient(context.Background(), spotifyapi.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RefreshToken: cfg.SpotifyRefreshToken,
			Timeout:      cfg.SpotifyTimeout,
		}, logger)
	}
	device := session.NewClient(remote, cfg.SpotifyDeviceName, session.NewSnapshotCache(cfg.SnapshotCacheTTL), logger)

	wsSink := notify.NewWebSocketSink(logger)
	hub := notify.NewHub(logger, wsSink)
	if cfg.RedisAddr != "" {
		redisSink, err := notify.NewRedisSink(notify.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without event fan-out")
		} else {
			hub.AddSink(redisSink)
		}
	}
	hostAdapter := mopidy.NewAdapter(mopidy.NewClient(cfg.MopidyRPCURL, cfg.MopidyTimeout), hub)

	engine := reconcile.NewEngine(device, hostAdapter, logger)
	reconciler := reconcile.NewService(engine, dedup.New(nil), reconcile.Options{
		LockTimeout: cfg.ReconcileLockTimeout,
		Journal:     auditService,
		Logger:      logger,
	})

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(api.RequestIDMiddleware)
	router.Use(api.LoggingMiddleware(logger))
	router.Use(api.RecovererMiddleware(logger))
	router.Use(auth.Middleware(cfg))

	registerHealthRoutes(router, device, auditService)

	librespot.NewWebhook(reconciler, cfg.CORSAllowOrigin, logger).RegisterRoutes(router)

	playback := provider.NewPlayback(device, logger)
	listener := provider.NewListener(device, hostAdapter, reconciler.Lock(), cfg.ReconcileLockTimeout, logger)
	provider.RegisterRoutes(router, playback, listener)
	provider.RegisterDeviceRoutes(router, device)

	audit.RegisterRoutes(router, auditService)
	wsSink.RegisterRoutes(router)

	runner := jobs.NewRunner(logger)
	resolveJob := jobs.ResolveDevice(device, reconciler.Lock(), cfg.ReconcileLockTimeout, logger)
	if err := runner.Add(jobs.DeviceResolveJob, cfg.DeviceResolveSchedule, resolveJob); err != nil {
		_ = hub.Close()
		_ = dbPair.Close()
		return nil, nil, err
	}
	if cfg.AuditRetentionDays > 0 {
		if err := runner.Add(jobs.AuditPruneJob, cfg.AuditPruneSchedule, jobs.PruneAudit(auditService)); err != nil {
			_ = hub.Close()
			_ = dbPair.Close()
			return nil, nil, err
		}
	}
	if !options.DisableJobs {
		runner.Start()
		go runner.RunNow(jobs.DeviceResolveJob, resolveJob)
	}

	shutdown := func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		var errs []error
		if !options.DisableJobs {
			errs = append(errs, runner.Stop(ctx))
		}
		errs = append(errs, hub.Close(), dbPair.Close())
		return errors.Join(errs...)
	}

	return router, shutdown, nil
}

type deviceBinding interface {
	DeviceName() string
	DeviceID() string
}

type healthChecker interface {
	IsHealthy() bool
}

func registerHealthRoutes(router chi.Router, device deviceBinding, journal healthChecker) {
	router.Method(http.MethodGet, "/v1/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		response := map[string]any{
			"status":    "healthy",
			"service":   "connect-bridge",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		return api.WriteJSON(w, http.StatusOK, response)
	}))
	router.Method(http.MethodGet, "/v1/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
	router.Method(http.MethodGet, "/v1/health/ready", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		bound := device.DeviceID() != ""
		journalOK := journal.IsHealthy()

		status, code := "ready", http.StatusOK
		if !bound || !journalOK {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		return api.WriteJSON(w, code, map[string]any{
			"status": status,
			"checks": map[string]any{
				"device_bound": bound,
				"device_name":  device.DeviceName(),
				"journal":      journalOK,
			},
		})
	}))
}
