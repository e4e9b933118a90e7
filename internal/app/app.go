// Package app wires configuration, storage, the event bus, the sweep
// scheduler and the HTTP/websocket surface into one runnable server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"parlor/pkg/banner"
	"parlor/pkg/cache"
	"parlor/pkg/config"
	"parlor/pkg/events"
	"parlor/pkg/invites"
	"parlor/pkg/logger"
	"parlor/pkg/presence"
	"parlor/pkg/state"
	"parlor/pkg/store"
	"parlor/pkg/telemetry"
	"parlor/pkg/upgrade"
	"parlor/pkg/validation"

	"parlor/internal/gateway"
	"parlor/internal/sweep"
)

// Options carries the resolved startup inputs.
type Options struct {
	Config  *config.Config
	Addr    string
	DBPath  string
	Source  string // where the effective config came from: flags, env, config
	Version string
}

// App holds the long-lived server components.
type App struct {
	opts Options
	hub  *gateway.Hub
	srv  *http.Server
}

// New initializes everything that does not need a running context:
// validation limits, runtime keys, the store, the event bus and the
// cache. Call Run to start serving.
func New(opts Options) (*App, error) {
	_ = godotenv.Load(".env")
	cfg := opts.Config

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	// runtime key material for auth and signing
	rc := &config.RuntimeConfig{
		BackendKeys: map[string]struct{}{},
		SigningKeys: map[string]struct{}{},
		JWTSecret:   cfg.Security.JWT.Secret,
		JWTIssuer:   cfg.Security.JWT.Issuer,
	}
	for _, k := range cfg.Security.APIKeys.Backend {
		rc.BackendKeys[k] = struct{}{}
		rc.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(rc)

	validation.SetLimits(validation.Limits{
		MaxContentBytes: cfg.MaxContentBytes(),
		MaxAttachments:  cfg.MaxAttachments(),
	})
	presence.SetStaleness(cfg.PresenceStaleness())
	invites.SetDefaultTTL(cfg.InviteTTL())

	if err := state.EnsureStateDirs(opts.DBPath); err != nil {
		return nil, fmt.Errorf("prepare state dirs: %w", err)
	}
	if err := logger.AttachAuditFileSink(state.PathsVar.Audit); err != nil {
		logger.Warn("audit_sink_unavailable", "dir", state.PathsVar.Audit, "error", err)
	}

	if err := store.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", state.PathsVar.Store, err)
	}
	if _, err := upgrade.Run(context.Background(), opts.Version); err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}

	events.SetDefault(events.NewBus(cfg.SubscriberBuffer(), cfg.MaxPooledBufferBytes()))

	if cfg.CacheEnabled() {
		err := cache.Init(cache.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.CacheTTL(),
		})
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		logger.Info("cache_enabled", "addr", cfg.Cache.Redis.Addr)
	}

	telemetry.RegisterDiskGauge(func() float64 { return float64(store.DiskUsage()) })

	return &App{opts: opts}, nil
}

// Run starts the sweep scheduler, the websocket hub and the HTTP
// server, then blocks until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	cfg := a.opts.Config
	banner.Print(cfg, a.opts.Addr, a.opts.DBPath, a.opts.Source, a.opts.Version)

	stopSweeps, err := sweep.Start(ctx, sweep.Jobs(cfg.PresenceSweepCron(), cfg.InviteSweepCron()))
	if err != nil {
		return err
	}
	defer stopSweeps()

	a.hub = gateway.NewHub(cfg.QueueCapacity())
	go a.hub.Run(ctx)

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

func (a *App) shutdown() {
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	cache.Close()
	if err := store.Close(); err != nil {
		logger.Error("store_close_error", "error", err)
	}
	logger.Info("server_stopped")
}
