// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkwellhq/quotad/adapters/clock"
	quotahttp "github.com/inkwellhq/quotad/adapters/http"
	"github.com/inkwellhq/quotad/adapters/idgen"
	"github.com/inkwellhq/quotad/adapters/memory"
	"github.com/inkwellhq/quotad/adapters/metrics"
	"github.com/inkwellhq/quotad/adapters/sqlite"
	"github.com/inkwellhq/quotad/app"
	"github.com/inkwellhq/quotad/config"
	"github.com/inkwellhq/quotad/ports"
	"github.com/rs/zerolog"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB // nil with the memory driver
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Quota      *app.QuotaService
	Analytics  *app.Analytics

	holder *config.Holder
}

// New creates and initializes the application from a loaded configuration.
func New(cfg *config.Config) (*App, error) {
	return build(cfg, nil)
}

// NewWithHotReload creates the application with a config file watcher.
// The plan table applies live on reload; server and database settings
// require a restart.
func NewWithHotReload(path string) (*App, error) {
	logger := setupLogger(nil)

	holder, err := config.NewHolder(path, logger)
	if err != nil {
		return nil, err
	}

	a, err := build(holder.Get(), holder)
	if err != nil {
		return nil, err
	}

	holder.OnChange(func(cfg *config.Config) {
		a.Quota.UpdatePlans(cfg.BuildPlans())
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable, SIGHUP reload only")
	}
	holder.WatchSignals()

	return a, nil
}

func build(cfg *config.Config, holder *config.Holder) (*App, error) {
	logger := setupLogger(cfg)
	logger.Info().Str("version", Version).Msg("initializing quotad")

	a := &App{
		Logger: logger,
		holder: holder,
	}

	var store ports.UsageStore
	var logs ports.UsageLogStore

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		store = sqlite.NewUsageStore(db)
		logs = sqlite.NewLogStore(db)
		logger.Info().Str("path", cfg.Database.Path).Msg("sqlite store ready")

	case "memory":
		store = memory.NewUsageStore()
		logs = memory.NewLogStore()
		logger.Warn().Msg("memory store selected, quota state will not survive restarts")

	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	loc := cfg.Location()
	clk := clock.NewReal(loc)

	a.Quota = app.NewQuotaService(app.QuotaDeps{
		Store:   store,
		Logs:    logs,
		Clock:   clk,
		IDGen:   idgen.UUID{},
		Logger:  logger,
		Metrics: a.Metrics,
	}, app.QuotaConfig{
		Plans:        cfg.BuildPlans(),
		StoreTimeout: cfg.Quota.StoreTimeout,
		Cache: app.CacheConfig{
			TTL:        cfg.Quota.Cache.TTL,
			MaxEntries: cfg.Quota.Cache.MaxEntries,
		},
	})
	a.Analytics = app.NewAnalytics(logs, clk, loc)

	handler := quotahttp.NewHandler(a.Quota, a.Analytics, logger, quotahttp.HandlerConfig{
		TokenHash:      cfg.Auth.TokenHash,
		MetricsEnabled: cfg.Metrics.Enabled,
		Version:        Version,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until interrupt or server error.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// setupLogger builds the process logger. A nil config (pre-load) gets
// info-level console output.
func setupLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	format := "json"
	if cfg != nil {
		if l, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = l
		}
		format = cfg.Logging.Format
	}

	var logger zerolog.Logger
	if format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
