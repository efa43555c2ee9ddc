// Package bootstrap wires all dependencies and starts the application:
// configuration, logging, the document store backend, the model registry
// and the HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/kvorm/adapters/clock"
	apihttp "github.com/artpar/kvorm/adapters/http"
	"github.com/artpar/kvorm/adapters/idgen"
	"github.com/artpar/kvorm/adapters/memory"
	"github.com/artpar/kvorm/adapters/metrics"
	"github.com/artpar/kvorm/adapters/random"
	"github.com/artpar/kvorm/adapters/redis"
	"github.com/artpar/kvorm/adapters/sqlite"
	"github.com/artpar/kvorm/config"
	"github.com/artpar/kvorm/model"
	"github.com/artpar/kvorm/ports"
)

// Options configure application startup.
type Options struct {
	// ConfigPath points at the YAML config file. When the file does not
	// exist, configuration falls back to KVORM_* environment variables.
	ConfigPath string

	// Watch reloads the config on file changes and SIGHUP. Only effective
	// when the configuration came from a file.
	Watch bool

	// Version is reported by the /version endpoint.
	Version apihttp.VersionInfo
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Store      ports.DocumentStore
	Registry   *model.Registry
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	holder *config.Holder
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger := NewLogger(cfg.Logging)
	logger.Info().
		Str("backend", cfg.Store.Backend).
		Str("namespace", cfg.Store.Namespace).
		Int("collections", len(cfg.Collections)).
		Bool("dynamic", cfg.Server.DynamicCollections).
		Msg("initializing kvorm")

	a := &App{
		Logger: logger,
		Config: cfg,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initStore(); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if err := a.initRegistry(); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("init registry: %w", err)
	}

	if err := a.initHTTPServer(opts); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	if opts.Watch {
		if err := a.initConfigWatch(opts.ConfigPath); err != nil {
			logger.Warn().Err(err).Msg("config watching disabled")
		}
	}

	return a, nil
}

// NewStore creates the document store backend selected by cfg.
func NewStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (ports.DocumentStore, error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewDocumentStore(), nil

	case "redis":
		store, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
		return store, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("path", cfg.SQLite.Path).Msg("sqlite database opened")
		return sqlite.NewDocumentStore(db), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewRegistry builds a model registry over store from the configured
// collections.
func NewRegistry(cfg *config.Config, store ports.DocumentStore, observer model.Observer) (*model.Registry, error) {
	regCfg := model.RegistryConfig{
		Namespace:   cfg.Store.Namespace,
		Store:       store,
		Clock:       clock.Real{},
		IDGen:       idgen.NewObject(clock.Real{}, random.Real{}),
		Collections: cfg.Collections,
		Dynamic:     cfg.Server.DynamicCollections,
	}
	if observer != nil {
		regCfg.Observer = observer
	}
	return model.NewRegistry(regCfg)
}

func (a *App) initStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewStore(ctx, a.Config.Store, a.Logger)
	if err != nil {
		return err
	}
	a.Store = store
	return nil
}

func (a *App) initRegistry() error {
	// A nil *Collector must not reach the Observer interface field, or the
	// model layer would call methods on it.
	var observer model.Observer
	if a.Metrics != nil {
		observer = a.Metrics
	}

	registry, err := NewRegistry(a.Config, a.Store, observer)
	if err != nil {
		return err
	}
	a.Registry = registry
	return nil
}

func (a *App) initHTTPServer(opts Options) error {
	cfg := a.Config

	var docs *apihttp.DocumentHandler
	if a.Metrics != nil {
		docs = apihttp.NewDocumentHandlerWithMetrics(a.Registry, a.Logger, a.Metrics, cfg.Store.Backend)
	} else {
		docs = apihttp.NewDocumentHandler(a.Registry, a.Logger)
	}
	health := apihttp.NewHealthHandler(a.Store)

	routerCfg := apihttp.RouterConfig{
		Metrics:       a.Metrics,
		AuthEnabled:   cfg.Auth.Enabled,
		AuthTokenHash: cfg.Auth.TokenHash,
		Version:       opts.Version,
	}
	if a.Metrics != nil {
		routerCfg.MetricsHandler = promhttp.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	router := apihttp.NewRouterWithConfig(docs, health, a.Logger, routerCfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
	return nil
}

// initConfigWatch wires hot reload: file changes and SIGHUP swap in new
// collections and adjust the log level without a restart.
func (a *App) initConfigWatch(path string) error {
	if path == "" {
		return fmt.Errorf("no config file to watch")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not watchable: %w", err)
	}

	holder, err := config.NewHolder(path, a.Logger)
	if err != nil {
		return err
	}
	holder.OnChange(a.applyConfig)
	if err := holder.WatchFile(); err != nil {
		return err
	}
	holder.WatchSignals()

	a.holder = holder
	return nil
}

// applyConfig carries a reloaded config into the running application. Only
// the reloadable subset takes effect; server, store and auth settings keep
// their startup values until restart.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if err := a.Registry.Reload(cfg.Collections); err != nil {
		a.Logger.Error().Err(err).Msg("collection reload failed, keeping previous set")
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
		return
	}

	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
		a.Metrics.ConfigLastReload.SetToCurrentTime()
	}
	a.Logger.Info().
		Int("collections", len(cfg.Collections)).
		Msg("configuration applied")
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		// The listener never came up; release the store and the config
		// watcher before reporting the failure.
		if cleanupErr := a.Shutdown(); cleanupErr != nil {
			a.Logger.Error().Err(cleanupErr).Msg("cleanup after server error failed")
		}
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

	a.closeStore()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) closeStore() {
	if a.Store == nil {
		return
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("store close error")
	}
	a.Store = nil
}

// NewLogger builds the process logger from the logging configuration.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
