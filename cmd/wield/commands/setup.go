package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/user"
	"time"

	"github.com/wieldops/wield/pkg/config"
	"github.com/wieldops/wield/pkg/locks"
	"github.com/wieldops/wield/pkg/telemetry"
)

// runtimeEnv bundles everything a command needs after setup.
type runtimeEnv struct {
	cfg     *config.Config
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	store   *locks.SQLiteStore
	manager *locks.Manager
}

// setupRuntime loads the config and wires logging, metrics, tracing, and
// the lock store. Callers must invoke teardown when done.
func setupRuntime(ctx context.Context, version string) (*runtimeEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = version
	telCfg.Logging.Level = cfg.LogLevel
	telCfg.Logging.Format = cfg.LogFormat
	if verbose {
		telCfg.Logging.Level = "debug"
	}
	if cfg.MetricsListen != "" {
		telCfg.Metrics.Enabled = true
		telCfg.Metrics.ListenAddress = cfg.MetricsListen
	}
	if err := telCfg.Validate(); err != nil {
		return nil, err
	}

	log, err := telemetry.NewLogger(telCfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics, err := telemetry.NewMetrics(telCfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if telCfg.Metrics.Enabled && telCfg.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(telCfg.Metrics.ListenAddress, mux); err != nil {
				log.WithError(err).Error("metrics endpoint failed")
			}
		}()
	}

	tracer, err := telemetry.NewTracer(telCfg.Tracing, telCfg.ServiceName, telCfg.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	store, err := locks.NewSQLiteStore(locks.SQLiteConfig{Path: cfg.LockStorePath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &runtimeEnv{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		tracer:  tracer,
		store:   store,
		manager: locks.NewManager(store, log, metrics),
	}, nil
}

// teardown flushes telemetry and closes the lock store.
func (env *runtimeEnv) teardown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := env.tracer.Shutdown(shutdownCtx); err != nil {
		env.log.WithError(err).Warn("failed to shut down tracer")
	}
	if err := env.store.Close(); err != nil {
		env.log.WithError(err).Warn("failed to close lock store")
	}
}

// defaultHolder identifies this process as user@host:pid.
func defaultHolder() string {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s@%s:%d", username, hostname, os.Getpid())
}
