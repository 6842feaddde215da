package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/alerts"
	"github.com/florasync/florasync/internal/checkpoint"
	"github.com/florasync/florasync/internal/config"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/store"
	"github.com/florasync/florasync/internal/sync"
	"github.com/florasync/florasync/internal/telemetry"
)

// components holds everything a command needs after bootstrap
type components struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	pool    *pgxpool.Pool
	clients map[string]*provider.Client
	runner  *sync.Runner

	checkpoints checkpoint.Store
	content     store.ContentStore

	history    *alerts.History
	dispatcher *alerts.Dispatcher
	watcher    *alerts.Watcher

	meterProvider   *sdkmetric.MeterProvider
	metricsHandler  http.Handler
	syncMetrics     *telemetry.SyncMetrics
	providerMetrics *telemetry.ProviderMetrics
}

// close releases held resources
func (c *components) close() {
	if c.meterProvider != nil {
		_ = c.meterProvider.Shutdown(context.Background())
	}
	if c.pool != nil {
		c.pool.Close()
	}
	_ = c.log.Sync()
}

// bootstrap loads configuration and builds the full component graph
func bootstrap(ctx context.Context) (*components, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	configPath := viper.GetString("config")
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Infow("configuration loaded",
		"path", configPath, "providers", len(cfg.Providers), "storage", cfg.GetStorageType())

	var pool *pgxpool.Pool
	if cfg.GetStorageType() == config.StorageTypeDatabase {
		connString, err := cfg.Database.ConnString()
		if err != nil {
			return nil, err
		}
		pool, err = pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to reach database: %w", err)
		}
	}

	checkpoints, err := checkpoint.NewStore(cfg, pool)
	if err != nil {
		return nil, err
	}
	content, err := store.NewStore(cfg, pool)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]*provider.Client, len(cfg.Providers))
	engines := make(map[string]*sync.Engine, len(cfg.Providers))
	for i := range cfg.Providers {
		providerCfg := &cfg.Providers[i]

		client, err := provider.NewClient(providerCfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to build client for provider '%s': %w", providerCfg.Name, err)
		}
		if !client.IsConfigured() {
			log.Warnw("provider has no API key, operations will be no-ops", "provider", providerCfg.Name)
		}

		clients[providerCfg.Name] = client
		engines[providerCfg.Name] = sync.NewEngine(client, checkpoints, content, providerCfg.Sync, log,
			sync.WithEngineTracer(otel.Tracer("github.com/florasync/florasync/sync")))
	}

	c := &components{
		cfg:         cfg,
		log:         log,
		pool:        pool,
		clients:     clients,
		runner:      sync.NewRunner(engines, log),
		checkpoints: checkpoints,
		content:     content,
	}

	if viper.GetBool("metrics") {
		mp, handler, err := telemetry.NewPrometheusProvider()
		if err != nil {
			return nil, err
		}
		c.meterProvider = mp
		c.metricsHandler = handler

		if c.syncMetrics, err = telemetry.NewSyncMetrics(mp); err != nil {
			return nil, fmt.Errorf("failed to build sync metrics: %w", err)
		}
		if c.providerMetrics, err = telemetry.NewProviderMetrics(mp); err != nil {
			return nil, fmt.Errorf("failed to build provider metrics: %w", err)
		}
		log.Infow("metrics enabled", "endpoint", "/metrics")
	}

	historySize := 0
	if cfg.Alerting != nil {
		historySize = cfg.Alerting.HistorySize
	}
	c.history = alerts.NewHistory(historySize)
	c.dispatcher = alerts.NewDispatcher(cfg.Alerting, c.history, alerts.NewNotifiers(cfg.Alerting), log)
	c.watcher = alerts.NewWatcher(cfg.Alerting, c.dispatcher, clients, log,
		alerts.WithWatcherMetrics(c.providerMetrics))

	return c, nil
}
