package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/config"
	"github.com/elee1766/gotrae/src/llmclient"
	"github.com/elee1766/gotrae/src/mcp"
	"github.com/elee1766/gotrae/src/metrics"
	"github.com/elee1766/gotrae/src/retry"
	"github.com/elee1766/gotrae/src/storage"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// env is what every command needs once the configuration is loaded.
type env struct {
	manager *config.Manager
	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
}

// setup loads the configuration with o applied and builds the logger.
func setup(cli *CLI, o config.Overrides) (*env, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	disc := config.NewDiscovery(afero.NewOsFs(), wd)
	manager, err := config.NewManager(disc.Precedence(cli.ConfigFile))
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		o.LogLevel = cli.LogLevel
	}
	if err := manager.ApplyOverrides(o); err != nil {
		return nil, err
	}
	cfg := manager.GetConfig()

	logger, closer, err := createCLILogger(os.Stderr, cfg.Logging.Level, logFilePath(cli.LogFile, cfg))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	toolsutil.SetLogger(logger)
	return &env{manager: manager, cfg: cfg, logger: logger, closers: []io.Closer{closer}}, nil
}

// Close releases everything opened through e in reverse order.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// openStorage opens the trajectory database, nil when storage is disabled.
func (e *env) openStorage() (*storage.DB, error) {
	if e.cfg.Storage.Disabled {
		return nil, nil
	}
	path := e.cfg.Storage.Path
	if path == "" {
		path = config.DefaultDatabasePath()
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory database: %w", err)
	}
	e.closers = append(e.closers, db)
	e.logger.Debug("opened trajectory database", "path", path)
	return db, nil
}

// metricsRecorder registers the Prometheus collectors and serves them when an
// address is configured. Without one it returns a no-op recorder.
func (e *env) metricsRecorder(ctx context.Context) metrics.Recorder {
	if e.cfg.Metrics.Addr == "" {
		return metrics.Nop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)
	go func() {
		if err := metrics.Serve(ctx, e.cfg.Metrics.Addr, reg, e.logger); err != nil {
			e.logger.Error("metrics server failed", "error", err)
		}
	}()
	return rec
}

// mcpTools starts the configured MCP servers and returns their tools. The
// servers are stopped by Close.
func (e *env) mcpTools(ctx context.Context) ([]agent.Tool, error) {
	if len(e.cfg.MCPServers) == 0 {
		return nil, nil
	}
	mgr, err := mcp.Connect(ctx, e.cfg.MCPServerConfigs(), e.logger)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, mgr)
	return mgr.Tools(ctx)
}

// client builds the provider client with the configured retry schedule.
func (e *env) client(rec metrics.Recorder) (*llmclient.Client, error) {
	modelCfg, err := e.cfg.ModelConfig()
	if err != nil {
		return nil, err
	}
	policy, err := retry.New(e.cfg.RetryConfig(), retry.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	return llmclient.New(modelCfg, llmclient.Options{
		Logger:  e.logger,
		Retry:   policy,
		Metrics: rec,
	})
}
