// Package app is the application layer between the transports (CLI, HTTP,
// MCP, inbox watcher) and the pipeline. Transports stay thin adapters: they
// build a Context once and call the services defined here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/josephgoksu/taskmail/internal/auth"
	"github.com/josephgoksu/taskmail/internal/config"
	"github.com/josephgoksu/taskmail/internal/dedup"
	"github.com/josephgoksu/taskmail/internal/extract"
	"github.com/josephgoksu/taskmail/internal/llm"
	"github.com/josephgoksu/taskmail/internal/mailbody"
	"github.com/josephgoksu/taskmail/internal/memory"
	"github.com/josephgoksu/taskmail/internal/pipeline"
	"github.com/josephgoksu/taskmail/internal/policy"
	"github.com/josephgoksu/taskmail/internal/telemetry"
)

// Context holds shared dependencies for all app services.
type Context struct {
	Config    *config.Config
	Store     *memory.SQLiteStore
	Logger    *slog.Logger
	Telemetry telemetry.Client
	Locks     *memory.OwnerLocks
}

// Open creates the data directory, opens the store under it and starts the
// telemetry client. Telemetry problems are logged and never fail Open.
func Open(cfg *config.Config, logger *slog.Logger, version string) (*Context, error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := memory.NewSQLiteStore(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}
	c := NewContext(cfg, store, logger)
	c.Telemetry = openTelemetry(cfg, logger, version)
	return c, nil
}

// NewContext wraps an already open store. Telemetry is off.
func NewContext(cfg *config.Config, store *memory.SQLiteStore, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Config:    cfg,
		Store:     store,
		Logger:    logger,
		Telemetry: telemetry.NewNoopClient(),
		Locks:     memory.NewOwnerLocks(),
	}
}

func openTelemetry(cfg *config.Config, logger *slog.Logger, version string) telemetry.Client {
	if !cfg.Telemetry.Enabled {
		return telemetry.NewNoopClient()
	}
	tcfg, err := telemetry.Load(cfg.Data.Dir, cfg.Telemetry.Enabled)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
		return telemetry.NewNoopClient()
	}
	client, err := telemetry.NewClient(telemetry.ClientConfig{
		APIKey:   cfg.Telemetry.APIKey,
		Version:  version,
		Config:   tcfg,
		Endpoint: cfg.Telemetry.Endpoint,
	})
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
		return telemetry.NewNoopClient()
	}
	return client
}

// Close flushes telemetry and closes the store.
func (c *Context) Close() error {
	return errors.Join(c.Telemetry.Close(), c.Store.Close())
}

// Pipeline builds the orchestrator with the configured model backend. A
// missing API key fails here, before any email is read.
func (c *Context) Pipeline(ctx context.Context) (*pipeline.Orchestrator, error) {
	llmCfg, err := c.Config.LLMConfig()
	if err != nil {
		return nil, err
	}
	completer, err := llm.NewCompleter(ctx, llmCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s completer: %w", llmCfg.Provider, err)
	}
	c.Logger.Debug("model backend ready", "provider", llmCfg.Provider, "model", completer.Model())
	return c.PipelineWith(completer, llmCfg.Rates())
}

// PipelineWith builds the orchestrator around an explicit completer.
func (c *Context) PipelineWith(completer llm.Completer, rates llm.Rates) (*pipeline.Orchestrator, error) {
	extractor, err := extract.NewClient(completer, rates, c.Logger.With("component", "extract"))
	if err != nil {
		return nil, err
	}
	metric, err := dedup.MetricByName(c.Config.Dedup.Metric)
	if err != nil {
		return nil, err
	}
	engine, err := policy.NewEngine(policy.EngineConfig{PoliciesDir: c.Config.PoliciesDir()})
	if err != nil {
		return nil, err
	}
	if n := engine.PolicyCount(); n > 0 {
		c.Logger.Info("intake policies loaded", "count", n, "dir", c.Config.PoliciesDir())
	}

	return pipeline.New(c.Store, extractor, pipeline.Options{
		Resolver:       mailbody.Resolver{PlainTextMinRatio: c.Config.Mail.PlainTextMinRatio},
		Dedup:          dedup.New(c.Config.Dedup.Threshold, metric),
		DedupOnReceive: c.Config.Dedup.OnReceive,
		BudgetEnabled:  c.Config.Budget.Enabled,
		Policy:         engine,
		Telemetry:      c.Telemetry,
		Logger:         c.Logger,
		Locks:          c.Locks,
	}), nil
}

// Sweeper returns the periodic retry and consolidation job for orch.
func (c *Context) Sweeper(orch *pipeline.Orchestrator) *pipeline.Sweeper {
	return pipeline.NewSweeper(orch, c.Config.Sweep.Interval, c.Config.SweepLockPath())
}

// Auth selects the configured authentication backend.
func (c *Context) Auth() (auth.Backend, error) {
	return auth.New(c.Config.Auth.Backend, auth.Options{
		Users:     c.Store,
		JWTSecret: c.Config.Auth.JWTSecret,
	})
}
