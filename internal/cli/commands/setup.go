// Package commands implements the glpipe subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dakota-labs/glpipe/internal/audit"
	"github.com/dakota-labs/glpipe/internal/config"
	"github.com/dakota-labs/glpipe/internal/engine"
	"github.com/dakota-labs/glpipe/internal/quality"
	"github.com/dakota-labs/glpipe/internal/raw"
	"github.com/dakota-labs/glpipe/internal/state"
	"github.com/dakota-labs/glpipe/internal/warehouse"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Store     *state.SQLiteStore
	Warehouse warehouse.Adapter
	Auditor   *audit.Recorder
	Raw       *raw.Store
	Gate      *quality.Gate
	Engine    *engine.Engine
}

// NewCommandContext opens the warehouse and the metadata store and wires the
// pipeline components. Returns the context and a cleanup function that must
// be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}
	logger := config.LoggerFrom(cmd.Context())

	store := state.NewSQLiteStore(logger)
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	wh, err := warehouse.New(cfg.WarehouseConn())
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if err := wh.Connect(cmd.Context(), cfg.WarehouseConn()); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	auditor := audit.NewRecorder(store, "pipeline", cfg.AuditUser, logger)
	rawStore := raw.NewStore(wh, auditor, logger)
	gate := quality.NewGate(wh, store, auditor, logger)

	eng, err := engine.New(wh, store, gate, auditor, logger)
	if err != nil {
		_ = wh.Close()
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = wh.Close()
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:       cfg,
		Logger:    logger,
		Store:     store,
		Warehouse: wh,
		Auditor:   auditor,
		Raw:       rawStore,
		Gate:      gate,
		Engine:    eng,
	}, cleanup, nil
}

// NewStoreContext opens only the metadata store, for read-only commands
// that never touch the warehouse.
func NewStoreContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}
	logger := config.LoggerFrom(cmd.Context())

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() { _ = store.Close() }
	return &CommandContext{Cfg: cfg, Logger: logger, Store: store}, cleanup, nil
}

// commandContext returns the cobra command's context, defaulting to
// Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
