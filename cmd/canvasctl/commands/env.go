package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/config"
	"github.com/flowcanvas/flowcanvas/pkg/nodes"
	"github.com/flowcanvas/flowcanvas/pkg/session"
	"github.com/flowcanvas/flowcanvas/pkg/stores"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

// environment holds the process-wide components shared by commands.
type environment struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	registry *nodes.Registry
	store    stores.Store // nil when the store is disabled or not requested
}

// setup loads configuration and builds telemetry, the node registry and,
// when withStore is set, the draft store with its audit subscriber.
func setup(ctx context.Context, withStore bool) (*environment, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	registry, err := nodes.NewRegistry()
	if err != nil {
		return nil, err
	}
	if cfg.Canvas.CatalogPath != "" {
		if err := registry.LoadCatalogFile(cfg.Canvas.CatalogPath); err != nil {
			return nil, err
		}
	}

	env := &environment{cfg: cfg, tel: tel, registry: registry}

	if withStore && cfg.Store.Enabled {
		store, err := openStore(ctx, cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		env.store = store
		tel.Events.Subscribe(stores.NewAuditRecorder(store, cfg.Store.Actor, tel.Logger.Zerolog()), nil)
	}

	go func() {
		if err := tel.Metrics.Serve(ctx); err != nil {
			log.Warn().Err(err).Msg("Metrics endpoint stopped")
		}
	}()

	return env, nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
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
	return store, nil
}

// requireStore returns the store or an error explaining how to enable it.
func (e *environment) requireStore() (stores.Store, error) {
	if e.store == nil {
		return nil, fmt.Errorf("draft store is disabled (set store.enabled or CANVAS_STORE_ENABLED)")
	}
	return e.store, nil
}

func (e *environment) newSession() *session.Session {
	return session.New(e.registry,
		session.WithTelemetry(e.tel),
		session.WithCanvasOptions(canvas.WithHistoryDepth(e.cfg.Canvas.HistoryDepth)),
	)
}

// close flushes telemetry and closes the store.
func (e *environment) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// workflowIDFromPath names a workflow after its file.
func workflowIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
