// Package bootstrap assembles a PaperGraph from configuration for the CLI
// and the HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/papergraph/internal/config"
	"github.com/agenthands/papergraph/internal/core"
	"github.com/agenthands/papergraph/internal/driver"
	"github.com/agenthands/papergraph/internal/llm"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
	"github.com/agenthands/papergraph/internal/store/memory"
	"github.com/agenthands/papergraph/internal/store/neo4jstore"
	"github.com/agenthands/papergraph/internal/store/postgres"
	"github.com/agenthands/papergraph/internal/store/sqlite"
)

// LoadConfig reads path (missing files fall back to defaults), applies
// environment overrides, validates the result and initializes logging.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Debug: cfg.Log.Debug})
	return cfg, nil
}

// OpenStore connects the configured backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.GraphStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(cfg.SQLitePath)
	case "postgres":
		return postgres.New(ctx, cfg.DatabaseURL)
	case "neo4j":
		d, err := driver.NewBoltDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		s, err := neo4jstore.New(ctx, d)
		if err != nil {
			d.Close(ctx)
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported store backend %q", config.ErrInvalid, cfg.Backend)
	}
}

// NewGraph opens the store and the LLM clients. The caller closes the graph.
func NewGraph(ctx context.Context, cfg *config.Config) (*core.PaperGraph, error) {
	s, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if embedder == nil {
		logger.Warn("[Bootstrap] provider has no embedding model; semantic search and similarity linking are disabled", "provider", cfg.LLM.Provider)
	}

	logger.Info("[Bootstrap] paper graph ready", "store", cfg.Store.Backend, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	return core.NewPaperGraph(s, llmClient, embedder, cfg), nil
}
