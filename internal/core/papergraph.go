// Package core wires extraction, entity resolution, edge materialization and
// cross-paper linking into the paper knowledge graph.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/agenthands/papergraph/internal/config"
	"github.com/agenthands/papergraph/internal/core/candidates"
	"github.com/agenthands/papergraph/internal/core/dedupe"
	"github.com/agenthands/papergraph/internal/core/extraction"
	"github.com/agenthands/papergraph/internal/core/linking"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/qa"
	"github.com/agenthands/papergraph/internal/llm"
	"github.com/agenthands/papergraph/internal/store"
)

var (
	ErrEmptyDocument   = errors.New("document has no text")
	ErrUnknownStrategy = errors.New("unknown linking strategy")
)

const (
	StrategyShared     = "shared"
	StrategySimilarity = "similarity"
)

// FactExtractor is the fact-extraction oracle. Failures are never fatal to
// ingestion; they degrade to an empty batch or missing metadata.
type FactExtractor interface {
	Extract(ctx context.Context, text string, title string) (model.ExtractionBatch, error)
	ExtractMetadata(ctx context.Context, text string) (model.PaperMetadata, error)
}

type PaperGraph struct {
	Store     store.GraphStore
	LLM       llm.LLMClient
	Embedder  llm.EmbedderClient
	Extractor FactExtractor
	Resolver  *dedupe.Resolver
	Linker    *linking.Linker
	QA        *qa.Service

	Linking     config.LinkingConfig
	BulkWorkers int
}

// NewPaperGraph builds the pipeline from configuration. embedder may be nil,
// in which case papers get no embedding and similarity features are unavailable.
func NewPaperGraph(s store.GraphStore, llmClient llm.LLMClient, embedder llm.EmbedderClient, cfg *config.Config) *PaperGraph {
	linker := linking.NewLinker(s, linking.NewLLMOracle(llmClient, cfg.Linking.Prompt))
	linker.Workers = cfg.Linking.Workers
	linker.OracleTimeout = cfg.OracleTimeout()
	linker.MaxContextChars = cfg.Linking.MaxContextChars

	answers := qa.NewService(s, llmClient, embedder, cfg.QA.Prompt, cfg.QA.TopK)
	if cfg.QA.Rerank {
		answers.Reranker = llm.NewSimpleLLMReranker(llmClient)
	}

	return &PaperGraph{
		Store:       s,
		LLM:         llmClient,
		Embedder:    embedder,
		Extractor:   extraction.NewExtractor(llmClient, cfg.Extraction),
		Resolver:    dedupe.NewResolver(s),
		Linker:      linker,
		QA:          answers,
		Linking:     cfg.Linking,
		BulkWorkers: cfg.Concurrency.BulkIngest,
	}
}

// Generator returns the candidate strategy registered under name. An empty
// name selects the configured linking strategy.
func (g *PaperGraph) Generator(name string) (candidates.Generator, error) {
	if name == "" {
		name = g.Linking.Strategy
	}
	switch name {
	case "", StrategyShared:
		return candidates.SharedNeighbor{}, nil
	case StrategySimilarity:
		return candidates.Similarity{
			Store:         g.Store,
			K:             g.Linking.TopK,
			MinSimilarity: g.Linking.MinSimilarity,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// LinkPapers runs one cross-paper linking pass with the named strategy.
func (g *PaperGraph) LinkPapers(ctx context.Context, strategy string) (linking.Summary, error) {
	gen, err := g.Generator(strategy)
	if err != nil {
		return linking.Summary{}, err
	}
	return g.Linker.Run(ctx, gen)
}

func (g *PaperGraph) Close() error {
	return g.Store.Close()
}
