// Package linking infers relationships between papers that the candidate
// generator selected and stores them as edges.
package linking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/papergraph/internal/core/candidates"
	"github.com/agenthands/papergraph/internal/core/materialize"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
)

const defaultMaxKnownLabels = 20

type Linker struct {
	Store  store.GraphStore
	Oracle RelationshipOracle

	Workers         int
	OracleTimeout   time.Duration
	MaxContextChars int
	// MaxKnownLabels caps the concept and method lists sent per pair.
	MaxKnownLabels int
}

func NewLinker(s store.GraphStore, oracle RelationshipOracle) *Linker {
	return &Linker{
		Store:          s,
		Oracle:         oracle,
		Workers:        1,
		OracleTimeout:  2 * time.Minute,
		MaxKnownLabels: defaultMaxKnownLabels,
	}
}

// Summary reports one linking pass.
type Summary struct {
	Papers         int                `json:"papers"`
	Pairs          int                `json:"pairs"`
	OracleFailures int                `json:"oracle_failures"`
	Edges          materialize.Result `json:"edges"`
	Duration       time.Duration      `json:"duration"`
}

// Run builds a neighbor snapshot, selects candidate pairs with gen and asks
// the oracle about each pair. Oracle failures and timeouts count as "no
// relationship"; only index, candidate or context errors abort the pass.
func (l *Linker) Run(ctx context.Context, gen candidates.Generator) (Summary, error) {
	start := time.Now()
	var sum Summary

	ix, err := candidates.BuildNeighborIndex(ctx, l.Store)
	if err != nil {
		return sum, err
	}
	sum.Papers = len(ix.Papers())

	pairs, err := gen.Candidates(ctx, ix, candidates.NewPass())
	if err != nil {
		return sum, fmt.Errorf("failed to generate candidate pairs: %w", err)
	}
	sum.Pairs = len(pairs)
	logger.Info("[Linker] candidate pairs selected", "papers", sum.Papers, "pairs", sum.Pairs)

	edges := materialize.NewPass(l.Store)
	labels := &labelCache{store: l.Store, labels: make(map[string]string)}
	var failures atomic.Int64

	workers := l.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, pair := range pairs {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			rels, err := l.inferPair(gCtx, ix, labels, pair)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				logger.Warn("[Linker] pair inference failed, treating pair as unrelated", "paper_a", pair.A, "paper_b", pair.B, "error", err)
				failures.Add(1)
				return nil
			}

			res := edges.Inferred(gCtx, pair.A, pair.B, rels)
			logger.Debug("[Linker] pair linked", "paper_a", pair.A, "paper_b", pair.B, "relationships", len(rels), "created", res.Created)
			return nil
		})
	}

	err = g.Wait()
	sum.OracleFailures = int(failures.Load())
	sum.Edges = edges.Total()
	sum.Duration = time.Since(start)

	logger.Info("[Linker] pass finished",
		"pairs", sum.Pairs,
		"edges_created", sum.Edges.Created,
		"oracle_failures", sum.OracleFailures,
		"edge_failures", sum.Edges.Failed,
		"duration", sum.Duration)

	return sum, err
}

func (l *Linker) inferPair(ctx context.Context, ix *candidates.NeighborIndex, labels *labelCache, pair candidates.Pair) ([]model.InferredRelationship, error) {
	contextA, err := l.paperContext(ctx, pair.A)
	if err != nil {
		return nil, err
	}
	contextB, err := l.paperContext(ctx, pair.B)
	if err != nil {
		return nil, err
	}

	concepts := labels.lookup(ctx, l.knownIDs(ix, pair, model.NodeConcept))
	methods := labels.lookup(ctx, l.knownIDs(ix, pair, model.NodeMethod))

	timeout := l.OracleTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return l.Oracle.Infer(callCtx, contextA, contextB, concepts, methods)
}

// knownIDs lists the shared nodes of the given type first, then the rest of
// both papers' neighbors, capped at MaxKnownLabels.
func (l *Linker) knownIDs(ix *candidates.NeighborIndex, pair candidates.Pair, t model.NodeType) []string {
	limit := l.MaxKnownLabels
	if limit <= 0 {
		limit = defaultMaxKnownLabels
	}

	var shared []string
	switch t {
	case model.NodeConcept:
		shared = pair.Shared.Concepts
	case model.NodeMethod:
		shared = pair.Shared.Methods
	}

	seen := make(map[string]struct{})
	var ids []string
	add := func(list []string) {
		for _, id := range list {
			if len(ids) == limit {
				return
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	add(shared)
	add(ix.Neighbors(pair.A, t))
	add(ix.Neighbors(pair.B, t))
	return ids
}

func (l *Linker) paperContext(ctx context.Context, paperID string) (string, error) {
	node, err := l.Store.GetNode(ctx, paperID)
	if err != nil {
		return "", fmt.Errorf("failed to load paper %s: %w", paperID, err)
	}
	if node == nil {
		return "", fmt.Errorf("paper %s: %w", paperID, store.ErrNotFound)
	}

	meta, err := l.Store.GetPaperMetadata(ctx, paperID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("failed to load metadata of %s: %w", paperID, err)
	}

	return BuildPaperContext(node, meta, l.MaxContextChars), nil
}

// labelCache resolves node ids to labels once per pass.
type labelCache struct {
	store store.GraphStore

	mu     sync.Mutex
	labels map[string]string
}

func (c *labelCache) lookup(ctx context.Context, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		c.mu.Lock()
		label, ok := c.labels[id]
		c.mu.Unlock()

		if !ok {
			node, err := c.store.GetNode(ctx, id)
			if err != nil || node == nil {
				continue
			}
			label = node.Label
			c.mu.Lock()
			c.labels[id] = label
			c.mu.Unlock()
		}
		out = append(out, label)
	}
	return out
}
