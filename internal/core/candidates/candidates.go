package candidates

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
)

// Pair is an unordered candidate pair. A is the paper it was discovered
// from, which is also the "paper 1" position handed to the oracle.
type Pair struct {
	A          string      `json:"paper_a"`
	B          string      `json:"paper_b"`
	Shared     SharedNodes `json:"shared"`
	Similarity float64     `json:"similarity,omitempty"`
}

// Pass remembers which unordered pairs were already emitted in one linking
// run. Safe for concurrent use.
type Pass struct {
	mu   sync.Mutex
	seen map[[2]string]struct{}
}

func NewPass() *Pass {
	return &Pass{seen: make(map[[2]string]struct{})}
}

// Claim reports whether {a, b} is new to the pass and marks it seen.
func (p *Pass) Claim(a, b string) bool {
	key := [2]string{a, b}
	if b < a {
		key = [2]string{b, a}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = struct{}{}
	return true
}

func (p *Pass) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

// Generator yields candidate pairs from an index snapshot. Implementations
// never emit a pair already claimed in pass.
type Generator interface {
	Candidates(ctx context.Context, ix *NeighborIndex, pass *Pass) ([]Pair, error)
}

// SharedNeighbor pairs papers that reference at least one common dataset,
// method or concept node.
type SharedNeighbor struct{}

func (SharedNeighbor) Candidates(ctx context.Context, ix *NeighborIndex, pass *Pass) ([]Pair, error) {
	var pairs []Pair
	for _, p := range ix.Papers() {
		if err := ctx.Err(); err != nil {
			return pairs, err
		}

		candidates := make(map[string]struct{})
		for _, node := range ix.Connected(p) {
			for _, q := range ix.PapersFor(node) {
				if q != p {
					candidates[q] = struct{}{}
				}
			}
		}

		for _, q := range sortedKeys(candidates) {
			shared := ix.Shared(p, q)
			if shared.Empty() {
				continue
			}
			if !pass.Claim(p, q) {
				continue
			}
			pairs = append(pairs, Pair{A: p, B: q, Shared: shared})
		}
	}

	logger.Debug("[Candidates][SharedNeighbor] pairs selected", "papers", len(ix.Papers()), "pairs", len(pairs))
	return pairs, nil
}

// Similarity pairs each paper with its K nearest papers by embedding,
// keeping only neighbors that share a dataset.
type Similarity struct {
	Store         store.GraphStore
	K             int
	MinSimilarity float64
}

func (g Similarity) Candidates(ctx context.Context, ix *NeighborIndex, pass *Pass) ([]Pair, error) {
	if g.K <= 0 {
		return nil, fmt.Errorf("similarity strategy needs a positive K, got %d", g.K)
	}

	var pairs []Pair
	for _, p := range ix.Papers() {
		if err := ctx.Err(); err != nil {
			return pairs, err
		}
		if len(ix.Neighbors(p, model.NodeDataset)) == 0 {
			continue
		}

		emb, err := g.Store.GetEmbedding(ctx, p)
		if errors.Is(err, store.ErrNotFound) {
			logger.Debug("[Candidates][Similarity] paper has no embedding", "paper", p)
			continue
		}
		if err != nil {
			return pairs, fmt.Errorf("failed to load embedding of %s: %w", p, err)
		}

		// One extra slot because the paper is its own nearest neighbor.
		hits, err := g.Store.TopKSimilar(ctx, emb, model.NodePaper, g.K+1)
		if err != nil {
			return pairs, fmt.Errorf("failed to search neighbors of %s: %w", p, err)
		}

		kept := 0
		for _, hit := range hits {
			if hit.NodeID == p {
				continue
			}
			if kept == g.K {
				break
			}
			kept++

			if hit.Score < g.MinSimilarity {
				continue
			}
			shared := ix.Shared(p, hit.NodeID)
			if len(shared.Datasets) == 0 {
				continue
			}
			if !pass.Claim(p, hit.NodeID) {
				continue
			}
			pairs = append(pairs, Pair{A: p, B: hit.NodeID, Shared: shared, Similarity: hit.Score})
		}
	}

	logger.Debug("[Candidates][Similarity] pairs selected", "papers", len(ix.Papers()), "pairs", len(pairs))
	return pairs, nil
}
