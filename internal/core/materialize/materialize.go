// Package materialize turns resolved relationships into stored edges.
package materialize

import (
	"context"
	"sync"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/normalize"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
)

const (
	// DefaultConfidence applies to oracle-derived relationships that omit one.
	DefaultConfidence = 0.5
	// StructuralConfidence applies to deterministic edges such as paper INTRODUCES entity.
	StructuralConfidence = 1.0
)

// Result counts what a materialization call did. Dropped relationships never
// reached the store; Failed ones were rejected by it; Duplicates repeated a
// (from, to, type) triple already written by the same pass.
type Result struct {
	Created    int
	Duplicates int
	Dropped    int
	Failed     int
	EdgeIDs    []string
}

func (r *Result) Add(o Result) {
	r.Created += o.Created
	r.Duplicates += o.Duplicates
	r.Dropped += o.Dropped
	r.Failed += o.Failed
	r.EdgeIDs = append(r.EdgeIDs, o.EdgeIDs...)
}

type triple struct {
	from, to string
	rel      string
}

// Pass scopes edge idempotence to one ingestion or linking run: a triple is
// written at most once per Pass. Safe for concurrent use.
type Pass struct {
	store store.GraphStore

	mu    sync.Mutex
	seen  map[triple]string
	total Result
}

func NewPass(s store.GraphStore) *Pass {
	return &Pass{store: s, seen: make(map[triple]string)}
}

// Total returns the accumulated counts of every call made through the pass.
func (p *Pass) Total() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.total
	t.EdgeIDs = append([]string(nil), p.total.EdgeIDs...)
	return t
}

// Materialize writes a single edge. confidence nil means fallback.
func (p *Pass) Materialize(ctx context.Context, from, to string, rel model.RelationType, confidence *float64, fallback float64, props model.Properties) Result {
	res := p.write(ctx, from, to, rel, confidence, fallback, props)
	p.record(res)
	return res
}

func (p *Pass) write(ctx context.Context, from, to string, rel model.RelationType, confidence *float64, fallback float64, props model.Properties) Result {
	var res Result
	if from == "" || to == "" || rel.IsZero() {
		res.Dropped++
		return res
	}

	key := triple{from: from, to: to, rel: rel.String()}

	// The lock spans the write so a concurrent caller cannot store the same
	// triple before this one is recorded.
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[key]; ok {
		res.Duplicates++
		return res
	}

	c := fallback
	if confidence != nil {
		c = *confidence
	}

	id, err := p.store.CreateEdge(ctx, model.Edge{
		FromNode:   from,
		ToNode:     to,
		Type:       rel,
		Confidence: model.ClampConfidence(c),
		Properties: props,
	})
	if err != nil {
		logger.Warn("[Materializer] failed to create edge", "from", from, "to", to, "type", rel.String(), "error", err)
		res.Failed++
		return res
	}

	p.seen[key] = id
	res.Created++
	res.EdgeIDs = append(res.EdgeIDs, id)
	return res
}

func (p *Pass) record(res Result) {
	p.mu.Lock()
	p.total.Add(res)
	p.mu.Unlock()
}

// Structural links a paper to an entity it mentions at full confidence.
func (p *Pass) Structural(ctx context.Context, paperID string, entity model.NodeType, entityID string) Result {
	return p.Materialize(ctx, paperID, entityID, model.StructuralRelation(entity), nil, StructuralConfidence, nil)
}

// Inferred materializes the relationship oracle's output for the ordered pair
// (paperA, paperB). Types that invert direction run from paperB to paperA.
func (p *Pass) Inferred(ctx context.Context, paperA, paperB string, rels []model.InferredRelationship) Result {
	var res Result
	for _, r := range rels {
		if r.Type.IsZero() {
			logger.Debug("[Materializer] dropping inferred relationship without type", "paper_a", paperA, "paper_b", paperB)
			res.Dropped++
			continue
		}

		from, to := paperA, paperB
		if r.Type.InvertsDirection() {
			from, to = paperB, paperA
		}

		props := model.Properties{
			"rationale":         model.String(r.Rationale),
			"evidence_concepts": model.Strings(r.EvidenceConcepts),
		}
		res.Add(p.write(ctx, from, to, r.Type, r.Confidence, DefaultConfidence, props))
	}
	p.record(res)
	return res
}

// FromExtraction resolves intra-document relationships against labels, a map
// from normalize.Key(label) to node id built during the current ingestion.
// Relationships with an unknown endpoint are dropped and logged.
func (p *Pass) FromExtraction(ctx context.Context, labels map[string]string, rels []model.ExtractedRelationship) Result {
	var res Result
	for _, r := range rels {
		if !r.Valid() {
			res.Dropped++
			continue
		}

		from, okFrom := labels[normalize.Key(r.FromLabel)]
		to, okTo := labels[normalize.Key(r.ToLabel)]
		if !okFrom || !okTo {
			logger.Warn("[Materializer] dropping relationship with unresolved endpoint",
				"from", r.FromLabel, "to", r.ToLabel, "type", r.Type.String())
			res.Dropped++
			continue
		}

		props := model.Properties{}
		if r.Rationale != "" {
			props["rationale"] = model.String(r.Rationale)
		}
		if r.Evidence != "" {
			props["evidence_span"] = model.String(r.Evidence)
		}
		res.Add(p.write(ctx, from, to, r.Type, r.Confidence, DefaultConfidence, props))
	}
	p.record(res)
	return res
}
