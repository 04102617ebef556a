package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agenthands/papergraph/internal/core/community"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/qa"
	"github.com/agenthands/papergraph/internal/store"
)

var ErrPaperNotFound = errors.New("paper not found")

// PaperSummary is a paper node joined with its metadata record.
type PaperSummary struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	Metadata *model.PaperMetadata `json:"metadata,omitempty"`
}

// RelatedPaper is a paper reached from another through a typed edge.
type RelatedPaper struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Relation   string  `json:"relation"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// RelatedEntity is an entity a paper has an outgoing edge to.
type RelatedEntity struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Relation    string `json:"relation"`
}

func (g *PaperGraph) ListPapers(ctx context.Context) ([]PaperSummary, error) {
	nodes, err := g.Store.ListNodesByType(ctx, model.NodePaper)
	if err != nil {
		return nil, err
	}
	out := make([]PaperSummary, 0, len(nodes))
	for _, n := range nodes {
		ps := PaperSummary{ID: n.ID, Title: n.Label}
		meta, err := g.Store.GetPaperMetadata(ctx, n.ID)
		switch {
		case err == nil:
			ps.Metadata = meta
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

func (g *PaperGraph) paper(ctx context.Context, id string) (*model.Node, error) {
	n, err := g.Store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil || n.Type != model.NodePaper {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, id)
	}
	return n, nil
}

// Improvements lists the papers that improve on paperID.
func (g *PaperGraph) Improvements(ctx context.Context, paperID string) ([]RelatedPaper, error) {
	if _, err := g.paper(ctx, paperID); err != nil {
		return nil, err
	}
	rel := model.ImprovesOn
	edges, err := g.Store.GetEdgesTo(ctx, paperID, &rel)
	if err != nil {
		return nil, err
	}
	return g.relatedPapers(ctx, edges, func(e model.Edge) string { return e.FromNode })
}

// Similar lists papers joined to paperID by SIMILAR_TO in either direction.
func (g *PaperGraph) Similar(ctx context.Context, paperID string) ([]RelatedPaper, error) {
	if _, err := g.paper(ctx, paperID); err != nil {
		return nil, err
	}
	rel := model.SimilarTo
	out, err := g.Store.GetEdgesFrom(ctx, paperID, &rel)
	if err != nil {
		return nil, err
	}
	in, err := g.Store.GetEdgesTo(ctx, paperID, &rel)
	if err != nil {
		return nil, err
	}
	return g.relatedPapers(ctx, append(out, in...), func(e model.Edge) string {
		if e.FromNode == paperID {
			return e.ToNode
		}
		return e.FromNode
	})
}

func (g *PaperGraph) relatedPapers(ctx context.Context, edges []model.Edge, other func(model.Edge) string) ([]RelatedPaper, error) {
	seen := make(map[string]int)
	var out []RelatedPaper
	for _, e := range edges {
		id := other(e)
		if i, ok := seen[id]; ok {
			if e.Confidence > out[i].Confidence {
				out[i].Confidence = e.Confidence
				out[i].Rationale = e.Properties.String("rationale")
			}
			continue
		}
		n, err := g.Store.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == nil || n.Type != model.NodePaper {
			continue
		}
		seen[id] = len(out)
		out = append(out, RelatedPaper{
			ID:         id,
			Title:      n.Label,
			Relation:   e.Type.String(),
			Confidence: e.Confidence,
			Rationale:  e.Properties.String("rationale"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func (g *PaperGraph) Concepts(ctx context.Context, paperID string) ([]RelatedEntity, error) {
	return g.entities(ctx, paperID, model.NodeConcept)
}

func (g *PaperGraph) Datasets(ctx context.Context, paperID string) ([]RelatedEntity, error) {
	return g.entities(ctx, paperID, model.NodeDataset)
}

func (g *PaperGraph) Metrics(ctx context.Context, paperID string) ([]RelatedEntity, error) {
	return g.entities(ctx, paperID, model.NodeMetric)
}

// entities returns every node of nodeType reached by an outgoing edge of
// the paper, whatever the edge type, once per node.
func (g *PaperGraph) entities(ctx context.Context, paperID string, nodeType model.NodeType) ([]RelatedEntity, error) {
	if _, err := g.paper(ctx, paperID); err != nil {
		return nil, err
	}
	edges, err := g.Store.GetEdgesFrom(ctx, paperID, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []RelatedEntity
	for _, e := range edges {
		if seen[e.ToNode] {
			continue
		}
		n, err := g.Store.GetNode(ctx, e.ToNode)
		if err != nil {
			return nil, err
		}
		if n == nil || n.Type != nodeType {
			continue
		}
		seen[e.ToNode] = true
		out = append(out, RelatedEntity{
			ID:          n.ID,
			Label:       n.Label,
			Description: n.Properties.String("description"),
			Relation:    e.Type.String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (g *PaperGraph) Search(ctx context.Context, query string, k int) ([]qa.PaperHit, error) {
	return g.QA.Search(ctx, query, k)
}

func (g *PaperGraph) Ask(ctx context.Context, question string) (qa.Answer, error) {
	return g.QA.Ask(ctx, question)
}

// Cluster is one community of papers detected over paper-to-paper edges.
type Cluster struct {
	ID     int            `json:"id"`
	Papers []PaperSummary `json:"papers"`
}

// Clusters groups papers by label propagation over the paper-to-paper edges
// produced by linking. Isolated papers are not reported.
func (g *PaperGraph) Clusters(ctx context.Context) ([]Cluster, error) {
	papers, err := g.Store.ListNodesByType(ctx, model.NodePaper)
	if err != nil {
		return nil, err
	}
	isPaper := make(map[string]bool, len(papers))
	for _, p := range papers {
		isPaper[p.ID] = true
	}

	all, err := g.Store.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	var edges []model.Edge
	for _, e := range all {
		if isPaper[e.FromNode] && isPaper[e.ToNode] {
			edges = append(edges, e)
		}
	}

	groups, err := community.NewLabelPropagationDetector().Detect(papers, edges)
	if err != nil {
		return nil, err
	}

	out := make([]Cluster, 0, len(groups))
	for i, group := range groups {
		c := Cluster{ID: i}
		for _, n := range group {
			c.Papers = append(c.Papers, PaperSummary{ID: n.ID, Title: n.Label})
		}
		out = append(out, c)
	}
	return out, nil
}
