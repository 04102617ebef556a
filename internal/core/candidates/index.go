// Package candidates selects the paper pairs worth a relationship-oracle call.
package candidates

import (
	"context"
	"fmt"
	"sort"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/store"
)

// SharedNodes lists the linking nodes two papers have in common, per type.
type SharedNodes struct {
	Datasets []string `json:"datasets,omitempty"`
	Methods  []string `json:"methods,omitempty"`
	Concepts []string `json:"concepts,omitempty"`
}

func (s SharedNodes) Empty() bool {
	return len(s.Datasets) == 0 && len(s.Methods) == 0 && len(s.Concepts) == 0
}

func (s SharedNodes) Count() int {
	return len(s.Datasets) + len(s.Methods) + len(s.Concepts)
}

// NeighborIndex is a read-only snapshot of which dataset, method and concept
// nodes each paper points at, and the inverse mapping.
type NeighborIndex struct {
	papers    []string
	neighbors map[string]map[model.NodeType][]string
	inverted  map[string][]string
}

// BuildNeighborIndex snapshots every paper in the store.
func BuildNeighborIndex(ctx context.Context, s store.GraphStore) (*NeighborIndex, error) {
	papers, err := s.ListNodesByType(ctx, model.NodePaper)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}

	ix := &NeighborIndex{
		papers:    make([]string, 0, len(papers)),
		neighbors: make(map[string]map[model.NodeType][]string, len(papers)),
		inverted:  make(map[string][]string),
	}

	for _, p := range papers {
		byType := make(map[model.NodeType][]string, len(model.LinkingTypes))
		for _, t := range model.LinkingTypes {
			ids, err := s.NodesConnectedViaType(ctx, p.ID, t)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s neighbors of %s: %w", t, p.ID, err)
			}
			byType[t] = sortedUnique(ids)
			for _, id := range byType[t] {
				ix.inverted[id] = append(ix.inverted[id], p.ID)
			}
		}
		ix.papers = append(ix.papers, p.ID)
		ix.neighbors[p.ID] = byType
	}

	for id, ps := range ix.inverted {
		ix.inverted[id] = sortedUnique(ps)
	}

	return ix, nil
}

// Papers returns paper ids in store listing order.
func (ix *NeighborIndex) Papers() []string {
	return ix.papers
}

func (ix *NeighborIndex) Neighbors(paperID string, t model.NodeType) []string {
	return ix.neighbors[paperID][t]
}

// PapersFor returns the sorted papers connected to a linking node.
func (ix *NeighborIndex) PapersFor(nodeID string) []string {
	return ix.inverted[nodeID]
}

// Connected returns every linking node of a paper, across types.
func (ix *NeighborIndex) Connected(paperID string) []string {
	var all []string
	for _, t := range model.LinkingTypes {
		all = append(all, ix.neighbors[paperID][t]...)
	}
	return sortedUnique(all)
}

// Shared intersects the neighbor sets of two papers.
func (ix *NeighborIndex) Shared(a, b string) SharedNodes {
	return SharedNodes{
		Datasets: intersect(ix.Neighbors(a, model.NodeDataset), ix.Neighbors(b, model.NodeDataset)),
		Methods:  intersect(ix.Neighbors(a, model.NodeMethod), ix.Neighbors(b, model.NodeMethod)),
		Concepts: intersect(ix.Neighbors(a, model.NodeConcept), ix.Neighbors(b, model.NodeConcept)),
	}
}

func sortedUnique(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := append([]string(nil), ids...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// intersect merges two sorted slices.
func intersect(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return sortedUnique(keys)
}
