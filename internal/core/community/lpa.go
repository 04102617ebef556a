// Package community groups graph nodes into clusters of densely linked
// papers and entities.
package community

import (
	"sort"

	"github.com/agenthands/papergraph/internal/core/model"
)

type Detector interface {
	Detect(nodes []model.Node, edges []model.Edge) ([][]model.Node, error)
}

// LabelPropagationDetector implements community detection using the Label
// Propagation Algorithm. Edge direction is ignored and parallel edges add weight.
type LabelPropagationDetector struct {
	MaxIterations int
	// MinSize drops smaller clusters from the result.
	MinSize int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
		MinSize:       2,
	}
}

// Detect returns clusters ordered by size, largest first, ties broken by the
// smallest member id. Members keep the order of nodes.
func (d *LabelPropagationDetector) Detect(nodes []model.Node, edges []model.Edge) ([][]model.Node, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	adj := make(map[string]map[string]int, len(nodes))
	for _, n := range nodes {
		adj[n.ID] = make(map[string]int)
	}

	for _, e := range edges {
		if e.FromNode == e.ToNode {
			continue
		}
		if _, ok := adj[e.FromNode]; !ok {
			continue
		}
		if _, ok := adj[e.ToNode]; !ok {
			continue
		}
		adj[e.FromNode][e.ToNode]++
		adj[e.ToNode][e.FromNode]++
	}

	// Each node starts with its own label.
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n.ID] = n.ID
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0

		for _, n := range nodes {
			neighbors := adj[n.ID]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			maxCount := 0
			for v, weight := range neighbors {
				l := labels[v]
				counts[l] += weight
				if counts[l] > maxCount {
					maxCount = counts[l]
				}
			}

			// Keep the current label on a tie, otherwise the largest one.
			if counts[labels[n.ID]] == maxCount {
				continue
			}
			var best string
			for l, c := range counts {
				if c == maxCount && l > best {
					best = l
				}
			}

			labels[n.ID] = best
			changed++
		}

		if changed == 0 {
			break
		}
	}

	clusters := make(map[string][]model.Node)
	for _, n := range nodes {
		l := labels[n.ID]
		clusters[l] = append(clusters[l], n)
	}

	minSize := d.MinSize
	if minSize < 1 {
		minSize = 1
	}

	var communities [][]model.Node
	for _, cluster := range clusters {
		if len(cluster) >= minSize {
			communities = append(communities, cluster)
		}
	}

	sort.Slice(communities, func(i, j int) bool {
		if len(communities[i]) != len(communities[j]) {
			return len(communities[i]) > len(communities[j])
		}
		return minID(communities[i]) < minID(communities[j])
	})

	return communities, nil
}

// Assign maps every node id to the index of its cluster in communities.
func Assign(communities [][]model.Node) map[string]int {
	out := make(map[string]int)
	for i, c := range communities {
		for _, n := range c {
			out[n.ID] = i
		}
	}
	return out
}

func minID(nodes []model.Node) string {
	m := nodes[0].ID
	for _, n := range nodes[1:] {
		if n.ID < m {
			m = n.ID
		}
	}
	return m
}
