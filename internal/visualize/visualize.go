// Package visualize renders the graph as a standalone interactive HTML page
// backed by vis-network.
package visualize

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agenthands/papergraph/internal/core/common"
	"github.com/agenthands/papergraph/internal/core/community"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
)

var nodeColors = map[model.NodeType]string{
	model.NodePaper:   "#FF6B6B",
	model.NodeConcept: "#4ECDC4",
	model.NodeMethod:  "#45B7D1",
	model.NodeDataset: "#FFA07A",
	model.NodeMetric:  "#98D8C8",
	model.NodeAuthor:  "#F7DC6F",
	model.NodeTask:    "#BB8FCE",
}

var edgeColors = map[string]string{
	"IMPROVES_ON":    "#E74C3C",
	"INTRODUCES":     "#3498DB",
	"USES_DATASET":   "#F39C12",
	"EVALUATES_ON":   "#9B59B6",
	"EVALUATES_WITH": "#1ABC9C",
	"SIMILAR_TO":     "#95A5A6",
}

const (
	defaultNodeColor = "#95A5A6"
	defaultEdgeColor = "#7F8C8D"
	maxLabelChars    = 30
)

type Options struct {
	// NodeType keeps only nodes of this type when set.
	NodeType model.NodeType
	// Limit caps the number of nodes; zero means no cap.
	Limit int
	// Root switches to a breadth-first subgraph around this node id.
	Root     string
	MaxDepth int
	Physics  bool
	// EdgeLabels draws the relation type on every edge.
	EdgeLabels bool
}

func DefaultOptions() Options {
	return Options{MaxDepth: 2, Physics: true, EdgeLabels: true}
}

// Graph is the subset of the store that will be drawn.
type Graph struct {
	Nodes []model.Node
	Edges []model.Edge
}

// Collect loads the nodes and edges selected by opts. Only edges with both
// endpoints in the node set are kept.
func Collect(ctx context.Context, s store.GraphStore, opts Options) (Graph, error) {
	if opts.Root != "" {
		return subgraph(ctx, s, opts.Root, opts.MaxDepth)
	}

	var nodes []model.Node
	types := model.NodeTypes
	if opts.NodeType != "" {
		types = []model.NodeType{opts.NodeType}
	}
	for _, t := range types {
		list, err := s.ListNodesByType(ctx, t)
		if err != nil {
			return Graph{}, err
		}
		nodes = append(nodes, list...)
	}
	if opts.Limit > 0 && len(nodes) > opts.Limit {
		nodes = nodes[:opts.Limit]
	}

	edges, err := s.ListEdges(ctx)
	if err != nil {
		return Graph{}, err
	}
	return induced(nodes, edges), nil
}

func subgraph(ctx context.Context, s store.GraphStore, root string, maxDepth int) (Graph, error) {
	type visit struct {
		id    string
		depth int
	}

	var g Graph
	seen := make(map[string]bool)
	queue := []visit{{root, 0}}
	var edges []model.Edge

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.id] || cur.depth > maxDepth {
			continue
		}
		seen[cur.id] = true

		n, err := s.GetNode(ctx, cur.id)
		if err != nil {
			return Graph{}, err
		}
		if n == nil {
			if cur.id == root {
				return Graph{}, fmt.Errorf("node %s: %w", root, store.ErrNotFound)
			}
			continue
		}
		g.Nodes = append(g.Nodes, *n)

		out, err := s.GetEdgesFrom(ctx, cur.id, nil)
		if err != nil {
			return Graph{}, err
		}
		in, err := s.GetEdgesTo(ctx, cur.id, nil)
		if err != nil {
			return Graph{}, err
		}
		edges = append(edges, out...)
		edges = append(edges, in...)
		if cur.depth == maxDepth {
			continue
		}
		for _, e := range out {
			queue = append(queue, visit{e.ToNode, cur.depth + 1})
		}
		for _, e := range in {
			queue = append(queue, visit{e.FromNode, cur.depth + 1})
		}
	}

	return induced(g.Nodes, edges), nil
}

func induced(nodes []model.Node, edges []model.Edge) Graph {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	seen := make(map[string]bool)
	g := Graph{Nodes: nodes}
	for _, e := range edges {
		if !ids[e.FromNode] || !ids[e.ToNode] || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		g.Edges = append(g.Edges, e)
	}
	return g
}

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Color string `json:"color"`
	Size  int    `json:"size"`
	Shape string `json:"shape"`
	Group string `json:"group,omitempty"`
}

type visEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Label  string `json:"label,omitempty"`
	Title  string `json:"title"`
	Color  string `json:"color"`
	Width  int    `json:"width"`
	Arrows string `json:"arrows"`
}

var page = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Paper graph</title>
<script src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
<style>
body { margin: 0; background: #222222; color: white; font-family: sans-serif; }
#graph { width: 100vw; height: 100vh; }
</style>
</head>
<body>
<div id="graph"></div>
<script>
const nodes = new vis.DataSet({{.Nodes}});
const edges = new vis.DataSet({{.Edges}});
const options = {
  physics: { enabled: {{.Physics}} },
  nodes: { font: { color: "white" } },
  edges: { font: { color: "white", strokeWidth: 0, size: 10 } }
};
new vis.Network(document.getElementById("graph"), { nodes: nodes, edges: edges }, options);
</script>
</body>
</html>
`))

// Render writes g as HTML. Papers that belong to a detected community carry
// the community number as their vis group.
func Render(w io.Writer, g Graph, opts Options) error {
	groups := community.Assign(communities(g))

	nodes := make([]visNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		vn := visNode{
			ID:    n.ID,
			Label: shorten(n.Label),
			Title: nodeTitle(n),
			Color: colorOr(nodeColors[n.Type], defaultNodeColor),
			Size:  15,
			Shape: "dot",
		}
		if n.Type == model.NodePaper {
			vn.Size = 25
			vn.Shape = "box"
			if c, ok := groups[n.ID]; ok {
				vn.Group = fmt.Sprintf("community-%d", c)
			}
		}
		nodes = append(nodes, vn)
	}

	edges := make([]visEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		rel := e.Type.String()
		ve := visEdge{
			From:   e.FromNode,
			To:     e.ToNode,
			Title:  edgeTitle(e),
			Color:  colorOr(edgeColors[rel], defaultEdgeColor),
			Width:  max(1, int(e.Confidence*5)),
			Arrows: "to",
		}
		if opts.EdgeLabels {
			ve.Label = rel
		}
		edges = append(edges, ve)
	}

	return page.Execute(w, struct {
		Nodes   []visNode
		Edges   []visEdge
		Physics bool
	}{nodes, edges, opts.Physics})
}

func communities(g Graph) [][]model.Node {
	var papers []model.Node
	isPaper := make(map[string]bool)
	for _, n := range g.Nodes {
		if n.Type == model.NodePaper {
			papers = append(papers, n)
			isPaper[n.ID] = true
		}
	}
	var edges []model.Edge
	for _, e := range g.Edges {
		if isPaper[e.FromNode] && isPaper[e.ToNode] {
			edges = append(edges, e)
		}
	}
	found, err := community.NewLabelPropagationDetector().Detect(papers, edges)
	if err != nil {
		logger.Warn("[Visualize] community detection failed", "error", err)
		return nil
	}
	return found
}

// WriteFile collects and renders the graph into path, creating parent
// directories as needed.
func WriteFile(ctx context.Context, s store.GraphStore, path string, opts Options) (Graph, error) {
	g, err := Collect(ctx, s, opts)
	if err != nil {
		return Graph{}, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Graph{}, fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return Graph{}, err
	}
	defer f.Close()

	if err := Render(f, g, opts); err != nil {
		return Graph{}, err
	}
	logger.Info("[Visualize] graph written", "path", path, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, f.Close()
}

func shorten(label string) string {
	if len(label) <= maxLabelChars {
		return label
	}
	return common.Truncate(label, maxLabelChars) + "..."
}

func nodeTitle(n model.Node) string {
	parts := []string{"Type: " + string(n.Type), "Label: " + n.Label}
	keys := n.Properties.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		if k == "full_text" || len(parts) >= 5 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, common.Truncate(n.Properties[k].Text(), 80)))
	}
	return strings.Join(parts, "\n")
}

func edgeTitle(e model.Edge) string {
	parts := []string{"Type: " + e.Type.String(), fmt.Sprintf("Confidence: %.2f", e.Confidence)}
	if r := e.Properties.String("rationale"); r != "" {
		parts = append(parts, "Rationale: "+common.Truncate(r, 200))
	}
	return strings.Join(parts, "\n")
}

func colorOr(c, fallback string) string {
	if c == "" {
		return fallback
	}
	return c
}
