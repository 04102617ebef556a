package linking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/core/candidates"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/store"
	"github.com/agenthands/papergraph/internal/store/memory"
)

type oracleCall struct {
	PaperA, PaperB    string
	Concepts, Methods []string
}

type MockOracle struct {
	mu    sync.Mutex
	Calls []oracleCall
	// Respond decides the answer per call; nil means no relationships.
	Respond func(ctx context.Context, paperA, paperB string) ([]model.InferredRelationship, error)
}

func (m *MockOracle) Infer(ctx context.Context, paperA, paperB string, concepts, methods []string) ([]model.InferredRelationship, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, oracleCall{PaperA: paperA, PaperB: paperB, Concepts: concepts, Methods: methods})
	m.mu.Unlock()
	if m.Respond == nil {
		return nil, nil
	}
	return m.Respond(ctx, paperA, paperB)
}

type MockLLMClient struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

type fixture struct {
	store store.GraphStore
	ids   map[string]string
}

// Papers A, B and C all use DatasetX; A and B also introduce Splatting.
func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	f := &fixture{store: memory.New(), ids: make(map[string]string)}
	add := func(nodeType model.NodeType, label string, props model.Properties) {
		id, _, err := f.store.UpsertNode(ctx, nodeType, label, props)
		require.NoError(t, err)
		f.ids[label] = id
	}
	link := func(from, to string, rel model.RelationType) {
		_, err := f.store.CreateEdge(ctx, model.Edge{FromNode: f.ids[from], ToNode: f.ids[to], Type: rel, Confidence: 1})
		require.NoError(t, err)
	}

	add(model.NodePaper, "Paper A", model.Properties{PropAbstract: model.String("about A")})
	add(model.NodePaper, "Paper B", model.Properties{PropAbstract: model.String("about B")})
	add(model.NodePaper, "Paper C", nil)
	add(model.NodeDataset, "DatasetX", nil)
	add(model.NodeConcept, "Splatting", nil)
	add(model.NodeMethod, "FastSplat", nil)

	link("Paper A", "DatasetX", model.UsesDataset)
	link("Paper B", "DatasetX", model.UsesDataset)
	link("Paper C", "DatasetX", model.UsesDataset)
	link("Paper A", "Splatting", model.Introduces)
	link("Paper B", "Splatting", model.UsesConcept)
	link("Paper B", "FastSplat", model.Introduces)

	require.NoError(t, f.store.UpsertPaperMetadata(ctx, model.PaperMetadata{
		NodeID: f.ids["Paper B"], Title: "Paper B", Year: 2024, Authors: []string{"Ada", "Grace"},
	}))
	return f
}

func title(paperContext string) string {
	first, _, _ := strings.Cut(paperContext, "\n")
	return strings.TrimPrefix(first, "Title: ")
}

func TestRunMaterializesInferredEdges(t *testing.T) {
	f := newFixture(t)
	oracle := &MockOracle{Respond: func(ctx context.Context, a, b string) ([]model.InferredRelationship, error) {
		if title(a) == "Paper A" && title(b) == "Paper B" {
			c := 0.8
			return []model.InferredRelationship{{Type: model.ImprovesOn, Confidence: &c, Rationale: "B is faster"}}, nil
		}
		return []model.InferredRelationship{{Type: model.SimilarTo}}, nil
	}}

	sum, err := NewLinker(f.store, oracle).Run(context.Background(), candidates.SharedNeighbor{})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Papers)
	assert.Equal(t, 3, sum.Pairs)
	assert.Equal(t, 3, sum.Edges.Created)
	assert.Zero(t, sum.OracleFailures)
	assert.Len(t, oracle.Calls, 3)

	improves, err := f.store.GetEdgesFrom(context.Background(), f.ids["Paper B"], &model.ImprovesOn)
	require.NoError(t, err)
	require.Len(t, improves, 1)
	assert.Equal(t, f.ids["Paper A"], improves[0].ToNode)
	assert.Equal(t, 0.8, improves[0].Confidence)

	similar, err := f.store.GetEdgesFrom(context.Background(), f.ids["Paper A"], &model.SimilarTo)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, f.ids["Paper C"], similar[0].ToNode)
	assert.Equal(t, 0.5, similar[0].Confidence)
}

func TestRunSendsKnownLabels(t *testing.T) {
	f := newFixture(t)
	oracle := &MockOracle{}

	_, err := NewLinker(f.store, oracle).Run(context.Background(), candidates.SharedNeighbor{})
	require.NoError(t, err)

	var ab *oracleCall
	for i := range oracle.Calls {
		if title(oracle.Calls[i].PaperA) == "Paper A" && title(oracle.Calls[i].PaperB) == "Paper B" {
			ab = &oracle.Calls[i]
		}
	}
	require.NotNil(t, ab)
	assert.Equal(t, []string{"Splatting"}, ab.Concepts)
	assert.Equal(t, []string{"FastSplat"}, ab.Methods)
	assert.Contains(t, ab.PaperB, "Authors: Ada, Grace")
	assert.Contains(t, ab.PaperA, "about A")
}

func TestRunToleratesOracleFailures(t *testing.T) {
	f := newFixture(t)
	oracle := &MockOracle{Respond: func(ctx context.Context, a, b string) ([]model.InferredRelationship, error) {
		if title(b) == "Paper C" {
			return nil, errors.New("rate limited")
		}
		return []model.InferredRelationship{{Type: model.ComparesTo}}, nil
	}}

	sum, err := NewLinker(f.store, oracle).Run(context.Background(), candidates.SharedNeighbor{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.OracleFailures)
	assert.Equal(t, 1, sum.Edges.Created)
}

func TestRunTimesOutSlowOracle(t *testing.T) {
	f := newFixture(t)
	oracle := &MockOracle{Respond: func(ctx context.Context, a, b string) ([]model.InferredRelationship, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	l := NewLinker(f.store, oracle)
	l.OracleTimeout = 10 * time.Millisecond
	l.Workers = 3

	sum, err := l.Run(context.Background(), candidates.SharedNeighbor{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.OracleFailures)
	assert.Zero(t, sum.Edges.Created)
}

func TestRunConcurrentWorkers(t *testing.T) {
	f := newFixture(t)
	oracle := &MockOracle{Respond: func(ctx context.Context, a, b string) ([]model.InferredRelationship, error) {
		return []model.InferredRelationship{{Type: model.SimilarTo}, {Type: model.SimilarTo}}, nil
	}}

	l := NewLinker(f.store, oracle)
	l.Workers = 4
	sum, err := l.Run(context.Background(), candidates.SharedNeighbor{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Edges.Created)
	assert.Equal(t, 3, sum.Edges.Duplicates)

	edges, err := f.store.ListEdges(context.Background())
	require.NoError(t, err)
	assert.Len(t, edges, 6+3)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLinker(f.store, &MockOracle{}).Run(ctx, candidates.SharedNeighbor{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLLMOracleParsesSingleObject(t *testing.T) {
	client := &MockLLMClient{Response: "```json\n{\"relationship_type\": \"extends\", \"confidence\": 0.7, \"rationale\": \"r\", \"evidence_concepts\": [\"Splatting\"]}\n```"}
	oracle := NewLLMOracle(client, "P1=%s P2=%s C=%s M=%s")

	rels, err := oracle.Infer(context.Background(), "a", "b", []string{"Splatting", "NeRF"}, nil)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, model.Extends, rels[0].Type)
	require.NotNil(t, rels[0].Confidence)
	assert.Equal(t, 0.7, *rels[0].Confidence)
	assert.Equal(t, []string{"Splatting"}, rels[0].EvidenceConcepts)
	assert.Equal(t, "P1=a P2=b C=Splatting, NeRF M=", client.Prompts[0])
}

func TestLLMOracleErrors(t *testing.T) {
	_, err := NewLLMOracle(&MockLLMClient{Err: errors.New("down")}, "%s%s%s%s").Infer(context.Background(), "a", "b", nil, nil)
	assert.Error(t, err)

	_, err = NewLLMOracle(&MockLLMClient{Response: "I cannot tell."}, "%s%s%s%s").Infer(context.Background(), "a", "b", nil, nil)
	assert.Error(t, err)
}

func TestBuildPaperContext(t *testing.T) {
	node := &model.Node{
		Label: "Fast Splatting",
		Properties: model.Properties{
			PropAbstract: model.String("node abstract"),
			PropFullText: model.String(strings.Repeat("x", 50)),
			PropMethods: model.List(model.Map(model.Properties{
				"method_name":    model.String("FastSplat"),
				"key_components": model.Strings([]string{"tiling", "sorting"}),
			})),
			PropLimitation: model.String(""),
		},
	}
	meta := &model.PaperMetadata{
		Title:    "Fast Splatting: A Study",
		Abstract: "meta abstract",
		Year:     2024,
		ArxivID:  "2401.00001",
		Keywords: []string{"rendering"},
	}

	got := BuildPaperContext(node, meta, 10)
	assert.True(t, strings.HasPrefix(got, "Title: Fast Splatting\nTitle: Fast Splatting: A Study\n"))
	assert.Contains(t, got, "Year: 2024")
	assert.Contains(t, got, "ArXiv ID: 2401.00001")
	assert.Contains(t, got, "Abstract:\nmeta abstract")
	assert.NotContains(t, got, "node abstract")
	assert.Contains(t, got, "Full Text:\nxxxxxxxxxx\n")
	assert.Contains(t, got, "Keywords: rendering")
	assert.Contains(t, got, "Methods:\n- key_components:\n")
	assert.Contains(t, got, "method_name: FastSplat")
	assert.NotContains(t, got, "Limitations")

	bare := BuildPaperContext(&model.Node{Label: "Only Title"}, nil, 0)
	assert.Equal(t, "Title: Only Title", bare)
}
