package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/config"
	"github.com/agenthands/papergraph/internal/core/candidates"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/store/memory"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Extraction.Entities = "ENTITIES title=%s\n%s"
	cfg.Extraction.Metadata = "METADATA\n%s"
	cfg.Linking.Prompt = "LINK\n%s\n---\n%s\nconcepts=%s methods=%s"
	cfg.QA.Prompt = "QA %s\n%s"
	return cfg
}

const (
	fastSplatEntities = `{
		"datasets": [{"label": "DatasetX", "description": "benchmark scenes"}],
		"methods": [{"label": "FastSplat", "description": "fast rasterizer"}],
		"concepts": [{"label": "gaussian splatting"}],
		"relationships": [
			{"from_entity_label": "FastSplat", "to_entity_label": "DatasetX", "relationship_type": "EVALUATES_ON", "confidence": 0.8},
			{"from_entity_label": "FastSplat", "to_entity_label": "NotExtracted", "relationship_type": "USES_CONCEPT"}
		]
	}`
	splatPlusEntities = `{
		"datasets": [{"label": "datasetx"}],
		"concepts": [{"label": "Gaussian Splatting", "description": "scene representation"}]
	}`
	otherEntities = `{"datasets": [{"label": "OtherSet"}]}`
)

func newTestGraph(t *testing.T) (*PaperGraph, *MockLLM, *memory.Store) {
	t.Helper()
	s := memory.New()
	mockLLM := &MockLLM{Routes: map[string]func(string) (string, error){
		"ENTITIES": func(p string) (string, error) {
			switch {
			case strings.Contains(p, "title=FastSplat"):
				return fastSplatEntities, nil
			case strings.Contains(p, "title=SplatPlus"):
				return splatPlusEntities, nil
			case strings.Contains(p, "title=Broken"):
				return "", errors.New("rate limited")
			default:
				return otherEntities, nil
			}
		},
		"METADATA": func(string) (string, error) {
			return `{"title": "Recovered Title", "abstract": "Recovered abstract.", "year": "2021", "authors": "Ada Lovelace, Alan Turing"}`, nil
		},
		"LINK": func(string) (string, error) {
			return `[{"relationship_type": "IMPROVES_ON", "confidence": 0.9, "rationale": "faster splatting", "evidence_concepts": ["Gaussian Splatting"]}]`, nil
		},
		"QA": func(p string) (string, error) {
			return "  FastSplat is faster.  ", nil
		},
	}}
	embedder := &MockEmbedder{
		Vectors: map[string][]float32{"FastSplat": {1, 0, 0}, "SplatPlus": {0.9, 0.1, 0}},
		Default: []float32{0, 0, 1},
	}
	return NewPaperGraph(s, mockLLM, embedder, testConfig()), mockLLM, s
}

func corpus() []Document {
	return []Document{
		{Title: "FastSplat", Text: "FastSplat renders Gaussian splats in real time.", Abstract: "Fast splats.", Year: 2023, Authors: []string{"Ada Lovelace"}},
		{Title: "SplatPlus", Text: "SplatPlus builds on splatting.", Abstract: "Better splats.", Year: 2024, Authors: []string{"Alan Turing"}},
		{Title: "Protein Folding", Text: "A paper about proteins.", Abstract: "Proteins.", Year: 2022, Authors: []string{"Rosalind Franklin"}},
	}
}

func ingestCorpus(t *testing.T, g *PaperGraph) []string {
	t.Helper()
	var ids []string
	for _, doc := range corpus() {
		res, err := g.IngestDocument(context.Background(), doc)
		require.NoError(t, err)
		ids = append(ids, res.PaperID)
	}
	return ids
}

func TestIngestDocumentBuildsGraph(t *testing.T) {
	g, mockLLM, s := newTestGraph(t)
	ctx := context.Background()

	res, err := g.IngestDocument(ctx, corpus()[0])
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Embedded)
	assert.Equal(t, "FastSplat", res.Title)
	assert.Empty(t, res.Warnings)
	assert.Zero(t, mockLLM.Count("METADATA"))

	// dataset, method, concept, author
	assert.Equal(t, 4, res.EntityCount)
	assert.Equal(t, 4, res.Structural.Created)
	assert.Equal(t, 1, res.Relations.Created)
	assert.Equal(t, 1, res.Relations.Dropped)
	assert.Equal(t, 5, res.EdgesCreated)

	meta, err := s.GetPaperMetadata(ctx, res.PaperID)
	require.NoError(t, err)
	assert.Equal(t, 2023, meta.Year)
	assert.Equal(t, []string{"Ada Lovelace"}, meta.Authors)

	paper, err := s.GetNode(ctx, res.PaperID)
	require.NoError(t, err)
	assert.Equal(t, "Fast splats.", paper.Properties.String("abstract"))

	datasets, err := g.Datasets(ctx, res.PaperID)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "Datasetx", datasets[0].Label)
	assert.Equal(t, "INTRODUCES", datasets[0].Relation)

	vec, err := s.GetEmbedding(ctx, res.PaperID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
}

func TestIngestIsIdempotentOnTitle(t *testing.T) {
	g, _, s := newTestGraph(t)
	ctx := context.Background()

	first, err := g.IngestDocument(ctx, corpus()[0])
	require.NoError(t, err)
	second, err := g.IngestDocument(ctx, corpus()[0])
	require.NoError(t, err)

	assert.Equal(t, first.PaperID, second.PaperID)
	assert.False(t, second.Created)
	assert.Equal(t, 4, second.Entities.Reused)

	papers, err := s.ListNodesByType(ctx, model.NodePaper)
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestIngestSharesEntitiesAcrossPapers(t *testing.T) {
	g, _, s := newTestGraph(t)
	ctx := context.Background()
	ingestCorpus(t, g)

	datasets, err := s.ListNodesByType(ctx, model.NodeDataset)
	require.NoError(t, err)
	var labels []string
	for _, n := range datasets {
		labels = append(labels, n.Label)
	}
	assert.ElementsMatch(t, []string{"Datasetx", "Otherset"}, labels)

	concepts, err := s.ListNodesByType(ctx, model.NodeConcept)
	require.NoError(t, err)
	assert.Len(t, concepts, 1)
}

func TestIngestFillsMissingMetadata(t *testing.T) {
	g, mockLLM, s := newTestGraph(t)
	ctx := context.Background()

	res, err := g.IngestDocument(ctx, Document{Text: "Some untitled preprint.", Source: "papers/untitled.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, mockLLM.Count("METADATA"))
	assert.Equal(t, "Recovered Title", res.Title)

	meta, err := s.GetPaperMetadata(ctx, res.PaperID)
	require.NoError(t, err)
	assert.Equal(t, 2021, meta.Year)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, meta.Authors)

	authors, err := s.ListNodesByType(ctx, model.NodeAuthor)
	require.NoError(t, err)
	assert.Len(t, authors, 2)

	paper, err := s.GetNode(ctx, res.PaperID)
	require.NoError(t, err)
	assert.Equal(t, "papers/untitled.txt", paper.Properties.String("source"))
}

func TestIngestDegradesOnOracleFailure(t *testing.T) {
	g, _, _ := newTestGraph(t)
	g.Embedder = &MockEmbedder{Err: errors.New("quota")}

	res, err := g.IngestDocument(context.Background(), Document{Title: "Broken", Text: "text", Abstract: "a", Year: 2020, Authors: []string{"Grace Hopper"}})
	require.NoError(t, err)
	assert.False(t, res.Embedded)
	assert.Len(t, res.Warnings, 2)
	// the metadata author still becomes a node
	assert.Equal(t, 1, res.EntityCount)
	assert.Equal(t, 1, res.Structural.Created)
}

func TestIngestReportsEdgeFailures(t *testing.T) {
	g, _, s := newTestGraph(t)
	g.Store = &EdgeFailingStore{Store: s}

	res, err := g.IngestDocument(context.Background(), corpus()[0])
	require.NoError(t, err)
	assert.Equal(t, 4, res.EntitiesCreated)
	assert.Zero(t, res.EntitiesReused)
	assert.Zero(t, res.EdgesCreated)
	// four structural edges and the one resolvable relationship
	assert.Equal(t, 5, res.EdgeFailures)
	assert.Equal(t, 1, res.Dropped)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"edge_failures":5`)
	assert.Contains(t, string(data), `"entities_created":4`)
}

func TestIngestBatchTotals(t *testing.T) {
	g, _, s := newTestGraph(t)
	g.Store = &EdgeFailingStore{Store: s}

	docs := append(corpus()[:2], Document{Title: "empty"})
	out, err := g.IngestBatch(context.Background(), docs)
	require.NoError(t, err)

	totals := out.Totals
	assert.Equal(t, 3, totals.Processed)
	assert.Equal(t, 2, totals.Ingested)
	assert.Equal(t, 1, totals.Failed)
	assert.Zero(t, totals.EdgesCreated)
	// FastSplat: 4 structural + 1 relation; SplatPlus: 3 structural
	assert.Equal(t, 8, totals.EdgeFailures)
	assert.Equal(t, 1, totals.Dropped)
	// SplatPlus reuses DatasetX and the concept, adds its author
	assert.Equal(t, 5, totals.EntitiesCreated)
}

func TestIngestRejectsEmptyText(t *testing.T) {
	g, _, _ := newTestGraph(t)
	_, err := g.IngestDocument(context.Background(), Document{Title: "x", Text: " \x00\n"})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIngestBatchReportsPerDocumentErrors(t *testing.T) {
	g, _, _ := newTestGraph(t)
	g.BulkWorkers = 3

	docs := append(corpus(), Document{Title: "empty"})
	out, err := g.IngestBatch(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Failed)
	assert.ErrorIs(t, out.Errors[3], ErrEmptyDocument)
	for i := 0; i < 3; i++ {
		require.NotNil(t, out.Results[i], "document %d", i)
	}
}

func TestLinkPapersSharedStrategy(t *testing.T) {
	g, mockLLM, _ := newTestGraph(t)
	ctx := context.Background()
	ids := ingestCorpus(t, g)

	sum, err := g.LinkPapers(ctx, StrategyShared)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Papers)
	assert.Equal(t, 1, sum.Pairs)
	assert.Equal(t, 1, sum.Edges.Created)
	assert.Equal(t, 1, mockLLM.Count("LINK"))

	var improvements []RelatedPaper
	for _, id := range ids[:2] {
		found, err := g.Improvements(ctx, id)
		require.NoError(t, err)
		improvements = append(improvements, found...)
	}
	require.Len(t, improvements, 1)
	assert.Equal(t, 0.9, improvements[0].Confidence)
	assert.Equal(t, "faster splatting", improvements[0].Rationale)

	unrelated, err := g.Improvements(ctx, ids[2])
	require.NoError(t, err)
	assert.Empty(t, unrelated)

	clusters, err := g.Clusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Papers, 2)
}

func TestLinkPapersSimilarityStrategy(t *testing.T) {
	g, _, _ := newTestGraph(t)
	g.Linking.MinSimilarity = 0.5
	ingestCorpus(t, g)

	sum, err := g.LinkPapers(context.Background(), StrategySimilarity)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pairs)
}

func TestLinkPapersUnknownStrategy(t *testing.T) {
	g, _, _ := newTestGraph(t)
	_, err := g.LinkPapers(context.Background(), "citations")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestGeneratorDefaultsToConfiguredStrategy(t *testing.T) {
	g, _, _ := newTestGraph(t)

	gen, err := g.Generator("")
	require.NoError(t, err)
	assert.IsType(t, candidates.SharedNeighbor{}, gen)

	g.Linking.Strategy = StrategySimilarity
	gen, err = g.Generator("")
	require.NoError(t, err)
	assert.IsType(t, candidates.Similarity{}, gen)
}

func TestSimilarIsSymmetric(t *testing.T) {
	g, _, s := newTestGraph(t)
	ctx := context.Background()
	ids := ingestCorpus(t, g)

	_, err := s.CreateEdge(ctx, model.Edge{FromNode: ids[0], ToNode: ids[1], Type: model.SimilarTo, Confidence: 0.7})
	require.NoError(t, err)

	for _, pair := range [][2]string{{ids[0], ids[1]}, {ids[1], ids[0]}} {
		similar, err := g.Similar(ctx, pair[0])
		require.NoError(t, err)
		require.Len(t, similar, 1, "from %s", pair[0])
		assert.Equal(t, pair[1], similar[0].ID)
	}
}

func TestQueriesRejectUnknownPaper(t *testing.T) {
	g, _, _ := newTestGraph(t)
	ctx := context.Background()

	_, err := g.Concepts(ctx, "missing")
	assert.ErrorIs(t, err, ErrPaperNotFound)
	_, err = g.Improvements(ctx, "missing")
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestListPapersAndAsk(t *testing.T) {
	g, _, _ := newTestGraph(t)
	ctx := context.Background()
	ingestCorpus(t, g)

	papers, err := g.ListPapers(ctx)
	require.NoError(t, err)
	require.Len(t, papers, 3)
	require.NotNil(t, papers[0].Metadata)

	answer, err := g.Ask(ctx, "Which paper is about FastSplat?")
	require.NoError(t, err)
	assert.Equal(t, "FastSplat is faster.", answer.Text)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "FastSplat", answer.Sources[0].Title())
}
