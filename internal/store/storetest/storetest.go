// Package storetest holds the behavioural contract every GraphStore backend
// must satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/store"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) store.GraphStore

func Run(t *testing.T, newStore Factory) {
	t.Run("UpsertNodeFindOrCreate", func(t *testing.T) { testUpsertNode(t, newStore(t)) })
	t.Run("UpsertNodeConcurrent", func(t *testing.T) { testUpsertConcurrent(t, newStore(t)) })
	t.Run("Lookups", func(t *testing.T) { testLookups(t, newStore(t)) })
	t.Run("Edges", func(t *testing.T) { testEdges(t, newStore(t)) })
	t.Run("NodesConnectedViaType", func(t *testing.T) { testConnected(t, newStore(t)) })
	t.Run("Embeddings", func(t *testing.T) { testEmbeddings(t, newStore(t)) })
	t.Run("PaperMetadata", func(t *testing.T) { testPaperMetadata(t, newStore(t)) })
}

func testUpsertNode(t *testing.T, s store.GraphStore) {
	ctx := context.Background()

	id, created, err := s.UpsertNode(ctx, model.NodeConcept, "3D Gaussian Splatting", model.Properties{
		"description": model.String("first"),
		"score":       model.Number(2),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	again, created, err := s.UpsertNode(ctx, model.NodeConcept, "3d  gaussian splatting", model.Properties{
		"description": model.String("second"),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	n, err := s.GetNode(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "3D Gaussian Splatting", n.Label)
	assert.Equal(t, model.NodeConcept, n.Type)
	assert.Equal(t, "first", n.Properties.String("description"))
	score, ok := n.Properties["score"].AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 2.0, score)

	other, created, err := s.UpsertNode(ctx, model.NodeMethod, "3D Gaussian Splatting", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, id, other)

	_, _, err = s.UpsertNode(ctx, model.NodeConcept, "   ", nil)
	assert.Error(t, err)
}

func testUpsertConcurrent(t *testing.T, s store.GraphStore) {
	ctx := context.Background()
	const workers = 8

	ids := make([]string, workers)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := "DatasetX"
			if i%2 == 1 {
				label = "datasetx"
			}
			id, created, err := s.UpsertNode(ctx, model.NodeDataset, label, nil)
			assert.NoError(t, err)
			mu.Lock()
			ids[i] = id
			if created {
				createdCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, createdCount)

	nodes, err := s.ListNodesByType(ctx, model.NodeDataset)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func testLookups(t *testing.T, s store.GraphStore) {
	ctx := context.Background()

	id, _, err := s.UpsertNode(ctx, model.NodeMetric, "PSNR", nil)
	require.NoError(t, err)
	_, _, err = s.UpsertNode(ctx, model.NodeDataset, "Mip-NeRF 360", nil)
	require.NoError(t, err)

	n, err := s.FindNodeByLabel(ctx, "psnr", model.NodeMetric)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, id, n.ID)

	n, err = s.FindNodeByLabel(ctx, "PSNR", model.NodeDataset)
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = s.GetNode(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, n)

	metrics, err := s.ListNodesByType(ctx, model.NodeMetric)
	require.NoError(t, err)
	assert.Len(t, metrics, 1)

	all, err := s.ListNodesByType(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testEdges(t *testing.T, s store.GraphStore) {
	ctx := context.Background()

	p1 := mustNode(t, s, model.NodePaper, "Paper One")
	p2 := mustNode(t, s, model.NodePaper, "Paper Two")
	c := mustNode(t, s, model.NodeConcept, "Splatting")

	eid, err := s.CreateEdge(ctx, model.Edge{
		FromNode:   p2,
		ToNode:     p1,
		Type:       model.ImprovesOn,
		Confidence: 1.7,
		Properties: model.Properties{"rationale": model.String("faster\x00")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, eid)

	_, err = s.CreateEdge(ctx, model.Edge{FromNode: p1, ToNode: c, Type: model.Introduces, Confidence: -0.2})
	require.NoError(t, err)

	from, err := s.GetEdgesFrom(ctx, p2, nil)
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, p1, from[0].ToNode)
	assert.Equal(t, model.ImprovesOn, from[0].Type)
	assert.Equal(t, 1.0, from[0].Confidence)
	assert.Equal(t, "faster", from[0].Properties.String("rationale"))

	improves := model.ImprovesOn
	to, err := s.GetEdgesTo(ctx, p1, &improves)
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, p2, to[0].FromNode)

	introduces := model.Introduces
	to, err = s.GetEdgesTo(ctx, p1, &introduces)
	require.NoError(t, err)
	assert.Empty(t, to)

	fromP1, err := s.GetEdgesFrom(ctx, p1, &introduces)
	require.NoError(t, err)
	require.Len(t, fromP1, 1)
	assert.Equal(t, 0.0, fromP1[0].Confidence)

	// same id updates in place
	again, err := s.CreateEdge(ctx, model.Edge{ID: eid, FromNode: p2, ToNode: p1, Type: model.ImprovesOn, Confidence: 0.3})
	require.NoError(t, err)
	assert.Equal(t, eid, again)

	all, err := s.ListEdges(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, e := range all {
		if e.ID == eid {
			assert.Equal(t, 0.3, e.Confidence)
		}
	}

	// other relation tags survive the round trip
	_, err = s.CreateEdge(ctx, model.Edge{FromNode: p1, ToNode: p2, Type: model.ParseRelationType("CITES"), Confidence: 0.5})
	require.NoError(t, err)
	cites := model.ParseRelationType("cites")
	got, err := s.GetEdgesFrom(ctx, p1, &cites)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CITES", got[0].Type.String())

	_, err = s.CreateEdge(ctx, model.Edge{FromNode: p1, ToNode: "00000000-0000-0000-0000-000000000000", Type: model.SimilarTo})
	assert.Error(t, err)
}

func testConnected(t *testing.T, s store.GraphStore) {
	ctx := context.Background()

	p := mustNode(t, s, model.NodePaper, "Paper")
	d1 := mustNode(t, s, model.NodeDataset, "DatasetX")
	d2 := mustNode(t, s, model.NodeDataset, "DatasetY")
	m := mustNode(t, s, model.NodeMethod, "FastSplat")

	for _, e := range []model.Edge{
		{FromNode: p, ToNode: d1, Type: model.Introduces, Confidence: 1},
		{FromNode: p, ToNode: d1, Type: model.UsesDataset, Confidence: 1},
		{FromNode: p, ToNode: d2, Type: model.EvaluatesOn, Confidence: 1},
		{FromNode: p, ToNode: m, Type: model.Introduces, Confidence: 1},
		{FromNode: d1, ToNode: p, Type: model.SimilarTo, Confidence: 1},
	} {
		_, err := s.CreateEdge(ctx, e)
		require.NoError(t, err)
	}

	ds, err := s.NodesConnectedViaType(ctx, p, model.NodeDataset)
	require.NoError(t, err)
	want := []string{d1, d2}
	if want[0] > want[1] {
		want[0], want[1] = want[1], want[0]
	}
	assert.Equal(t, want, ds)

	ms, err := s.NodesConnectedViaType(ctx, p, model.NodeMethod)
	require.NoError(t, err)
	assert.Equal(t, []string{m}, ms)

	cs, err := s.NodesConnectedViaType(ctx, p, model.NodeConcept)
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func testEmbeddings(t *testing.T, s store.GraphStore) {
	ctx := context.Background()

	a := mustNode(t, s, model.NodePaper, "A")
	b := mustNode(t, s, model.NodePaper, "B")
	c := mustNode(t, s, model.NodePaper, "C")
	concept := mustNode(t, s, model.NodeConcept, "Concept")

	require.NoError(t, s.SetEmbedding(ctx, a, []float32{1, 0, 0}))
	require.NoError(t, s.SetEmbedding(ctx, b, []float32{0.9, 0.1, 0}))
	require.NoError(t, s.SetEmbedding(ctx, c, []float32{0, 1, 0}))
	require.NoError(t, s.SetEmbedding(ctx, concept, []float32{1, 0, 0}))

	v, err := s.GetEmbedding(ctx, b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.9, 0.1, 0}, v, 1e-6)

	_, err = s.GetEmbedding(ctx, mustNode(t, s, model.NodePaper, "D"))
	assert.True(t, errors.Is(err, store.ErrNotFound), fmt.Sprint(err))

	hits, err := s.TopKSimilar(ctx, []float32{1, 0, 0}, model.NodePaper, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, a, hits[0].NodeID)
	assert.Equal(t, b, hits[1].NodeID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	// overwrite
	require.NoError(t, s.SetEmbedding(ctx, c, []float32{1, 0, 0}))
	hits, err = s.TopKSimilar(ctx, []float32{1, 0, 0}, model.NodePaper, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, b, hits[2].NodeID)
}

func testPaperMetadata(t *testing.T, s store.GraphStore) {
	ctx := context.Background()

	p := mustNode(t, s, model.NodePaper, "Paper")

	_, err := s.GetPaperMetadata(ctx, p)
	assert.True(t, errors.Is(err, store.ErrNotFound), fmt.Sprint(err))

	require.NoError(t, s.UpsertPaperMetadata(ctx, model.PaperMetadata{
		NodeID:   p,
		Title:    "Paper",
		Abstract: "abs",
		Year:     2023,
		DOI:      "10.1/x",
		Authors:  []string{"Ada", "Grace"},
	}))
	require.NoError(t, s.UpsertPaperMetadata(ctx, model.PaperMetadata{
		NodeID:        p,
		Title:         "Paper",
		Year:          2024,
		CitationCount: 3,
		Authors:       []string{"Ada", "Grace"},
	}))

	meta, err := s.GetPaperMetadata(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2024, meta.Year)
	assert.Equal(t, 3, meta.CitationCount)
	assert.Equal(t, []string{"Ada", "Grace"}, meta.Authors)
	assert.False(t, meta.CreatedAt.IsZero())
}

func mustNode(t *testing.T, s store.GraphStore, nodeType model.NodeType, label string) string {
	t.Helper()
	id, _, err := s.UpsertNode(context.Background(), nodeType, label, nil)
	require.NoError(t, err)
	return id
}
