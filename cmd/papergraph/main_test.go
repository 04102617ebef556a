package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/config"
	"github.com/agenthands/papergraph/internal/core"
	"github.com/agenthands/papergraph/internal/store/memory"
)

type mockLLM struct{}

func (mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "ENTITIES"):
		return `{"datasets": [{"label": "DatasetX"}], "concepts": [{"label": "Splatting", "description": "rendering"}]}`, nil
	case strings.HasPrefix(prompt, "LINK"):
		return `[{"relationship_type": "IMPROVES_ON", "confidence": 0.9, "rationale": "faster"}]`, nil
	default:
		return "answer", nil
	}
}

type mockEmbedder struct{}

func (mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Extraction.Entities = "ENTITIES %s %s"
	cfg.Linking.Prompt = "LINK %s %s %s %s"
	cfg.QA.Prompt = "QA %s %s"
	g := core.NewPaperGraph(memory.New(), mockLLM{}, mockEmbedder{}, cfg)

	var out bytes.Buffer
	return newApp(&out, func(context.Context, string) (*core.PaperGraph, error) { return g, nil }), &out
}

func run(a *app, args ...string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	return root.Execute()
}

func writePapers(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "papers.json")
	data := `[
		{"title": "Alpha", "text": "alpha body", "abstract": "a", "year": 2023, "authors": ["Ada"]},
		{"title": "Beta", "text": "beta body", "abstract": "b", "year": 2024, "authors": ["Alan"]}
	]`
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestIngestLinksAndQueries(t *testing.T) {
	a, out := newTestApp(t)

	require.NoError(t, run(a, "ingest", writePapers(t)))
	assert.Contains(t, out.String(), "Successfully ingested: 2")
	assert.Contains(t, out.String(), "Created 1 cross-paper relationships from 1 candidate pairs")
	// DatasetX, Splatting and both authors
	assert.Contains(t, out.String(), "Entities created: 4")
	assert.Contains(t, out.String(), "Edge failures: 0")

	out.Reset()
	jsonPath := filepath.Join(t.TempDir(), "papers.json")
	require.NoError(t, run(a, "query", "papers", "--output", jsonPath))
	assert.Contains(t, out.String(), "Found 2 papers")

	var papers []core.PaperSummary
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &papers))
	require.Len(t, papers, 2)

	out.Reset()
	require.NoError(t, run(a, "query", "datasets", "--paper-id", papers[0].ID))
	assert.Contains(t, out.String(), "Datasetx")

	out.Reset()
	require.NoError(t, run(a, "query", "clusters"))
	assert.Contains(t, out.String(), "Found 1 clusters")

	out.Reset()
	require.NoError(t, run(a, "query", "ask", "--query", "what?"))
	assert.Contains(t, out.String(), "answer")
}

func TestIngestWithoutLinking(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, run(a, "ingest", writePapers(t), "--link=false"))
	assert.NotContains(t, out.String(), "Linking")
}

func TestIngestRejectsUnknownStrategyBeforeIngesting(t *testing.T) {
	a, out := newTestApp(t)
	err := run(a, "ingest", writePapers(t), "--strategy", "nearest")
	assert.ErrorIs(t, err, core.ErrUnknownStrategy)
	assert.NotContains(t, out.String(), "Ingesting")
}

func TestQueryValidation(t *testing.T) {
	a, _ := newTestApp(t)

	assert.ErrorIs(t, run(a, "query", "improvements"), errPaperIDRequired)
	assert.ErrorIs(t, run(a, "query", "search"), errQueryRequired)
	assert.Error(t, run(a, "query", "citations"))
	assert.Error(t, run(a, "query", "improvements", "--paper-id", "missing"))
	assert.Error(t, run(a, "ingest", filepath.Join(t.TempDir(), "missing")))
}

func TestVisualize(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, run(a, "ingest", writePapers(t)))

	path := filepath.Join(t.TempDir(), "graph.html")
	require.NoError(t, run(a, "visualize", "-o", path, "--node-type", "papers", "--no-physics"))
	assert.Contains(t, out.String(), "(2 nodes, 1 edges)")
	_, err := os.Stat(path)
	assert.NoError(t, err)

	assert.Error(t, run(a, "visualize", "--node-type", "planet"))
}
