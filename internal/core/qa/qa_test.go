package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/store/memory"
)

type MockLLMClient struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

// MockEmbedderClient maps known texts to vectors and everything else to Default.
type MockEmbedderClient struct {
	Vectors map[string][]float32
	Default []float32
	Err     error
}

func (m *MockEmbedderClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	return m.Default, nil
}

type reverseReranker struct{}

func (reverseReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	out := make([]int, len(docs))
	for i := range docs {
		out[i] = len(docs) - 1 - i
	}
	return out, nil
}

func seedPapers(t *testing.T) *memory.Store {
	ctx := context.Background()
	s := memory.New()

	splat, _, err := s.UpsertNode(ctx, model.NodePaper, "Gaussian Splatting", model.Properties{"abstract": model.String("node abstract")})
	require.NoError(t, err)
	require.NoError(t, s.SetEmbedding(ctx, splat, []float32{1, 0}))
	require.NoError(t, s.UpsertPaperMetadata(ctx, model.PaperMetadata{NodeID: splat, Title: "3D Gaussian Splatting", Year: 2023, Abstract: "Real-time radiance fields."}))

	nerf, _, err := s.UpsertNode(ctx, model.NodePaper, "NeRF", model.Properties{"abstract": model.String("Neural radiance fields.")})
	require.NoError(t, err)
	require.NoError(t, s.SetEmbedding(ctx, nerf, []float32{0.6, 0.8}))

	concept, _, err := s.UpsertNode(ctx, model.NodeConcept, "Splatting", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetEmbedding(ctx, concept, []float32{1, 0}))
	return s
}

func TestSearchReturnsPapersOnly(t *testing.T) {
	s := seedPapers(t)
	svc := NewService(s, &MockLLMClient{}, &MockEmbedderClient{Default: []float32{1, 0}}, "%s %s", 1)

	hits, err := svc.Search(context.Background(), "splatting", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "3D Gaussian Splatting", hits[0].Title())
	assert.Equal(t, "Real-time radiance fields.", hits[0].Abstract())
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "NeRF", hits[1].Title())
	assert.Nil(t, hits[1].Metadata)
	assert.Equal(t, "Neural radiance fields.", hits[1].Abstract())
}

func TestAskBuildsContextFromTopPaper(t *testing.T) {
	s := seedPapers(t)
	client := &MockLLMClient{Response: "  It renders in real time.  "}
	svc := NewService(s, client, &MockEmbedderClient{Default: []float32{1, 0}}, "Q: %s\nC:\n%s", 1)

	ans, err := svc.Ask(context.Background(), "How fast is splatting?")
	require.NoError(t, err)
	assert.Equal(t, "It renders in real time.", ans.Text)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "Q: How fast is splatting?\nC:\n- 3D Gaussian Splatting (2023): Real-time radiance fields.", client.Prompts[0])
}

func TestAskUsesReranker(t *testing.T) {
	s := seedPapers(t)
	client := &MockLLMClient{Response: "ok"}
	svc := NewService(s, client, &MockEmbedderClient{Default: []float32{1, 0}}, "%s|%s", 2)
	svc.Reranker = reverseReranker{}

	ans, err := svc.Ask(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "NeRF", ans.Sources[0].Title())
	assert.Contains(t, client.Prompts[0], "q|- NeRF (n.d.): Neural radiance fields.\n- 3D Gaussian Splatting")
}

func TestAskErrors(t *testing.T) {
	s := seedPapers(t)

	_, err := NewService(s, &MockLLMClient{}, nil, "%s%s", 1).Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoEmbedder)

	_, err = NewService(s, &MockLLMClient{}, &MockEmbedderClient{Default: []float32{1, 0}}, "%s%s", 1).Ask(context.Background(), "   ")
	assert.Error(t, err)

	_, err = NewService(s, &MockLLMClient{}, &MockEmbedderClient{Err: errors.New("quota")}, "%s%s", 1).Ask(context.Background(), "q")
	assert.Error(t, err)

	_, err = NewService(s, &MockLLMClient{Err: errors.New("down")}, &MockEmbedderClient{Default: []float32{1, 0}}, "%s%s", 1).Ask(context.Background(), "q")
	assert.Error(t, err)
}

func TestAskWithEmptyGraph(t *testing.T) {
	client := &MockLLMClient{Response: "I don't know."}
	svc := NewService(memory.New(), client, &MockEmbedderClient{Default: []float32{1, 0}}, "%s\n%s", 3)

	ans, err := svc.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, ans.Sources)
	assert.Contains(t, client.Prompts[0], "(no papers found)")
}
