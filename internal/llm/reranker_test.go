package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func TestRankUsesModelOrder(t *testing.T) {
	stub := &stubLLM{response: "2, 0, 1"}
	order, err := NewSimpleLLMReranker(stub).Rank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, order)
	assert.Contains(t, stub.prompts[0], "[1] b")
}

func TestRankCompletesPartialOrder(t *testing.T) {
	stub := &stubLLM{response: "Ranking: 3, 3, 9, 1"}
	order, err := NewSimpleLLMReranker(stub).Rank(context.Background(), "q", []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 0, 2}, order)
}

func TestRankFallsBackOnError(t *testing.T) {
	stub := &stubLLM{err: errors.New("boom")}
	order, err := NewSimpleLLMReranker(stub).Rank(context.Background(), "q", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, order)
}

func TestRankShortInputs(t *testing.T) {
	stub := &stubLLM{}
	r := NewSimpleLLMReranker(stub)

	order, err := r.Rank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, order)

	order, err = r.Rank(context.Background(), "q", []string{"only"})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, order)
	assert.Empty(t, stub.prompts)
}
