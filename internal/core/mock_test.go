package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/store/memory"
)

// MockLLM answers by prompt prefix. Prompts are recorded in call order.
type MockLLM struct {
	mu      sync.Mutex
	Routes  map[string]func(prompt string) (string, error)
	Prompts []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	for prefix, respond := range m.Routes {
		if strings.HasPrefix(prompt, prefix) {
			return respond(prompt)
		}
	}
	return "", errors.New("no route for prompt")
}

func (m *MockLLM) Count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.Prompts {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

type MockEmbedder struct {
	Vectors map[string][]float32
	Default []float32
	Err     error
}

// Embed returns the vector of the first key contained in text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for key, v := range m.Vectors {
		if strings.Contains(text, key) {
			return v, nil
		}
	}
	return m.Default, nil
}

// EdgeFailingStore is a memory store whose edge writes always fail.
type EdgeFailingStore struct {
	*memory.Store
}

func (s *EdgeFailingStore) CreateEdge(ctx context.Context, edge model.Edge) (string, error) {
	return "", errors.New("edge write rejected")
}
