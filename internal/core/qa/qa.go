// Package qa answers questions over the paper graph with semantic search
// followed by an LLM call.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agenthands/papergraph/internal/core/common"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/llm"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
)

var (
	ErrNoEmbedder    = errors.New("semantic search needs an embedding client")
	ErrEmptyQuestion = errors.New("question must not be empty")
)

const abstractPreviewChars = 500

// PaperHit is one semantic search result.
type PaperHit struct {
	Node     model.Node           `json:"node"`
	Metadata *model.PaperMetadata `json:"metadata,omitempty"`
	Score    float64              `json:"score"`
}

func (h PaperHit) Title() string {
	if h.Metadata != nil && h.Metadata.Title != "" {
		return h.Metadata.Title
	}
	return h.Node.Label
}

func (h PaperHit) Abstract() string {
	if h.Metadata != nil && h.Metadata.Abstract != "" {
		return h.Metadata.Abstract
	}
	return h.Node.Properties.String("abstract")
}

type Answer struct {
	Question string     `json:"question"`
	Text     string     `json:"answer"`
	Sources  []PaperHit `json:"sources"`
}

type Service struct {
	Store    store.GraphStore
	LLM      llm.LLMClient
	Embedder llm.EmbedderClient
	// Reranker is optional; when set, retrieved papers are reordered before
	// they are placed in the prompt.
	Reranker llm.RerankerClient
	Prompt   string
	TopK     int
}

func NewService(s store.GraphStore, client llm.LLMClient, embedder llm.EmbedderClient, prompt string, topK int) *Service {
	return &Service{Store: s, LLM: client, Embedder: embedder, Prompt: prompt, TopK: topK}
}

// Search embeds query and returns the k most similar papers.
func (s *Service) Search(ctx context.Context, query string, k int) ([]PaperHit, error) {
	if s.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	if k <= 0 {
		k = 5
	}

	emb, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	similar, err := s.Store.TopKSimilar(ctx, emb, model.NodePaper, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search papers: %w", err)
	}

	hits := make([]PaperHit, 0, len(similar))
	for _, sim := range similar {
		node, err := s.Store.GetNode(ctx, sim.NodeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load paper %s: %w", sim.NodeID, err)
		}
		if node == nil {
			continue
		}

		hit := PaperHit{Node: *node, Score: sim.Score}
		meta, err := s.Store.GetPaperMetadata(ctx, sim.NodeID)
		switch {
		case err == nil:
			hit.Metadata = meta
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to load metadata of %s: %w", sim.NodeID, err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Ask retrieves TopK papers for question and asks the LLM to answer from them.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	k := s.TopK
	if k <= 0 {
		k = 1
	}
	hits, err := s.Search(ctx, question, k)
	if err != nil {
		return Answer{}, err
	}
	hits = s.rerank(ctx, question, hits)

	var lines []string
	for _, h := range hits {
		year := "n.d."
		if h.Metadata != nil && h.Metadata.Year > 0 {
			year = fmt.Sprint(h.Metadata.Year)
		}
		abstract := h.Abstract()
		if len(abstract) > abstractPreviewChars {
			abstract = common.Truncate(abstract, abstractPreviewChars) + "..."
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", h.Title(), year, abstract))
	}
	if len(lines) == 0 {
		lines = append(lines, "(no papers found)")
	}

	prompt := fmt.Sprintf(s.Prompt, question, strings.Join(lines, "\n"))
	text, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Debug("[QA] answered question", "sources", len(hits))
	return Answer{Question: question, Text: strings.TrimSpace(text), Sources: hits}, nil
}

func (s *Service) rerank(ctx context.Context, question string, hits []PaperHit) []PaperHit {
	if s.Reranker == nil || len(hits) < 2 {
		return hits
	}

	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Title() + ": " + h.Abstract()
	}
	order, err := s.Reranker.Rank(ctx, question, docs)
	if err != nil || len(order) != len(hits) {
		return hits
	}

	out := make([]PaperHit, 0, len(hits))
	for _, i := range order {
		if i < 0 || i >= len(hits) {
			return hits
		}
		out = append(out, hits[i])
	}
	return out
}
