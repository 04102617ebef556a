package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agenthands/papergraph/internal/logger"
)

var indexPattern = regexp.MustCompile(`\d+`)

type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

// Rank asks the LLM for a relevance order. The result is always a permutation
// of 0..len(docs)-1: unknown or repeated indices are dropped and anything the
// model left out keeps its original relative order at the end.
func (r *SimpleLLMReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	var docList strings.Builder
	for i, d := range docs {
		content := d
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Fprintf(&docList, "[%d] %s\n", i, content)
	}

	prompt := fmt.Sprintf(`You are a search relevance optimization system.
Query: %s

Documents:
%s

Rank the documents above based on their relevance to the query.
Output ONLY the indices of the documents in order of relevance, separated by commas.
Example: 0, 2, 1
Do not output any other text.`, query, docList.String())

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("[LLM][Rerank] falling back to retrieval order", "error", err)
		return completeOrder(nil, len(docs)), nil
	}

	return completeOrder(parseIndices(resp), len(docs)), nil
}

func parseIndices(s string) []int {
	matches := indexPattern.FindAllString(s, -1)
	var indices []int
	for _, m := range matches {
		if i, err := strconv.Atoi(m); err == nil {
			indices = append(indices, i)
		}
	}
	return indices
}

func completeOrder(indices []int, n int) []int {
	seen := make([]bool, n)
	order := make([]int, 0, n)
	for _, i := range indices {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		order = append(order, i)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}
