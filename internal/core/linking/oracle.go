package linking

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/papergraph/internal/core/common"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/llm"
)

// RelationshipOracle infers typed relationships between two paper contexts.
// paperA is "Paper 1" and paperB is "Paper 2" in the oracle's convention.
type RelationshipOracle interface {
	Infer(ctx context.Context, paperA, paperB string, concepts, methods []string) ([]model.InferredRelationship, error)
}

type LLMOracle struct {
	LLM    llm.LLMClient
	Prompt string
}

func NewLLMOracle(client llm.LLMClient, prompt string) *LLMOracle {
	return &LLMOracle{LLM: client, Prompt: prompt}
}

func (o *LLMOracle) Infer(ctx context.Context, paperA, paperB string, concepts, methods []string) ([]model.InferredRelationship, error) {
	prompt := fmt.Sprintf(o.Prompt, paperA, paperB, strings.Join(concepts, ", "), strings.Join(methods, ", "))

	response, err := o.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate relationships: %w", err)
	}

	rels, err := common.ParseJSONList[model.InferredRelationship](response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}
	return rels, nil
}
