package extraction

import (
	"context"
	"fmt"

	"github.com/agenthands/papergraph/internal/config"
	"github.com/agenthands/papergraph/internal/core/common"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/llm"
)

const defaultMaxTextChars = 15000

type Extractor struct {
	LLM     llm.LLMClient
	Prompts config.ExtractionPrompts
}

func NewExtractor(llmClient llm.LLMClient, prompts config.ExtractionPrompts) *Extractor {
	return &Extractor{
		LLM:     llmClient,
		Prompts: prompts,
	}
}

func (e *Extractor) sample(text string) string {
	limit := e.Prompts.MaxTextChars
	if limit <= 0 {
		limit = defaultMaxTextChars
	}
	return common.Truncate(text, limit)
}

// Extract asks the LLM for the entities and intra-document relationships of
// one paper. Only the leading MaxTextChars of text are sent.
func (e *Extractor) Extract(ctx context.Context, text string, title string) (model.ExtractionBatch, error) {
	prompt := fmt.Sprintf(e.Prompts.Entities, title, e.sample(text))

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.ExtractionBatch{}, fmt.Errorf("failed to generate entities: %w", err)
	}

	batch, err := common.ParseJSON[model.ExtractionBatch](response)
	if err != nil {
		return model.ExtractionBatch{}, fmt.Errorf("failed to extract entities: %w", err)
	}

	kept := batch.Relationships[:0]
	for _, r := range batch.Relationships {
		if r.Valid() {
			kept = append(kept, r)
		}
	}
	batch.Relationships = kept

	return batch, nil
}

// ExtractMetadata asks the LLM for bibliographic fields. The returned
// record has no NodeID; the caller owns the paper node.
func (e *Extractor) ExtractMetadata(ctx context.Context, text string) (model.PaperMetadata, error) {
	if e.Prompts.Metadata == "" {
		return model.PaperMetadata{}, fmt.Errorf("no metadata prompt configured")
	}
	prompt := fmt.Sprintf(e.Prompts.Metadata, e.sample(text))

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.PaperMetadata{}, fmt.Errorf("failed to generate metadata: %w", err)
	}

	raw, err := common.ParseJSON[rawMetadata](response)
	if err != nil {
		return model.PaperMetadata{}, fmt.Errorf("failed to extract metadata: %w", err)
	}

	return model.PaperMetadata{
		Title:         raw.Title,
		Abstract:      raw.Abstract,
		Year:          int(raw.Year),
		Venue:         raw.Venue,
		DOI:           raw.DOI,
		ArxivID:       raw.ArxivID,
		CitationCount: int(raw.CitationCount),
		Authors:       []string(raw.Authors),
		Keywords:      []string(raw.Keywords),
	}, nil
}
