package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/papergraph/internal/core/common"
	"github.com/agenthands/papergraph/internal/core/dedupe"
	"github.com/agenthands/papergraph/internal/core/materialize"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/normalize"
	"github.com/agenthands/papergraph/internal/logger"
)

const (
	embeddingBodyChars = 2000
	maxTitleChars      = 300
)

// Document is one paper handed to ingestion. Only Text is required; missing
// bibliographic fields are filled by the fact-extraction oracle.
type Document struct {
	Title         string           `json:"title"`
	Text          string           `json:"text"`
	Abstract      string           `json:"abstract,omitempty"`
	Year          int              `json:"year,omitempty"`
	Venue         string           `json:"venue,omitempty"`
	DOI           string           `json:"doi,omitempty"`
	ArxivID       string           `json:"arxiv_id,omitempty"`
	CitationCount int              `json:"citation_count,omitempty"`
	Authors       []string         `json:"authors,omitempty"`
	Keywords      []string         `json:"keywords,omitempty"`
	Extra         model.Properties `json:"extra,omitempty"`
	// Source is where the document was loaded from, e.g. a file path.
	Source string `json:"source,omitempty"`
}

// IngestResult summarizes one document. EntityCount covers created and
// reused entities; the failure counts are store writes that were rejected.
type IngestResult struct {
	PaperID    string             `json:"paper_id"`
	Title      string             `json:"title"`
	Created    bool               `json:"created"`
	Embedded   bool               `json:"embedded"`
	Entities   dedupe.Resolution  `json:"-"`
	Structural materialize.Result `json:"-"`
	Relations  materialize.Result `json:"-"`

	EntityCount     int      `json:"entities"`
	EntitiesCreated int      `json:"entities_created"`
	EntitiesReused  int      `json:"entities_reused"`
	EntityFailures  int      `json:"entity_failures"`
	EdgesCreated    int      `json:"edges_created"`
	EdgeFailures    int      `json:"edge_failures"`
	Dropped         int      `json:"relationships_dropped"`
	Warnings        []string `json:"warnings,omitempty"`
}

// IngestDocument stores one paper and everything extracted from it. Oracle
// and embedding failures degrade the result and are reported as warnings;
// only an empty document, a failed paper upsert or cancellation is an error.
func (g *PaperGraph) IngestDocument(ctx context.Context, doc Document) (*IngestResult, error) {
	text := strings.TrimSpace(normalize.SanitizeString(doc.Text))
	if text == "" {
		return nil, ErrEmptyDocument
	}

	res := &IngestResult{}
	warn := func(msg string, err error) {
		logger.Warn("[Ingest] "+msg, "source", doc.Source, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", msg, err))
	}

	meta := g.documentMetadata(ctx, doc, text, warn)
	res.Title = meta.Title

	paperID, created, err := g.Store.UpsertNode(ctx, model.NodePaper, meta.Title, paperProperties(doc, meta, text))
	if err != nil {
		return nil, fmt.Errorf("failed to store paper %q: %w", meta.Title, err)
	}
	res.PaperID = paperID
	res.Created = created
	meta.NodeID = paperID

	if err := g.Store.UpsertPaperMetadata(ctx, meta); err != nil {
		warn("failed to store paper metadata", err)
	}

	if g.Embedder != nil {
		if err := g.embedPaper(ctx, paperID, meta, text); err != nil {
			warn("failed to embed paper", err)
		} else {
			res.Embedded = true
		}
	}

	batch, err := g.Extractor.Extract(ctx, text, meta.Title)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		warn("fact extraction failed", err)
		batch = model.ExtractionBatch{}
	}
	batch = withAuthors(batch, meta.Authors)

	resolution, err := g.Resolver.Resolve(ctx, batch)
	if err != nil {
		return nil, err
	}
	res.Entities = resolution
	res.EntityCount = len(resolution.Entities)
	res.EntitiesCreated = resolution.Created
	res.EntitiesReused = resolution.Reused
	res.EntityFailures = resolution.Failed

	edges := materialize.NewPass(g.Store)
	for _, e := range resolution.Entities {
		res.Structural.Add(edges.Structural(ctx, paperID, e.Type, e.NodeID))
	}

	labels := resolution.LabelMap()
	if key := normalize.Key(meta.Title); key != "" {
		if _, ok := labels[key]; !ok {
			labels[key] = paperID
		}
	}
	res.Relations = edges.FromExtraction(ctx, labels, batch.Relationships)
	total := edges.Total()
	res.EdgesCreated = total.Created
	res.EdgeFailures = total.Failed
	res.Dropped = total.Dropped

	logger.Info("[Ingest] paper ingested",
		"title", meta.Title,
		"id", paperID,
		"created", created,
		"entities", res.EntityCount,
		"edges", res.EdgesCreated,
		"edge_failures", res.EdgeFailures,
	)
	return res, nil
}

// documentMetadata merges caller-provided fields with the oracle's view of
// the text. Caller fields always win.
func (g *PaperGraph) documentMetadata(ctx context.Context, doc Document, text string, warn func(string, error)) model.PaperMetadata {
	meta := model.PaperMetadata{
		Title:         cleanField(doc.Title),
		Abstract:      strings.TrimSpace(doc.Abstract),
		Year:          doc.Year,
		Venue:         cleanField(doc.Venue),
		DOI:           cleanField(doc.DOI),
		ArxivID:       cleanField(doc.ArxivID),
		CitationCount: doc.CitationCount,
		Authors:       cleanList(doc.Authors),
		Keywords:      cleanList(doc.Keywords),
	}

	if needsMetadata(meta) {
		extracted, err := g.Extractor.ExtractMetadata(ctx, text)
		if err != nil {
			warn("metadata extraction failed", err)
		} else {
			fillMetadata(&meta, extracted)
		}
	}

	if meta.Title == "" {
		meta.Title = firstLine(text)
	}
	return meta
}

func needsMetadata(m model.PaperMetadata) bool {
	return m.Title == "" || m.Abstract == "" || m.Year == 0 || len(m.Authors) == 0
}

func fillMetadata(dst *model.PaperMetadata, src model.PaperMetadata) {
	if dst.Title == "" {
		dst.Title = cleanField(src.Title)
	}
	if dst.Abstract == "" {
		dst.Abstract = strings.TrimSpace(src.Abstract)
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.Venue == "" {
		dst.Venue = cleanField(src.Venue)
	}
	if dst.DOI == "" {
		dst.DOI = cleanField(src.DOI)
	}
	if dst.ArxivID == "" {
		dst.ArxivID = cleanField(src.ArxivID)
	}
	if dst.CitationCount == 0 {
		dst.CitationCount = src.CitationCount
	}
	if len(dst.Authors) == 0 {
		dst.Authors = cleanList(src.Authors)
	}
	if len(dst.Keywords) == 0 {
		dst.Keywords = cleanList(src.Keywords)
	}
}

func paperProperties(doc Document, meta model.PaperMetadata, text string) model.Properties {
	props := doc.Extra.Clone()
	if props == nil {
		props = model.Properties{}
	}
	props["full_text"] = model.String(text)
	if meta.Abstract != "" {
		props["abstract"] = model.String(meta.Abstract)
	}
	if doc.Source != "" {
		props["source"] = model.String(doc.Source)
	}
	if meta.Year != 0 {
		props["year"] = model.Number(float64(meta.Year))
	}
	if meta.Venue != "" {
		props["venue"] = model.String(meta.Venue)
	}
	if meta.DOI != "" {
		props["doi"] = model.String(meta.DOI)
	}
	if meta.ArxivID != "" {
		props["arxiv_id"] = model.String(meta.ArxivID)
	}
	if len(meta.Authors) > 0 {
		props["authors"] = model.Strings(meta.Authors)
	}
	if len(meta.Keywords) > 0 {
		props["keywords"] = model.Strings(meta.Keywords)
	}
	return props
}

func (g *PaperGraph) embedPaper(ctx context.Context, paperID string, meta model.PaperMetadata, text string) error {
	input := fmt.Sprintf("Title: %s\n\nAbstract: %s\n\nBody snippet:\n%s",
		meta.Title, meta.Abstract, common.Truncate(text, embeddingBodyChars))
	vector, err := g.Embedder.Embed(ctx, input)
	if err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding")
	}
	return g.Store.SetEmbedding(ctx, paperID, vector)
}

// withAuthors appends metadata authors the extraction batch did not already name.
func withAuthors(batch model.ExtractionBatch, authors []string) model.ExtractionBatch {
	if len(authors) == 0 {
		return batch
	}
	if batch.Entities == nil {
		batch.Entities = make(map[model.NodeType][]model.ExtractedEntity)
	}
	seen := make(map[string]bool)
	for _, e := range batch.Entities[model.NodeAuthor] {
		seen[normalize.Key(e.Label)] = true
	}
	for _, a := range authors {
		key := normalize.Key(a)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		batch.Entities[model.NodeAuthor] = append(batch.Entities[model.NodeAuthor], model.ExtractedEntity{Label: a})
	}
	return batch
}

func cleanField(s string) string {
	return strings.Join(strings.Fields(normalize.SanitizeString(s)), " ")
}

func cleanList(items []string) []string {
	var out []string
	for _, s := range items {
		if s = cleanField(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = cleanField(line); line != "" {
			return common.Truncate(line, maxTitleChars)
		}
	}
	return "Untitled"
}

// BatchTotals adds up the per-document counts of a bulk ingestion.
type BatchTotals struct {
	Processed       int `json:"processed"`
	Ingested        int `json:"ingested"`
	Failed          int `json:"failed"`
	EntitiesCreated int `json:"entities_created"`
	EntityFailures  int `json:"entity_failures"`
	EdgesCreated    int `json:"edges_created"`
	EdgeFailures    int `json:"edge_failures"`
	Dropped         int `json:"relationships_dropped"`
	Warnings        int `json:"warnings"`
}

func (t *BatchTotals) add(res *IngestResult) {
	t.Ingested++
	t.EntitiesCreated += res.EntitiesCreated
	t.EntityFailures += res.EntityFailures
	t.EdgesCreated += res.EdgesCreated
	t.EdgeFailures += res.EdgeFailures
	t.Dropped += res.Dropped
	t.Warnings += len(res.Warnings)
}

// BatchResult reports a bulk ingestion. Results and Errors are indexed like
// the input documents; exactly one of them is set per document.
type BatchResult struct {
	Results  []*IngestResult
	Errors   []error
	Failed   int
	Totals   BatchTotals
	Duration time.Duration
}

// IngestBatch ingests docs with up to Concurrency.BulkIngest documents in
// flight. A failing document does not stop the others.
func (g *PaperGraph) IngestBatch(ctx context.Context, docs []Document) (BatchResult, error) {
	start := time.Now()
	out := BatchResult{
		Results: make([]*IngestResult, len(docs)),
		Errors:  make([]error, len(docs)),
	}

	workers := g.BulkWorkers
	if workers <= 0 {
		workers = 1
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, doc := range docs {
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := g.IngestDocument(gCtx, doc)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				logger.Error("[Ingest] document failed", "index", i, "source", doc.Source, "error", err)
				out.Errors[i] = err
				return nil
			}
			out.Results[i] = res
			return nil
		})
	}
	err := eg.Wait()

	out.Totals.Processed = len(docs)
	for i, e := range out.Errors {
		if e != nil {
			out.Failed++
			continue
		}
		if res := out.Results[i]; res != nil {
			out.Totals.add(res)
		}
	}
	out.Totals.Failed = out.Failed
	out.Duration = time.Since(start)
	logger.Info("[Ingest] batch done",
		"documents", len(docs),
		"failed", out.Failed,
		"entities_created", out.Totals.EntitiesCreated,
		"edges_created", out.Totals.EdgesCreated,
		"edge_failures", out.Totals.EdgeFailures,
		"duration", out.Duration,
	)
	return out, err
}
