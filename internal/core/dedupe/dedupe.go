package dedupe

import (
	"context"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/normalize"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
)

// Dedupe collapses entities whose normalized labels match case-insensitively.
// The first entity of each group is canonical and keeps its position; later
// members only fill an empty description, and their properties overwrite the
// canonical's on key collisions. Entities with an empty label are dropped.
func Dedupe(entities []model.ExtractedEntity) []model.ExtractedEntity {
	out := make([]model.ExtractedEntity, 0, len(entities))
	index := make(map[string]int, len(entities))

	for _, e := range entities {
		label := normalize.Label(e.Label)
		if label == "" {
			continue
		}
		key := normalize.Key(label)

		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, model.ExtractedEntity{
				Label:       label,
				Description: e.Description,
				Properties:  e.Properties.Clone(),
			})
			continue
		}

		canonical := &out[i]
		if canonical.Description == "" {
			canonical.Description = e.Description
		}
		canonical.Properties = canonical.Properties.Merge(e.Properties)
	}

	return out
}

// ResolvedEntity is the node an extracted entity maps to after reconciliation.
type ResolvedEntity struct {
	Type    model.NodeType
	Label   string
	NodeID  string
	Created bool
}

// Resolution is the outcome of resolving one extraction batch.
type Resolution struct {
	Entities []ResolvedEntity
	Created  int
	Reused   int
	Failed   int
}

// Resolver reconciles a batch against the store. Find-or-create is delegated
// to the store's atomic upsert; the id it returns is authoritative.
type Resolver struct {
	Store store.GraphStore
}

func NewResolver(s store.GraphStore) *Resolver {
	return &Resolver{Store: s}
}

// Resolve dedupes each entity type of batch and upserts the canonical
// entities in model.EntityTypes order. Store failures are counted per entity
// and never abort the batch; only context cancellation is returned.
func (r *Resolver) Resolve(ctx context.Context, batch model.ExtractionBatch) (Resolution, error) {
	var res Resolution

	for _, nodeType := range model.EntityTypes {
		raw := batch.Entities[nodeType]
		if len(raw) == 0 {
			continue
		}

		for _, e := range Dedupe(raw) {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			id, created, err := r.Store.UpsertNode(ctx, nodeType, e.Label, entityProperties(e))
			if err != nil {
				logger.Warn("[Resolver] failed to upsert entity", "type", nodeType, "label", e.Label, "error", err)
				res.Failed++
				continue
			}

			if created {
				res.Created++
			} else {
				res.Reused++
			}
			res.Entities = append(res.Entities, ResolvedEntity{
				Type:    nodeType,
				Label:   e.Label,
				NodeID:  id,
				Created: created,
			})
		}
	}

	logger.Debug("[Resolver] batch resolved", "created", res.Created, "reused", res.Reused, "failed", res.Failed)
	return res, nil
}

// LabelMap indexes resolved entities by normalize.Key of their label. When
// two types share a label the first resolved one wins.
func (res Resolution) LabelMap() map[string]string {
	m := make(map[string]string, len(res.Entities))
	for _, e := range res.Entities {
		key := normalize.Key(e.Label)
		if _, ok := m[key]; !ok {
			m[key] = e.NodeID
		}
	}
	return m
}

func entityProperties(e model.ExtractedEntity) model.Properties {
	props := model.Properties{"description": model.String(e.Description)}
	return props.Merge(e.Properties)
}
