package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

type ExtractedEntity struct {
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Properties  Properties `json:"properties,omitempty"`
}

// ExtractedRelationship is an intra-document relationship between two labels
// of the same extraction batch (the paper title counts as a label).
type ExtractedRelationship struct {
	FromLabel  string       `json:"from_entity_label"`
	ToLabel    string       `json:"to_entity_label"`
	Type       RelationType `json:"relationship_type"`
	Confidence *float64     `json:"confidence,omitempty"`
	Rationale  string       `json:"rationale,omitempty"`
	Evidence   string       `json:"evidence_span,omitempty"`
}

func (r ExtractedRelationship) Valid() bool {
	return r.FromLabel != "" && r.ToLabel != "" && !r.Type.IsZero()
}

// ExtractionBatch is everything the fact-extraction oracle produced for one document.
type ExtractionBatch struct {
	Entities      map[NodeType][]ExtractedEntity `json:"entities_by_type"`
	Relationships []ExtractedRelationship        `json:"relationships"`
}

func (b ExtractionBatch) Empty() bool {
	for _, list := range b.Entities {
		if len(list) > 0 {
			return false
		}
	}
	return len(b.Relationships) == 0
}

// UnmarshalJSON accepts both {"entities_by_type": {...}} and the flat form
// {"concepts": [...], "methods": [...], "relationships": [...]}. Entity lists
// are concatenated in a fixed order, entities_by_type first and then the flat
// keys sorted by name, so the first occurrence of a label is stable.
func (b *ExtractionBatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := ExtractionBatch{Entities: make(map[NodeType][]ExtractedEntity)}
	decodeEntities := func(key string, msg json.RawMessage) error {
		t, ok := ParseNodeType(key)
		if !ok || t == NodePaper {
			return nil
		}
		var list []ExtractedEntity
		if err := json.Unmarshal(msg, &list); err != nil {
			return fmt.Errorf("invalid %s list: %w", key, err)
		}
		out.Entities[t] = append(out.Entities[t], list...)
		return nil
	}

	if msg, ok := raw["relationships"]; ok {
		if err := json.Unmarshal(msg, &out.Relationships); err != nil {
			return fmt.Errorf("invalid relationships list: %w", err)
		}
	}
	if msg, ok := raw["entities_by_type"]; ok {
		var byType map[string]json.RawMessage
		if err := json.Unmarshal(msg, &byType); err != nil {
			return fmt.Errorf("invalid entities_by_type: %w", err)
		}
		for _, k := range slices.Sorted(maps.Keys(byType)) {
			if err := decodeEntities(k, byType[k]); err != nil {
				return err
			}
		}
	}
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		if key == "relationships" || key == "entities_by_type" {
			continue
		}
		if err := decodeEntities(key, raw[key]); err != nil {
			return err
		}
	}

	*b = out
	return nil
}

// InferredRelationship is one cross-document relationship emitted by the
// relationship oracle for an ordered paper pair.
type InferredRelationship struct {
	Type             RelationType `json:"relationship_type"`
	Confidence       *float64     `json:"confidence,omitempty"`
	Rationale        string       `json:"rationale,omitempty"`
	EvidenceConcepts []string     `json:"evidence_concepts,omitempty"`
}
