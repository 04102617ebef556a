package model

import (
	"encoding/json"
	"strings"
)

type RelationKind int

const (
	RelOther RelationKind = iota
	RelIntroduces
	RelAuthoredBy
	RelImprovesOn
	RelExtends
	RelRefinesConcept
	RelComparesTo
	RelSimilarTo
	RelUsesDataset
	RelUsesConcept
	RelEvaluatesWith
	RelEvaluatesOn
	RelComparesWith
)

var relationNames = map[RelationKind]string{
	RelIntroduces:     "INTRODUCES",
	RelAuthoredBy:     "AUTHORED_BY",
	RelImprovesOn:     "IMPROVES_ON",
	RelExtends:        "EXTENDS",
	RelRefinesConcept: "REFINES_CONCEPT",
	RelComparesTo:     "COMPARES_TO",
	RelSimilarTo:      "SIMILAR_TO",
	RelUsesDataset:    "USES_DATASET",
	RelUsesConcept:    "USES_CONCEPT",
	RelEvaluatesWith:  "EVALUATES_WITH",
	RelEvaluatesOn:    "EVALUATES_ON",
	RelComparesWith:   "COMPARES_WITH",
}

var relationKinds = func() map[string]RelationKind {
	m := make(map[string]RelationKind, len(relationNames))
	for k, v := range relationNames {
		m[v] = k
	}
	return m
}()

// RelationType is a known relation kind, or RelOther carrying the raw tag.
type RelationType struct {
	Kind RelationKind
	Raw  string
}

var (
	Introduces     = RelationType{Kind: RelIntroduces}
	AuthoredBy     = RelationType{Kind: RelAuthoredBy}
	ImprovesOn     = RelationType{Kind: RelImprovesOn}
	Extends        = RelationType{Kind: RelExtends}
	RefinesConcept = RelationType{Kind: RelRefinesConcept}
	ComparesTo     = RelationType{Kind: RelComparesTo}
	SimilarTo      = RelationType{Kind: RelSimilarTo}
	UsesDataset    = RelationType{Kind: RelUsesDataset}
	UsesConcept    = RelationType{Kind: RelUsesConcept}
	EvaluatesWith  = RelationType{Kind: RelEvaluatesWith}
	EvaluatesOn    = RelationType{Kind: RelEvaluatesOn}
	ComparesWith   = RelationType{Kind: RelComparesWith}
)

// ParseRelationType maps a tag such as "improves on" or "IMPROVES_ON" to its kind.
// Unknown tags are kept verbatim (upper-cased, spaces as underscores) under RelOther.
func ParseRelationType(s string) RelationType {
	tag := strings.ToUpper(strings.TrimSpace(s))
	tag = strings.Join(strings.FieldsFunc(tag, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if k, ok := relationKinds[tag]; ok {
		return RelationType{Kind: k}
	}
	return RelationType{Kind: RelOther, Raw: tag}
}

func (r RelationType) String() string {
	if r.Kind == RelOther {
		return r.Raw
	}
	return relationNames[r.Kind]
}

func (r RelationType) IsZero() bool {
	return r.Kind == RelOther && r.Raw == ""
}

// InvertsDirection reports whether an oracle emission for (first, second)
// is stored as second -> first.
func (r RelationType) InvertsDirection() bool {
	switch r.Kind {
	case RelImprovesOn, RelExtends, RelRefinesConcept:
		return true
	case RelIntroduces, RelAuthoredBy, RelComparesTo, RelSimilarTo,
		RelUsesDataset, RelUsesConcept, RelEvaluatesWith, RelEvaluatesOn,
		RelComparesWith, RelOther:
		return false
	}
	return false
}

func (r RelationType) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RelationType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRelationType(s)
	return nil
}

// StructuralRelation is the edge type linking a paper to an entity of the given type.
func StructuralRelation(t NodeType) RelationType {
	if t == NodeAuthor {
		return AuthoredBy
	}
	return Introduces
}
