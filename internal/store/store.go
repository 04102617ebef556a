// Package store defines the persistent graph store consumed by the ingestion
// and linking pipeline.
package store

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/agenthands/papergraph/internal/core/model"
)

var ErrNotFound = errors.New("not found")

type GraphStore interface {
	// UpsertNode is atomic per (type, lowercase normalized label). An existing
	// node keeps its label and properties; only updated_at is refreshed.
	// The returned id is authoritative.
	UpsertNode(ctx context.Context, nodeType model.NodeType, label string, props model.Properties) (id string, created bool, err error)
	GetNode(ctx context.Context, id string) (*model.Node, error)
	FindNodeByLabel(ctx context.Context, label string, nodeType model.NodeType) (*model.Node, error)
	// ListNodesByType returns every node when nodeType is empty.
	ListNodesByType(ctx context.Context, nodeType model.NodeType) ([]model.Node, error)

	// CreateEdge upserts on edge id; an empty id is assigned by the store.
	CreateEdge(ctx context.Context, edge model.Edge) (string, error)
	GetEdgesFrom(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error)
	GetEdgesTo(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error)
	ListEdges(ctx context.Context) ([]model.Edge, error)
	// NodesConnectedViaType returns the sorted ids of nodes of linkingType
	// reached by an outgoing edge of nodeID.
	NodesConnectedViaType(ctx context.Context, nodeID string, linkingType model.NodeType) ([]string, error)

	SetEmbedding(ctx context.Context, nodeID string, vector []float32) error
	GetEmbedding(ctx context.Context, nodeID string) ([]float32, error)
	// TopKSimilar ranks nodes of nodeType (all when empty) by cosine similarity, descending.
	TopKSimilar(ctx context.Context, embedding []float32, nodeType model.NodeType, k int) ([]model.Similarity, error)

	UpsertPaperMetadata(ctx context.Context, meta model.PaperMetadata) error
	GetPaperMetadata(ctx context.Context, nodeID string) (*model.PaperMetadata, error)

	Close() error
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RankSimilar sorts hits by score descending, id ascending on ties, and keeps the first k.
func RankSimilar(hits []model.Similarity, k int) []model.Similarity {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].NodeID < hits[j].NodeID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// MatchesType reports whether edge type t passes an optional filter.
func MatchesType(t model.RelationType, filter *model.RelationType) bool {
	return filter == nil || t.String() == filter.String()
}
