// Package memory is an in-process GraphStore used by tests and single-run CLI
// invocations that do not need persistence.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/normalize"
	"github.com/agenthands/papergraph/internal/store"
)

type Store struct {
	mu sync.RWMutex

	nodes     map[string]*model.Node
	nodeOrder []string
	byKey     map[string]string

	edges     map[string]*model.Edge
	edgeOrder []string
	outgoing  map[string][]string
	incoming  map[string][]string

	embeddings map[string][]float32
	papers     map[string]*model.PaperMetadata

	NewID func() string
	Now   func() time.Time
}

func New() *Store {
	return &Store{
		nodes:      make(map[string]*model.Node),
		byKey:      make(map[string]string),
		edges:      make(map[string]*model.Edge),
		outgoing:   make(map[string][]string),
		incoming:   make(map[string][]string),
		embeddings: make(map[string][]float32),
		papers:     make(map[string]*model.PaperMetadata),
		NewID:      func() string { return uuid.New().String() },
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func nodeKey(t model.NodeType, label string) string {
	return string(t) + "\x1f" + normalize.Key(label)
}

func (s *Store) UpsertNode(ctx context.Context, nodeType model.NodeType, label string, props model.Properties) (string, bool, error) {
	label = normalize.SanitizeString(label)
	if normalize.Key(label) == "" {
		return "", false, fmt.Errorf("empty label for %s node", nodeType)
	}
	key := nodeKey(nodeType, label)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	if id, ok := s.byKey[key]; ok {
		s.nodes[id].UpdatedAt = now
		return id, false, nil
	}

	id := s.NewID()
	s.nodes[id] = &model.Node{
		ID:         id,
		Type:       nodeType,
		Label:      label,
		Properties: props.Sanitize(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.nodeOrder = append(s.nodeOrder, id)
	s.byKey[key] = id
	return id, true, nil
}

func copyNode(n *model.Node) *model.Node {
	c := *n
	c.Properties = n.Properties.Clone()
	return &c
}

func (s *Store) GetNode(ctx context.Context, id string) (*model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	return copyNode(n), nil
}

func (s *Store) FindNodeByLabel(ctx context.Context, label string, nodeType model.NodeType) (*model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[nodeKey(nodeType, label)]
	if !ok {
		return nil, nil
	}
	return copyNode(s.nodes[id]), nil
}

func (s *Store) ListNodesByType(ctx context.Context, nodeType model.NodeType) ([]model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Node
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		if nodeType == "" || n.Type == nodeType {
			out = append(out, *copyNode(n))
		}
	}
	return out, nil
}

func (s *Store) CreateEdge(ctx context.Context, edge model.Edge) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.FromNode]; !ok {
		return "", fmt.Errorf("edge source %s: %w", edge.FromNode, store.ErrNotFound)
	}
	if _, ok := s.nodes[edge.ToNode]; !ok {
		return "", fmt.Errorf("edge target %s: %w", edge.ToNode, store.ErrNotFound)
	}

	now := s.Now()
	if edge.ID == "" {
		edge.ID = s.NewID()
	}
	edge.Confidence = model.ClampConfidence(edge.Confidence)
	edge.Properties = edge.Properties.Sanitize()

	if existing, ok := s.edges[edge.ID]; ok {
		existing.Confidence = edge.Confidence
		existing.Properties = edge.Properties
		existing.UpdatedAt = now
		return edge.ID, nil
	}

	edge.CreatedAt = now
	edge.UpdatedAt = now
	s.edges[edge.ID] = &edge
	s.edgeOrder = append(s.edgeOrder, edge.ID)
	s.outgoing[edge.FromNode] = append(s.outgoing[edge.FromNode], edge.ID)
	s.incoming[edge.ToNode] = append(s.incoming[edge.ToNode], edge.ID)
	return edge.ID, nil
}

func (s *Store) collectEdges(ids []string, relType *model.RelationType) []model.Edge {
	var out []model.Edge
	for _, id := range ids {
		e := s.edges[id]
		if store.MatchesType(e.Type, relType) {
			c := *e
			c.Properties = e.Properties.Clone()
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) GetEdgesFrom(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEdges(s.outgoing[nodeID], relType), nil
}

func (s *Store) GetEdgesTo(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEdges(s.incoming[nodeID], relType), nil
}

func (s *Store) ListEdges(ctx context.Context) ([]model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEdges(s.edgeOrder, nil), nil
}

func (s *Store) NodesConnectedViaType(ctx context.Context, nodeID string, linkingType model.NodeType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, eid := range s.outgoing[nodeID] {
		to := s.edges[eid].ToNode
		if n := s.nodes[to]; n == nil || n.Type != linkingType {
			continue
		}
		if _, dup := seen[to]; dup {
			continue
		}
		seen[to] = struct{}{}
		out = append(out, to)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SetEmbedding(ctx context.Context, nodeID string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[nodeID]; !ok {
		return fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound)
	}
	s.embeddings[nodeID] = append([]float32(nil), vector...)
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, nodeID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.embeddings[nodeID]
	if !ok {
		return nil, fmt.Errorf("embedding for %s: %w", nodeID, store.ErrNotFound)
	}
	return append([]float32(nil), v...), nil
}

func (s *Store) TopKSimilar(ctx context.Context, embedding []float32, nodeType model.NodeType, k int) ([]model.Similarity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []model.Similarity
	for id, v := range s.embeddings {
		if nodeType != "" && s.nodes[id].Type != nodeType {
			continue
		}
		if len(v) != len(embedding) {
			continue
		}
		hits = append(hits, model.Similarity{NodeID: id, Score: store.CosineSimilarity(embedding, v)})
	}
	return store.RankSimilar(hits, k), nil
}

func (s *Store) UpsertPaperMetadata(ctx context.Context, meta model.PaperMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[meta.NodeID]; !ok {
		return fmt.Errorf("paper %s: %w", meta.NodeID, store.ErrNotFound)
	}
	now := s.Now()
	if existing, ok := s.papers[meta.NodeID]; ok {
		meta.CreatedAt = existing.CreatedAt
	} else {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	s.papers[meta.NodeID] = &meta
	return nil
}

func (s *Store) GetPaperMetadata(ctx context.Context, nodeID string) (*model.PaperMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.papers[nodeID]
	if !ok {
		return nil, fmt.Errorf("paper metadata %s: %w", nodeID, store.ErrNotFound)
	}
	c := *m
	return &c, nil
}

func (s *Store) Close() error { return nil }
