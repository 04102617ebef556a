// Package neo4jstore is a GraphStore over a Bolt server. Property bags are stored
// as JSON strings because Neo4j properties cannot hold nested maps.
package neo4jstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/normalize"
	"github.com/agenthands/papergraph/internal/driver"
	"github.com/agenthands/papergraph/internal/store"
)

type Store struct {
	Driver driver.GraphDriver
	NewID  func() string
	Now    func() time.Time
}

// New wraps d and ensures the node key constraint exists.
func New(ctx context.Context, d driver.GraphDriver) (*Store, error) {
	if err := d.BuildIndices(ctx); err != nil {
		return nil, err
	}
	return &Store{
		Driver: d,
		NewID:  func() string { return uuid.New().String() },
		Now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Close() error {
	return s.Driver.Close(context.Background())
}

func typeKey(t model.NodeType, label string) string {
	return string(t) + ":" + normalize.Key(label)
}

func (s *Store) UpsertNode(ctx context.Context, nodeType model.NodeType, label string, props model.Properties) (string, bool, error) {
	label = normalize.SanitizeString(label)
	if normalize.Key(label) == "" {
		return "", false, fmt.Errorf("empty label for %s node", nodeType)
	}
	propsJSON, err := model.EncodeProperties(props.Sanitize())
	if err != nil {
		return "", false, err
	}

	newID := s.NewID()
	res, err := s.Driver.ExecuteQuery(ctx, driver.UpsertNodeQuery, map[string]interface{}{
		"type_key":   typeKey(nodeType, label),
		"id":         newID,
		"node_type":  string(nodeType),
		"label":      label,
		"properties": string(propsJSON),
		"now":        s.Now(),
	})
	if err != nil {
		return "", false, fmt.Errorf("upserting %s node %q: %w", nodeType, label, err)
	}
	if len(res.Records) == 0 {
		return "", false, fmt.Errorf("upserting %s node %q: no id returned", nodeType, label)
	}
	id := getString(res.Records[0], "id")
	return id, id == newID, nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*model.Node, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetNodeQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	return toNode(res.Records[0])
}

func (s *Store) FindNodeByLabel(ctx context.Context, label string, nodeType model.NodeType) (*model.Node, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.FindNodeByKeyQuery, map[string]interface{}{
		"type_key": typeKey(nodeType, label),
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	return toNode(res.Records[0])
}

func (s *Store) ListNodesByType(ctx context.Context, nodeType model.NodeType) ([]model.Node, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.ListNodesQuery, map[string]interface{}{
		"node_type": string(nodeType),
	})
	if err != nil {
		return nil, err
	}
	nodes := make([]model.Node, 0, len(res.Records))
	for _, rec := range res.Records {
		n, err := toNode(rec)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, nil
}

func (s *Store) CreateEdge(ctx context.Context, edge model.Edge) (string, error) {
	if edge.ID == "" {
		edge.ID = s.NewID()
	}
	propsJSON, err := model.EncodeProperties(edge.Properties.Sanitize())
	if err != nil {
		return "", err
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.SaveEdgeQuery, map[string]interface{}{
		"id":         edge.ID,
		"from_id":    edge.FromNode,
		"to_id":      edge.ToNode,
		"type":       edge.Type.String(),
		"confidence": model.ClampConfidence(edge.Confidence),
		"properties": string(propsJSON),
		"now":        s.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("creating %s edge %s -> %s: %w", edge.Type, edge.FromNode, edge.ToNode, err)
	}
	if len(res.Records) == 0 {
		return "", fmt.Errorf("creating %s edge %s -> %s: %w", edge.Type, edge.FromNode, edge.ToNode, store.ErrNotFound)
	}
	return edge.ID, nil
}

func (s *Store) queryEdges(ctx context.Context, query string, params map[string]interface{}) ([]model.Edge, error) {
	res, err := s.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	edges := make([]model.Edge, 0, len(res.Records))
	for _, rec := range res.Records {
		props, err := model.DecodeProperties([]byte(getString(rec, "properties")))
		if err != nil {
			return nil, err
		}
		edges = append(edges, model.Edge{
			ID:         getString(rec, "id"),
			FromNode:   getString(rec, "from_id"),
			ToNode:     getString(rec, "to_id"),
			Type:       model.ParseRelationType(getString(rec, "type")),
			Confidence: getFloat(rec, "confidence"),
			Properties: props,
			CreatedAt:  getTime(rec, "created_at"),
			UpdatedAt:  getTime(rec, "updated_at"),
		})
	}
	return edges, nil
}

func typeFilter(relType *model.RelationType) string {
	if relType == nil {
		return ""
	}
	return relType.String()
}

func (s *Store) GetEdgesFrom(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error) {
	return s.queryEdges(ctx, driver.GetEdgesFromQuery, map[string]interface{}{
		"node_id": nodeID,
		"type":    typeFilter(relType),
	})
}

func (s *Store) GetEdgesTo(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error) {
	return s.queryEdges(ctx, driver.GetEdgesToQuery, map[string]interface{}{
		"node_id": nodeID,
		"type":    typeFilter(relType),
	})
}

func (s *Store) ListEdges(ctx context.Context) ([]model.Edge, error) {
	return s.queryEdges(ctx, driver.ListEdgesQuery, nil)
}

func (s *Store) NodesConnectedViaType(ctx context.Context, nodeID string, linkingType model.NodeType) ([]string, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.NodesConnectedViaTypeQuery, map[string]interface{}{
		"node_id":   nodeID,
		"node_type": string(linkingType),
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		ids = append(ids, getString(rec, "id"))
	}
	return ids, nil
}

func (s *Store) SetEmbedding(ctx context.Context, nodeID string, vector []float32) error {
	res, err := s.Driver.ExecuteQuery(ctx, driver.SetEmbeddingQuery, map[string]interface{}{
		"id":        nodeID,
		"embedding": toFloat64s(vector),
		"now":       s.Now(),
	})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, nodeID string) ([]float32, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetEmbeddingQuery, map[string]interface{}{"id": nodeID})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("embedding for %s: %w", nodeID, store.ErrNotFound)
	}
	v := getVector(res.Records[0], "embedding")
	if v == nil {
		return nil, fmt.Errorf("embedding for %s: %w", nodeID, store.ErrNotFound)
	}
	return v, nil
}

// TopKSimilar ranks client-side so the same query works on Neo4j and Memgraph.
func (s *Store) TopKSimilar(ctx context.Context, embedding []float32, nodeType model.NodeType, k int) ([]model.Similarity, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.ListEmbeddingsQuery, map[string]interface{}{
		"dims":      len(embedding),
		"node_type": string(nodeType),
	})
	if err != nil {
		return nil, err
	}
	hits := make([]model.Similarity, 0, len(res.Records))
	for _, rec := range res.Records {
		hits = append(hits, model.Similarity{
			NodeID: getString(rec, "id"),
			Score:  store.CosineSimilarity(embedding, getVector(rec, "embedding")),
		})
	}
	return store.RankSimilar(hits, k), nil
}

func (s *Store) UpsertPaperMetadata(ctx context.Context, meta model.PaperMetadata) error {
	authors := meta.Authors
	if authors == nil {
		authors = []string{}
	}
	keywords := meta.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.UpsertPaperMetadataQuery, map[string]interface{}{
		"node_id":        meta.NodeID,
		"title":          normalize.SanitizeString(meta.Title),
		"abstract":       normalize.SanitizeString(meta.Abstract),
		"year":           int64(meta.Year),
		"venue":          normalize.SanitizeString(meta.Venue),
		"doi":            normalize.SanitizeString(meta.DOI),
		"arxiv_id":       normalize.SanitizeString(meta.ArxivID),
		"citation_count": int64(meta.CitationCount),
		"authors":        authors,
		"keywords":       keywords,
		"now":            s.Now(),
	})
	if err != nil {
		return fmt.Errorf("upserting paper metadata %s: %w", meta.NodeID, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("paper %s: %w", meta.NodeID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetPaperMetadata(ctx context.Context, nodeID string) (*model.PaperMetadata, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetPaperMetadataQuery, map[string]interface{}{"node_id": nodeID})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("paper metadata %s: %w", nodeID, store.ErrNotFound)
	}
	rec := res.Records[0]
	return &model.PaperMetadata{
		NodeID:        getString(rec, "node_id"),
		Title:         getString(rec, "title"),
		Abstract:      getString(rec, "abstract"),
		Year:          int(getInt(rec, "year")),
		Venue:         getString(rec, "venue"),
		DOI:           getString(rec, "doi"),
		ArxivID:       getString(rec, "arxiv_id"),
		CitationCount: int(getInt(rec, "citation_count")),
		Authors:       getStrings(rec, "authors"),
		Keywords:      getStrings(rec, "keywords"),
		CreatedAt:     getTime(rec, "created_at"),
		UpdatedAt:     getTime(rec, "updated_at"),
	}, nil
}

func toNode(rec *neo4j.Record) (*model.Node, error) {
	props, err := model.DecodeProperties([]byte(getString(rec, "properties")))
	if err != nil {
		return nil, err
	}
	return &model.Node{
		ID:         getString(rec, "id"),
		Type:       model.NodeType(getString(rec, "node_type")),
		Label:      getString(rec, "label"),
		Properties: props,
		CreatedAt:  getTime(rec, "created_at"),
		UpdatedAt:  getTime(rec, "updated_at"),
	}, nil
}
