// Package postgres is a GraphStore on PostgreSQL with pgvector for paper
// embeddings.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/normalize"
	"github.com/agenthands/papergraph/internal/logger"
	"github.com/agenthands/papergraph/internal/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Store struct {
	conn  pgxIConn
	pool  *pgxpool.Pool
	NewID func() string
}

// New connects to dsn, enables the vector extension and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	bootstrap, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	_, err = bootstrap.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	bootstrap.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("enabling vector extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("[Store][postgres] Connected", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	s := NewWithConnection(pool)
	s.pool = pool
	return s, nil
}

// NewWithConnection wraps an existing pool or transaction. The caller owns
// the connection and the schema.
func NewWithConnection(conn pgxIConn) *Store {
	return &Store{
		conn:  conn,
		NewID: func() string { return uuid.New().String() },
	}
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) UpsertNode(ctx context.Context, nodeType model.NodeType, label string, props model.Properties) (string, bool, error) {
	label = normalize.SanitizeString(label)
	key := normalize.Key(label)
	if key == "" {
		return "", false, fmt.Errorf("empty label for %s node", nodeType)
	}
	propsJSON, err := model.EncodeProperties(props.Sanitize())
	if err != nil {
		return "", false, err
	}

	var (
		id       string
		inserted bool
	)
	err = s.conn.QueryRow(ctx, `
		INSERT INTO nodes (id, node_type, label, label_key, properties)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (node_type, label_key) DO UPDATE SET updated_at = now()
		RETURNING id, (xmax = 0) AS inserted
	`, s.NewID(), string(nodeType), label, key, string(propsJSON)).Scan(&id, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("upserting %s node %q: %w", nodeType, label, err)
	}
	return id, inserted, nil
}

const nodeColumns = `id, node_type, label, properties, created_at, updated_at`

func scanNode(row pgx.Row) (*model.Node, error) {
	var (
		n        model.Node
		nodeType string
		props    []byte
	)
	if err := row.Scan(&n.ID, &nodeType, &n.Label, &props, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Type = model.NodeType(nodeType)
	p, err := model.DecodeProperties(props)
	if err != nil {
		return nil, err
	}
	n.Properties = p
	return &n, nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*model.Node, error) {
	n, err := scanNode(s.conn.QueryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (s *Store) FindNodeByLabel(ctx context.Context, label string, nodeType model.NodeType) (*model.Node, error) {
	n, err := scanNode(s.conn.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE node_type = $1 AND label_key = $2`,
		string(nodeType), normalize.Key(label)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (s *Store) ListNodesByType(ctx context.Context, nodeType model.NodeType) ([]model.Node, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE $1 = '' OR node_type = $1
		ORDER BY created_at, id
	`, string(nodeType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

func (s *Store) CreateEdge(ctx context.Context, edge model.Edge) (string, error) {
	if edge.ID == "" {
		edge.ID = s.NewID()
	}
	propsJSON, err := model.EncodeProperties(edge.Properties.Sanitize())
	if err != nil {
		return "", err
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO edges (id, from_node, to_node, edge_type, confidence, properties)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			properties = EXCLUDED.properties,
			updated_at = now()
	`, edge.ID, edge.FromNode, edge.ToNode, edge.Type.String(), model.ClampConfidence(edge.Confidence), string(propsJSON))
	if err != nil {
		return "", fmt.Errorf("creating %s edge %s -> %s: %w", edge.Type, edge.FromNode, edge.ToNode, err)
	}
	return edge.ID, nil
}

const edgeColumns = `id, from_node, to_node, edge_type, confidence, properties, created_at, updated_at`

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]model.Edge, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var (
			e        model.Edge
			edgeType string
			props    []byte
		)
		if err := rows.Scan(&e.ID, &e.FromNode, &e.ToNode, &edgeType, &e.Confidence, &props, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Type = model.ParseRelationType(edgeType)
		if e.Properties, err = model.DecodeProperties(props); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func typeFilter(relType *model.RelationType) string {
	if relType == nil {
		return ""
	}
	return relType.String()
}

func (s *Store) GetEdgesFrom(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error) {
	return s.queryEdges(ctx, `
		SELECT `+edgeColumns+` FROM edges
		WHERE from_node = $1 AND ($2 = '' OR edge_type = $2)
		ORDER BY created_at, id
	`, nodeID, typeFilter(relType))
}

func (s *Store) GetEdgesTo(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error) {
	return s.queryEdges(ctx, `
		SELECT `+edgeColumns+` FROM edges
		WHERE to_node = $1 AND ($2 = '' OR edge_type = $2)
		ORDER BY created_at, id
	`, nodeID, typeFilter(relType))
}

func (s *Store) ListEdges(ctx context.Context) ([]model.Edge, error) {
	return s.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges ORDER BY created_at, id`)
}

func (s *Store) NodesConnectedViaType(ctx context.Context, nodeID string, linkingType model.NodeType) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT n.id FROM edges e
		JOIN nodes n ON n.id = e.to_node
		WHERE e.from_node = $1 AND n.node_type = $2
		ORDER BY n.id
	`, nodeID, string(linkingType))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) SetEmbedding(ctx context.Context, nodeID string, vector []float32) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE nodes SET embedding = $1, updated_at = now() WHERE id = $2`,
		pgvector.NewVector(vector), nodeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, nodeID string) ([]float32, error) {
	var v *pgvector.Vector
	err := s.conn.QueryRow(ctx, `SELECT embedding FROM nodes WHERE id = $1`, nodeID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && v == nil) {
		return nil, fmt.Errorf("embedding for %s: %w", nodeID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return v.Slice(), nil
}

func (s *Store) TopKSimilar(ctx context.Context, embedding []float32, nodeType model.NodeType, k int) ([]model.Similarity, error) {
	if k <= 0 {
		k = math.MaxInt32
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS score FROM nodes
		WHERE embedding IS NOT NULL
			AND vector_dims(embedding) = $2
			AND ($3 = '' OR node_type = $3)
		ORDER BY embedding <=> $1, id
		LIMIT $4
	`, pgvector.NewVector(embedding), len(embedding), string(nodeType), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []model.Similarity
	for rows.Next() {
		var h model.Similarity
		if err := rows.Scan(&h.NodeID, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
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
	_, err := s.conn.Exec(ctx, `
		INSERT INTO papers (node_id, title, abstract, year, venue, doi, arxiv_id, citation_count, authors, keywords)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (node_id) DO UPDATE SET
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			year = EXCLUDED.year,
			venue = EXCLUDED.venue,
			doi = EXCLUDED.doi,
			arxiv_id = EXCLUDED.arxiv_id,
			citation_count = EXCLUDED.citation_count,
			authors = EXCLUDED.authors,
			keywords = EXCLUDED.keywords,
			updated_at = now()
	`, meta.NodeID, sanitize(meta.Title), sanitize(meta.Abstract), meta.Year, sanitize(meta.Venue),
		sanitize(meta.DOI), sanitize(meta.ArxivID), meta.CitationCount, authors, keywords)
	if err != nil {
		return fmt.Errorf("upserting paper metadata %s: %w", meta.NodeID, err)
	}
	return nil
}

func (s *Store) GetPaperMetadata(ctx context.Context, nodeID string) (*model.PaperMetadata, error) {
	var m model.PaperMetadata
	err := s.conn.QueryRow(ctx, `
		SELECT node_id, title, abstract, year, venue, doi, arxiv_id, citation_count, authors, keywords, created_at, updated_at
		FROM papers WHERE node_id = $1
	`, nodeID).Scan(&m.NodeID, &m.Title, &m.Abstract, &m.Year, &m.Venue, &m.DOI, &m.ArxivID,
		&m.CitationCount, &m.Authors, &m.Keywords, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("paper metadata %s: %w", nodeID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if len(m.Keywords) == 0 {
		m.Keywords = nil
	}
	if len(m.Authors) == 0 {
		m.Authors = nil
	}
	return &m, nil
}

func sanitize(s string) string {
	return strings.TrimSpace(normalize.SanitizeString(s))
}
