// Package sqlite is an embedded GraphStore on SQLite. Vector similarity uses
// the sqlite-vec scalar functions over float32 blobs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/core/normalize"
	"github.com/agenthands/papergraph/internal/store"
)

func init() {
	sqlite_vec.Auto()
}

type Store struct {
	db    *sql.DB
	NewID func() string
	Now   func() time.Time
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{
		db:    db,
		NewID: func() string { return uuid.New().String() },
		Now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
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

	newID := s.NewID()
	now := s.Now()
	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO nodes (id, node_type, label, label_key, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_type, label_key) DO UPDATE SET
			updated_at = excluded.updated_at
		RETURNING id
	`, newID, string(nodeType), label, key, string(propsJSON), now, now).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("upserting %s node %q: %w", nodeType, label, err)
	}
	return id, id == newID, nil
}

const nodeColumns = `id, node_type, label, properties, created_at, updated_at`

func scanNode(row interface{ Scan(...any) error }) (*model.Node, error) {
	var (
		n        model.Node
		nodeType string
		props    string
	)
	if err := row.Scan(&n.ID, &nodeType, &n.Label, &props, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Type = model.NodeType(nodeType)
	p, err := model.DecodeProperties([]byte(props))
	if err != nil {
		return nil, err
	}
	n.Properties = p
	return &n, nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*model.Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (s *Store) FindNodeByLabel(ctx context.Context, label string, nodeType model.NodeType) (*model.Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE node_type = ? AND label_key = ?`,
		string(nodeType), normalize.Key(label)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (s *Store) ListNodesByType(ctx context.Context, nodeType model.NodeType) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE ? = '' OR node_type = ?
		ORDER BY created_at, id
	`, string(nodeType), string(nodeType))
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
	now := s.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edges (id, from_node, to_node, edge_type, confidence, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			confidence = excluded.confidence,
			properties = excluded.properties,
			updated_at = excluded.updated_at
	`, edge.ID, edge.FromNode, edge.ToNode, edge.Type.String(),
		model.ClampConfidence(edge.Confidence), string(propsJSON), now, now)
	if err != nil {
		return "", fmt.Errorf("creating %s edge %s -> %s: %w", edge.Type, edge.FromNode, edge.ToNode, err)
	}
	return edge.ID, nil
}

const edgeColumns = `id, from_node, to_node, edge_type, confidence, properties, created_at, updated_at`

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var (
			e        model.Edge
			edgeType string
			props    string
		)
		if err := rows.Scan(&e.ID, &e.FromNode, &e.ToNode, &edgeType, &e.Confidence, &props, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Type = model.ParseRelationType(edgeType)
		if e.Properties, err = model.DecodeProperties([]byte(props)); err != nil {
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
	t := typeFilter(relType)
	return s.queryEdges(ctx, `
		SELECT `+edgeColumns+` FROM edges
		WHERE from_node = ? AND (? = '' OR edge_type = ?)
		ORDER BY created_at, id
	`, nodeID, t, t)
}

func (s *Store) GetEdgesTo(ctx context.Context, nodeID string, relType *model.RelationType) ([]model.Edge, error) {
	t := typeFilter(relType)
	return s.queryEdges(ctx, `
		SELECT `+edgeColumns+` FROM edges
		WHERE to_node = ? AND (? = '' OR edge_type = ?)
		ORDER BY created_at, id
	`, nodeID, t, t)
}

func (s *Store) ListEdges(ctx context.Context) ([]model.Edge, error) {
	return s.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges ORDER BY created_at, id`)
}

func (s *Store) NodesConnectedViaType(ctx context.Context, nodeID string, linkingType model.NodeType) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT n.id FROM edges e
		JOIN nodes n ON n.id = e.to_node
		WHERE e.from_node = ? AND n.node_type = ?
		ORDER BY n.id
	`, nodeID, string(linkingType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) SetEmbedding(ctx context.Context, nodeID string, vector []float32) error {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET embedding = ?, updated_at = ? WHERE id = ?`, blob, s.Now(), nodeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node %s: %w", nodeID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, nodeID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM nodes WHERE id = ?`, nodeID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && blob == nil) {
		return nil, fmt.Errorf("embedding for %s: %w", nodeID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return deserializeFloat32(blob), nil
}

func (s *Store) TopKSimilar(ctx context.Context, embedding []float32, nodeType model.NodeType, k int) ([]model.Similarity, error) {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}
	if k <= 0 {
		k = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, 1.0 - vec_distance_cosine(embedding, ?) AS score FROM nodes
		WHERE embedding IS NOT NULL
			AND vec_length(embedding) = ?
			AND (? = '' OR node_type = ?)
		ORDER BY score DESC, id
		LIMIT ?
	`, blob, len(embedding), string(nodeType), string(nodeType), k)
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
	authors, err := json.Marshal(meta.Authors)
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(meta.Keywords)
	if err != nil {
		return err
	}
	now := s.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO papers (node_id, title, abstract, year, venue, doi, arxiv_id, citation_count, authors, keywords, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			title = excluded.title,
			abstract = excluded.abstract,
			year = excluded.year,
			venue = excluded.venue,
			doi = excluded.doi,
			arxiv_id = excluded.arxiv_id,
			citation_count = excluded.citation_count,
			authors = excluded.authors,
			keywords = excluded.keywords,
			updated_at = excluded.updated_at
	`, meta.NodeID, sanitize(meta.Title), sanitize(meta.Abstract), meta.Year, sanitize(meta.Venue),
		sanitize(meta.DOI), sanitize(meta.ArxivID), meta.CitationCount, string(authors), string(keywords), now, now)
	if err != nil {
		return fmt.Errorf("upserting paper metadata %s: %w", meta.NodeID, err)
	}
	return nil
}

func (s *Store) GetPaperMetadata(ctx context.Context, nodeID string) (*model.PaperMetadata, error) {
	var (
		m                           model.PaperMetadata
		abstract, venue, doi, arxiv sql.NullString
		year, citations             sql.NullInt64
		authors, keywords           sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT node_id, title, abstract, year, venue, doi, arxiv_id, citation_count, authors, keywords, created_at, updated_at
		FROM papers WHERE node_id = ?
	`, nodeID).Scan(&m.NodeID, &m.Title, &abstract, &year, &venue, &doi, &arxiv, &citations, &authors, &keywords, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper metadata %s: %w", nodeID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.Abstract, m.Venue, m.DOI, m.ArxivID = abstract.String, venue.String, doi.String, arxiv.String
	m.Year, m.CitationCount = int(year.Int64), int(citations.Int64)
	if authors.Valid {
		_ = json.Unmarshal([]byte(authors.String), &m.Authors)
	}
	if keywords.Valid {
		_ = json.Unmarshal([]byte(keywords.String), &m.Keywords)
	}
	return &m, nil
}

func sanitize(s string) string {
	return strings.TrimSpace(normalize.SanitizeString(s))
}

func deserializeFloat32(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
