package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/driver"
	"github.com/agenthands/papergraph/internal/store"
	"github.com/agenthands/papergraph/internal/store/storetest"
)

type executedQuery struct {
	Query  string
	Params map[string]interface{}
}

type MockDriver struct {
	Executed    []executedQuery
	ResultQueue []neo4j.EagerResult
	Err         error
	Indexed     bool
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executedQuery{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if len(m.ResultQueue) > 0 {
		res := m.ResultQueue[0]
		m.ResultQueue = m.ResultQueue[1:]
		return res, nil
	}
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	m.Indexed = true
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error { return nil }

func result(keys []string, rows ...[]interface{}) neo4j.EagerResult {
	res := neo4j.EagerResult{Keys: keys}
	for _, row := range rows {
		res.Records = append(res.Records, &neo4j.Record{Keys: keys, Values: row})
	}
	return res
}

func newMockStore(t *testing.T, d *MockDriver) *Store {
	s, err := New(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, d.Indexed)

	counter := 0
	s.NewID = func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
	s.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestUpsertNodeCreated(t *testing.T) {
	d := &MockDriver{ResultQueue: []neo4j.EagerResult{result([]string{"id"}, []interface{}{"id-1"})}}
	s := newMockStore(t, d)

	id, created, err := s.UpsertNode(context.Background(), model.NodeConcept, "3D Gaussian Splatting", model.Properties{
		"description": model.String("d\x00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.True(t, created)

	require.Len(t, d.Executed, 1)
	assert.Equal(t, driver.UpsertNodeQuery, d.Executed[0].Query)
	params := d.Executed[0].Params
	assert.Equal(t, "concept:3d gaussian splatting", params["type_key"])
	assert.Equal(t, "3D Gaussian Splatting", params["label"])
	assert.JSONEq(t, `{"description":"d"}`, params["properties"].(string))
}

func TestUpsertNodeExisting(t *testing.T) {
	d := &MockDriver{ResultQueue: []neo4j.EagerResult{result([]string{"id"}, []interface{}{"existing"})}}
	s := newMockStore(t, d)

	id, created, err := s.UpsertNode(context.Background(), model.NodeDataset, "datasetx", nil)
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
	assert.False(t, created)
}

func TestGetNodeParsesRecord(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &MockDriver{ResultQueue: []neo4j.EagerResult{
		result([]string{"id", "node_type", "label", "properties", "created_at", "updated_at"},
			[]interface{}{"n1", "metric", "PSNR", `{"units":"dB","values":[1,2]}`, created, created}),
	}}
	s := newMockStore(t, d)

	n, err := s.GetNode(context.Background(), "n1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, model.NodeMetric, n.Type)
	assert.Equal(t, "PSNR", n.Label)
	assert.Equal(t, "dB", n.Properties.String("units"))
	assert.Equal(t, "1, 2", n.Properties["values"].Text())
	assert.Equal(t, created, n.CreatedAt)
}

func TestGetNodeMissing(t *testing.T) {
	s := newMockStore(t, &MockDriver{})
	n, err := s.GetNode(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestCreateEdgeMissingEndpoint(t *testing.T) {
	d := &MockDriver{}
	s := newMockStore(t, d)

	_, err := s.CreateEdge(context.Background(), model.Edge{FromNode: "a", ToNode: "b", Type: model.ImprovesOn, Confidence: 3})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	params := d.Executed[0].Params
	assert.Equal(t, "IMPROVES_ON", params["type"])
	assert.Equal(t, 1.0, params["confidence"])
	assert.Equal(t, "id-1", params["id"])
}

func TestGetEdgesFromFilter(t *testing.T) {
	keys := []string{"id", "from_id", "to_id", "type", "confidence", "properties", "created_at", "updated_at"}
	d := &MockDriver{ResultQueue: []neo4j.EagerResult{
		result(keys, []interface{}{"e1", "p2", "p1", "IMPROVES_ON", 0.8, `{"rationale":"faster"}`, time.Now(), time.Now()}),
	}}
	s := newMockStore(t, d)

	rel := model.ImprovesOn
	edges, err := s.GetEdgesFrom(context.Background(), "p2", &rel)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, model.ImprovesOn, edges[0].Type)
	assert.Equal(t, "p1", edges[0].ToNode)
	assert.Equal(t, 0.8, edges[0].Confidence)
	assert.Equal(t, "faster", edges[0].Properties.String("rationale"))
	assert.Equal(t, "IMPROVES_ON", d.Executed[0].Params["type"])
}

func TestTopKSimilarRanksClientSide(t *testing.T) {
	d := &MockDriver{ResultQueue: []neo4j.EagerResult{
		result([]string{"id", "embedding"},
			[]interface{}{"far", []interface{}{0.0, 1.0}},
			[]interface{}{"near", []interface{}{1.0, 0.0}},
			[]interface{}{"mid", []interface{}{1.0, 1.0}},
		),
	}}
	s := newMockStore(t, d)

	hits, err := s.TopKSimilar(context.Background(), []float32{1, 0}, model.NodePaper, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].NodeID)
	assert.Equal(t, "mid", hits[1].NodeID)
	assert.Equal(t, 2, d.Executed[0].Params["dims"])
}

func TestPaperMetadataRoundTrip(t *testing.T) {
	d := &MockDriver{ResultQueue: []neo4j.EagerResult{
		result([]string{"node_id"}, []interface{}{"p1"}),
		result([]string{"node_id", "title", "abstract", "year", "venue", "doi", "arxiv_id", "citation_count", "authors", "keywords", "created_at", "updated_at"},
			[]interface{}{"p1", "T", "A", int64(2023), "V", "doi", "2301.1", int64(4), []interface{}{"Ada"}, []interface{}{}, time.Now(), time.Now()}),
	}}
	s := newMockStore(t, d)
	ctx := context.Background()

	require.NoError(t, s.UpsertPaperMetadata(ctx, model.PaperMetadata{NodeID: "p1", Title: "T", Year: 2023}))
	assert.Equal(t, int64(2023), d.Executed[0].Params["year"])

	meta, err := s.GetPaperMetadata(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2023, meta.Year)
	assert.Equal(t, 4, meta.CitationCount)
	assert.Equal(t, []string{"Ada"}, meta.Authors)
	assert.Nil(t, meta.Keywords)
}

// Runs against a live server, e.g. PAPERGRAPH_TEST_NEO4J_URI=bolt://localhost:7687.
// The database is wiped before every sub-test.
func TestStoreContract(t *testing.T) {
	uri := os.Getenv("PAPERGRAPH_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("PAPERGRAPH_TEST_NEO4J_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.GraphStore {
		ctx := context.Background()
		d, err := driver.NewBoltDriver(ctx, uri, os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"), "")
		require.NoError(t, err)
		_, err = d.ExecuteQuery(ctx, `MATCH (n) DETACH DELETE n`, nil)
		require.NoError(t, err)
		s, err := New(ctx, d)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
