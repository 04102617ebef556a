//go:build cgo

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/store"
	"github.com/agenthands/papergraph/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.GraphStore {
		return newTestStore(t)
	})
}

func TestNewCreatesParentDir(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "sub", "dir", "graph.db"))
	require.NoError(t, err)
	defer s.Close()
}

func TestReopenKeepsNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	id, created, err := s.UpsertNode(ctx, model.NodeDataset, "DatasetX", nil)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	again, created, err := s.UpsertNode(ctx, model.NodeDataset, "datasetx", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
}

func TestDeserializeFloat32(t *testing.T) {
	v := deserializeFloat32([]byte{0, 0, 128, 63, 0, 0, 0, 64})
	assert.Equal(t, []float32{1, 2}, v)
}
