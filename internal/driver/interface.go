// Package driver wraps a Bolt connection (Neo4j or Memgraph) behind a small
// interface so graph queries can be exercised against a mock in tests.
package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	// BuildIndices creates the uniqueness constraint backing atomic node upserts.
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
