package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/papergraph/internal/logger"
)

type BoltDriver struct {
	Driver   neo4j.DriverWithContext
	Database string
}

func NewBoltDriver(ctx context.Context, uri, username, password, database string) (*BoltDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach %s: %w", uri, err)
	}

	logger.Info("[Store][neo4j] Connected", "uri", uri)
	return &BoltDriver{Driver: driver, Database: database}, nil
}

func (d *BoltDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	var opts []neo4j.ExecuteQueryConfigurationOption
	if d.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.Database))
	}
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *BoltDriver) BuildIndices(ctx context.Context) error {
	if _, err := d.ExecuteQuery(ctx, NodeKeyConstraintQuery, nil); err != nil {
		// Memgraph only understands the legacy constraint syntax.
		if _, fallbackErr := d.ExecuteQuery(ctx, NodeKeyConstraintLegacyQuery, nil); fallbackErr != nil {
			return fmt.Errorf("failed to create node key constraint: %w", err)
		}
	}

	for _, q := range IndexQueries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			logger.Warn("[Store][neo4j] Failed to create index", "query", q, "err", err)
		}
	}
	return nil
}
