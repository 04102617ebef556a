package driver

const (
	NodeKeyConstraintQuery       = `CREATE CONSTRAINT node_type_key IF NOT EXISTS FOR (n:Node) REQUIRE n.type_key IS UNIQUE`
	NodeKeyConstraintLegacyQuery = `CREATE CONSTRAINT ON (n:Node) ASSERT n.type_key IS UNIQUE`
)

var IndexQueries = []string{
	`CREATE INDEX node_id IF NOT EXISTS FOR (n:Node) ON (n.id)`,
	`CREATE INDEX node_type IF NOT EXISTS FOR (n:Node) ON (n.node_type)`,
	`CREATE INDEX paper_metadata_node IF NOT EXISTS FOR (m:PaperMetadata) ON (m.node_id)`,
}

const (
	// type_key is "<node_type>:<lowercase normalized label>".
	UpsertNodeQuery = `
		MERGE (n:Node {type_key: $type_key})
		ON CREATE SET
			n.id = $id,
			n.node_type = $node_type,
			n.label = $label,
			n.properties = $properties,
			n.created_at = $now,
			n.updated_at = $now
		ON MATCH SET
			n.updated_at = $now
		RETURN n.id AS id
	`

	nodeReturn = `
		RETURN n.id AS id, n.node_type AS node_type, n.label AS label,
			n.properties AS properties, n.created_at AS created_at, n.updated_at AS updated_at
	`

	GetNodeQuery = `MATCH (n:Node {id: $id})` + nodeReturn

	FindNodeByKeyQuery = `MATCH (n:Node {type_key: $type_key})` + nodeReturn

	ListNodesQuery = `
		MATCH (n:Node)
		WHERE $node_type = '' OR n.node_type = $node_type
		WITH n ORDER BY n.created_at, n.id` + nodeReturn

	SaveEdgeQuery = `
		MATCH (source:Node {id: $from_id})
		MATCH (target:Node {id: $to_id})
		MERGE (source)-[e:RELATES_TO {id: $id}]->(target)
		ON CREATE SET
			e.type = $type,
			e.created_at = $now
		SET e.confidence = $confidence,
			e.properties = $properties,
			e.updated_at = $now
		RETURN e.id AS id
	`

	edgeReturn = `
		RETURN e.id AS id, source.id AS from_id, target.id AS to_id, e.type AS type,
			e.confidence AS confidence, e.properties AS properties,
			e.created_at AS created_at, e.updated_at AS updated_at
	`

	GetEdgesFromQuery = `
		MATCH (source:Node {id: $node_id})-[e:RELATES_TO]->(target:Node)
		WHERE $type = '' OR e.type = $type
		WITH source, e, target ORDER BY e.created_at, e.id` + edgeReturn

	GetEdgesToQuery = `
		MATCH (source:Node)-[e:RELATES_TO]->(target:Node {id: $node_id})
		WHERE $type = '' OR e.type = $type
		WITH source, e, target ORDER BY e.created_at, e.id` + edgeReturn

	ListEdgesQuery = `
		MATCH (source:Node)-[e:RELATES_TO]->(target:Node)
		WITH source, e, target ORDER BY e.created_at, e.id` + edgeReturn

	NodesConnectedViaTypeQuery = `
		MATCH (:Node {id: $node_id})-[:RELATES_TO]->(n:Node {node_type: $node_type})
		RETURN DISTINCT n.id AS id
		ORDER BY id
	`

	SetEmbeddingQuery = `
		MATCH (n:Node {id: $id})
		SET n.embedding = $embedding, n.updated_at = $now
		RETURN n.id AS id
	`

	GetEmbeddingQuery = `
		MATCH (n:Node {id: $id})
		RETURN n.embedding AS embedding
	`

	ListEmbeddingsQuery = `
		MATCH (n:Node)
		WHERE n.embedding IS NOT NULL
			AND size(n.embedding) = $dims
			AND ($node_type = '' OR n.node_type = $node_type)
		RETURN n.id AS id, n.embedding AS embedding
	`

	UpsertPaperMetadataQuery = `
		MATCH (n:Node {id: $node_id})
		MERGE (m:PaperMetadata {node_id: n.id})
		ON CREATE SET m.created_at = $now
		SET m.title = $title,
			m.abstract = $abstract,
			m.year = $year,
			m.venue = $venue,
			m.doi = $doi,
			m.arxiv_id = $arxiv_id,
			m.citation_count = $citation_count,
			m.authors = $authors,
			m.keywords = $keywords,
			m.updated_at = $now
		RETURN m.node_id AS node_id
	`

	GetPaperMetadataQuery = `
		MATCH (m:PaperMetadata {node_id: $node_id})
		RETURN m.node_id AS node_id, m.title AS title, m.abstract AS abstract, m.year AS year,
			m.venue AS venue, m.doi AS doi, m.arxiv_id AS arxiv_id, m.citation_count AS citation_count,
			m.authors AS authors, m.keywords AS keywords, m.created_at AS created_at, m.updated_at AS updated_at
	`
)
