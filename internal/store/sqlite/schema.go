package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    node_type TEXT NOT NULL,
    label TEXT NOT NULL,
    label_key TEXT NOT NULL,
    properties JSON NOT NULL DEFAULT '{}',
    embedding BLOB,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    UNIQUE(node_type, label_key)
);

CREATE TABLE IF NOT EXISTS edges (
    id TEXT PRIMARY KEY,
    from_node TEXT NOT NULL REFERENCES nodes(id),
    to_node TEXT NOT NULL REFERENCES nodes(id),
    edge_type TEXT NOT NULL,
    confidence REAL NOT NULL,
    properties JSON NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_node, edge_type);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_node, edge_type);

CREATE TABLE IF NOT EXISTS papers (
    node_id TEXT PRIMARY KEY REFERENCES nodes(id),
    title TEXT NOT NULL,
    abstract TEXT,
    year INTEGER,
    venue TEXT,
    doi TEXT,
    arxiv_id TEXT,
    citation_count INTEGER DEFAULT 0,
    authors JSON,
    keywords JSON,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`
