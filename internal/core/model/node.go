package model

import (
	"strings"
	"time"
)

type NodeType string

const (
	NodePaper   NodeType = "paper"
	NodeConcept NodeType = "concept"
	NodeMethod  NodeType = "method"
	NodeDataset NodeType = "dataset"
	NodeMetric  NodeType = "metric"
	NodeAuthor  NodeType = "author"
	NodeTask    NodeType = "task"
)

// NodeTypes lists every node type in a stable order.
var NodeTypes = []NodeType{NodePaper, NodeConcept, NodeMethod, NodeDataset, NodeMetric, NodeAuthor, NodeTask}

// EntityTypes are the node types an extraction batch may carry.
var EntityTypes = []NodeType{NodeConcept, NodeMethod, NodeDataset, NodeMetric, NodeAuthor, NodeTask}

// LinkingTypes are the node types whose shared use marks two papers as related.
var LinkingTypes = []NodeType{NodeDataset, NodeMethod, NodeConcept}

// ParseNodeType accepts singular and plural forms ("dataset", "datasets").
func ParseNodeType(s string) (NodeType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range NodeTypes {
		if s == string(t) || s == string(t)+"s" {
			return t, true
		}
	}
	return "", false
}

func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Node struct {
	ID         string     `json:"id"`
	Type       NodeType   `json:"type"`
	Label      string     `json:"label"`
	Properties Properties `json:"properties,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PaperMetadata is the bibliographic record attached 1:1 to a paper node.
type PaperMetadata struct {
	NodeID        string    `json:"node_id"`
	Title         string    `json:"title"`
	Abstract      string    `json:"abstract,omitempty"`
	Year          int       `json:"year,omitempty"`
	Venue         string    `json:"venue,omitempty"`
	DOI           string    `json:"doi,omitempty"`
	ArxivID       string    `json:"arxiv_id,omitempty"`
	CitationCount int       `json:"citation_count,omitempty"`
	Authors       []string  `json:"authors,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Similarity is one hit of a vector similarity search.
type Similarity struct {
	NodeID string  `json:"node_id"`
	Score  float64 `json:"score"`
}
