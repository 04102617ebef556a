package model

import (
	"math"
	"time"
)

type Edge struct {
	ID         string       `json:"id"`
	FromNode   string       `json:"from_node"`
	ToNode     string       `json:"to_node"`
	Type       RelationType `json:"type"`
	Confidence float64      `json:"confidence"`
	Properties Properties   `json:"properties,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ClampConfidence limits c to [0, 1].
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
