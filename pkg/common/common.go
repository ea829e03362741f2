package common

import (
	"time"
)

// Node represents an entity in the knowledge graph. A node can stand for an
// organization, person, location, or any other concept extracted from a
// document. Label and Type together form the similarity key used during
// deduplication.
//
// Sources holds the identifiers of every document that contributed evidence
// for this node. It only grows, except when a document is explicitly removed
// from the graph.
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties"`
	Sources    []string          `json:"sources"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Edge represents a directed relationship between two nodes. Both endpoint
// ids must reference nodes that exist in the same store. Weight aggregates
// evidence strength; merging two duplicate edges sums their weights.
type Edge struct {
	ID           string            `json:"id"`
	SourceNodeID string            `json:"source_node_id"`
	TargetNodeID string            `json:"target_node_id"`
	Type         string            `json:"type"`
	Label        string            `json:"label"`
	Properties   map[string]string `json:"properties"`
	Sources      []string          `json:"sources"`
	Weight       float64           `json:"weight"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Path is an ordered walk through the graph. Edges[i] connects Nodes[i] to
// Nodes[i+1]. Paths are produced by queries and never persisted.
type Path struct {
	Nodes       []Node  `json:"nodes"`
	Edges       []Edge  `json:"edges"`
	Length      int     `json:"length"`
	TotalWeight float64 `json:"total_weight"`
}

// Subgraph is a bounded, connected extract of the graph around a central
// node. Node and edge sets are deduplicated by id. Depth records the hop
// bound used during extraction.
type Subgraph struct {
	Nodes         []Node `json:"nodes"`
	Edges         []Edge `json:"edges"`
	CentralNodeID string `json:"central_node_id"`
	Depth         int    `json:"depth"`
}

// NodeConstraint restricts which stored nodes a pattern variable may bind to.
// Zero-valued fields match anything. LabelContains is a case-insensitive
// substring match. Properties entries must match exactly.
type NodeConstraint struct {
	Type          string            `json:"type,omitempty"`
	LabelContains string            `json:"label_contains,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// EdgeConstraint restricts which stored edges a pattern variable may bind to.
// From and To name node variables of the same pattern.
type EdgeConstraint struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Type      string  `json:"type,omitempty"`
	MinWeight float64 `json:"min_weight,omitempty"`
}

// Pattern is a structural template matched against the stored graph.
// Node and edge constraints are keyed by template variable name.
type Pattern struct {
	Name  string                    `json:"name"`
	Nodes map[string]NodeConstraint `json:"nodes"`
	Edges map[string]EdgeConstraint `json:"edges"`
}

// PatternMatch binds the variables of a Pattern to concrete node and edge
// ids in the store.
type PatternMatch struct {
	Nodes map[string]string `json:"nodes"`
	Edges map[string]string `json:"edges"`
}

// Chunk is a contiguous segment of a document's text, produced by an
// external chunker and consumed by extraction.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Document is the unit of ingestion. Content and Chunks are supplied by
// external loaders; the engine never parses source formats itself. When
// Chunks is empty the extraction adapter splits Content on its own.
type Document struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	SourceType string            `json:"source_type"`
	Metadata   map[string]string `json:"metadata"`
	Chunks     []Chunk           `json:"chunks"`
}
