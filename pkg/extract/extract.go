// Package extract defines the contract between document ingestion and the
// components that pull entities and relationships out of raw content.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/notegraph/backend/pkg/common"
)

// ErrInvalidCandidate marks extraction output that cannot be turned into
// graph elements, such as nodes without labels or edges whose endpoints
// are unknown.
var ErrInvalidCandidate = errors.New("invalid extraction candidate")

// CandidateNode is an entity proposed by an extractor. Candidates carry no
// identity; the ingestion pipeline resolves them against the store.
type CandidateNode struct {
	Label      string            `json:"label"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// CandidateEdge is a relationship proposed by an extractor. Endpoints are
// referenced by entity label, not by id, since candidates have none yet.
type CandidateEdge struct {
	SourceLabel string            `json:"source_label"`
	TargetLabel string            `json:"target_label"`
	Type        string            `json:"type"`
	Label       string            `json:"label,omitempty"`
	Weight      float64           `json:"weight,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Candidates is the full proposal an extractor makes for one document.
type Candidates struct {
	Nodes []CandidateNode
	Edges []CandidateEdge
}

// Extractor turns a document into graph candidates. Implementations must be
// safe for concurrent use; the pipeline extracts multiple documents at once.
type Extractor interface {
	Extract(ctx context.Context, doc common.Document) (Candidates, error)
}

// ValidateNode checks that a candidate node can become a graph node.
func ValidateNode(n CandidateNode) error {
	if strings.TrimSpace(n.Label) == "" {
		return fmt.Errorf("%w: node has an empty label", ErrInvalidCandidate)
	}
	return nil
}

// ValidateEdge checks that a candidate edge references usable endpoints.
// Whether those endpoints actually resolve is the pipeline's concern.
func ValidateEdge(e CandidateEdge) error {
	switch {
	case strings.TrimSpace(e.SourceLabel) == "":
		return fmt.Errorf("%w: edge has an empty source label", ErrInvalidCandidate)
	case strings.TrimSpace(e.TargetLabel) == "":
		return fmt.Errorf("%w: edge has an empty target label", ErrInvalidCandidate)
	case strings.TrimSpace(e.Type) == "":
		return fmt.Errorf("%w: edge has an empty type", ErrInvalidCandidate)
	case e.Weight < 0:
		return fmt.Errorf("%w: edge has a negative weight", ErrInvalidCandidate)
	}
	return nil
}
