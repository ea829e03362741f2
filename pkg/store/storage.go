package store

import (
	"context"

	"github.com/notegraph/backend/pkg/common"
)

// Direction selects which incident edges of a node to follow.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// DefaultMaxPathDepth bounds path searches when the caller does not provide
// a depth. It keeps FindPaths from exploding on dense graphs.
const DefaultMaxPathDepth = 6

// PathOptions narrows a path search. A MaxDepth of 0 means
// DefaultMaxPathDepth. An empty EdgeTypes slice allows every edge type.
type PathOptions struct {
	MaxDepth  int
	EdgeTypes []string
}

// SubgraphOptions narrows a subgraph extraction. Empty slices allow every
// node or edge type. The central node is always included regardless of the
// node type filter.
type SubgraphOptions struct {
	NodeTypes []string
	EdgeTypes []string
}

// GraphStore defines the interface for persisting and querying a knowledge
// graph. It is the only owner of node and edge state; callers keep ids and
// re-resolve through the store rather than holding live references, so that
// merges which delete an absorbed node cannot leave stale pointers behind.
//
// Deleting a node cascade-deletes its incident edges. Creating an edge whose
// endpoints do not exist fails with ErrUnknownEndpoint; integrity violations
// are rejected at write time, never stored.
type GraphStore interface {
	CreateNode(ctx context.Context, node common.Node) (common.Node, error)
	GetNode(ctx context.Context, id string) (common.Node, error)
	UpdateNode(ctx context.Context, node common.Node) (common.Node, error)
	DeleteNode(ctx context.Context, id string) error

	CreateEdge(ctx context.Context, edge common.Edge) (common.Edge, error)
	GetEdge(ctx context.Context, id string) (common.Edge, error)
	UpdateEdge(ctx context.Context, edge common.Edge) (common.Edge, error)
	DeleteEdge(ctx context.Context, id string) error

	// FindNodes returns nodes whose label contains labelPattern
	// (case-insensitive). An empty nodeType matches every type, an empty
	// labelPattern every label. The result order is unspecified.
	FindNodes(ctx context.Context, labelPattern string, nodeType string) ([]common.Node, error)

	// FindEdges returns the outgoing edges of sourceNodeID, optionally
	// restricted to edgeType.
	FindEdges(ctx context.Context, sourceNodeID string, edgeType string) ([]common.Edge, error)

	GetConnectedNodes(ctx context.Context, nodeID string, edgeType string, direction Direction) ([]common.Node, error)

	// FindPaths returns all simple paths from sourceID to targetID up to
	// the configured depth, ordered by ascending length then ascending
	// total weight.
	FindPaths(ctx context.Context, sourceID string, targetID string, opts PathOptions) ([]common.Path, error)

	// ExtractSubgraph expands breadth-first from the central node up to
	// depth hops, honoring the optional type filters.
	ExtractSubgraph(ctx context.Context, centralNodeID string, depth int, opts SubgraphOptions) (common.Subgraph, error)

	// FindPatterns matches the pattern template against the stored graph.
	// parameters may pin node variables to concrete node ids.
	FindPatterns(ctx context.Context, pattern common.Pattern, parameters map[string]string) ([]common.PatternMatch, error)

	ListNodes(ctx context.Context) ([]common.Node, error)
	ListEdges(ctx context.Context) ([]common.Edge, error)

	// Transact runs fn against a transactional view of the store. Writes
	// issued through tx become visible all at once when fn returns nil;
	// if fn returns an error none of them survive. Transact does not
	// isolate fn from concurrent writers, callers serialize conflicting
	// transactions themselves.
	Transact(ctx context.Context, fn func(tx GraphStore) error) error

	Close(ctx context.Context) error
}
