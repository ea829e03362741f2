// Package query offers label-oriented conveniences over a store.GraphStore:
// callers pass entity labels and the client resolves them to node ids before
// delegating to the store's traversal operations.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
)

// DefaultContextDepth is the neighborhood radius used by GetNodeContext
// when the caller does not specify one.
const DefaultContextDepth = 2

// QueryClient answers read queries against a graph store.
type QueryClient struct {
	store  store.GraphStore
	tracer Tracer
}

// NewQueryClientParams contains configuration options for creating a new QueryClient.
type NewQueryClientParams struct {
	Store  store.GraphStore
	Tracer Tracer
}

// NewQueryClient creates a query client over the given store.
func NewQueryClient(params NewQueryClientParams) *QueryClient {
	return &QueryClient{
		store:  params.Store,
		tracer: params.Tracer,
	}
}

// SearchNodes finds nodes whose label contains the query, optionally
// restricted to a node type. The empty query matches every node of the type.
func (q *QueryClient) SearchNodes(
	ctx context.Context,
	queryText string,
	nodeType string,
) ([]common.Node, error) {
	start := time.Now()
	nodes, err := q.store.FindNodes(ctx, queryText, nodeType)
	recordOperation(q.tracer, "search_nodes", time.Since(start).Milliseconds(), err)
	if err != nil {
		return nil, fmt.Errorf("search nodes %q: %w", queryText, err)
	}
	return nodes, nil
}

// FindConnections returns the simple paths between the nodes labeled
// sourceLabel and targetLabel. Labels resolve to the best-matching node;
// when several nodes share a label the first match wins.
func (q *QueryClient) FindConnections(
	ctx context.Context,
	sourceLabel string,
	targetLabel string,
	opts store.PathOptions,
) ([]common.Path, error) {
	source, err := q.resolveLabel(ctx, sourceLabel)
	if err != nil {
		return nil, err
	}
	target, err := q.resolveLabel(ctx, targetLabel)
	if err != nil {
		return nil, err
	}
	recordResolvedNodeIDs(q.tracer, source.ID, target.ID)

	start := time.Now()
	paths, err := q.store.FindPaths(ctx, source.ID, target.ID, opts)
	recordOperation(q.tracer, "find_connections", time.Since(start).Milliseconds(), err)
	if err != nil {
		return nil, fmt.Errorf("find connections %q -> %q: %w", sourceLabel, targetLabel, err)
	}
	return paths, nil
}

// GetNodeContext returns the neighborhood of the node labeled nodeLabel up
// to the given depth. A non-positive depth falls back to DefaultContextDepth.
func (q *QueryClient) GetNodeContext(
	ctx context.Context,
	nodeLabel string,
	depth int,
) (common.Subgraph, error) {
	if depth <= 0 {
		depth = DefaultContextDepth
	}
	node, err := q.resolveLabel(ctx, nodeLabel)
	if err != nil {
		return common.Subgraph{}, err
	}
	recordResolvedNodeIDs(q.tracer, node.ID)

	start := time.Now()
	sub, err := q.store.ExtractSubgraph(ctx, node.ID, depth, store.SubgraphOptions{})
	recordOperation(q.tracer, "get_node_context", time.Since(start).Milliseconds(), err)
	if err != nil {
		return common.Subgraph{}, fmt.Errorf("context for %q: %w", nodeLabel, err)
	}
	return sub, nil
}

// FindPatterns matches a structural pattern against the graph, with
// optional parameters pinning pattern variables to concrete node ids.
func (q *QueryClient) FindPatterns(
	ctx context.Context,
	pattern common.Pattern,
	parameters map[string]string,
) ([]common.PatternMatch, error) {
	start := time.Now()
	matches, err := q.store.FindPatterns(ctx, pattern, parameters)
	recordOperation(q.tracer, "find_patterns", time.Since(start).Milliseconds(), err)
	if err != nil {
		return nil, fmt.Errorf("find patterns %q: %w", pattern.Name, err)
	}
	return matches, nil
}

// resolveLabel maps an entity label to a node. Exact matches (ignoring
// case) are preferred over substring matches; among equals the node with
// the smallest id wins, so resolution is deterministic.
func (q *QueryClient) resolveLabel(ctx context.Context, label string) (common.Node, error) {
	matches, err := q.store.FindNodes(ctx, label, "")
	if err != nil {
		return common.Node{}, fmt.Errorf("resolve label %q: %w", label, err)
	}
	if len(matches) == 0 {
		return common.Node{}, store.NotFoundf("no node labeled %q", label)
	}

	best := matches[0]
	bestExact := strings.EqualFold(best.Label, label)
	for _, m := range matches[1:] {
		exact := strings.EqualFold(m.Label, label)
		switch {
		case exact && !bestExact:
			best, bestExact = m, true
		case exact == bestExact && m.ID < best.ID:
			best = m
		}
	}
	return best, nil
}
