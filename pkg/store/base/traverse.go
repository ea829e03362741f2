// Package base holds the backend-agnostic read-side graph algorithms shared
// by the store implementations: simple-path search, bounded breadth-first
// subgraph extraction, and structural pattern matching. Backends provide the
// GraphReader primitives and embed a Traverser.
package base

import (
	"context"
	"sort"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
)

// GraphReader is the minimal read surface a backend must provide for the
// shared traversal algorithms.
type GraphReader interface {
	GetNode(ctx context.Context, id string) (common.Node, error)
	ListNodes(ctx context.Context) ([]common.Node, error)
	ListEdges(ctx context.Context) ([]common.Edge, error)
	OutgoingEdges(ctx context.Context, nodeID string) ([]common.Edge, error)
	IncomingEdges(ctx context.Context, nodeID string) ([]common.Edge, error)
}

// Traverser implements path search, subgraph extraction, and pattern
// matching over any GraphReader.
type Traverser struct {
	Reader GraphReader
}

// FindPaths returns all simple paths from sourceID to targetID following
// edge direction, up to opts.MaxDepth hops (store.DefaultMaxPathDepth when
// unset). Results are ordered by ascending length, then ascending total
// weight, then by the id of the first edge for full determinism.
func (t *Traverser) FindPaths(ctx context.Context, sourceID, targetID string, opts store.PathOptions) ([]common.Path, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = store.DefaultMaxPathDepth
	}

	source, err := t.Reader.GetNode(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if _, err := t.Reader.GetNode(ctx, targetID); err != nil {
		return nil, err
	}

	typeFilter := newTypeSet(opts.EdgeTypes)

	var paths []common.Path
	visited := map[string]bool{sourceID: true}

	var walk func(current common.Node, nodes []common.Node, edges []common.Edge) error
	walk = func(current common.Node, nodes []common.Node, edges []common.Edge) error {
		if len(edges) >= maxDepth {
			return nil
		}
		out, err := t.Reader.OutgoingEdges(ctx, current.ID)
		if err != nil {
			return err
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

		for _, edge := range out {
			if !typeFilter.allows(edge.Type) {
				continue
			}
			next := edge.TargetNodeID
			if visited[next] {
				continue
			}
			node, err := t.Reader.GetNode(ctx, next)
			if err != nil {
				return err
			}

			pathNodes := append(append([]common.Node{}, nodes...), node)
			pathEdges := append(append([]common.Edge{}, edges...), edge)

			if next == targetID {
				paths = append(paths, buildPath(pathNodes, pathEdges))
				continue
			}

			visited[next] = true
			if err := walk(node, pathNodes, pathEdges); err != nil {
				return err
			}
			delete(visited, next)
		}
		return nil
	}

	if err := walk(source, []common.Node{source}, nil); err != nil {
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Length != paths[j].Length {
			return paths[i].Length < paths[j].Length
		}
		if paths[i].TotalWeight != paths[j].TotalWeight {
			return paths[i].TotalWeight < paths[j].TotalWeight
		}
		return firstEdgeID(paths[i]) < firstEdgeID(paths[j])
	})

	return paths, nil
}

// ExtractSubgraph expands breadth-first from the central node up to depth
// hops in both edge directions. Nodes and edges failing the type filters are
// not traversed; the central node is always included. Every returned node is
// reachable from the central node within depth hops using only returned
// edges.
func (t *Traverser) ExtractSubgraph(ctx context.Context, centralNodeID string, depth int, opts store.SubgraphOptions) (common.Subgraph, error) {
	central, err := t.Reader.GetNode(ctx, centralNodeID)
	if err != nil {
		return common.Subgraph{}, err
	}
	if depth < 0 {
		depth = 0
	}

	nodeFilter := newTypeSet(opts.NodeTypes)
	edgeFilter := newTypeSet(opts.EdgeTypes)

	nodes := map[string]common.Node{centralNodeID: central}
	edges := map[string]common.Edge{}
	dist := map[string]int{centralNodeID: 0}

	frontier := []string{centralNodeID}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			if dist[id] >= depth {
				continue
			}
			incident, err := t.incidentEdges(ctx, id)
			if err != nil {
				return common.Subgraph{}, err
			}
			for _, edge := range incident {
				if !edgeFilter.allows(edge.Type) {
					continue
				}
				neighborID := edge.TargetNodeID
				if neighborID == id {
					neighborID = edge.SourceNodeID
				}

				if _, ok := nodes[neighborID]; ok {
					edges[edge.ID] = edge
					continue
				}

				neighbor, err := t.Reader.GetNode(ctx, neighborID)
				if err != nil {
					return common.Subgraph{}, err
				}
				if !nodeFilter.allows(neighbor.Type) {
					continue
				}

				nodes[neighborID] = neighbor
				edges[edge.ID] = edge
				dist[neighborID] = dist[id] + 1
				next = append(next, neighborID)
			}
		}
		frontier = next
	}

	sub := common.Subgraph{
		CentralNodeID: centralNodeID,
		Depth:         depth,
	}
	for _, n := range nodes {
		sub.Nodes = append(sub.Nodes, n)
	}
	for _, e := range edges {
		sub.Edges = append(sub.Edges, e)
	}
	sort.Slice(sub.Nodes, func(i, j int) bool { return sub.Nodes[i].ID < sub.Nodes[j].ID })
	sort.Slice(sub.Edges, func(i, j int) bool { return sub.Edges[i].ID < sub.Edges[j].ID })

	return sub, nil
}

func (t *Traverser) incidentEdges(ctx context.Context, nodeID string) ([]common.Edge, error) {
	out, err := t.Reader.OutgoingEdges(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	in, err := t.Reader.IncomingEdges(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	incident := make([]common.Edge, 0, len(out)+len(in))
	seen := make(map[string]struct{}, len(out)+len(in))
	for _, e := range append(out, in...) {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		incident = append(incident, e)
	}
	sort.Slice(incident, func(i, j int) bool { return incident[i].ID < incident[j].ID })
	return incident, nil
}

func buildPath(nodes []common.Node, edges []common.Edge) common.Path {
	total := 0.0
	for _, e := range edges {
		total += e.Weight
	}
	return common.Path{
		Nodes:       nodes,
		Edges:       edges,
		Length:      len(edges),
		TotalWeight: total,
	}
}

func firstEdgeID(p common.Path) string {
	if len(p.Edges) == 0 {
		return ""
	}
	return p.Edges[0].ID
}

type typeSet map[string]struct{}

func newTypeSet(types []string) typeSet {
	if len(types) == 0 {
		return nil
	}
	s := make(typeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// allows reports whether typ passes the filter. A nil set allows everything.
func (s typeSet) allows(typ string) bool {
	if s == nil {
		return true
	}
	_, ok := s[typ]
	return ok
}
