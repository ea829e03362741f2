// Package memory provides the in-memory GraphStore backend. Nodes and edges
// live in id-keyed tables with adjacency indexes; every read hands out a
// copy so callers can never alias store-owned state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
	"github.com/notegraph/backend/pkg/store/base"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Store is an in-memory GraphStore. It is safe for concurrent use; reads
// proceed in parallel, writes are serialized by a single RW mutex.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*common.Node
	edges map[string]*common.Edge
	out   map[string]map[string]struct{}
	in    map[string]map[string]struct{}

	trav base.Traverser
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{
		nodes: make(map[string]*common.Node),
		edges: make(map[string]*common.Edge),
		out:   make(map[string]map[string]struct{}),
		in:    make(map[string]map[string]struct{}),
	}
	s.trav = base.Traverser{Reader: &reader{s: s}}
	return s
}

var _ store.GraphStore = (*Store)(nil)

func (s *Store) CreateNode(ctx context.Context, node common.Node) (common.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return common.Node{}, fmt.Errorf("failed to generate node id: %w", err)
		}
		node.ID = id
	}
	if _, exists := s.nodes[node.ID]; exists {
		return common.Node{}, fmt.Errorf("node %s already exists: %w", node.ID, store.ErrIntegrity)
	}
	if strings.TrimSpace(node.Label) == "" {
		return common.Node{}, fmt.Errorf("node label is empty: %w", store.ErrIntegrity)
	}

	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = node.CreatedAt
	}

	stored := cloneNode(node)
	s.nodes[node.ID] = &stored
	s.out[node.ID] = make(map[string]struct{})
	s.in[node.ID] = make(map[string]struct{})

	return cloneNode(stored), nil
}

func (s *Store) GetNode(ctx context.Context, id string) (common.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getNodeLocked(id)
}

func (s *Store) getNodeLocked(id string) (common.Node, error) {
	node, ok := s.nodes[id]
	if !ok {
		return common.Node{}, store.NotFoundf("node %s", id)
	}
	return cloneNode(*node), nil
}

func (s *Store) UpdateNode(ctx context.Context, node common.Node) (common.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[node.ID]
	if !ok {
		return common.Node{}, store.NotFoundf("node %s", node.ID)
	}
	if strings.TrimSpace(node.Label) == "" {
		return common.Node{}, fmt.Errorf("node label is empty: %w", store.ErrIntegrity)
	}

	// Identity fields are owned by the store.
	node.CreatedAt = existing.CreatedAt
	node.UpdatedAt = time.Now().UTC()

	stored := cloneNode(node)
	s.nodes[node.ID] = &stored
	return cloneNode(stored), nil
}

// DeleteNode removes the node and cascade-deletes every incident edge, so
// that no dangling edge can remain.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return store.NotFoundf("node %s", id)
	}

	for edgeID := range s.out[id] {
		s.removeEdgeLocked(edgeID)
	}
	for edgeID := range s.in[id] {
		s.removeEdgeLocked(edgeID)
	}

	delete(s.nodes, id)
	delete(s.out, id)
	delete(s.in, id)
	return nil
}

// CreateEdge inserts a directed edge. Both endpoints must exist and must be
// distinct; a zero weight defaults to 1.0, negative weights are rejected.
func (s *Store) CreateEdge(ctx context.Context, edge common.Edge) (common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if edge.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return common.Edge{}, fmt.Errorf("failed to generate edge id: %w", err)
		}
		edge.ID = id
	}
	if _, exists := s.edges[edge.ID]; exists {
		return common.Edge{}, fmt.Errorf("edge %s already exists: %w", edge.ID, store.ErrIntegrity)
	}
	if err := s.validateEdgeLocked(edge); err != nil {
		return common.Edge{}, err
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}

	stored := cloneEdge(edge)
	s.edges[edge.ID] = &stored
	s.out[edge.SourceNodeID][edge.ID] = struct{}{}
	s.in[edge.TargetNodeID][edge.ID] = struct{}{}

	return cloneEdge(stored), nil
}

func (s *Store) GetEdge(ctx context.Context, id string) (common.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[id]
	if !ok {
		return common.Edge{}, store.NotFoundf("edge %s", id)
	}
	return cloneEdge(*edge), nil
}

func (s *Store) UpdateEdge(ctx context.Context, edge common.Edge) (common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.edges[edge.ID]
	if !ok {
		return common.Edge{}, store.NotFoundf("edge %s", edge.ID)
	}
	if err := s.validateEdgeLocked(edge); err != nil {
		return common.Edge{}, err
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}
	edge.CreatedAt = existing.CreatedAt

	if existing.SourceNodeID != edge.SourceNodeID {
		delete(s.out[existing.SourceNodeID], edge.ID)
		s.out[edge.SourceNodeID][edge.ID] = struct{}{}
	}
	if existing.TargetNodeID != edge.TargetNodeID {
		delete(s.in[existing.TargetNodeID], edge.ID)
		s.in[edge.TargetNodeID][edge.ID] = struct{}{}
	}

	stored := cloneEdge(edge)
	s.edges[edge.ID] = &stored
	return cloneEdge(stored), nil
}

func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[id]; !ok {
		return store.NotFoundf("edge %s", id)
	}
	s.removeEdgeLocked(id)
	return nil
}

func (s *Store) FindNodes(ctx context.Context, labelPattern string, nodeType string) ([]common.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern := strings.ToLower(labelPattern)
	var result []common.Node
	for _, node := range s.nodes {
		if nodeType != "" && node.Type != nodeType {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(node.Label), pattern) {
			continue
		}
		result = append(result, cloneNode(*node))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) FindEdges(ctx context.Context, sourceNodeID string, edgeType string) ([]common.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[sourceNodeID]; !ok {
		return nil, store.NotFoundf("node %s", sourceNodeID)
	}

	var result []common.Edge
	for edgeID := range s.out[sourceNodeID] {
		edge := s.edges[edgeID]
		if edgeType != "" && edge.Type != edgeType {
			continue
		}
		result = append(result, cloneEdge(*edge))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) GetConnectedNodes(ctx context.Context, nodeID string, edgeType string, direction store.Direction) ([]common.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return nil, store.NotFoundf("node %s", nodeID)
	}
	if direction == "" {
		direction = store.DirectionBoth
	}

	neighborIDs := make(map[string]struct{})
	if direction == store.DirectionOutgoing || direction == store.DirectionBoth {
		for edgeID := range s.out[nodeID] {
			edge := s.edges[edgeID]
			if edgeType != "" && edge.Type != edgeType {
				continue
			}
			neighborIDs[edge.TargetNodeID] = struct{}{}
		}
	}
	if direction == store.DirectionIncoming || direction == store.DirectionBoth {
		for edgeID := range s.in[nodeID] {
			edge := s.edges[edgeID]
			if edgeType != "" && edge.Type != edgeType {
				continue
			}
			neighborIDs[edge.SourceNodeID] = struct{}{}
		}
	}

	result := make([]common.Node, 0, len(neighborIDs))
	for id := range neighborIDs {
		result = append(result, cloneNode(*s.nodes[id]))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) FindPaths(ctx context.Context, sourceID string, targetID string, opts store.PathOptions) ([]common.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trav.FindPaths(ctx, sourceID, targetID, opts)
}

func (s *Store) ExtractSubgraph(ctx context.Context, centralNodeID string, depth int, opts store.SubgraphOptions) (common.Subgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trav.ExtractSubgraph(ctx, centralNodeID, depth, opts)
}

func (s *Store) FindPatterns(ctx context.Context, pattern common.Pattern, parameters map[string]string) ([]common.PatternMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trav.FindPatterns(ctx, pattern, parameters)
}

func (s *Store) ListNodes(ctx context.Context) ([]common.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]common.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		result = append(result, cloneNode(*node))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListEdges(ctx context.Context) ([]common.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]common.Edge, 0, len(s.edges))
	for _, edge := range s.edges {
		result = append(result, cloneEdge(*edge))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Transact snapshots the store, runs fn against it, and rolls the
// snapshot back when fn fails. Writes made by fn go straight to the live
// tables, so concurrent writers are not isolated from a transaction in
// flight.
func (s *Store) Transact(ctx context.Context, fn func(tx store.GraphStore) error) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restoreLocked(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	nodes map[string]*common.Node
	edges map[string]*common.Edge
	out   map[string]map[string]struct{}
	in    map[string]map[string]struct{}
}

func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		nodes: make(map[string]*common.Node, len(s.nodes)),
		edges: make(map[string]*common.Edge, len(s.edges)),
		out:   make(map[string]map[string]struct{}, len(s.out)),
		in:    make(map[string]map[string]struct{}, len(s.in)),
	}
	for id, node := range s.nodes {
		n := cloneNode(*node)
		snap.nodes[id] = &n
	}
	for id, edge := range s.edges {
		e := cloneEdge(*edge)
		snap.edges[id] = &e
	}
	for id, set := range s.out {
		snap.out[id] = cloneSet(set)
	}
	for id, set := range s.in {
		snap.in[id] = cloneSet(set)
	}
	return snap
}

func (s *Store) restoreLocked(snap snapshot) {
	s.nodes = snap.nodes
	s.edges = snap.edges
	s.out = snap.out
	s.in = snap.in
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) validateEdgeLocked(edge common.Edge) error {
	if _, ok := s.nodes[edge.SourceNodeID]; !ok {
		return fmt.Errorf("edge source node %s: %w", edge.SourceNodeID, store.ErrUnknownEndpoint)
	}
	if _, ok := s.nodes[edge.TargetNodeID]; !ok {
		return fmt.Errorf("edge target node %s: %w", edge.TargetNodeID, store.ErrUnknownEndpoint)
	}
	if edge.SourceNodeID == edge.TargetNodeID {
		return fmt.Errorf("self-referential edge on node %s: %w", edge.SourceNodeID, store.ErrIntegrity)
	}
	if edge.Weight < 0 {
		return fmt.Errorf("negative edge weight %f: %w", edge.Weight, store.ErrIntegrity)
	}
	return nil
}

func (s *Store) removeEdgeLocked(id string) {
	edge, ok := s.edges[id]
	if !ok {
		return
	}
	delete(s.out[edge.SourceNodeID], id)
	delete(s.in[edge.TargetNodeID], id)
	delete(s.edges, id)
}

// reader exposes the tables to the shared traverser without re-locking; the
// public traversal methods hold the read lock for the whole operation.
type reader struct {
	s *Store
}

func (r *reader) GetNode(ctx context.Context, id string) (common.Node, error) {
	return r.s.getNodeLocked(id)
}

func (r *reader) ListNodes(ctx context.Context) ([]common.Node, error) {
	result := make([]common.Node, 0, len(r.s.nodes))
	for _, node := range r.s.nodes {
		result = append(result, cloneNode(*node))
	}
	return result, nil
}

func (r *reader) ListEdges(ctx context.Context) ([]common.Edge, error) {
	result := make([]common.Edge, 0, len(r.s.edges))
	for _, edge := range r.s.edges {
		result = append(result, cloneEdge(*edge))
	}
	return result, nil
}

func (r *reader) OutgoingEdges(ctx context.Context, nodeID string) ([]common.Edge, error) {
	result := make([]common.Edge, 0, len(r.s.out[nodeID]))
	for edgeID := range r.s.out[nodeID] {
		result = append(result, cloneEdge(*r.s.edges[edgeID]))
	}
	return result, nil
}

func (r *reader) IncomingEdges(ctx context.Context, nodeID string) ([]common.Edge, error) {
	result := make([]common.Edge, 0, len(r.s.in[nodeID]))
	for edgeID := range r.s.in[nodeID] {
		result = append(result, cloneEdge(*r.s.edges[edgeID]))
	}
	return result, nil
}

func cloneNode(n common.Node) common.Node {
	n.Properties = cloneMap(n.Properties)
	n.Sources = append([]string(nil), n.Sources...)
	return n
}

func cloneEdge(e common.Edge) common.Edge {
	e.Properties = cloneMap(e.Properties)
	e.Sources = append([]string(nil), e.Sources...)
	return e
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
