// Package file provides a GraphStore backend that keeps the whole graph in
// memory and persists it as a JSON snapshot after every mutation. The
// snapshot is written atomically (temp file + rename) so a crash never
// leaves a half-written graph behind.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
	"github.com/notegraph/backend/pkg/store/memory"
)

type snapshot struct {
	Nodes []common.Node `json:"nodes"`
	Edges []common.Edge `json:"edges"`
}

// Store is a file-backed GraphStore. All reads and traversals are served
// from the in-memory tables; the file is only touched on mutation. A
// single mutex serializes mutate+flush pairs so a snapshot on disk always
// reflects every mutation acknowledged before it.
type Store struct {
	mu   sync.Mutex
	mem  *memory.Store
	path string
}

var _ store.GraphStore = (*Store)(nil)

// Open loads the graph snapshot at path, creating an empty store when the
// file does not exist yet.
func Open(ctx context.Context, path string) (*Store, error) {
	s := &Store{
		mem:  memory.New(),
		path: path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read graph file %s: %w", path, store.ErrUnavailable)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse graph file %s: %v: %w", path, err, store.ErrUnavailable)
	}

	for _, node := range snap.Nodes {
		if _, err := s.mem.CreateNode(ctx, node); err != nil {
			return nil, fmt.Errorf("failed to restore node %s: %w", node.ID, err)
		}
	}
	for _, edge := range snap.Edges {
		if _, err := s.mem.CreateEdge(ctx, edge); err != nil {
			return nil, fmt.Errorf("failed to restore edge %s: %w", edge.ID, err)
		}
	}

	return s, nil
}

func (s *Store) flush(ctx context.Context) error {
	nodes, err := s.mem.ListNodes(ctx)
	if err != nil {
		return err
	}
	edges, err := s.mem.ListEdges(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot{Nodes: nodes, Edges: edges}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".graph-*.json")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", store.ErrUnavailable)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", store.ErrUnavailable)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", store.ErrUnavailable)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace graph file: %w", store.ErrUnavailable)
	}
	return nil
}

func (s *Store) CreateNode(ctx context.Context, node common.Node) (common.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.mem.CreateNode(ctx, node)
	if err != nil {
		return common.Node{}, err
	}
	if err := s.flush(ctx); err != nil {
		return common.Node{}, err
	}
	return created, nil
}

func (s *Store) GetNode(ctx context.Context, id string) (common.Node, error) {
	return s.mem.GetNode(ctx, id)
}

func (s *Store) UpdateNode(ctx context.Context, node common.Node) (common.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.mem.UpdateNode(ctx, node)
	if err != nil {
		return common.Node{}, err
	}
	if err := s.flush(ctx); err != nil {
		return common.Node{}, err
	}
	return updated, nil
}

func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.DeleteNode(ctx, id); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *Store) CreateEdge(ctx context.Context, edge common.Edge) (common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.mem.CreateEdge(ctx, edge)
	if err != nil {
		return common.Edge{}, err
	}
	if err := s.flush(ctx); err != nil {
		return common.Edge{}, err
	}
	return created, nil
}

func (s *Store) GetEdge(ctx context.Context, id string) (common.Edge, error) {
	return s.mem.GetEdge(ctx, id)
}

func (s *Store) UpdateEdge(ctx context.Context, edge common.Edge) (common.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.mem.UpdateEdge(ctx, edge)
	if err != nil {
		return common.Edge{}, err
	}
	if err := s.flush(ctx); err != nil {
		return common.Edge{}, err
	}
	return updated, nil
}

func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.DeleteEdge(ctx, id); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *Store) FindNodes(ctx context.Context, labelPattern string, nodeType string) ([]common.Node, error) {
	return s.mem.FindNodes(ctx, labelPattern, nodeType)
}

func (s *Store) FindEdges(ctx context.Context, sourceNodeID string, edgeType string) ([]common.Edge, error) {
	return s.mem.FindEdges(ctx, sourceNodeID, edgeType)
}

func (s *Store) GetConnectedNodes(ctx context.Context, nodeID string, edgeType string, direction store.Direction) ([]common.Node, error) {
	return s.mem.GetConnectedNodes(ctx, nodeID, edgeType, direction)
}

func (s *Store) FindPaths(ctx context.Context, sourceID string, targetID string, opts store.PathOptions) ([]common.Path, error) {
	return s.mem.FindPaths(ctx, sourceID, targetID, opts)
}

func (s *Store) ExtractSubgraph(ctx context.Context, centralNodeID string, depth int, opts store.SubgraphOptions) (common.Subgraph, error) {
	return s.mem.ExtractSubgraph(ctx, centralNodeID, depth, opts)
}

func (s *Store) FindPatterns(ctx context.Context, pattern common.Pattern, parameters map[string]string) ([]common.PatternMatch, error) {
	return s.mem.FindPatterns(ctx, pattern, parameters)
}

func (s *Store) ListNodes(ctx context.Context) ([]common.Node, error) {
	return s.mem.ListNodes(ctx)
}

func (s *Store) ListEdges(ctx context.Context) ([]common.Edge, error) {
	return s.mem.ListEdges(ctx)
}

// Transact applies fn against the in-memory tables and persists the
// result with one flush after fn succeeds. If fn fails the tables roll
// back and the file stays on the previous snapshot.
func (s *Store) Transact(ctx context.Context, fn func(tx store.GraphStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Transact(ctx, fn); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(ctx)
}
