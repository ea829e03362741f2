package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
)

func seedNode(t *testing.T, s *Store, id, label, nodeType string) common.Node {
	t.Helper()
	node, err := s.CreateNode(context.Background(), common.Node{ID: id, Label: label, Type: nodeType})
	if err != nil {
		t.Fatalf("CreateNode(%s): %v", id, err)
	}
	return node
}

func seedEdge(t *testing.T, s *Store, id, src, tgt, edgeType string, weight float64) common.Edge {
	t.Helper()
	edge, err := s.CreateEdge(context.Background(), common.Edge{
		ID: id, SourceNodeID: src, TargetNodeID: tgt, Type: edgeType, Weight: weight,
	})
	if err != nil {
		t.Fatalf("CreateEdge(%s): %v", id, err)
	}
	return edge
}

func TestNodeCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.CreateNode(ctx, common.Node{
		Label:      "Acme Corp",
		Type:       "ORGANIZATION",
		Properties: map[string]string{"industry": "software"},
		Sources:    []string{"doc-1"},
	})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}

	got, err := s.GetNode(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if !reflect.DeepEqual(got, created) {
		t.Fatalf("GetNode mismatch: got %+v want %+v", got, created)
	}

	got.Properties["industry"] = "hardware"
	updated, err := s.UpdateNode(ctx, got)
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if updated.Properties["industry"] != "hardware" {
		t.Fatalf("update did not stick: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("UpdateNode changed CreatedAt")
	}

	if err := s.DeleteNode(ctx, created.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, err := s.GetNode(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestNodeErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "n1", "Alice", "PERSON")

	if _, err := s.CreateNode(ctx, common.Node{ID: "n1", Label: "Other"}); !errors.Is(err, store.ErrIntegrity) {
		t.Fatalf("duplicate id: expected ErrIntegrity, got %v", err)
	}
	if _, err := s.CreateNode(ctx, common.Node{Label: "   "}); !errors.Is(err, store.ErrIntegrity) {
		t.Fatalf("blank label: expected ErrIntegrity, got %v", err)
	}
	if _, err := s.UpdateNode(ctx, common.Node{ID: "missing", Label: "X"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteNode(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete missing: expected ErrNotFound, got %v", err)
	}
}

func TestCascadeDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme Corp", "ORGANIZATION")
	seedNode(t, s, "c", "Berlin", "LOCATION")
	seedEdge(t, s, "e1", "a", "b", "WORKS_AT", 1)
	seedEdge(t, s, "e2", "b", "c", "LOCATED_IN", 1)
	seedEdge(t, s, "e3", "a", "c", "LIVES_IN", 1)

	if err := s.DeleteNode(ctx, "b"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	edges, err := s.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges: %v", err)
	}
	if len(edges) != 1 || edges[0].ID != "e3" {
		t.Fatalf("expected only e3 to survive, got %+v", edges)
	}
	for _, edge := range edges {
		if _, err := s.GetNode(ctx, edge.SourceNodeID); err != nil {
			t.Fatalf("dangling source on %s: %v", edge.ID, err)
		}
		if _, err := s.GetNode(ctx, edge.TargetNodeID); err != nil {
			t.Fatalf("dangling target on %s: %v", edge.ID, err)
		}
	}
}

func TestCreateEdgeValidation(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme Corp", "ORGANIZATION")

	tests := []struct {
		name string
		edge common.Edge
		want error
	}{
		{
			name: "missing source",
			edge: common.Edge{SourceNodeID: "ghost", TargetNodeID: "b", Type: "WORKS_AT"},
			want: store.ErrUnknownEndpoint,
		},
		{
			name: "missing target",
			edge: common.Edge{SourceNodeID: "a", TargetNodeID: "ghost", Type: "WORKS_AT"},
			want: store.ErrUnknownEndpoint,
		},
		{
			name: "self loop",
			edge: common.Edge{SourceNodeID: "a", TargetNodeID: "a", Type: "KNOWS"},
			want: store.ErrIntegrity,
		},
		{
			name: "negative weight",
			edge: common.Edge{SourceNodeID: "a", TargetNodeID: "b", Type: "WORKS_AT", Weight: -0.5},
			want: store.ErrIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateEdge(ctx, tt.edge); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			// A rejected edge must leave the store untouched.
			edges, err := s.ListEdges(ctx)
			if err != nil {
				t.Fatalf("ListEdges: %v", err)
			}
			if len(edges) != 0 {
				t.Fatalf("rejected edge was stored: %+v", edges)
			}
		})
	}
}

func TestCreateEdgeDefaultWeight(t *testing.T) {
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme Corp", "ORGANIZATION")

	edge := seedEdge(t, s, "", "a", "b", "WORKS_AT", 0)
	if edge.Weight != 1.0 {
		t.Fatalf("expected default weight 1.0, got %f", edge.Weight)
	}
	if edge.ID == "" {
		t.Fatalf("expected generated edge id")
	}
}

func TestFindNodes(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "n1", "Alice Smith", "PERSON")
	seedNode(t, s, "n2", "Bob", "PERSON")
	seedNode(t, s, "n3", "Acme Corp", "ORGANIZATION")

	tests := []struct {
		name     string
		pattern  string
		nodeType string
		wantIDs  []string
	}{
		{"substring case-insensitive", "alice", "", []string{"n1"}},
		{"type only", "", "PERSON", []string{"n1", "n2"}},
		{"pattern and type", "a", "PERSON", []string{"n1"}},
		{"no match", "zürich", "", nil},
		{"everything", "", "", []string{"n1", "n2", "n3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := s.FindNodes(ctx, tt.pattern, tt.nodeType)
			if err != nil {
				t.Fatalf("FindNodes: %v", err)
			}
			var ids []string
			for _, n := range nodes {
				ids = append(ids, n.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Fatalf("got %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestGetConnectedNodes(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme Corp", "ORGANIZATION")
	seedNode(t, s, "c", "Berlin", "LOCATION")
	seedEdge(t, s, "e1", "a", "b", "WORKS_AT", 1)
	seedEdge(t, s, "e2", "c", "a", "HOSTS", 1)

	tests := []struct {
		name      string
		direction store.Direction
		edgeType  string
		wantIDs   []string
	}{
		{"outgoing", store.DirectionOutgoing, "", []string{"b"}},
		{"incoming", store.DirectionIncoming, "", []string{"c"}},
		{"both", store.DirectionBoth, "", []string{"b", "c"}},
		{"default is both", "", "", []string{"b", "c"}},
		{"type filter", store.DirectionBoth, "WORKS_AT", []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := s.GetConnectedNodes(ctx, "a", tt.edgeType, tt.direction)
			if err != nil {
				t.Fatalf("GetConnectedNodes: %v", err)
			}
			var ids []string
			for _, n := range nodes {
				ids = append(ids, n.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Fatalf("got %v, want %v", ids, tt.wantIDs)
			}
		})
	}

	if _, err := s.GetConnectedNodes(ctx, "missing", "", store.DirectionBoth); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindPaths(t *testing.T) {
	ctx := context.Background()
	s := New()
	// a -> b -> d and a -> c -> d, plus a longer detour a -> c -> e -> d.
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		seedNode(t, s, id, "node "+id, "CONCEPT")
	}
	seedEdge(t, s, "ab", "a", "b", "REL", 1)
	seedEdge(t, s, "bd", "b", "d", "REL", 1)
	seedEdge(t, s, "ac", "a", "c", "REL", 2)
	seedEdge(t, s, "cd", "c", "d", "REL", 3)
	seedEdge(t, s, "ce", "c", "e", "REL", 1)
	seedEdge(t, s, "ed", "e", "d", "REL", 1)

	paths, err := s.FindPaths(ctx, "a", "d", store.PathOptions{MaxDepth: 3})
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 paths, got %d", len(paths))
	}
	for i, p := range paths {
		if p.Length > 3 {
			t.Fatalf("path %d exceeds depth bound: length %d", i, p.Length)
		}
		if len(p.Nodes) != p.Length+1 || len(p.Edges) != p.Length {
			t.Fatalf("path %d is inconsistent: %d nodes, %d edges, length %d",
				i, len(p.Nodes), len(p.Edges), p.Length)
		}
		if p.Nodes[0].ID != "a" || p.Nodes[len(p.Nodes)-1].ID != "d" {
			t.Fatalf("path %d has wrong endpoints: %s .. %s", i, p.Nodes[0].ID, p.Nodes[len(p.Nodes)-1].ID)
		}
	}

	// Shorter paths first, then lighter ones among equals.
	if paths[0].Length != 2 || paths[1].Length != 2 || paths[2].Length != 3 {
		t.Fatalf("paths not ordered by length: %d %d %d",
			paths[0].Length, paths[1].Length, paths[2].Length)
	}
	if paths[0].TotalWeight > paths[1].TotalWeight {
		t.Fatalf("equal-length paths not ordered by weight: %f before %f",
			paths[0].TotalWeight, paths[1].TotalWeight)
	}

	// A depth bound of 2 drops the detour.
	paths, err = s.FindPaths(ctx, "a", "d", store.PathOptions{MaxDepth: 2})
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths within depth 2, got %d", len(paths))
	}

	if _, err := s.FindPaths(ctx, "missing", "d", store.PathOptions{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindPathsEdgeTypeFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme Corp", "ORGANIZATION")
	seedEdge(t, s, "e1", "a", "b", "WORKS_AT", 1)

	paths, err := s.FindPaths(ctx, "a", "b", store.PathOptions{EdgeTypes: []string{"KNOWS"}})
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected no paths through filtered edges, got %d", len(paths))
	}
}

func TestExtractSubgraph(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme Corp", "ORGANIZATION")
	seedNode(t, s, "c", "Berlin", "LOCATION")
	seedNode(t, s, "d", "Bob", "PERSON")
	seedEdge(t, s, "e1", "a", "b", "WORKS_AT", 1)
	seedEdge(t, s, "e2", "b", "c", "LOCATED_IN", 1)
	seedEdge(t, s, "e3", "c", "d", "HOSTS", 1)

	sub, err := s.ExtractSubgraph(ctx, "a", 2, store.SubgraphOptions{})
	if err != nil {
		t.Fatalf("ExtractSubgraph: %v", err)
	}
	if sub.CentralNodeID != "a" || sub.Depth != 2 {
		t.Fatalf("unexpected subgraph metadata: %+v", sub)
	}

	nodeIDs := make(map[string]struct{})
	for _, n := range sub.Nodes {
		nodeIDs[n.ID] = struct{}{}
	}
	want := []string{"a", "b", "c"}
	if len(nodeIDs) != len(want) {
		t.Fatalf("expected nodes %v, got %+v", want, sub.Nodes)
	}
	for _, id := range want {
		if _, ok := nodeIDs[id]; !ok {
			t.Fatalf("node %s missing from subgraph", id)
		}
	}

	// Containment: every edge endpoint is in the node set.
	for _, e := range sub.Edges {
		if _, ok := nodeIDs[e.SourceNodeID]; !ok {
			t.Fatalf("edge %s source %s not in subgraph", e.ID, e.SourceNodeID)
		}
		if _, ok := nodeIDs[e.TargetNodeID]; !ok {
			t.Fatalf("edge %s target %s not in subgraph", e.ID, e.TargetNodeID)
		}
	}
}

func TestExtractSubgraphTypeFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme Corp", "ORGANIZATION")
	seedNode(t, s, "c", "Bob", "PERSON")
	seedEdge(t, s, "e1", "a", "b", "WORKS_AT", 1)
	seedEdge(t, s, "e2", "a", "c", "KNOWS", 1)

	// The central node stays even when its own type is filtered out.
	sub, err := s.ExtractSubgraph(ctx, "b", 1, store.SubgraphOptions{NodeTypes: []string{"PERSON"}})
	if err != nil {
		t.Fatalf("ExtractSubgraph: %v", err)
	}
	found := false
	for _, n := range sub.Nodes {
		if n.ID == "b" {
			found = true
		}
	}
	if !found {
		t.Fatalf("central node dropped by type filter: %+v", sub.Nodes)
	}

	sub, err = s.ExtractSubgraph(ctx, "a", 1, store.SubgraphOptions{EdgeTypes: []string{"KNOWS"}})
	if err != nil {
		t.Fatalf("ExtractSubgraph: %v", err)
	}
	for _, e := range sub.Edges {
		if e.Type != "KNOWS" {
			t.Fatalf("edge type filter leaked %s", e.Type)
		}
	}
	for _, n := range sub.Nodes {
		if n.ID == "b" {
			t.Fatalf("node b reachable only over a filtered edge")
		}
	}

	if _, err := s.ExtractSubgraph(ctx, "missing", 1, store.SubgraphOptions{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindPatterns(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "p1", "Alice", "PERSON")
	seedNode(t, s, "p2", "Bob", "PERSON")
	seedNode(t, s, "o1", "Acme Corp", "ORGANIZATION")
	seedEdge(t, s, "w1", "p1", "o1", "WORKS_AT", 1)
	seedEdge(t, s, "w2", "p2", "o1", "WORKS_AT", 0.2)

	pattern := common.Pattern{
		Name: "employment",
		Nodes: map[string]common.NodeConstraint{
			"person": {Type: "PERSON"},
			"org":    {Type: "ORGANIZATION"},
		},
		Edges: map[string]common.EdgeConstraint{
			"job": {From: "person", To: "org", Type: "WORKS_AT", MinWeight: 0.5},
		},
	}

	matches, err := s.FindPatterns(ctx, pattern, nil)
	if err != nil {
		t.Fatalf("FindPatterns: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	want := common.PatternMatch{
		Nodes: map[string]string{"person": "p1", "org": "o1"},
		Edges: map[string]string{"job": "w1"},
	}
	if !reflect.DeepEqual(matches[0], want) {
		t.Fatalf("got %+v, want %+v", matches[0], want)
	}

	// Pinning the person variable to Bob leaves nothing above MinWeight.
	matches, err = s.FindPatterns(ctx, pattern, map[string]string{"person": "p2"})
	if err != nil {
		t.Fatalf("FindPatterns: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches for pinned p2, got %+v", matches)
	}
}

func TestTransactCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedNode(t, s, "a", "Alice", "PERSON")

	err := s.Transact(ctx, func(tx store.GraphStore) error {
		if _, err := tx.CreateNode(ctx, common.Node{ID: "b", Label: "Acme", Type: "ORGANIZATION"}); err != nil {
			return err
		}
		_, err := tx.CreateEdge(ctx, common.Edge{ID: "e1", SourceNodeID: "a", TargetNodeID: "b", Type: "WORKS_AT", Weight: 1})
		return err
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}

	if _, err := s.GetNode(ctx, "b"); err != nil {
		t.Fatalf("GetNode(b): %v", err)
	}
	if _, err := s.GetEdge(ctx, "e1"); err != nil {
		t.Fatalf("GetEdge(e1): %v", err)
	}
}

func TestTransactRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := seedNode(t, s, "a", "Alice", "PERSON")
	seedNode(t, s, "b", "Acme", "ORGANIZATION")
	seedEdge(t, s, "e1", "a", "b", "WORKS_AT", 1)

	boom := errors.New("abort")
	err := s.Transact(ctx, func(tx store.GraphStore) error {
		updated := alice
		updated.Label = "Mallory"
		if _, err := tx.UpdateNode(ctx, updated); err != nil {
			return err
		}
		if err := tx.DeleteNode(ctx, "b"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact error = %v, want %v", err, boom)
	}

	got, err := s.GetNode(ctx, "a")
	if err != nil {
		t.Fatalf("GetNode(a): %v", err)
	}
	if got.Label != "Alice" {
		t.Fatalf("update survived rollback: %q", got.Label)
	}
	if _, err := s.GetNode(ctx, "b"); err != nil {
		t.Fatalf("delete survived rollback: %v", err)
	}
	if _, err := s.GetEdge(ctx, "e1"); err != nil {
		t.Fatalf("cascade survived rollback: %v", err)
	}
}
