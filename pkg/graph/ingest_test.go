package graph

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/extract"
	"github.com/notegraph/backend/pkg/store/memory"
)

// fakeExtractor serves canned candidates per document id.
type fakeExtractor struct {
	candidates map[string]extract.Candidates
	errs       map[string]error
}

func (f *fakeExtractor) Extract(ctx context.Context, doc common.Document) (extract.Candidates, error) {
	if err, ok := f.errs[doc.ID]; ok {
		return extract.Candidates{}, err
	}
	return f.candidates[doc.ID], nil
}

func aliceAtAcme() extract.Candidates {
	return extract.Candidates{
		Nodes: []extract.CandidateNode{
			{Label: "Alice", Type: "PERSON"},
			{Label: "Acme Corp", Type: "ORGANIZATION", Properties: map[string]string{"industry": "software"}},
		},
		Edges: []extract.CandidateEdge{
			{SourceLabel: "Alice", TargetLabel: "Acme Corp", Type: "WORKS_AT", Weight: 0.9},
		},
	}
}

func TestProcessDocuments(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()
	ext := &fakeExtractor{candidates: map[string]extract.Candidates{"doc-1": aliceAtAcme()}}

	sub, failures, err := c.ProcessDocuments(ctx, s, ext, []common.Document{{ID: "doc-1", Content: "..."}})
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(sub.Nodes) != 2 || len(sub.Edges) != 1 {
		t.Fatalf("subgraph has %d nodes, %d edges", len(sub.Nodes), len(sub.Edges))
	}

	for _, n := range sub.Nodes {
		if !reflect.DeepEqual(n.Sources, []string{"doc-1"}) {
			t.Fatalf("node %s sources = %v", n.Label, n.Sources)
		}
	}
	edge := sub.Edges[0]
	if edge.Type != "WORKS_AT" || edge.Weight != 0.9 {
		t.Fatalf("edge = %+v", edge)
	}
	if !reflect.DeepEqual(edge.Sources, []string{"doc-1"}) {
		t.Fatalf("edge sources = %v", edge.Sources)
	}
}

func TestProcessDocumentsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()
	ext := &fakeExtractor{candidates: map[string]extract.Candidates{"doc-1": aliceAtAcme()}}
	docs := []common.Document{{ID: "doc-1", Content: "..."}}

	if _, _, err := c.ProcessDocuments(ctx, s, ext, docs); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	first, err := s.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges: %v", err)
	}

	if _, _, err := c.ProcessDocuments(ctx, s, ext, docs); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	edges, err := s.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges: %v", err)
	}
	if len(nodes) != 2 || len(edges) != 1 {
		t.Fatalf("re-ingest changed the graph: %d nodes, %d edges", len(nodes), len(edges))
	}
	if edges[0].Weight != first[0].Weight {
		t.Fatalf("re-ingest changed edge weight: %f -> %f", first[0].Weight, edges[0].Weight)
	}
	if !reflect.DeepEqual(edges[0].Sources, first[0].Sources) {
		t.Fatalf("re-ingest changed edge sources: %v -> %v", first[0].Sources, edges[0].Sources)
	}
}

func TestProcessDocumentsMergesAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()
	ext := &fakeExtractor{candidates: map[string]extract.Candidates{
		"doc-1": {Nodes: []extract.CandidateNode{{Label: "Alice", Type: "PERSON"}}},
		"doc-2": {Nodes: []extract.CandidateNode{{Label: "Alice Smith", Type: "PERSON"}}},
	}}

	sub, failures, err := c.ProcessDocuments(ctx, s, ext, []common.Document{
		{ID: "doc-1", Content: "..."},
		{ID: "doc-2", Content: "..."},
	})
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected the two mentions to fold into one node, got %d", len(nodes))
	}
	if !reflect.DeepEqual(nodes[0].Sources, []string{"doc-1", "doc-2"}) {
		t.Fatalf("merged node sources = %v", nodes[0].Sources)
	}
	if len(sub.Nodes) != 1 {
		t.Fatalf("returned subgraph still lists absorbed nodes: %+v", sub.Nodes)
	}
}

func TestProcessDocumentsSkipsInvalidCandidates(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()
	ext := &fakeExtractor{candidates: map[string]extract.Candidates{
		"doc-1": {
			Nodes: []extract.CandidateNode{
				{Label: "", Type: "PERSON"},
				{Label: "Alice", Type: "PERSON"},
				{Label: "Acme Corp", Type: "ORGANIZATION"},
			},
			Edges: []extract.CandidateEdge{
				{SourceLabel: "Alice", TargetLabel: "Acme Corp", Type: ""},
				{SourceLabel: "Alice", TargetLabel: "Acme Corp", Type: "WORKS_AT", Weight: -1},
				{SourceLabel: "Alice", TargetLabel: "Ghost Corp", Type: "WORKS_AT"},
				{SourceLabel: "Alice", TargetLabel: "Acme Corp", Type: "WORKS_AT"},
			},
		},
	}}

	sub, failures, err := c.ProcessDocuments(ctx, s, ext, []common.Document{{ID: "doc-1", Content: "..."}})
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("invalid candidates must be skipped, not fail the document: %+v", failures)
	}
	if len(sub.Nodes) != 2 || len(sub.Edges) != 1 {
		t.Fatalf("subgraph has %d nodes, %d edges", len(sub.Nodes), len(sub.Edges))
	}
	if sub.Edges[0].Weight != 1.0 {
		t.Fatalf("default edge weight = %f", sub.Edges[0].Weight)
	}
}

func TestProcessDocumentsFailureIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()
	extractErr := errors.New("model unavailable")
	ext := &fakeExtractor{
		candidates: map[string]extract.Candidates{"doc-1": aliceAtAcme()},
		errs:       map[string]error{"doc-2": extractErr},
	}

	sub, failures, err := c.ProcessDocuments(ctx, s, ext, []common.Document{
		{ID: "doc-1", Content: "..."},
		{ID: "doc-2", Content: "..."},
	})
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if len(failures) != 1 || failures[0].DocumentID != "doc-2" {
		t.Fatalf("failures = %+v", failures)
	}
	if !errors.Is(failures[0].Err, extractErr) {
		t.Fatalf("failure cause lost: %v", failures[0].Err)
	}
	if len(sub.Nodes) != 2 {
		t.Fatalf("healthy document rolled back: %+v", sub.Nodes)
	}
}

func TestProcessDocumentsAssignsDocumentID(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()

	// The fake keys by id, so an empty-id document resolves to an empty
	// candidate set; the run itself must still succeed.
	ext := &fakeExtractor{candidates: map[string]extract.Candidates{}}
	sub, failures, err := c.ProcessDocuments(ctx, s, ext, []common.Document{{Content: "..."}})
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if len(failures) != 0 || len(sub.Nodes) != 0 {
		t.Fatalf("unexpected result: %+v %+v", sub, failures)
	}
}

func TestResolveNodePrefersBestScore(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()

	mustCreateNode(t, s, common.Node{ID: "n1", Label: "Alice Smith", Type: "PERSON", Sources: []string{"old"}})
	mustCreateNode(t, s, common.Node{ID: "n2", Label: "Bob", Type: "PERSON", Sources: []string{"old"}})

	node, err := c.resolveNode(ctx, s, extract.CandidateNode{Label: "Alice", Type: "PERSON"}, "doc-9")
	if err != nil {
		t.Fatalf("resolveNode: %v", err)
	}
	if node.ID != "n1" {
		t.Fatalf("resolved to %s, want n1", node.ID)
	}
	if !reflect.DeepEqual(node.Sources, []string{"doc-9", "old"}) {
		t.Fatalf("sources = %v", node.Sources)
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("resolution created a new node: %d", len(nodes))
	}
}

// rendezvousStore holds the first two ListNodes callers until both have
// arrived, so two concurrent resolutions are guaranteed to scan the same
// pre-write state.
type rendezvousStore struct {
	*memory.Store
	arrivals atomic.Int32
	both     sync.WaitGroup
}

func newRendezvousStore(mem *memory.Store) *rendezvousStore {
	r := &rendezvousStore{Store: mem}
	r.both.Add(2)
	return r
}

func (r *rendezvousStore) ListNodes(ctx context.Context) ([]common.Node, error) {
	if r.arrivals.Add(1) <= 2 {
		r.both.Done()
		r.both.Wait()
	}
	return r.Store.ListNodes(ctx)
}

func TestResolveNodeConcurrentFoldKeepsAllSources(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := newRendezvousStore(memory.New())

	mustCreateNode(t, s.Store, common.Node{ID: "n1", Label: "Alice Smith", Type: "PERSON", Sources: []string{"d0"}})

	// Different labels resolve onto the same node, so the two calls are
	// not serialized by the per-entity lock.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	resolve := func(i int, label, docID string) {
		defer wg.Done()
		_, err := c.resolveNode(ctx, s, extract.CandidateNode{Label: label, Type: "PERSON"}, docID)
		errs[i] = err
	}
	wg.Add(2)
	go resolve(0, "Alice", "d1")
	go resolve(1, "Alice Smyth", "d2")
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("resolveNode: %v", err)
		}
	}

	node, err := s.GetNode(ctx, "n1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if !reflect.DeepEqual(node.Sources, []string{"d0", "d1", "d2"}) {
		t.Fatalf("sources = %v, want d0 d1 d2", node.Sources)
	}

	nodes, err := s.Store.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("resolution created extra nodes: %d", len(nodes))
	}
}

func TestRemoveDocument(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()
	ext := &fakeExtractor{candidates: map[string]extract.Candidates{
		"doc-1": aliceAtAcme(),
		"doc-2": {Nodes: []extract.CandidateNode{
			{Label: "Alice", Type: "PERSON"},
			{Label: "Berlin", Type: "LOCATION"},
		}},
	}}

	if _, _, err := c.ProcessDocuments(ctx, s, ext, []common.Document{
		{ID: "doc-1", Content: "..."},
		{ID: "doc-2", Content: "..."},
	}); err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}

	if err := c.RemoveDocument(ctx, s, "doc-1"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	byLabel := map[string]common.Node{}
	for _, n := range nodes {
		byLabel[n.Label] = n
	}

	// Acme Corp and the WORKS_AT edge were sourced only by doc-1.
	if _, ok := byLabel["Acme Corp"]; ok {
		t.Fatalf("sole-source node survived removal: %+v", nodes)
	}
	edges, err := s.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("sole-source edge survived removal: %+v", edges)
	}

	// Alice keeps living through doc-2.
	alice, ok := byLabel["Alice"]
	if !ok {
		t.Fatalf("shared node deleted: %+v", nodes)
	}
	if !reflect.DeepEqual(alice.Sources, []string{"doc-2"}) {
		t.Fatalf("alice sources = %v", alice.Sources)
	}

	// Removing an unknown document is a no-op.
	if err := c.RemoveDocument(ctx, s, "ghost"); err != nil {
		t.Fatalf("RemoveDocument(ghost): %v", err)
	}
}

func TestMergeSubgraphsToleratesVanishedNodes(t *testing.T) {
	ctx := context.Background()
	c := NewGraphClient(NewGraphClientParams{})
	s := memory.New()
	node := mustCreateNode(t, s, common.Node{ID: "a", Label: "Alice", Type: "PERSON"})

	parts := []common.Subgraph{
		{Nodes: []common.Node{node}},
		{Nodes: []common.Node{{ID: "gone", Label: "Gone", Type: "PERSON"}}},
	}
	sub, err := c.MergeSubgraphs(ctx, s, parts)
	if err != nil {
		t.Fatalf("MergeSubgraphs: %v", err)
	}
	if len(sub.Nodes) != 1 || sub.Nodes[0].ID != "a" {
		t.Fatalf("subgraph = %+v", sub)
	}
}
