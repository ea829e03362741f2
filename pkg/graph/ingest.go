package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/extract"
	"github.com/notegraph/backend/pkg/logger"
	"github.com/notegraph/backend/pkg/store"
)

// DocumentFailure records a document whose ingestion failed. Failures of
// one document never roll back the others.
type DocumentFailure struct {
	DocumentID string
	Err        error
}

// ProcessDocuments runs the full ingestion pipeline over the given
// documents: extraction, candidate validation, similarity resolution
// against the store, and merge. Documents are processed in parallel up to
// the configured limit. The returned subgraph covers everything the run
// touched; failed documents are reported alongside it.
//
// Ingesting the same document twice leaves the graph unchanged apart from
// update timestamps.
func (c *GraphClient) ProcessDocuments(
	ctx context.Context,
	storeClient store.GraphStore,
	extractor extract.Extractor,
	docs []common.Document,
) (common.Subgraph, []DocumentFailure, error) {
	var (
		mu       sync.Mutex
		parts    []common.Subgraph
		failures []DocumentFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelDocs)
	for _, doc := range docs {
		g.Go(func() error {
			part, err := c.processDocument(gctx, storeClient, extractor, doc)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logger.Error("document ingestion failed", "document", doc.ID, "error", err)
				mu.Lock()
				failures = append(failures, DocumentFailure{DocumentID: doc.ID, Err: err})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			parts = append(parts, part)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return common.Subgraph{}, failures, err
	}

	combined, err := c.MergeSubgraphs(ctx, storeClient, parts)
	if err != nil {
		return common.Subgraph{}, failures, err
	}
	return combined, failures, nil
}

func (c *GraphClient) processDocument(
	ctx context.Context,
	storeClient store.GraphStore,
	extractor extract.Extractor,
	doc common.Document,
) (common.Subgraph, error) {
	if doc.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return common.Subgraph{}, fmt.Errorf("generate document id: %w", err)
		}
		doc.ID = id
	}

	cands, err := extractor.Extract(ctx, doc)
	if err != nil {
		return common.Subgraph{}, fmt.Errorf("extract: %w", err)
	}

	// Entity labels resolved so far, keyed by normalized label. Candidate
	// edges reference entities this way.
	resolved := map[string]common.Node{}
	nodeIDs := map[string]bool{}
	edgeIDs := map[string]bool{}

	for _, cand := range cands.Nodes {
		if err := extract.ValidateNode(cand); err != nil {
			logger.Warn("skipping extraction candidate", "document", doc.ID, "error", err)
			continue
		}
		node, err := c.resolveNode(ctx, storeClient, cand, doc.ID)
		if err != nil {
			return common.Subgraph{}, err
		}
		resolved[normalizeLabel(cand.Label)] = node
		nodeIDs[node.ID] = true
	}

	for _, cand := range cands.Edges {
		if err := extract.ValidateEdge(cand); err != nil {
			logger.Warn("skipping extraction candidate", "document", doc.ID, "error", err)
			continue
		}
		src, okSrc := resolved[normalizeLabel(cand.SourceLabel)]
		tgt, okTgt := resolved[normalizeLabel(cand.TargetLabel)]
		if !okSrc || !okTgt {
			logger.Warn("skipping edge with unresolved endpoints",
				"document", doc.ID,
				"source", cand.SourceLabel,
				"target", cand.TargetLabel,
			)
			continue
		}
		if src.ID == tgt.ID {
			continue
		}
		edge, err := c.resolveEdge(ctx, storeClient, cand, src.ID, tgt.ID, doc.ID)
		if err != nil {
			return common.Subgraph{}, err
		}
		edgeIDs[edge.ID] = true
	}

	return c.collectSubgraph(ctx, storeClient, nodeIDs, edgeIDs)
}

// resolveNode finds the existing node the candidate refers to, folding the
// candidate in, or creates a new node when nothing scores above the merge
// threshold. Creation is serialized per logical entity; the fold is
// serialized on the target node itself, since candidates with different
// labels can resolve to the same node and must not race each other's
// writes.
func (c *GraphClient) resolveNode(
	ctx context.Context,
	storeClient store.GraphStore,
	cand extract.CandidateNode,
	docID string,
) (common.Node, error) {
	unlock := c.locks.lock(c.entityKey(cand.Label, cand.Type))
	defer unlock()

	candidate := common.Node{
		Type:       cand.Type,
		Label:      cand.Label,
		Properties: cand.Properties,
	}

	for {
		existing, err := storeClient.ListNodes(ctx)
		if err != nil {
			return common.Node{}, fmt.Errorf("resolve %q: list nodes: %w", cand.Label, err)
		}

		var best common.Node
		bestScore := 0.0
		found := false
		for _, node := range existing {
			score := c.CalculateSimilarity(candidate, node)
			if score < c.mergeThreshold {
				continue
			}
			if !found || score > bestScore || (score == bestScore && olderThan(node, best)) {
				best = node
				bestScore = score
				found = true
			}
		}

		if !found {
			props := map[string]string{}
			for k, v := range cand.Properties {
				props[k] = v
			}
			created, err := storeClient.CreateNode(ctx, common.Node{
				Type:       cand.Type,
				Label:      cand.Label,
				Properties: props,
				Sources:    []string{docID},
			})
			if err != nil {
				return common.Node{}, fmt.Errorf("resolve %q: create: %w", cand.Label, err)
			}
			return created, nil
		}

		merged, ok, err := c.foldIntoNode(ctx, storeClient, best.ID, candidate, cand, docID)
		if err != nil {
			return common.Node{}, err
		}
		if ok {
			return merged, nil
		}
		// The target vanished or changed under us before we held its
		// lock, rescan.
	}
}

// foldIntoNode folds the candidate into the node with the given id under
// that node's lock, re-reading it first. It reports ok=false when the node
// no longer exists or its current state no longer clears the merge
// threshold, in which case the caller rescans.
func (c *GraphClient) foldIntoNode(
	ctx context.Context,
	storeClient store.GraphStore,
	nodeID string,
	candidate common.Node,
	cand extract.CandidateNode,
	docID string,
) (common.Node, bool, error) {
	unlock := c.locks.lock(nodeID)
	defer unlock()

	current, err := storeClient.GetNode(ctx, nodeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.Node{}, false, nil
		}
		return common.Node{}, false, fmt.Errorf("resolve %q: fetch %q: %w", cand.Label, nodeID, err)
	}
	if c.CalculateSimilarity(candidate, current) < c.mergeThreshold {
		return common.Node{}, false, nil
	}

	current.Properties = mergeProperties(current, common.Node{Properties: cand.Properties, Sources: []string{docID}})
	current.Sources = unionStrings(current.Sources, []string{docID})
	updated, err := storeClient.UpdateNode(ctx, current)
	if err != nil {
		return common.Node{}, false, fmt.Errorf("resolve %q: update %q: %w", cand.Label, nodeID, err)
	}
	return updated, true, nil
}

func olderThan(a, b common.Node) bool {
	if a.CreatedAt.Before(b.CreatedAt) {
		return true
	}
	if b.CreatedAt.Before(a.CreatedAt) {
		return false
	}
	return a.ID < b.ID
}

// resolveEdge combines the candidate with an existing edge of the same
// endpoints and type, or creates a new edge. A document already recorded in
// the edge's sources contributes nothing further, which keeps re-ingestion
// idempotent.
func (c *GraphClient) resolveEdge(
	ctx context.Context,
	storeClient store.GraphStore,
	cand extract.CandidateEdge,
	sourceID string,
	targetID string,
	docID string,
) (common.Edge, error) {
	unlock := c.locks.lock("edge|" + sourceID + "|" + targetID + "|" + cand.Type)
	defer unlock()

	weight := cand.Weight
	if weight == 0 {
		weight = 1
	}

	existing, ok, err := findDuplicateEdge(ctx, storeClient, sourceID, targetID, cand.Type, "")
	if err != nil {
		return common.Edge{}, err
	}
	if !ok {
		props := map[string]string{}
		for k, v := range cand.Properties {
			props[k] = v
		}
		created, err := storeClient.CreateEdge(ctx, common.Edge{
			SourceNodeID: sourceID,
			TargetNodeID: targetID,
			Type:         cand.Type,
			Label:        cand.Label,
			Properties:   props,
			Sources:      []string{docID},
			Weight:       weight,
		})
		if err != nil {
			return common.Edge{}, fmt.Errorf("create edge %q -> %q: %w", sourceID, targetID, err)
		}
		return created, nil
	}

	for _, s := range existing.Sources {
		if s == docID {
			return existing, nil
		}
	}

	existing.Weight += weight
	existing.Sources = unionStrings(existing.Sources, []string{docID})
	existing.Properties = unionProperties(existing.Properties, cand.Properties)
	if existing.Label == "" {
		existing.Label = cand.Label
	}
	updated, err := storeClient.UpdateEdge(ctx, existing)
	if err != nil {
		return common.Edge{}, fmt.Errorf("combine edge %q: %w", existing.ID, err)
	}
	return updated, nil
}

// MergeSubgraphs folds several partial subgraphs into one. Beyond the plain
// union, nodes across the parts are compared pairwise and merged in the
// store when they score above the threshold, so parallel ingestion runs
// converge on the same graph a serial run would produce.
func (c *GraphClient) MergeSubgraphs(
	ctx context.Context,
	storeClient store.GraphStore,
	parts []common.Subgraph,
) (common.Subgraph, error) {
	nodeIDs := map[string]bool{}
	edgeIDs := map[string]bool{}
	for _, part := range parts {
		for _, n := range part.Nodes {
			nodeIDs[n.ID] = true
		}
		for _, e := range part.Edges {
			edgeIDs[e.ID] = true
		}
	}

	// Pairwise pass over the union. Absorbed nodes disappear from the
	// store; collectSubgraph drops them below.
	ids := make([]string, 0, len(nodeIDs))
	for id := range nodeIDs {
		ids = append(ids, id)
	}
	for i := 0; i < len(ids); i++ {
		a, err := storeClient.GetNode(ctx, ids[i])
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return common.Subgraph{}, fmt.Errorf("merge subgraphs: fetch %q: %w", ids[i], err)
		}
		for j := i + 1; j < len(ids); j++ {
			b, err := storeClient.GetNode(ctx, ids[j])
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return common.Subgraph{}, fmt.Errorf("merge subgraphs: fetch %q: %w", ids[j], err)
			}
			if !c.ShouldMerge(a, b) {
				continue
			}
			merged, err := c.MergeNodes(ctx, storeClient, a.ID, b.ID)
			if err != nil {
				return common.Subgraph{}, err
			}
			a = merged
		}
	}

	return c.collectSubgraph(ctx, storeClient, nodeIDs, edgeIDs)
}

// collectSubgraph fetches the current state of the given ids, dropping
// anything that no longer exists.
func (c *GraphClient) collectSubgraph(
	ctx context.Context,
	storeClient store.GraphStore,
	nodeIDs map[string]bool,
	edgeIDs map[string]bool,
) (common.Subgraph, error) {
	var sub common.Subgraph
	for id := range nodeIDs {
		node, err := storeClient.GetNode(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return common.Subgraph{}, fmt.Errorf("collect node %q: %w", id, err)
		}
		sub.Nodes = append(sub.Nodes, node)
	}
	for id := range edgeIDs {
		edge, err := storeClient.GetEdge(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return common.Subgraph{}, fmt.Errorf("collect edge %q: %w", id, err)
		}
		sub.Edges = append(sub.Edges, edge)
	}
	sortSubgraph(&sub)
	return sub, nil
}

func sortSubgraph(sub *common.Subgraph) {
	sort.Slice(sub.Nodes, func(i, j int) bool { return sub.Nodes[i].ID < sub.Nodes[j].ID })
	sort.Slice(sub.Edges, func(i, j int) bool { return sub.Edges[i].ID < sub.Edges[j].ID })
}

// RemoveDocument withdraws a document's contribution from the graph. Edges
// and nodes sourced only by the document are deleted; elements with other
// sources merely lose the reference.
func (c *GraphClient) RemoveDocument(
	ctx context.Context,
	storeClient store.GraphStore,
	docID string,
) error {
	edges, err := storeClient.ListEdges(ctx)
	if err != nil {
		return fmt.Errorf("remove document %q: list edges: %w", docID, err)
	}
	for _, edge := range edges {
		remaining, changed := removeString(edge.Sources, docID)
		if !changed {
			continue
		}
		if len(remaining) == 0 {
			if err := storeClient.DeleteEdge(ctx, edge.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("remove document %q: delete edge %q: %w", docID, edge.ID, err)
			}
			continue
		}
		edge.Sources = remaining
		if _, err := storeClient.UpdateEdge(ctx, edge); err != nil {
			return fmt.Errorf("remove document %q: update edge %q: %w", docID, edge.ID, err)
		}
	}

	nodes, err := storeClient.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("remove document %q: list nodes: %w", docID, err)
	}
	for _, node := range nodes {
		remaining, changed := removeString(node.Sources, docID)
		if !changed {
			continue
		}
		if len(remaining) == 0 {
			if err := storeClient.DeleteNode(ctx, node.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("remove document %q: delete node %q: %w", docID, node.ID, err)
			}
			continue
		}
		node.Sources = remaining
		if _, err := storeClient.UpdateNode(ctx, node); err != nil {
			return fmt.Errorf("remove document %q: update node %q: %w", docID, node.ID, err)
		}
	}
	return nil
}

func removeString(list []string, value string) ([]string, bool) {
	out := make([]string, 0, len(list))
	changed := false
	for _, s := range list {
		if s == value {
			changed = true
			continue
		}
		out = append(out, s)
	}
	return out, changed
}
