package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
)

// MergeNodes folds the two given nodes into one. The older node (by
// CreatedAt, ties broken by the smaller id) survives; the other node's
// properties and sources are folded in, its edges are repointed at the
// survivor, and it is deleted. Edges that become parallel to an existing
// edge with the same endpoints and type are combined, summing weights.
// Edges between the two merged nodes are dropped rather than turned into
// self-loops. The whole merge runs in one store transaction: a failure
// partway through leaves both nodes and their edges untouched.
//
// Merging a node with itself is a no-op.
func (c *GraphClient) MergeNodes(
	ctx context.Context,
	storeClient store.GraphStore,
	aID string,
	bID string,
) (common.Node, error) {
	if aID == bID {
		return storeClient.GetNode(ctx, aID)
	}

	unlock := c.locks.lock(aID, bID)
	defer unlock()

	var survivor common.Node
	err := storeClient.Transact(ctx, func(tx store.GraphStore) error {
		a, err := tx.GetNode(ctx, aID)
		if err != nil {
			return fmt.Errorf("merge: fetch %q: %w", aID, err)
		}
		b, err := tx.GetNode(ctx, bID)
		if err != nil {
			return fmt.Errorf("merge: fetch %q: %w", bID, err)
		}

		surv, absorbed := survivorOf(a, b)

		surv.Properties = mergeProperties(surv, absorbed)
		surv.Sources = unionStrings(surv.Sources, absorbed.Sources)

		surv, err = tx.UpdateNode(ctx, surv)
		if err != nil {
			return fmt.Errorf("merge: update survivor %q: %w", surv.ID, err)
		}

		if err := c.repointEdges(ctx, tx, absorbed.ID, surv.ID); err != nil {
			return err
		}

		if err := tx.DeleteNode(ctx, absorbed.ID); err != nil {
			return fmt.Errorf("merge: delete %q: %w", absorbed.ID, err)
		}
		survivor = surv
		return nil
	})
	if err != nil {
		return common.Node{}, err
	}
	return survivor, nil
}

// survivorOf picks which of the two nodes survives a merge. The decision
// depends only on the pair, never on argument order, which keeps merges
// commutative.
func survivorOf(a, b common.Node) (survivor, absorbed common.Node) {
	if a.CreatedAt.Before(b.CreatedAt) {
		return a, b
	}
	if b.CreatedAt.Before(a.CreatedAt) {
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

// mergeProperties folds the absorbed node's properties into the survivor's.
// On conflicting values the node backed by more sources wins; ties keep the
// survivor's value.
func mergeProperties(survivor, absorbed common.Node) map[string]string {
	merged := map[string]string{}
	for k, v := range survivor.Properties {
		merged[k] = v
	}
	for k, v := range absorbed.Properties {
		cur, ok := merged[k]
		switch {
		case !ok:
			merged[k] = v
		case cur == v:
		case len(absorbed.Sources) > len(survivor.Sources):
			merged[k] = v
		}
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// repointEdges moves every edge incident to fromID over to toID, combining
// with existing duplicate edges and dropping edges that would become
// self-loops.
func (c *GraphClient) repointEdges(
	ctx context.Context,
	storeClient store.GraphStore,
	fromID string,
	toID string,
) error {
	edges, err := storeClient.ListEdges(ctx)
	if err != nil {
		return fmt.Errorf("merge: list edges: %w", err)
	}

	for _, edge := range edges {
		if edge.SourceNodeID != fromID && edge.TargetNodeID != fromID {
			continue
		}

		src, tgt := edge.SourceNodeID, edge.TargetNodeID
		if src == fromID {
			src = toID
		}
		if tgt == fromID {
			tgt = toID
		}
		if src == tgt {
			// Edge between the merged pair, nothing left to express.
			if err := storeClient.DeleteEdge(ctx, edge.ID); err != nil {
				return fmt.Errorf("merge: drop self edge %q: %w", edge.ID, err)
			}
			continue
		}

		dup, ok, err := findDuplicateEdge(ctx, storeClient, src, tgt, edge.Type, edge.ID)
		if err != nil {
			return err
		}
		if ok {
			dup.Weight += edge.Weight
			dup.Sources = unionStrings(dup.Sources, edge.Sources)
			dup.Properties = unionProperties(dup.Properties, edge.Properties)
			if _, err := storeClient.UpdateEdge(ctx, dup); err != nil {
				return fmt.Errorf("merge: combine edge %q into %q: %w", edge.ID, dup.ID, err)
			}
			if err := storeClient.DeleteEdge(ctx, edge.ID); err != nil {
				return fmt.Errorf("merge: delete duplicate edge %q: %w", edge.ID, err)
			}
			continue
		}

		edge.SourceNodeID = src
		edge.TargetNodeID = tgt
		if _, err := storeClient.UpdateEdge(ctx, edge); err != nil {
			return fmt.Errorf("merge: repoint edge %q: %w", edge.ID, err)
		}
	}
	return nil
}

// findDuplicateEdge looks up an edge with the given endpoints and type,
// ignoring the edge identified by skipID.
func findDuplicateEdge(
	ctx context.Context,
	storeClient store.GraphStore,
	sourceID string,
	targetID string,
	edgeType string,
	skipID string,
) (common.Edge, bool, error) {
	candidates, err := storeClient.FindEdges(ctx, sourceID, edgeType)
	if err != nil {
		return common.Edge{}, false, fmt.Errorf("merge: find edges from %q: %w", sourceID, err)
	}
	for _, cand := range candidates {
		if cand.ID != skipID && cand.TargetNodeID == targetID {
			return cand, true, nil
		}
	}
	return common.Edge{}, false, nil
}

// unionProperties keeps existing values on conflict.
func unionProperties(base, extra map[string]string) map[string]string {
	merged := map[string]string{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return merged
}

// FindDuplicates scans the whole store and groups nodes that score at or
// above the merge threshold. Each returned group holds at least two nodes.
// Nothing is merged; callers decide what to do with the groups.
func (c *GraphClient) FindDuplicates(
	ctx context.Context,
	storeClient store.GraphStore,
) ([][]common.Node, error) {
	nodes, err := storeClient.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("find duplicates: list nodes: %w", err)
	}

	assigned := map[string]bool{}
	var groups [][]common.Node
	for i, anchor := range nodes {
		if assigned[anchor.ID] {
			continue
		}
		group := []common.Node{anchor}
		for _, cand := range nodes[i+1:] {
			if assigned[cand.ID] {
				continue
			}
			if c.ShouldMerge(anchor, cand) {
				group = append(group, cand)
				assigned[cand.ID] = true
			}
		}
		if len(group) > 1 {
			assigned[anchor.ID] = true
			groups = append(groups, group)
		}
	}
	return groups, nil
}
