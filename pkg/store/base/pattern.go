package base

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
)

// maxPatternMatches caps the number of bound instances a single pattern
// query may return. Dense graphs with loose constraints can otherwise
// produce combinatorial result sets.
const maxPatternMatches = 1000

// FindPatterns matches the pattern's node and edge constraints against the
// stored graph. parameters may pin node variables to concrete node ids
// before matching starts. Distinct variables bind to distinct nodes and
// edges. Matches are returned in a deterministic order.
func (t *Traverser) FindPatterns(ctx context.Context, pattern common.Pattern, parameters map[string]string) ([]common.PatternMatch, error) {
	if len(pattern.Nodes) == 0 {
		return nil, nil
	}
	for v, e := range pattern.Edges {
		if _, ok := pattern.Nodes[e.From]; !ok {
			return nil, fmt.Errorf("pattern edge %q references unknown node variable %q: %w", v, e.From, store.ErrIntegrity)
		}
		if _, ok := pattern.Nodes[e.To]; !ok {
			return nil, fmt.Errorf("pattern edge %q references unknown node variable %q: %w", v, e.To, store.ErrIntegrity)
		}
	}

	nodeVars := sortedKeys(pattern.Nodes)
	edgeVars := sortedKeys(pattern.Edges)

	// Candidate nodes per variable, cheapest-to-verify first.
	candidates := make(map[string][]common.Node, len(nodeVars))
	for _, v := range nodeVars {
		c := pattern.Nodes[v]
		if pinned, ok := parameters[v]; ok {
			node, err := t.Reader.GetNode(ctx, pinned)
			if err != nil {
				return nil, err
			}
			if !nodeMatches(node, c) {
				return nil, nil
			}
			candidates[v] = []common.Node{node}
			continue
		}
		all, err := t.Reader.ListNodes(ctx)
		if err != nil {
			return nil, err
		}
		var matched []common.Node
		for _, n := range all {
			if nodeMatches(n, c) {
				matched = append(matched, n)
			}
		}
		if len(matched) == 0 {
			return nil, nil
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
		candidates[v] = matched
	}

	var matches []common.PatternMatch
	bound := make(map[string]string, len(nodeVars))
	usedNodes := make(map[string]bool, len(nodeVars))

	var bindNodes func(i int) error
	bindNodes = func(i int) error {
		if len(matches) >= maxPatternMatches {
			return nil
		}
		if i == len(nodeVars) {
			return t.bindEdges(ctx, pattern, edgeVars, bound, &matches)
		}
		v := nodeVars[i]
		for _, node := range candidates[v] {
			if usedNodes[node.ID] {
				continue
			}
			bound[v] = node.ID
			usedNodes[node.ID] = true
			if err := bindNodes(i + 1); err != nil {
				return err
			}
			usedNodes[node.ID] = false
			delete(bound, v)
		}
		return nil
	}

	if err := bindNodes(0); err != nil {
		return nil, err
	}
	return matches, nil
}

// bindEdges assigns concrete edges to every edge variable given a complete
// node binding, backtracking over the alternatives.
func (t *Traverser) bindEdges(ctx context.Context, pattern common.Pattern, edgeVars []string, nodeBinding map[string]string, matches *[]common.PatternMatch) error {
	edgeBinding := make(map[string]string, len(edgeVars))
	usedEdges := make(map[string]bool, len(edgeVars))

	var bind func(i int) error
	bind = func(i int) error {
		if len(*matches) >= maxPatternMatches {
			return nil
		}
		if i == len(edgeVars) {
			*matches = append(*matches, common.PatternMatch{
				Nodes: copyBinding(nodeBinding),
				Edges: copyBinding(edgeBinding),
			})
			return nil
		}
		v := edgeVars[i]
		c := pattern.Edges[v]
		out, err := t.Reader.OutgoingEdges(ctx, nodeBinding[c.From])
		if err != nil {
			return err
		}
		sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
		for _, edge := range out {
			if usedEdges[edge.ID] {
				continue
			}
			if edge.TargetNodeID != nodeBinding[c.To] {
				continue
			}
			if c.Type != "" && edge.Type != c.Type {
				continue
			}
			if edge.Weight < c.MinWeight {
				continue
			}
			edgeBinding[v] = edge.ID
			usedEdges[edge.ID] = true
			if err := bind(i + 1); err != nil {
				return err
			}
			usedEdges[edge.ID] = false
			delete(edgeBinding, v)
		}
		return nil
	}

	return bind(0)
}

func nodeMatches(n common.Node, c common.NodeConstraint) bool {
	if c.Type != "" && n.Type != c.Type {
		return false
	}
	if c.LabelContains != "" && !strings.Contains(strings.ToLower(n.Label), strings.ToLower(c.LabelContains)) {
		return false
	}
	for k, v := range c.Properties {
		if n.Properties[k] != v {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyBinding(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
