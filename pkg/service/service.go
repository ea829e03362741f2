// Package service composes the ingestion pipeline and the query engine into
// the operations exposed to API consumers. A GraphService owns its store
// instance: construct it at startup, Close it at shutdown.
package service

import (
	"context"
	"fmt"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/extract"
	"github.com/notegraph/backend/pkg/graph"
	"github.com/notegraph/backend/pkg/query"
	"github.com/notegraph/backend/pkg/store"
)

// GraphService is the facade over store, merge engine, extraction and query.
type GraphService struct {
	store     store.GraphStore
	graph     *graph.GraphClient
	query     *query.QueryClient
	extractor extract.Extractor
}

// NewGraphServiceParams contains configuration options for creating a new GraphService.
type NewGraphServiceParams struct {
	Store     store.GraphStore
	Graph     *graph.GraphClient
	Query     *query.QueryClient
	Extractor extract.Extractor
}

// NewGraphService wires the facade. Graph and Query fall back to default
// instances when nil; Store and Extractor are required for ingestion.
func NewGraphService(params NewGraphServiceParams) *GraphService {
	s := &GraphService{
		store:     params.Store,
		graph:     params.Graph,
		query:     params.Query,
		extractor: params.Extractor,
	}
	if s.graph == nil {
		s.graph = graph.NewGraphClient(graph.NewGraphClientParams{})
	}
	if s.query == nil {
		s.query = query.NewQueryClient(query.NewQueryClientParams{Store: params.Store})
	}
	return s
}

// Store exposes the underlying graph store for administrative callers.
func (s *GraphService) Store() store.GraphStore {
	return s.store
}

// ProcessDocuments ingests the given documents and returns the subgraph the
// run touched plus the documents that failed. A non-nil error means the run
// itself was aborted, not that individual documents failed.
func (s *GraphService) ProcessDocuments(
	ctx context.Context,
	docs []common.Document,
) (common.Subgraph, []graph.DocumentFailure, error) {
	if s.extractor == nil {
		return common.Subgraph{}, nil, fmt.Errorf("no extractor configured")
	}
	return s.graph.ProcessDocuments(ctx, s.store, s.extractor, docs)
}

// MergeSubgraphs folds partial subgraphs into one, merging duplicate nodes
// across them in the store.
func (s *GraphService) MergeSubgraphs(
	ctx context.Context,
	parts []common.Subgraph,
) (common.Subgraph, error) {
	return s.graph.MergeSubgraphs(ctx, s.store, parts)
}

// RemoveDocument withdraws a document's contribution from the graph.
func (s *GraphService) RemoveDocument(ctx context.Context, docID string) error {
	return s.graph.RemoveDocument(ctx, s.store, docID)
}

// MergeNodes merges two nodes by id and returns the survivor.
func (s *GraphService) MergeNodes(ctx context.Context, aID, bID string) (common.Node, error) {
	return s.graph.MergeNodes(ctx, s.store, aID, bID)
}

// FindDuplicates reports groups of nodes the merge engine considers the
// same entity, without merging them.
func (s *GraphService) FindDuplicates(ctx context.Context) ([][]common.Node, error) {
	return s.graph.FindDuplicates(ctx, s.store)
}

// SearchNodes finds nodes by label substring, optionally filtered by type.
func (s *GraphService) SearchNodes(
	ctx context.Context,
	queryText string,
	nodeType string,
) ([]common.Node, error) {
	return s.query.SearchNodes(ctx, queryText, nodeType)
}

// FindConnections returns simple paths between two labeled entities.
func (s *GraphService) FindConnections(
	ctx context.Context,
	sourceLabel string,
	targetLabel string,
	maxDepth int,
) ([]common.Path, error) {
	return s.query.FindConnections(ctx, sourceLabel, targetLabel, store.PathOptions{MaxDepth: maxDepth})
}

// GetNodeContext returns the neighborhood of a labeled entity.
func (s *GraphService) GetNodeContext(
	ctx context.Context,
	nodeLabel string,
	depth int,
) (common.Subgraph, error) {
	return s.query.GetNodeContext(ctx, nodeLabel, depth)
}

// FindPatterns matches a structural pattern against the graph.
func (s *GraphService) FindPatterns(
	ctx context.Context,
	pattern common.Pattern,
	parameters map[string]string,
) ([]common.PatternMatch, error) {
	return s.query.FindPatterns(ctx, pattern, parameters)
}

// GetKnowledgeGraph exports the whole stored graph as one subgraph.
func (s *GraphService) GetKnowledgeGraph(ctx context.Context) (common.Subgraph, error) {
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return common.Subgraph{}, fmt.Errorf("export graph: list nodes: %w", err)
	}
	edges, err := s.store.ListEdges(ctx)
	if err != nil {
		return common.Subgraph{}, fmt.Errorf("export graph: list edges: %w", err)
	}
	return common.Subgraph{Nodes: nodes, Edges: edges}, nil
}

// Close tears down the owned store.
func (s *GraphService) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}
