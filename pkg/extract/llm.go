package extract

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/notegraph/backend/internal/util"
	"github.com/notegraph/backend/pkg/ai"
	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/logger"
)

// DefaultEntityTypes is used when a document does not restrict the entity
// types to extract.
var DefaultEntityTypes = []string{
	"ORGANIZATION", "PERSON", "LOCATION", "CONCEPT", "CREATIVE_WORK", "DATE", "PRODUCT", "EVENT",
}

const (
	defaultMaxChunkTokens = 1200
	defaultParallelChunks = 4
	defaultMaxRetries     = 3
)

type extractEntity struct {
	Label      string            `json:"label" jsonschema_description:"Name of the entity as used in the text"`
	Type       string            `json:"type" jsonschema_description:"One of the provided entity types"`
	Properties map[string]string `json:"properties" jsonschema_description:"Short key/value facts stated about the entity"`
}

type extractRelationship struct {
	SourceLabel string  `json:"source_label" jsonschema_description:"Label of the source entity, as identified above"`
	TargetLabel string  `json:"target_label" jsonschema_description:"Label of the target entity, as identified above"`
	Type        string  `json:"type" jsonschema_description:"Short UPPER_SNAKE_CASE relationship type, e.g. WORKS_AT"`
	Description string  `json:"description" jsonschema_description:"One sentence explaining why the entities are related"`
	Strength    float64 `json:"strength" jsonschema_description:"Score between 0 and 1 for how strongly the text supports the relationship"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entities identified in the excerpt"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the excerpt"`
}

// LLMExtractor produces graph candidates by prompting a language model with
// the document's chunks and a JSON schema for the expected output.
type LLMExtractor struct {
	client         ai.GraphAIClient
	entityTypes    []string
	maxChunkTokens int
	parallelChunks int
	maxRetries     int
}

// NewLLMExtractorParams contains configuration options for creating a new
// LLMExtractor. Zero values fall back to the package defaults.
type NewLLMExtractorParams struct {
	Client         ai.GraphAIClient
	EntityTypes    []string
	MaxChunkTokens int
	ParallelChunks int
	MaxRetries     int
}

// NewLLMExtractor creates an extractor backed by the given AI client.
func NewLLMExtractor(params NewLLMExtractorParams) *LLMExtractor {
	x := &LLMExtractor{
		client:         params.Client,
		entityTypes:    params.EntityTypes,
		maxChunkTokens: params.MaxChunkTokens,
		parallelChunks: params.ParallelChunks,
		maxRetries:     params.MaxRetries,
	}
	if len(x.entityTypes) == 0 {
		x.entityTypes = DefaultEntityTypes
	}
	if x.maxChunkTokens <= 0 {
		x.maxChunkTokens = defaultMaxChunkTokens
	}
	if x.parallelChunks <= 0 {
		x.parallelChunks = defaultParallelChunks
	}
	if x.maxRetries <= 0 {
		x.maxRetries = defaultMaxRetries
	}
	return x
}

// Extract chunks the document, prompts the model for each chunk in
// parallel, and folds the per-chunk results into a single candidate set.
func (x *LLMExtractor) Extract(ctx context.Context, doc common.Document) (Candidates, error) {
	if strings.TrimSpace(doc.Content) == "" && len(doc.Chunks) == 0 {
		return Candidates{}, fmt.Errorf("%w: document %q has no content", ErrInvalidCandidate, doc.ID)
	}

	chunks := doc.Chunks
	if len(chunks) == 0 {
		var err error
		chunks, err = ChunkText(doc.Content, x.maxChunkTokens)
		if err != nil {
			return Candidates{}, fmt.Errorf("chunk document %q: %w", doc.ID, err)
		}
	}

	results := make([]Candidates, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.parallelChunks)
	for i, chunk := range chunks {
		g.Go(func() error {
			return util.RetryErrWithContext(gctx, x.maxRetries, func(ctx context.Context) error {
				cands, err := x.extractChunk(ctx, chunk)
				if err != nil {
					logger.Warn("chunk extraction attempt failed",
						"document", doc.ID,
						"chunk", chunk.Index,
						"error", err,
					)
					return err
				}
				results[i] = cands
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return Candidates{}, fmt.Errorf("extract document %q: %w", doc.ID, err)
	}

	return foldCandidates(results), nil
}

func (x *LLMExtractor) extractChunk(ctx context.Context, chunk common.Chunk) (Candidates, error) {
	types := strings.Join(x.entityTypes, ",")
	systemPrompt := fmt.Sprintf(ExtractPrompt, types, types)

	var res extractResponse
	err := x.client.GenerateCompletionWithFormat(
		ctx,
		"extract_entities_and_relationships",
		"Extract entities and relationships from a provided document excerpt.",
		chunk.Text,
		&res,
		ai.WithSystemPrompts(systemPrompt),
	)
	if err != nil {
		return Candidates{}, err
	}

	var out Candidates
	for _, e := range res.Entities {
		out.Nodes = append(out.Nodes, CandidateNode{
			Label:      strings.TrimSpace(e.Label),
			Type:       strings.ToUpper(strings.TrimSpace(e.Type)),
			Properties: e.Properties,
		})
	}
	for _, r := range res.Relationships {
		weight := r.Strength
		if weight <= 0 || weight > 1 {
			weight = 1
		}
		out.Edges = append(out.Edges, CandidateEdge{
			SourceLabel: strings.TrimSpace(r.SourceLabel),
			TargetLabel: strings.TrimSpace(r.TargetLabel),
			Type:        strings.ToUpper(strings.TrimSpace(r.Type)),
			Label:       strings.TrimSpace(r.Description),
			Weight:      weight,
		})
	}
	return out, nil
}

// foldCandidates merges per-chunk candidate sets. Nodes with the same label
// and type become one candidate with unioned properties; edges with the
// same endpoints and type keep the highest weight seen.
func foldCandidates(results []Candidates) Candidates {
	var out Candidates

	nodeIdx := map[string]int{}
	for _, res := range results {
		for _, n := range res.Nodes {
			key := strings.ToLower(n.Label) + "|" + n.Type
			if i, ok := nodeIdx[key]; ok {
				if len(n.Properties) > 0 && out.Nodes[i].Properties == nil {
					out.Nodes[i].Properties = map[string]string{}
				}
				for k, v := range n.Properties {
					if _, exists := out.Nodes[i].Properties[k]; !exists {
						out.Nodes[i].Properties[k] = v
					}
				}
				continue
			}
			nodeIdx[key] = len(out.Nodes)
			out.Nodes = append(out.Nodes, n)
		}
	}

	edgeIdx := map[string]int{}
	for _, res := range results {
		for _, e := range res.Edges {
			key := strings.ToLower(e.SourceLabel) + "|" + strings.ToLower(e.TargetLabel) + "|" + e.Type
			if i, ok := edgeIdx[key]; ok {
				if e.Weight > out.Edges[i].Weight {
					out.Edges[i].Weight = e.Weight
				}
				if out.Edges[i].Label == "" {
					out.Edges[i].Label = e.Label
				}
				continue
			}
			edgeIdx[key] = len(out.Edges)
			out.Edges = append(out.Edges, e)
		}
	}

	return out
}
