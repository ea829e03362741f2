// Package graph implements the similarity and merge engine on top of a
// store.GraphStore. It decides when two nodes describe the same real-world
// entity, folds duplicates together, and drives document ingestion.
package graph

import (
	"sort"
	"strings"
	"sync"
)

const (
	// DefaultMergeThreshold is the similarity score at or above which two
	// nodes of the same type are considered the same entity.
	DefaultMergeThreshold = 0.85

	// DefaultLabelWeight and DefaultPropertyWeight control how label
	// similarity and property overlap contribute to the combined score.
	// They must sum to 1.
	DefaultLabelWeight    = 0.7
	DefaultPropertyWeight = 0.3

	// DefaultParallelDocs bounds how many documents are ingested
	// concurrently by ProcessDocuments.
	DefaultParallelDocs = 4
)

// GraphClient holds the merge configuration and the per-entity locks that
// serialize concurrent writes against the same logical entity.
type GraphClient struct {
	mergeThreshold float64
	labelWeight    float64
	propertyWeight float64
	parallelDocs   int

	// typeAliases maps alternate type spellings onto a canonical type so
	// that e.g. "PER" and "PERSON" pass the type gate.
	typeAliases map[string]string

	locks keyedMutex
}

// NewGraphClientParams contains configuration options for creating a new GraphClient.
// Zero values fall back to the package defaults.
type NewGraphClientParams struct {
	MergeThreshold float64
	LabelWeight    float64
	PropertyWeight float64
	ParallelDocs   int
	TypeAliases    map[string]string
}

// NewGraphClient creates a merge engine with the given configuration.
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	c := &GraphClient{
		mergeThreshold: params.MergeThreshold,
		labelWeight:    params.LabelWeight,
		propertyWeight: params.PropertyWeight,
		parallelDocs:   params.ParallelDocs,
		typeAliases:    map[string]string{},
	}
	if c.mergeThreshold <= 0 {
		c.mergeThreshold = DefaultMergeThreshold
	}
	if c.labelWeight <= 0 && c.propertyWeight <= 0 {
		c.labelWeight = DefaultLabelWeight
		c.propertyWeight = DefaultPropertyWeight
	}
	if c.parallelDocs <= 0 {
		c.parallelDocs = DefaultParallelDocs
	}
	for alias, canonical := range params.TypeAliases {
		c.typeAliases[normalizeType(alias)] = normalizeType(canonical)
	}
	return c
}

// ParseTypeAliases parses a comma-separated list of alias=canonical pairs,
// e.g. "COMPANY=ORGANIZATION,PER=PERSON". Malformed entries are skipped.
func ParseTypeAliases(raw string) map[string]string {
	aliases := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		alias, canonical, ok := strings.Cut(pair, "=")
		alias = strings.TrimSpace(alias)
		canonical = strings.TrimSpace(canonical)
		if !ok || alias == "" || canonical == "" {
			continue
		}
		aliases[alias] = canonical
	}
	return aliases
}

// canonicalType resolves a node type through the alias table.
func (c *GraphClient) canonicalType(nodeType string) string {
	t := normalizeType(nodeType)
	if canonical, ok := c.typeAliases[t]; ok {
		return canonical
	}
	return t
}

func normalizeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// normalizeLabel lowercases a label and collapses runs of whitespace so
// that formatting differences do not affect comparison.
func normalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// entityKey identifies a logical entity for locking purposes.
func (c *GraphClient) entityKey(label, nodeType string) string {
	return normalizeLabel(label) + "|" + c.canonicalType(nodeType)
}

// keyedMutex hands out one mutex per string key. Keys are never evicted
// within the lifetime of a client, which is fine for the entity volumes a
// single ingestion run touches.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// lock acquires the mutexes for all keys in sorted order so that two
// goroutines locking overlapping key sets cannot deadlock. The returned
// function releases them in reverse order.
func (k *keyedMutex) lock(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := map[string]bool{}
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			sorted = append(sorted, key)
		}
	}
	sort.Strings(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, key := range sorted {
		l := k.get(key)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
