// Package storage constructs the graph store backend selected through the
// environment. Everything above it depends only on the store.GraphStore
// contract; the backend is purely a deployment choice.
package storage

import (
	"context"
	"fmt"

	"github.com/notegraph/backend/internal/util"
	"github.com/notegraph/backend/pkg/store"
	"github.com/notegraph/backend/pkg/store/file"
	"github.com/notegraph/backend/pkg/store/memory"
	"github.com/notegraph/backend/pkg/store/neo4j"
)

// Backend names accepted in GRAPH_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendNeo4j  = "neo4j"
)

// NewGraphStore builds the store named by GRAPH_BACKEND (default memory).
//
//	memory  - volatile in-process store
//	file    - JSON snapshot at GRAPH_FILE_PATH (default graph.json)
//	neo4j   - remote store at NEO4J_URI with NEO4J_USER/NEO4J_PASSWORD
func NewGraphStore(ctx context.Context) (store.GraphStore, error) {
	backend := util.GetEnvString("GRAPH_BACKEND", BackendMemory)

	switch backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendFile:
		path := util.GetEnvString("GRAPH_FILE_PATH", "graph.json")
		return file.Open(ctx, path)
	case BackendNeo4j:
		return neo4j.NewStore(ctx, neo4j.NewStoreParams{
			URI:      util.GetEnv("NEO4J_URI"),
			User:     util.GetEnv("NEO4J_USER"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnvString("NEO4J_DATABASE", "neo4j"),
		})
	default:
		return nil, fmt.Errorf("unknown graph backend %q", backend)
	}
}
