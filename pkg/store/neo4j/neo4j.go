// Package neo4j provides a GraphStore backend on a remote Neo4j server.
// Nodes are stored as (:Entity) vertices and edges as [:RELATES_TO]
// relationships carrying the edge type as a property, so arbitrary edge
// type strings never have to be valid Cypher identifiers. Property maps are
// serialized to JSON because Neo4j properties cannot nest.
//
// CRUD and index lookups run as Cypher; path search, subgraph extraction,
// and pattern matching reuse the shared base traverser over the same
// primitives.
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/store"
	"github.com/notegraph/backend/pkg/store/base"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Store is a Neo4j-backed GraphStore. runner abstracts query execution so
// Transact can route the same Cypher through a managed write transaction.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	runner   func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	trav     base.Traverser
}

// NewStoreParams configures a Neo4j store connection.
type NewStoreParams struct {
	URI      string
	User     string
	Password string
	Database string
}

// NewStore connects to the Neo4j server and verifies connectivity.
func NewStore(ctx context.Context, params NewStoreParams) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.User, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", store.ErrUnavailable)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach neo4j at %s: %w", params.URI, store.ErrUnavailable)
	}

	database := params.Database
	if database == "" {
		database = "neo4j"
	}

	s := &Store{
		driver:   driver,
		database: database,
	}
	s.runner = s.runAutocommit
	s.trav = base.Traverser{Reader: s}
	return s, nil
}

var _ store.GraphStore = (*Store)(nil)

func (s *Store) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	return s.runner(ctx, cypher, params)
}

func (s *Store) runAutocommit(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j query failed: %v: %w", err, store.ErrUnavailable)
	}
	return result.Records, nil
}

// Transact runs fn against a store view whose queries all execute inside
// one managed write transaction. The transaction commits when fn returns
// nil and rolls back otherwise.
func (s *Store) Transact(ctx context.Context, fn func(tx store.GraphStore) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(work neo4j.ManagedTransaction) (any, error) {
		txStore := &Store{
			driver:   s.driver,
			database: s.database,
			runner: func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
				result, err := work.Run(ctx, cypher, params)
				if err != nil {
					return nil, fmt.Errorf("neo4j query failed: %v: %w", err, store.ErrUnavailable)
				}
				records, err := result.Collect(ctx)
				if err != nil {
					return nil, fmt.Errorf("neo4j result fetch failed: %v: %w", err, store.ErrUnavailable)
				}
				return records, nil
			},
		}
		txStore.trav = base.Traverser{Reader: txStore}
		return nil, fn(txStore)
	})
	return err
}

func (s *Store) CreateNode(ctx context.Context, node common.Node) (common.Node, error) {
	if node.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return common.Node{}, fmt.Errorf("failed to generate node id: %w", err)
		}
		node.ID = id
	}
	if strings.TrimSpace(node.Label) == "" {
		return common.Node{}, fmt.Errorf("node label is empty: %w", store.ErrIntegrity)
	}
	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = node.CreatedAt
	}

	existing, err := s.run(ctx, "MATCH (e:Entity {id: $id}) RETURN e.id", map[string]any{"id": node.ID})
	if err != nil {
		return common.Node{}, err
	}
	if len(existing) > 0 {
		return common.Node{}, fmt.Errorf("node %s already exists: %w", node.ID, store.ErrIntegrity)
	}

	_, err = s.run(ctx, "CREATE (e:Entity) SET e = $props", map[string]any{"props": nodeProps(node)})
	if err != nil {
		return common.Node{}, err
	}
	return node, nil
}

func (s *Store) GetNode(ctx context.Context, id string) (common.Node, error) {
	records, err := s.run(ctx, "MATCH (e:Entity {id: $id}) RETURN e", map[string]any{"id": id})
	if err != nil {
		return common.Node{}, err
	}
	if len(records) == 0 {
		return common.Node{}, store.NotFoundf("node %s", id)
	}
	return nodeFromRecord(records[0], "e")
}

func (s *Store) UpdateNode(ctx context.Context, node common.Node) (common.Node, error) {
	existing, err := s.GetNode(ctx, node.ID)
	if err != nil {
		return common.Node{}, err
	}
	if strings.TrimSpace(node.Label) == "" {
		return common.Node{}, fmt.Errorf("node label is empty: %w", store.ErrIntegrity)
	}
	node.CreatedAt = existing.CreatedAt
	node.UpdatedAt = time.Now().UTC()

	_, err = s.run(ctx, "MATCH (e:Entity {id: $id}) SET e = $props", map[string]any{
		"id":    node.ID,
		"props": nodeProps(node),
	})
	if err != nil {
		return common.Node{}, err
	}
	return node, nil
}

// DeleteNode detaches and deletes the node, which cascade-deletes every
// incident relationship on the server side.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	if _, err := s.GetNode(ctx, id); err != nil {
		return err
	}
	_, err := s.run(ctx, "MATCH (e:Entity {id: $id}) DETACH DELETE e", map[string]any{"id": id})
	return err
}

func (s *Store) CreateEdge(ctx context.Context, edge common.Edge) (common.Edge, error) {
	if edge.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return common.Edge{}, fmt.Errorf("failed to generate edge id: %w", err)
		}
		edge.ID = id
	}
	if edge.SourceNodeID == edge.TargetNodeID {
		return common.Edge{}, fmt.Errorf("self-referential edge on node %s: %w", edge.SourceNodeID, store.ErrIntegrity)
	}
	if edge.Weight < 0 {
		return common.Edge{}, fmt.Errorf("negative edge weight %f: %w", edge.Weight, store.ErrIntegrity)
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}

	records, err := s.run(ctx,
		`MATCH (a:Entity {id: $source}), (b:Entity {id: $target})
		 CREATE (a)-[r:RELATES_TO]->(b) SET r = $props RETURN r.id`,
		map[string]any{
			"source": edge.SourceNodeID,
			"target": edge.TargetNodeID,
			"props":  edgeProps(edge),
		})
	if err != nil {
		return common.Edge{}, err
	}
	if len(records) == 0 {
		return common.Edge{}, fmt.Errorf("edge endpoints %s -> %s: %w", edge.SourceNodeID, edge.TargetNodeID, store.ErrUnknownEndpoint)
	}
	return edge, nil
}

func (s *Store) GetEdge(ctx context.Context, id string) (common.Edge, error) {
	records, err := s.run(ctx,
		"MATCH (a:Entity)-[r:RELATES_TO {id: $id}]->(b:Entity) RETURN r, a.id AS src, b.id AS tgt",
		map[string]any{"id": id})
	if err != nil {
		return common.Edge{}, err
	}
	if len(records) == 0 {
		return common.Edge{}, store.NotFoundf("edge %s", id)
	}
	return edgeFromRecord(records[0])
}

func (s *Store) UpdateEdge(ctx context.Context, edge common.Edge) (common.Edge, error) {
	existing, err := s.GetEdge(ctx, edge.ID)
	if err != nil {
		return common.Edge{}, err
	}
	if edge.SourceNodeID == edge.TargetNodeID {
		return common.Edge{}, fmt.Errorf("self-referential edge on node %s: %w", edge.SourceNodeID, store.ErrIntegrity)
	}
	if edge.Weight < 0 {
		return common.Edge{}, fmt.Errorf("negative edge weight %f: %w", edge.Weight, store.ErrIntegrity)
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}
	edge.CreatedAt = existing.CreatedAt

	if existing.SourceNodeID != edge.SourceNodeID || existing.TargetNodeID != edge.TargetNodeID {
		// Endpoint changes recreate the relationship under the same id.
		if err := s.DeleteEdge(ctx, edge.ID); err != nil {
			return common.Edge{}, err
		}
		return s.CreateEdge(ctx, edge)
	}

	_, err = s.run(ctx, "MATCH ()-[r:RELATES_TO {id: $id}]->() SET r = $props", map[string]any{
		"id":    edge.ID,
		"props": edgeProps(edge),
	})
	if err != nil {
		return common.Edge{}, err
	}
	return edge, nil
}

func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	if _, err := s.GetEdge(ctx, id); err != nil {
		return err
	}
	_, err := s.run(ctx, "MATCH ()-[r:RELATES_TO {id: $id}]->() DELETE r", map[string]any{"id": id})
	return err
}

func (s *Store) FindNodes(ctx context.Context, labelPattern string, nodeType string) ([]common.Node, error) {
	cypher := "MATCH (e:Entity) WHERE toLower(e.label) CONTAINS toLower($pattern)"
	params := map[string]any{"pattern": labelPattern}
	if nodeType != "" {
		cypher += " AND e.type = $type"
		params["type"] = nodeType
	}
	cypher += " RETURN e"

	records, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(records, "e")
}

func (s *Store) FindEdges(ctx context.Context, sourceNodeID string, edgeType string) ([]common.Edge, error) {
	if _, err := s.GetNode(ctx, sourceNodeID); err != nil {
		return nil, err
	}
	cypher := "MATCH (a:Entity {id: $source})-[r:RELATES_TO]->(b:Entity)"
	params := map[string]any{"source": sourceNodeID}
	if edgeType != "" {
		cypher += " WHERE r.type = $type"
		params["type"] = edgeType
	}
	cypher += " RETURN r, a.id AS src, b.id AS tgt"

	records, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records)
}

func (s *Store) GetConnectedNodes(ctx context.Context, nodeID string, edgeType string, direction store.Direction) ([]common.Node, error) {
	if _, err := s.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}
	if direction == "" {
		direction = store.DirectionBoth
	}

	var match string
	switch direction {
	case store.DirectionOutgoing:
		match = "MATCH (a:Entity {id: $id})-[r:RELATES_TO]->(n:Entity)"
	case store.DirectionIncoming:
		match = "MATCH (a:Entity {id: $id})<-[r:RELATES_TO]-(n:Entity)"
	default:
		match = "MATCH (a:Entity {id: $id})-[r:RELATES_TO]-(n:Entity)"
	}

	cypher := match
	params := map[string]any{"id": nodeID}
	if edgeType != "" {
		cypher += " WHERE r.type = $type"
		params["type"] = edgeType
	}
	cypher += " RETURN DISTINCT n"

	records, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(records, "n")
}

func (s *Store) FindPaths(ctx context.Context, sourceID string, targetID string, opts store.PathOptions) ([]common.Path, error) {
	return s.trav.FindPaths(ctx, sourceID, targetID, opts)
}

func (s *Store) ExtractSubgraph(ctx context.Context, centralNodeID string, depth int, opts store.SubgraphOptions) (common.Subgraph, error) {
	return s.trav.ExtractSubgraph(ctx, centralNodeID, depth, opts)
}

func (s *Store) FindPatterns(ctx context.Context, pattern common.Pattern, parameters map[string]string) ([]common.PatternMatch, error) {
	return s.trav.FindPatterns(ctx, pattern, parameters)
}

func (s *Store) ListNodes(ctx context.Context) ([]common.Node, error) {
	records, err := s.run(ctx, "MATCH (e:Entity) RETURN e ORDER BY e.id", nil)
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(records, "e")
}

func (s *Store) ListEdges(ctx context.Context) ([]common.Edge, error) {
	records, err := s.run(ctx,
		"MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity) RETURN r, a.id AS src, b.id AS tgt ORDER BY r.id", nil)
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records)
}

// OutgoingEdges implements base.GraphReader.
func (s *Store) OutgoingEdges(ctx context.Context, nodeID string) ([]common.Edge, error) {
	records, err := s.run(ctx,
		"MATCH (a:Entity {id: $id})-[r:RELATES_TO]->(b:Entity) RETURN r, a.id AS src, b.id AS tgt",
		map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records)
}

// IncomingEdges implements base.GraphReader.
func (s *Store) IncomingEdges(ctx context.Context, nodeID string) ([]common.Edge, error) {
	records, err := s.run(ctx,
		"MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity {id: $id}) RETURN r, a.id AS src, b.id AS tgt",
		map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records)
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func nodeProps(n common.Node) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"type":       n.Type,
		"label":      n.Label,
		"properties": encodeProps(n.Properties),
		"sources":    toAnySlice(n.Sources),
		"created_at": n.CreatedAt.UnixNano(),
		"updated_at": n.UpdatedAt.UnixNano(),
	}
}

func edgeProps(e common.Edge) map[string]any {
	return map[string]any{
		"id":         e.ID,
		"type":       e.Type,
		"label":      e.Label,
		"properties": encodeProps(e.Properties),
		"sources":    toAnySlice(e.Sources),
		"weight":     e.Weight,
		"created_at": e.CreatedAt.UnixNano(),
	}
}

func nodesFromRecords(records []*neo4j.Record, key string) ([]common.Node, error) {
	nodes := make([]common.Node, 0, len(records))
	for _, record := range records {
		node, err := nodeFromRecord(record, key)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func nodeFromRecord(record *neo4j.Record, key string) (common.Node, error) {
	value, ok := record.Get(key)
	if !ok {
		return common.Node{}, fmt.Errorf("missing node column %q: %w", key, store.ErrUnavailable)
	}
	dbNode, ok := value.(dbtype.Node)
	if !ok {
		return common.Node{}, fmt.Errorf("unexpected node value %T: %w", value, store.ErrUnavailable)
	}
	props := dbNode.Props

	return common.Node{
		ID:         asString(props["id"]),
		Type:       asString(props["type"]),
		Label:      asString(props["label"]),
		Properties: decodeProps(asString(props["properties"])),
		Sources:    toStringSlice(props["sources"]),
		CreatedAt:  time.Unix(0, asInt64(props["created_at"])).UTC(),
		UpdatedAt:  time.Unix(0, asInt64(props["updated_at"])).UTC(),
	}, nil
}

func edgesFromRecords(records []*neo4j.Record) ([]common.Edge, error) {
	edges := make([]common.Edge, 0, len(records))
	for _, record := range records {
		edge, err := edgeFromRecord(record)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func edgeFromRecord(record *neo4j.Record) (common.Edge, error) {
	value, ok := record.Get("r")
	if !ok {
		return common.Edge{}, fmt.Errorf("missing edge column: %w", store.ErrUnavailable)
	}
	rel, ok := value.(dbtype.Relationship)
	if !ok {
		return common.Edge{}, fmt.Errorf("unexpected edge value %T: %w", value, store.ErrUnavailable)
	}
	src, _ := record.Get("src")
	tgt, _ := record.Get("tgt")
	props := rel.Props

	return common.Edge{
		ID:           asString(props["id"]),
		SourceNodeID: asString(src),
		TargetNodeID: asString(tgt),
		Type:         asString(props["type"]),
		Label:        asString(props["label"]),
		Properties:   decodeProps(asString(props["properties"])),
		Sources:      toStringSlice(props["sources"]),
		Weight:       asFloat64(props["weight"]),
		CreatedAt:    time.Unix(0, asInt64(props["created_at"])).UTC(),
	}, nil
}

func encodeProps(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeProps(data string) map[string]string {
	if data == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil
	}
	return m
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toStringSlice(value any) []string {
	values, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, asString(v))
	}
	return out
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asInt64(value any) int64 {
	n, _ := value.(int64)
	return n
}

func asFloat64(value any) float64 {
	f, _ := value.(float64)
	return f
}
