package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jGateway implements Gateway against Neo4j with parameterized Cypher.
type Neo4jGateway struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jGateway creates a Neo4j gateway and verifies connectivity.
func NewNeo4jGateway(ctx context.Context, uri, username, password, database string) (*Neo4jGateway, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	return &Neo4jGateway{
		driver:   driver,
		database: database,
	}, nil
}

// BeginTransaction opens an explicit transaction. Lookup and write for one
// node ID ride the same transaction, which is what keeps a single upsert
// decision atomic under the driver's isolation.
func (g *Neo4jGateway) BeginTransaction(ctx context.Context) (Transaction, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.database,
		AccessMode:   neo4j.AccessModeWrite,
	})

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &neo4jTransaction{session: session, tx: tx}, nil
}

// Statistics returns node and edge counts by label/type.
func (g *Neo4jGateway) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{
		Nodes: make(map[string]int64),
		Edges: make(map[string]int64),
	}

	nodeResult, err := neo4j.ExecuteQuery(ctx, g.driver,
		"MATCH (n) RETURN labels(n)[0] AS label, count(n) AS count",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return stats, fmt.Errorf("node statistics query failed: %w", err)
	}
	for _, record := range nodeResult.Records {
		label, _ := record.Get("label")
		count, _ := record.Get("count")
		if l, ok := label.(string); ok {
			if c, ok := count.(int64); ok {
				stats.Nodes[l] = c
			}
		}
	}

	edgeResult, err := neo4j.ExecuteQuery(ctx, g.driver,
		"MATCH ()-[r]->() RETURN type(r) AS type, count(r) AS count",
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return stats, fmt.Errorf("edge statistics query failed: %w", err)
	}
	for _, record := range edgeResult.Records {
		edgeType, _ := record.Get("type")
		count, _ := record.Get("count")
		if t, ok := edgeType.(string); ok {
			if c, ok := count.(int64); ok {
				stats.Edges[t] = c
			}
		}
	}

	return stats, nil
}

// Close closes the Neo4j driver connection
func (g *Neo4jGateway) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// neo4jTransaction wraps an explicit driver transaction and its session.
type neo4jTransaction struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

// FindNodeByID fetches a node by its id property inside the transaction.
func (t *neo4jTransaction) FindNodeByID(ctx context.Context, id string) (*Node, error) {
	result, err := t.tx.Run(ctx,
		"MATCH (n {id: $id}) RETURN labels(n)[0] AS label, properties(n) AS props LIMIT 1",
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to look up node %s: %w", id, err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		// Single errors when zero records matched; absent is not a failure.
		if result.Err() != nil {
			return nil, fmt.Errorf("failed to read node %s: %w", id, result.Err())
		}
		return nil, nil
	}

	label, _ := record.Get("label")
	props, _ := record.Get("props")

	node := &Node{ID: id, Properties: map[string]any{}}
	if l, ok := label.(string); ok {
		node.Kind = NodeKind(l)
	}
	if p, ok := props.(map[string]any); ok {
		node.Properties = p
	}
	return node, nil
}

// UpsertNode merges the node by id, applying all properties.
func (t *neo4jTransaction) UpsertNode(ctx context.Context, node Node) error {
	builder := NewCypherBuilder()
	cypher, err := builder.BuildMergeNode(string(node.Kind), node.ID, node.Properties)
	if err != nil {
		return fmt.Errorf("failed to build node query: %w", err)
	}

	if _, err := t.tx.Run(ctx, cypher, builder.Params()); err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", node.ID, err)
	}
	return nil
}

// CreateEdgeIfAbsent merges the edge, keyed by endpoints, type, and the
// classifier properties. Returns true when the edge was newly created.
func (t *neo4jTransaction) CreateEdgeIfAbsent(ctx context.Context, edge Edge) (bool, error) {
	builder := NewCypherBuilder()
	cypher, err := builder.BuildMergeEdge(edge.FromID, edge.ToID, string(edge.Type), edge.Properties)
	if err != nil {
		return false, fmt.Errorf("failed to build edge query: %w", err)
	}

	result, err := t.tx.Run(ctx, cypher, builder.Params())
	if err != nil {
		return false, fmt.Errorf("failed to create edge %s: from=%s to=%s: %w",
			edge.Type, edge.FromID, edge.ToID, err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		// No record means an endpoint was missing; the pipeline's two-phase
		// ordering should make that impossible for same-batch targets.
		return false, fmt.Errorf("edge creation matched no endpoints: %s: from=%s to=%s",
			edge.Type, edge.FromID, edge.ToID)
	}

	created, _ := record.Get("created")
	if c, ok := created.(bool); ok {
		return c, nil
	}
	return false, nil
}

func (t *neo4jTransaction) Commit(ctx context.Context) error {
	defer t.session.Close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *neo4jTransaction) Rollback(ctx context.Context) error {
	defer t.session.Close(ctx)
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
