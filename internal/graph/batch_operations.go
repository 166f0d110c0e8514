package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// EdgeBatchWriter is implemented by gateways that support bulk edge merges.
// The ingestion pipeline prefers it for the edge phase; per-edge
// CreateEdgeIfAbsent remains the portable fallback.
type EdgeBatchWriter interface {
	CreateEdges(ctx context.Context, edges []Edge) error
}

// CreateEdges merges edges in UNWIND batches grouped by type.
//
// The UNWIND pattern is the efficient way to write many edges: one round trip
// per batch instead of one per edge, and Neo4j can optimize execution.
func (g *Neo4jGateway) CreateEdges(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}

	edgesByType := make(map[EdgeType][]Edge)
	for _, edge := range edges {
		edgesByType[edge.Type] = append(edgesByType[edge.Type], edge)
	}

	config := DefaultBatchConfig()
	for edgeType, edgeList := range edgesByType {
		if err := g.createEdgesBatchByType(ctx, edgeType, edgeList, config.EdgeBatchSize); err != nil {
			return err
		}
	}

	return nil
}

// createEdgesBatchByType merges a batch of edges sharing one relationship
// type. The merge key includes the classifier properties so parallel USES
// edges between the same pair stay distinct.
func (g *Neo4jGateway) createEdgesBatchByType(ctx context.Context, edgeType EdgeType, edges []Edge, batchSize int) error {
	if !isValidIdentifier(string(edgeType)) {
		return fmt.Errorf("invalid edge type: %s", edgeType)
	}

	for i := 0; i < len(edges); i += batchSize {
		end := i + batchSize
		if end > len(edges) {
			end = len(edges)
		}

		batch := edges[i:end]
		edgeParams := make([]map[string]any, len(batch))
		for j, edge := range batch {
			props := normalizeEdgeProperties(edge.Properties)
			edgeParams[j] = map[string]any{
				"from_id": edge.FromID,
				"to_id":   edge.ToID,
				"props":   props,
			}
		}

		// Classifier properties participate in the merge so repeated
		// ingestions stay idempotent while distinct USES kinds coexist.
		query := fmt.Sprintf(`
			UNWIND $edges AS edge
			MATCH (from {id: edge.from_id})
			MATCH (to {id: edge.to_id})
			MERGE (from)-[r:%s {kind: edge.props.kind, context: edge.props.context, target_type: edge.props.target_type}]->(to)
			SET r += edge.props
			RETURN count(r) AS created
		`, edgeType)

		result, err := neo4j.ExecuteQuery(ctx, g.driver, query,
			map[string]any{"edges": edgeParams},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(g.database))
		if err != nil {
			return fmt.Errorf("batch edge creation failed for %s (batch %d-%d): %w",
				edgeType, i, end, err)
		}

		if len(result.Records) > 0 {
			if created, ok := result.Records[0].Get("created"); ok {
				createdCount, _ := created.(int64)
				if createdCount < int64(len(batch)) {
					logrus.WithFields(logrus.Fields{
						"edge_type": edgeType,
						"written":   createdCount,
						"batch":     len(batch),
					}).Warn("Some edges matched no endpoints")
				}
			}
		}
	}

	return nil
}
