package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransactionStagesUntilCommit(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	tx, err := gateway.BeginTransaction(ctx)
	require.NoError(t, err)

	node := Node{Kind: KindClass, ID: "class:p:A", Properties: map[string]any{"name": "A"}}
	require.NoError(t, tx.UpsertNode(ctx, node))

	// Visible inside the transaction, invisible outside.
	staged, err := tx.FindNodeByID(ctx, node.ID)
	require.NoError(t, err)
	require.NotNil(t, staged)
	_, ok := gateway.NodeSnapshot(node.ID)
	assert.False(t, ok)

	require.NoError(t, tx.Commit(ctx))
	persisted, ok := gateway.NodeSnapshot(node.ID)
	require.True(t, ok)
	assert.Equal(t, "A", persisted.Properties["name"])
}

func TestMemoryTransactionRollbackDiscards(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	tx, err := gateway.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindClass, ID: "class:p:A", Properties: map[string]any{}}))
	require.NoError(t, tx.Rollback(ctx))

	_, ok := gateway.NodeSnapshot("class:p:A")
	assert.False(t, ok)

	// A closed transaction rejects further writes.
	err = tx.UpsertNode(ctx, Node{Kind: KindClass, ID: "class:p:B", Properties: map[string]any{}})
	assert.Error(t, err)
}

func TestCreateEdgeIfAbsentDistinguishesClassifiers(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	tx, err := gateway.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindMethod, ID: "m", Properties: map[string]any{}}))
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindClass, ID: "c", Properties: map[string]any{}}))

	created, err := tx.CreateEdgeIfAbsent(ctx, Edge{Type: EdgeUses, FromID: "m", ToID: "c", Properties: map[string]any{"kind": UsesMethodReturn}})
	require.NoError(t, err)
	assert.True(t, created)

	// Same pair, same classifier: absent-check says no.
	created, err = tx.CreateEdgeIfAbsent(ctx, Edge{Type: EdgeUses, FromID: "m", ToID: "c", Properties: map[string]any{"kind": UsesMethodReturn}})
	require.NoError(t, err)
	assert.False(t, created)

	// Same pair, different classifier: a distinct edge.
	created, err = tx.CreateEdgeIfAbsent(ctx, Edge{Type: EdgeUses, FromID: "m", ToID: "c", Properties: map[string]any{"kind": UsesMethodParam}})
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, tx.Commit(ctx))
	assert.Len(t, gateway.EdgeSnapshots(), 2)
}

func TestCreateEdgesRequiresEndpoints(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	err := gateway.CreateEdges(ctx, []Edge{{Type: EdgeContains, FromID: "missing", ToID: "also-missing"}})
	assert.Error(t, err)
}

func TestCreateEdgesMatchesTransactionalMergeKey(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	tx, err := gateway.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindPackage, ID: "p", Properties: map[string]any{}}))
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindClass, ID: "c", Properties: map[string]any{}}))
	_, err = tx.CreateEdgeIfAbsent(ctx, Edge{Type: EdgeContains, FromID: "p", ToID: "c"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	// The batch path writes the same logical edge; no duplicate appears.
	require.NoError(t, gateway.CreateEdges(ctx, []Edge{{Type: EdgeContains, FromID: "p", ToID: "c"}}))
	assert.Len(t, gateway.EdgeSnapshots(), 1)
}

func TestStatistics(t *testing.T) {
	gateway := NewMemoryGateway()
	ctx := context.Background()

	tx, err := gateway.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindClass, ID: "c1", Properties: map[string]any{}}))
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindClass, ID: "c2", Properties: map[string]any{}}))
	require.NoError(t, tx.UpsertNode(ctx, Node{Kind: KindPackage, ID: "p", Properties: map[string]any{}}))
	_, err = tx.CreateEdgeIfAbsent(ctx, Edge{Type: EdgeContains, FromID: "p", ToID: "c1"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	stats, err := gateway.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Nodes["Class"])
	assert.Equal(t, int64(1), stats.Nodes["Package"])
	assert.Equal(t, int64(1), stats.Edges["CONTAINS"])
}
