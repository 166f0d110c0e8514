package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/audit"
	"github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/graph"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func classNode(id string, props map[string]any) graph.Node {
	if props == nil {
		props = map[string]any{}
	}
	return graph.Node{Kind: graph.KindClass, ID: id, Properties: props}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeUpsert, false},
		{"upsert", ModeUpsert, false},
		{"insert_only", ModeInsertOnly, false},
		{"update_only", ModeUpdateOnly, false},
		{"replace", "", true},
	}

	for _, tt := range tests {
		mode, err := ParseMode(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, mode)
	}
}

func TestUpsertBatchInsertThenSkip(t *testing.T) {
	gateway := graph.NewMemoryGateway()
	engine := NewEngine(gateway, nil, testLogger())
	ctx := context.Background()

	node := classNode("class:com.example:UserService", map[string]any{
		"name":         "UserService",
		"package_name": "com.example",
		"modifiers":    []string{"public", "final"},
	})

	results, err := engine.UpsertBatch(ctx, []graph.Node{node})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OperationInsert, results[0].Operation)
	assert.NoError(t, results[0].Err)

	persisted, ok := gateway.NodeSnapshot(node.ID)
	require.True(t, ok)
	assert.Equal(t, "UserService", persisted.Properties["name"])
	assert.NotEmpty(t, persisted.Properties["created_at"])
	assert.NotEmpty(t, persisted.Properties["updated_at"])

	// Identical re-ingestion is a skip, even with modifiers reordered.
	again := classNode(node.ID, map[string]any{
		"name":         "UserService",
		"package_name": "com.example",
		"modifiers":    []string{"final", "public"},
	})
	results, err = engine.UpsertBatch(ctx, []graph.Node{again})
	require.NoError(t, err)
	assert.Equal(t, OperationSkip, results[0].Operation)
	assert.Equal(t, OutcomeIdentical, results[0].Outcome)
}

func TestUpsertBatchUpdatePreservesCreatedAt(t *testing.T) {
	gateway := graph.NewMemoryGateway()
	first := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	clock := first
	engine := NewEngine(gateway, nil, testLogger(), WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	node := classNode("class:com.example:UserService", map[string]any{
		"name":       "UserService",
		"visibility": "public",
	})
	_, err := engine.UpsertBatch(ctx, []graph.Node{node})
	require.NoError(t, err)

	clock = first.Add(48 * time.Hour)
	changed := classNode(node.ID, map[string]any{
		"name":       "UserService",
		"visibility": "public",
		"superclass": "BaseService",
	})
	results, err := engine.UpsertBatch(ctx, []graph.Node{changed})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OperationUpdate, results[0].Operation)
	assert.Equal(t, OutcomePropertiesChanged, results[0].Outcome)
	assert.Contains(t, results[0].Changes, "superclass")
	assert.Equal(t, ChangeAdded, results[0].Changes["superclass"].Type)

	persisted, ok := gateway.NodeSnapshot(node.ID)
	require.True(t, ok)
	assert.Equal(t, first.Format(time.RFC3339), persisted.Properties["created_at"])
	assert.Equal(t, clock.Format(time.RFC3339), persisted.Properties["updated_at"])
	assert.Equal(t, "BaseService", persisted.Properties["superclass"])
}

func TestUpsertBatchDropsRemovedProperties(t *testing.T) {
	gateway := graph.NewMemoryGateway()
	engine := NewEngine(gateway, nil, testLogger())
	ctx := context.Background()

	full := classNode("class:com.example:UserService", map[string]any{
		"name":       "UserService",
		"superclass": "BaseService",
	})
	_, err := engine.UpsertBatch(ctx, []graph.Node{full})
	require.NoError(t, err)

	// The superclass was deleted upstream; the update must drop it from the
	// persisted node, not just overlay the surviving keys.
	reduced := classNode(full.ID, map[string]any{"name": "UserService"})
	results, err := engine.UpsertBatch(ctx, []graph.Node{reduced})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OperationUpdate, results[0].Operation)
	assert.Equal(t, ChangeRemoved, results[0].Changes["superclass"].Type)

	persisted, ok := gateway.NodeSnapshot(full.ID)
	require.True(t, ok)
	assert.NotContains(t, persisted.Properties, "superclass")

	// Re-ingesting the reduced node converges to a skip.
	results, err = engine.UpsertBatch(ctx, []graph.Node{reduced})
	require.NoError(t, err)
	assert.Equal(t, OperationSkip, results[0].Operation)
	assert.Equal(t, OutcomeIdentical, results[0].Outcome)
}

// failingTransaction breaks lookups after a threshold, standing in for a
// connection dropped mid-batch.
type failingTransaction struct {
	graph.Transaction
	remaining int
}

func (t *failingTransaction) FindNodeByID(ctx context.Context, id string) (*graph.Node, error) {
	if t.remaining <= 0 {
		return nil, fmt.Errorf("connection reset")
	}
	t.remaining--
	return t.Transaction.FindNodeByID(ctx, id)
}

type failingGateway struct {
	*graph.MemoryGateway
	lookups int
}

func (g *failingGateway) BeginTransaction(ctx context.Context) (graph.Transaction, error) {
	tx, err := g.MemoryGateway.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTransaction{Transaction: tx, remaining: g.lookups}, nil
}

func TestUpsertBatchAbortsOnTransportFailure(t *testing.T) {
	gateway := &failingGateway{MemoryGateway: graph.NewMemoryGateway(), lookups: 1}
	engine := NewEngine(gateway, nil, testLogger())
	ctx := context.Background()

	nodes := []graph.Node{
		classNode("class:p:A", map[string]any{"name": "A"}),
		classNode("class:p:B", map[string]any{"name": "B"}),
		classNode("class:p:C", map[string]any{"name": "C"}),
	}
	results, err := engine.UpsertBatch(ctx, nodes)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypePersistence, errors.GetType(err))
	assert.Nil(t, results)

	// The batch rolled back; the node written before the failure is gone.
	_, ok := gateway.NodeSnapshot("class:p:A")
	assert.False(t, ok)
}

func TestUpsertBatchKindConflict(t *testing.T) {
	gateway := graph.NewMemoryGateway()
	engine := NewEngine(gateway, nil, testLogger())
	ctx := context.Background()

	_, err := engine.UpsertBatch(ctx, []graph.Node{classNode("class:com.example:Thing", map[string]any{"name": "Thing"})})
	require.NoError(t, err)

	clash := graph.Node{
		Kind:       graph.KindMethod,
		ID:         "class:com.example:Thing",
		Properties: map[string]any{"name": "Thing"},
	}
	results, err := engine.UpsertBatch(ctx, []graph.Node{clash})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OperationError, results[0].Operation)
	assert.Equal(t, OutcomeConflict, results[0].Outcome)
	assert.Equal(t, errors.ErrorTypeConflict, errors.GetType(results[0].Err))

	// The persisted node must be untouched.
	persisted, ok := gateway.NodeSnapshot("class:com.example:Thing")
	require.True(t, ok)
	assert.Equal(t, graph.KindClass, persisted.Kind)
}

func TestModeEnforcement(t *testing.T) {
	ctx := context.Background()
	node := classNode("class:com.example:A", map[string]any{"name": "A"})

	t.Run("insert_only rejects existing", func(t *testing.T) {
		gateway := graph.NewMemoryGateway()
		seed := NewEngine(gateway, nil, testLogger())
		_, err := seed.UpsertBatch(ctx, []graph.Node{node})
		require.NoError(t, err)

		engine := NewEngine(gateway, nil, testLogger(), WithMode(ModeInsertOnly))
		changed := classNode(node.ID, map[string]any{"name": "A", "visibility": "public"})
		results, err := engine.UpsertBatch(ctx, []graph.Node{changed})
		require.NoError(t, err)
		assert.Equal(t, OperationError, results[0].Operation)
		assert.Equal(t, errors.ErrorTypeAlreadyExists, errors.GetType(results[0].Err))

		// Identical nodes still skip cleanly in insert_only mode.
		results, err = engine.UpsertBatch(ctx, []graph.Node{node})
		require.NoError(t, err)
		assert.Equal(t, OperationSkip, results[0].Operation)
	})

	t.Run("update_only rejects missing", func(t *testing.T) {
		gateway := graph.NewMemoryGateway()
		engine := NewEngine(gateway, nil, testLogger(), WithMode(ModeUpdateOnly))
		results, err := engine.UpsertBatch(ctx, []graph.Node{node})
		require.NoError(t, err)
		assert.Equal(t, OperationError, results[0].Operation)
		assert.Equal(t, errors.ErrorTypeNotFound, errors.GetType(results[0].Err))

		_, ok := gateway.NodeSnapshot(node.ID)
		assert.False(t, ok)
	})
}

func TestEnsureNodesNeverOverwrites(t *testing.T) {
	gateway := graph.NewMemoryGateway()
	engine := NewEngine(gateway, nil, testLogger())
	ctx := context.Background()

	real := classNode("class:com.example:User", map[string]any{
		"name":        "User",
		"visibility":  "public",
		"is_external": false,
	})
	_, err := engine.UpsertBatch(ctx, []graph.Node{real})
	require.NoError(t, err)

	placeholder := classNode("class:com.example:User", map[string]any{
		"name":        "User",
		"is_external": true,
	})
	fresh := classNode("class:java.util:List", map[string]any{
		"name":        "List",
		"is_external": true,
	})
	results, err := engine.EnsureNodes(ctx, []graph.Node{placeholder, fresh})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, OperationSkip, results[0].Operation)
	assert.Equal(t, OperationInsert, results[1].Operation)

	persisted, ok := gateway.NodeSnapshot(real.ID)
	require.True(t, ok)
	assert.Equal(t, false, persisted.Properties["is_external"])

	inserted, ok := gateway.NodeSnapshot(fresh.ID)
	require.True(t, ok)
	assert.Equal(t, true, inserted.Properties["is_external"])
}

func TestAuditTrailOnInsertAndUpdate(t *testing.T) {
	gateway := graph.NewMemoryGateway()
	recorder := audit.NewMemoryRecorder()
	engine := NewEngine(gateway, nil, testLogger(), WithRecorder(recorder), WithSource("test-run"))
	ctx := context.Background()

	node := classNode("class:com.example:B", map[string]any{"name": "B"})
	_, err := engine.UpsertBatch(ctx, []graph.Node{node})
	require.NoError(t, err)

	// Skip records nothing.
	_, err = engine.UpsertBatch(ctx, []graph.Node{node})
	require.NoError(t, err)

	changed := classNode(node.ID, map[string]any{"name": "B", "superclass": "A"})
	_, err = engine.UpsertBatch(ctx, []graph.Node{changed})
	require.NoError(t, err)

	records := recorder.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "INSERT", records[0].Operation)
	assert.Nil(t, records[0].OldSnapshot)
	assert.Equal(t, "UPDATE", records[1].Operation)
	assert.NotNil(t, records[1].OldSnapshot)
	assert.Equal(t, "test-run", records[1].Source)
	assert.Equal(t, node.ID, records[1].NodeID)
}

func TestStatisticsAccumulateAndReset(t *testing.T) {
	gateway := graph.NewMemoryGateway()
	stats := NewStatistics()
	engine := NewEngine(gateway, stats, testLogger())
	ctx := context.Background()

	a := classNode("class:p:A", map[string]any{"name": "A"})
	b := classNode("class:p:B", map[string]any{"name": "B"})
	_, err := engine.UpsertBatch(ctx, []graph.Node{a, b})
	require.NoError(t, err)
	_, err = engine.UpsertBatch(ctx, []graph.Node{a})
	require.NoError(t, err)

	inserts, updates, skips, errs, total := stats.Snapshot()
	assert.Equal(t, int64(2), inserts)
	assert.Equal(t, int64(0), updates)
	assert.Equal(t, int64(1), skips)
	assert.Equal(t, int64(0), errs)
	assert.Equal(t, int64(3), total)

	stats.Reset()
	_, _, _, _, total = stats.Snapshot()
	assert.Equal(t, int64(0), total)
}
