package graph

import (
	"context"
	"fmt"
	"sync"
)

// MemoryGateway is an in-process Gateway used for tests and dry runs. It
// mirrors the Neo4j gateway's merge semantics: nodes keyed by id, edges keyed
// by endpoints, type, and the classifier properties.
type MemoryGateway struct {
	mu    sync.Mutex
	nodes map[string]Node
	edges map[string]Edge
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		nodes: make(map[string]Node),
		edges: make(map[string]Edge),
	}
}

// BeginTransaction opens a transaction that stages writes until Commit.
func (g *MemoryGateway) BeginTransaction(ctx context.Context) (Transaction, error) {
	return &memoryTransaction{
		gateway:      g,
		stagedNodes:  make(map[string]Node),
		stagedEdges:  make(map[string]Edge),
		createdEdges: make(map[string]bool),
	}, nil
}

// Statistics returns node and edge counts by kind.
func (g *MemoryGateway) Statistics(ctx context.Context) (Statistics, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := Statistics{
		Nodes: make(map[string]int64),
		Edges: make(map[string]int64),
	}
	for _, node := range g.nodes {
		stats.Nodes[string(node.Kind)]++
	}
	for _, edge := range g.edges {
		stats.Edges[string(edge.Type)]++
	}
	return stats, nil
}

// Close is a no-op for the in-memory gateway.
func (g *MemoryGateway) Close(ctx context.Context) error {
	return nil
}

// CreateEdges implements EdgeBatchWriter with the same merge key as the
// transactional path.
func (g *MemoryGateway) CreateEdges(ctx context.Context, edges []Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, edge := range edges {
		if _, ok := g.nodes[edge.FromID]; !ok {
			return fmt.Errorf("edge %s references missing node %s", edge.Type, edge.FromID)
		}
		if _, ok := g.nodes[edge.ToID]; !ok {
			return fmt.Errorf("edge %s references missing node %s", edge.Type, edge.ToID)
		}
		normalized := edge
		normalized.Properties = normalizeEdgeProperties(edge.Properties)
		g.edges[edgeKey(normalized)] = normalized
	}
	return nil
}

// NodeSnapshot returns a copy of a persisted node, for test assertions.
func (g *MemoryGateway) NodeSnapshot(id string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	node, ok := g.nodes[id]
	return copyNode(node), ok
}

// EdgeSnapshots returns all persisted edges, for test assertions.
func (g *MemoryGateway) EdgeSnapshots() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	return edges
}

type memoryTransaction struct {
	gateway      *MemoryGateway
	stagedNodes  map[string]Node
	stagedEdges  map[string]Edge
	createdEdges map[string]bool
	done         bool
}

func (t *memoryTransaction) FindNodeByID(ctx context.Context, id string) (*Node, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already closed")
	}

	if node, ok := t.stagedNodes[id]; ok {
		copied := copyNode(node)
		return &copied, nil
	}

	t.gateway.mu.Lock()
	defer t.gateway.mu.Unlock()
	if node, ok := t.gateway.nodes[id]; ok {
		copied := copyNode(node)
		return &copied, nil
	}
	return nil, nil
}

func (t *memoryTransaction) UpsertNode(ctx context.Context, node Node) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.stagedNodes[node.ID] = copyNode(node)
	return nil
}

func (t *memoryTransaction) CreateEdgeIfAbsent(ctx context.Context, edge Edge) (bool, error) {
	if t.done {
		return false, fmt.Errorf("transaction already closed")
	}

	normalized := edge
	normalized.Properties = normalizeEdgeProperties(edge.Properties)
	key := edgeKey(normalized)

	if _, ok := t.stagedEdges[key]; ok {
		return false, nil
	}

	t.gateway.mu.Lock()
	_, exists := t.gateway.edges[key]
	t.gateway.mu.Unlock()

	t.stagedEdges[key] = normalized
	t.createdEdges[key] = !exists
	return !exists, nil
}

func (t *memoryTransaction) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.done = true

	t.gateway.mu.Lock()
	defer t.gateway.mu.Unlock()

	for id, node := range t.stagedNodes {
		t.gateway.nodes[id] = node
	}
	for key, edge := range t.stagedEdges {
		if _, ok := t.gateway.edges[key]; !ok {
			t.gateway.edges[key] = edge
		}
	}
	return nil
}

func (t *memoryTransaction) Rollback(ctx context.Context) error {
	t.done = true
	t.stagedNodes = nil
	t.stagedEdges = nil
	return nil
}

func edgeKey(edge Edge) string {
	kind, _ := edge.Properties["kind"].(string)
	context, _ := edge.Properties["context"].(string)
	targetType, _ := edge.Properties["target_type"].(string)
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s", edge.FromID, edge.ToID, edge.Type, kind, context, targetType)
}

func copyNode(node Node) Node {
	copied := node
	copied.Properties = make(map[string]any, len(node.Properties))
	for k, v := range node.Properties {
		copied.Properties[k] = v
	}
	return copied
}
