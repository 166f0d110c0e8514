package graph

import "context"

// NodeKind is the closed set of entity kinds persisted as node labels.
type NodeKind string

const (
	KindPackage    NodeKind = "Package"
	KindClass      NodeKind = "Class"
	KindMethod     NodeKind = "Method"
	KindField      NodeKind = "Field"
	KindAnnotation NodeKind = "Annotation"
	KindModule     NodeKind = "Module"
	KindRepository NodeKind = "Repository"
)

// EdgeType is the closed set of relationship types.
type EdgeType string

const (
	EdgeContains   EdgeType = "CONTAINS"
	EdgeExtends    EdgeType = "EXTENDS"
	EdgeImplements EdgeType = "IMPLEMENTS"
	EdgeCalls      EdgeType = "CALLS"
	EdgeUses       EdgeType = "USES"
)

// USES edge kind classifiers, stored under properties["kind"].
const (
	UsesImport        = "import"
	UsesInstantiation = "instantiation"
	UsesMethodCall    = "method_call"
	UsesFieldAccess   = "field_access"
	UsesFieldType     = "field_type"
	UsesGenericParam  = "generic_param"
	UsesAnnotation    = "annotation"
	UsesMethodReturn  = "method_return"
	UsesMethodParam   = "method_param"
)

// Node is a labeled property graph node. Property keys are snake_case; that
// naming is a compatibility contract with external analytical query layers
// and must not change silently.
type Node struct {
	Kind       NodeKind
	ID         string
	Properties map[string]any
}

// Edge is a directed relationship. Multiplicity is allowed: the same pair may
// carry several USES edges with different kind/context properties.
type Edge struct {
	Type       EdgeType
	FromID     string
	ToID       string
	Properties map[string]any
}

// Statistics reports persisted node and edge counts by kind.
type Statistics struct {
	Nodes map[string]int64
	Edges map[string]int64
}

// Gateway is the graph-persistence collaborator. All lookups and writes
// happen inside an explicit transaction scope so one upsert decision
// (lookup, compare, write) for a node ID stays atomic.
type Gateway interface {
	BeginTransaction(ctx context.Context) (Transaction, error)
	Statistics(ctx context.Context) (Statistics, error)
	Close(ctx context.Context) error
}

// Transaction is one transaction scope against the gateway.
type Transaction interface {
	// FindNodeByID returns the persisted node, or nil when absent.
	FindNodeByID(ctx context.Context, id string) (*Node, error)

	// UpsertNode merges the node by ID, applying all properties.
	UpsertNode(ctx context.Context, node Node) error

	// CreateEdgeIfAbsent merges the edge, keyed by endpoints, type, and the
	// kind/context classifier properties. Returns true when created.
	CreateEdgeIfAbsent(ctx context.Context, edge Edge) (bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
