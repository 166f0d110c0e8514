package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codegraph/codegraph-go/internal/graph"
)

// Record is one append-only trail entry for a graph write. Snapshots are
// stored as serialized JSON so backends stay schema-stable as node
// properties evolve.
type Record struct {
	ID          string    `db:"id"`
	OperationID string    `db:"operation_id"`
	NodeID      string    `db:"node_id"`
	NodeKind    string    `db:"node_kind"`
	Operation   string    `db:"operation"`
	OldSnapshot []byte    `db:"old_snapshot"`
	NewSnapshot []byte    `db:"new_snapshot"`
	Source      string    `db:"source"`
	ElapsedMs   int64     `db:"elapsed_ms"`
	CreatedAt   time.Time `db:"created_at"`
}

// Recorder persists audit records. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, record Record) error
	Close() error
}

// NewRecord assembles a Record for one node write. A nil snapshot map is
// stored as SQL NULL rather than the JSON literal "null".
func NewRecord(operationID, operation, source string, node graph.Node, previous map[string]any, elapsed time.Duration) (Record, error) {
	record := Record{
		ID:          uuid.New().String(),
		OperationID: operationID,
		NodeID:      node.ID,
		NodeKind:    string(node.Kind),
		Operation:   operation,
		Source:      source,
		ElapsedMs:   elapsed.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}

	if previous != nil {
		data, err := json.Marshal(previous)
		if err != nil {
			return Record{}, err
		}
		record.OldSnapshot = data
	}
	if node.Properties != nil {
		data, err := json.Marshal(node.Properties)
		if err != nil {
			return Record{}, err
		}
		record.NewSnapshot = data
	}
	return record, nil
}

// MemoryRecorder keeps records in memory for tests and dry runs.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *MemoryRecorder) Close() error { return nil }

// Records returns a copy of everything recorded so far.
func (m *MemoryRecorder) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
