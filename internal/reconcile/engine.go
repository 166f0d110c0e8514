package reconcile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codegraph/codegraph-go/internal/audit"
	"github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/graph"
)

// Operation is the resolved action for one node write.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationSkip   Operation = "SKIP"
	OperationError  Operation = "ERROR"
)

// Mode controls which operations the engine is allowed to perform.
type Mode string

const (
	ModeUpsert     Mode = "upsert"
	ModeInsertOnly Mode = "insert_only"
	ModeUpdateOnly Mode = "update_only"
)

// ParseMode validates a mode string; empty selects upsert.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case "", ModeUpsert:
		return ModeUpsert, nil
	case ModeInsertOnly:
		return ModeInsertOnly, nil
	case ModeUpdateOnly:
		return ModeUpdateOnly, nil
	}
	return "", errors.InvalidConfigurationf("unknown reconcile mode %q (want upsert, insert_only, or update_only)", s)
}

// Result is the per-node outcome of an upsert batch.
type Result struct {
	NodeID    string
	Kind      graph.NodeKind
	Operation Operation
	Outcome   Outcome
	Changes   map[string]PropertyChange
	Err       error
}

// Statistics aggregates operation counts across batches. Safe for
// concurrent use; counts only reset when Reset is called.
type Statistics struct {
	mu      sync.Mutex
	inserts int64
	updates int64
	skips   int64
	errs    int64
}

func NewStatistics() *Statistics { return &Statistics{} }

func (s *Statistics) record(op Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch op {
	case OperationInsert:
		s.inserts++
	case OperationUpdate:
		s.updates++
	case OperationSkip:
		s.skips++
	case OperationError:
		s.errs++
	}
}

// Snapshot returns current counts as (inserts, updates, skips, errors, total).
func (s *Statistics) Snapshot() (int64, int64, int64, int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts, s.updates, s.skips, s.errs, s.inserts + s.updates + s.skips + s.errs
}

func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts, s.updates, s.skips, s.errs = 0, 0, 0, 0
}

// Engine reconciles incoming nodes against the persisted graph. One batch
// runs inside one gateway transaction; a transaction-level failure rolls
// the whole batch back, while per-node mode violations are reported in the
// results without aborting the batch.
type Engine struct {
	gateway  graph.Gateway
	recorder audit.Recorder
	stats    *Statistics
	mode     Mode
	source   string
	logger   *logrus.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder enables audit trail writes for inserts and updates.
func WithRecorder(recorder audit.Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// WithMode sets the reconciliation mode (default upsert).
func WithMode(mode Mode) Option {
	return func(e *Engine) { e.mode = mode }
}

// WithSource tags audit records with the ingestion source.
func WithSource(source string) Option {
	return func(e *Engine) { e.source = source }
}

// WithClock overrides timestamping, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(gateway graph.Gateway, stats *Statistics, logger *logrus.Logger, opts ...Option) *Engine {
	if stats == nil {
		stats = NewStatistics()
	}
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{
		gateway: gateway,
		stats:   stats,
		mode:    ModeUpsert,
		source:  "ingest",
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Statistics exposes the engine's aggregate counters.
func (e *Engine) Statistics() *Statistics { return e.stats }

// UpsertBatch reconciles a batch of nodes in one transaction. Results are
// returned in input order, one per node. The returned error is non-nil only
// for transaction-level failures, including a transport failure on any node,
// which aborts the whole batch; per-node problems (conflicts, mode
// violations) live in the corresponding Result.
func (e *Engine) UpsertBatch(ctx context.Context, nodes []graph.Node) ([]Result, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	operationID := uuid.New().String()
	started := e.now()

	tx, err := e.gateway.BeginTransaction(ctx)
	if err != nil {
		return nil, errors.PersistenceFailuref(err, "begin transaction")
	}

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		result, err := e.reconcileNode(ctx, tx, operationID, node)
		if err != nil {
			// The transaction is unusable after a transport failure;
			// abort instead of accumulating errors against it.
			tx.Rollback(ctx)
			return nil, err
		}
		e.stats.record(result.Operation)
		results = append(results, result)
	}

	if err := tx.Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return nil, errors.PersistenceFailuref(err, "commit batch of %d nodes", len(nodes))
	}

	e.logger.WithFields(logrus.Fields{
		"operation_id": operationID,
		"nodes":        len(nodes),
		"elapsed":      e.now().Sub(started).String(),
	}).Debug("Reconciled node batch")

	return results, nil
}

// EnsureNodes inserts nodes that do not exist yet and leaves existing nodes
// untouched regardless of property differences. Placeholder nodes for
// external references go through this path so they never clobber a real
// declaration persisted earlier.
func (e *Engine) EnsureNodes(ctx context.Context, nodes []graph.Node) ([]Result, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	operationID := uuid.New().String()

	tx, err := e.gateway.BeginTransaction(ctx)
	if err != nil {
		return nil, errors.PersistenceFailuref(err, "begin transaction")
	}

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		result := Result{NodeID: node.ID, Kind: node.Kind}

		existing, err := tx.FindNodeByID(ctx, node.ID)
		if err != nil {
			tx.Rollback(ctx)
			return nil, errors.PersistenceFailuref(err, "lookup node %s", node.ID)
		}
		if existing != nil {
			result.Operation = OperationSkip
			result.Outcome = OutcomeIdentical
		} else {
			stamped := e.stampNew(node)
			if err := tx.UpsertNode(ctx, stamped); err != nil {
				tx.Rollback(ctx)
				return nil, errors.PersistenceFailuref(err, "insert node %s", node.ID)
			}
			result.Operation = OperationInsert
			e.record(ctx, operationID, OperationInsert, stamped, nil, 0)
		}

		e.stats.record(result.Operation)
		results = append(results, result)
	}

	if err := tx.Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return nil, errors.PersistenceFailuref(err, "commit batch of %d nodes", len(nodes))
	}
	return results, nil
}

func (e *Engine) reconcileNode(ctx context.Context, tx graph.Transaction, operationID string, node graph.Node) (Result, error) {
	result := Result{NodeID: node.ID, Kind: node.Kind}
	started := e.now()

	existing, err := tx.FindNodeByID(ctx, node.ID)
	if err != nil {
		return result, errors.PersistenceFailuref(err, "lookup node %s", node.ID)
	}

	if existing == nil {
		if e.mode == ModeUpdateOnly {
			result.Operation = OperationError
			result.Err = errors.NotFoundf("node %s does not exist and mode is update_only", node.ID)
			return result, nil
		}
		stamped := e.stampNew(node)
		if err := tx.UpsertNode(ctx, stamped); err != nil {
			return result, errors.PersistenceFailuref(err, "insert node %s", node.ID)
		}
		result.Operation = OperationInsert
		e.record(ctx, operationID, OperationInsert, stamped, nil, e.now().Sub(started))
		return result, nil
	}

	comparison := Compare(*existing, node)
	result.Outcome = comparison.Outcome
	result.Changes = comparison.Changes

	switch comparison.Outcome {
	case OutcomeConflict:
		result.Operation = OperationError
		result.Err = errors.Conflict(comparison.Reason)
		e.logger.WithFields(logrus.Fields{
			"node_id": node.ID,
			"reason":  comparison.Reason,
		}).Error("Node kind conflict")
		return result, nil

	case OutcomeIdentical:
		result.Operation = OperationSkip
		return result, nil
	}

	if e.mode == ModeInsertOnly {
		result.Operation = OperationError
		result.Err = errors.AlreadyExistsf("node %s already exists and mode is insert_only", node.ID)
		return result, nil
	}

	merged := e.merge(*existing, node, comparison.Changes)
	if err := tx.UpsertNode(ctx, merged); err != nil {
		return result, errors.PersistenceFailuref(err, "update node %s", node.ID)
	}
	result.Operation = OperationUpdate
	e.record(ctx, operationID, OperationUpdate, merged, existing.Properties, e.now().Sub(started))
	return result, nil
}

// stampNew copies the node and stamps creation timestamps.
func (e *Engine) stampNew(node graph.Node) graph.Node {
	now := e.now().UTC().Format(time.RFC3339)
	props := make(map[string]any, len(node.Properties)+2)
	for k, v := range node.Properties {
		props[k] = v
	}
	props["created_at"] = now
	props["updated_at"] = now
	node.Properties = props
	return node
}

// merge overlays incoming properties on the persisted node. Incoming wins
// on every key it carries, and keys the comparison flagged as removed are
// dropped so a later identical upsert skips. created_at is preserved from
// the existing node; updated_at advances.
func (e *Engine) merge(existing, incoming graph.Node, changes map[string]PropertyChange) graph.Node {
	props := make(map[string]any, len(existing.Properties)+len(incoming.Properties))
	for k, v := range existing.Properties {
		props[k] = v
	}
	for key, change := range changes {
		if change.Type == ChangeRemoved {
			delete(props, key)
		}
	}
	for k, v := range incoming.Properties {
		props[k] = v
	}
	if created, ok := existing.Properties["created_at"]; ok {
		props["created_at"] = created
	}
	props["updated_at"] = e.now().UTC().Format(time.RFC3339)

	incoming.Properties = props
	return incoming
}

func (e *Engine) record(ctx context.Context, operationID string, op Operation, node graph.Node, previous map[string]any, elapsed time.Duration) {
	if e.recorder == nil {
		return
	}
	record, err := audit.NewRecord(operationID, string(op), e.source, node, previous, elapsed)
	if err != nil {
		e.logger.WithError(err).WithField("node_id", node.ID).Warn("Failed to build audit record")
		return
	}
	if err := e.recorder.Record(ctx, record); err != nil {
		e.logger.WithError(err).WithField("node_id", node.ID).Warn("Failed to write audit record")
	}
}
