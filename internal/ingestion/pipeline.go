// Package ingestion coordinates the full ingestion run: entity construction,
// relationship analysis, and the two-phase graph write. All node upserts
// commit before the first edge batch starts, so edge endpoints always exist.
package ingestion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/codegraph/codegraph-go/internal/entity"
	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/identifier"
	"github.com/codegraph/codegraph-go/internal/parser"
	"github.com/codegraph/codegraph-go/internal/reconcile"
	"github.com/codegraph/codegraph-go/internal/relationship"
	"github.com/codegraph/codegraph-go/internal/resolver"
)

// Pipeline coordinates one ingestion run.
type Pipeline struct {
	engine   *reconcile.Engine
	gateway  graph.Gateway
	batch    graph.BatchConfig
	workers  int
	strategy entity.MergeStrategy
	logger   *logrus.Logger
}

// NewPipeline creates an ingestion pipeline. Workers bounds the CPU-side
// construction and analysis passes; graph writes are sequential batches.
func NewPipeline(
	engine *reconcile.Engine,
	gateway graph.Gateway,
	batch graph.BatchConfig,
	workers int,
	strategy entity.MergeStrategy,
	logger *logrus.Logger,
) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		engine:   engine,
		gateway:  gateway,
		batch:    batch,
		workers:  workers,
		strategy: strategy,
		logger:   logger,
	}
}

// Request is one ingestion run's input: the parsed compilation units plus
// optional repository metadata.
type Request struct {
	Units      []parser.CompilationUnit
	Repository *parser.RepositoryDecl
	Source     string
}

// Failure records one node that could not be reconciled.
type Failure struct {
	NodeID string
	Err    error
}

// Report summarizes an ingestion run.
type Report struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Failures []Failure

	NodesProcessed int
	EdgesWritten   int
	ExternalNodes  int
	Duration       time.Duration
}

// unitResult holds one unit's construction and analysis output.
type unitResult struct {
	nodes    []graph.Node
	analysis *relationship.Analysis
}

// Run executes the full ingestion: catalog build, parallel entity
// construction, parallel relationship analysis, node phase, edge phase.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()
	report := &Report{}

	p.logger.WithFields(logrus.Fields{
		"units":   len(req.Units),
		"workers": p.workers,
	}).Info("Starting ingestion run")

	catalog, err := buildCatalog(req.Units)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	collector := entity.NewAnnotationCollector(p.strategy)
	results, err := p.buildAndAnalyze(ctx, req.Units, catalog, collector)
	if err != nil {
		return nil, err
	}

	nodes, edges := p.collect(req, results, report)

	annotationNodes, err := collector.Nodes()
	if err != nil {
		return nil, fmt.Errorf("materialize annotation nodes: %w", err)
	}
	nodes = append(nodes, annotationNodes...)

	externals := p.externalNodes(results, nodes)
	report.ExternalNodes = len(externals)

	if err := p.nodePhase(ctx, nodes, externals, report); err != nil {
		return nil, err
	}
	if err := p.edgePhase(ctx, edges, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(started)

	p.logger.WithFields(logrus.Fields{
		"nodes":    report.NodesProcessed,
		"edges":    report.EdgesWritten,
		"inserted": report.Inserted,
		"updated":  report.Updated,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
		"duration": report.Duration.String(),
	}).Info("Ingestion run completed")

	return report, nil
}

// buildCatalog registers every declared class, method, and field before any
// analysis starts, so cross-unit references resolve regardless of unit order.
func buildCatalog(units []parser.CompilationUnit) (*relationship.Catalog, error) {
	catalog := relationship.NewCatalog()
	for _, unit := range units {
		for _, class := range unit.Classes {
			classID, err := identifier.ClassID(unit.Package, class.Name)
			if err != nil {
				return nil, fmt.Errorf("unit %s: %w", unit.FilePath, err)
			}

			qualified := class.Name
			if unit.Package != "" {
				qualified = unit.Package + "." + class.Name
			}
			catalog.AddClass(qualified, classID)

			for _, method := range class.Methods {
				methodID, err := identifier.MethodID(classID, method.Name, method.ParamTypes)
				if err != nil {
					return nil, fmt.Errorf("unit %s: %w", unit.FilePath, err)
				}
				catalog.AddMethod(classID, method.Name, methodID)
			}
			for _, field := range class.Fields {
				fieldID, err := identifier.FieldID(classID, field.Name, field.DeclaredType)
				if err != nil {
					return nil, fmt.Errorf("unit %s: %w", unit.FilePath, err)
				}
				catalog.AddField(classID, field.Name, fieldID)
			}
		}
	}
	return catalog, nil
}

// buildAndAnalyze runs entity construction and relationship analysis for
// every unit on a bounded worker pool.
func (p *Pipeline) buildAndAnalyze(
	ctx context.Context,
	units []parser.CompilationUnit,
	catalog *relationship.Catalog,
	collector *entity.AnnotationCollector,
) ([]unitResult, error) {
	results := make([]unitResult, len(units))
	factory := entity.NewFactory()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range units {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			unit := units[i]

			nodes, err := buildUnitNodes(factory, unit)
			if err != nil {
				return fmt.Errorf("unit %s: %w", unit.FilePath, err)
			}

			analyzer := relationship.NewAnalyzer(resolver.New(), catalog, collector)
			analysis, err := analyzer.AnalyzeUnit(unit)
			if err != nil {
				return fmt.Errorf("unit %s: %w", unit.FilePath, err)
			}

			results[i] = unitResult{nodes: nodes, analysis: analysis}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// buildUnitNodes materializes the declared entity nodes of one unit.
func buildUnitNodes(factory *entity.Factory, unit parser.CompilationUnit) ([]graph.Node, error) {
	var nodes []graph.Node

	if unit.Package != "" {
		nodes = append(nodes, factory.PackageNode(unit.Package))
	}

	for _, class := range unit.Classes {
		classNode, err := factory.ClassNode(unit, class)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, classNode)

		for _, field := range class.Fields {
			fieldNode, err := factory.FieldNode(classNode.ID, unit, field)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, fieldNode)
		}
		for _, method := range class.Methods {
			methodNode, err := factory.MethodNode(classNode.ID, unit, method)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, methodNode)
		}
	}

	return nodes, nil
}

// collect flattens per-unit output and appends the repository layer: the
// Repository node, its Module nodes, and containment edges down to the
// packages whose files live under each module's source directories.
func (p *Pipeline) collect(req Request, results []unitResult, report *Report) ([]graph.Node, []graph.Edge) {
	var nodes []graph.Node
	var edges []graph.Edge

	for _, result := range results {
		nodes = append(nodes, result.nodes...)
		edges = append(edges, result.analysis.Edges...)
	}

	if req.Repository != nil {
		repoNodes, repoEdges, err := p.repositoryLayer(*req.Repository, req.Units)
		if err != nil {
			p.logger.WithError(err).Warn("Skipping repository metadata")
		} else {
			nodes = append(nodes, repoNodes...)
			edges = append(edges, repoEdges...)
		}
	}

	return dedupeNodes(nodes), dedupeEdges(edges)
}

// repositoryLayer builds Repository and Module nodes plus their containment
// edges. A module contains every package with at least one file under one of
// the module's source directories.
func (p *Pipeline) repositoryLayer(repo parser.RepositoryDecl, units []parser.CompilationUnit) ([]graph.Node, []graph.Edge, error) {
	factory := entity.NewFactory()

	repoNode, err := factory.RepositoryNode(repo)
	if err != nil {
		return nil, nil, err
	}
	nodes := []graph.Node{repoNode}
	var edges []graph.Edge

	for _, module := range repo.Modules {
		moduleNode, err := factory.ModuleNode(repoNode.ID, module)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, moduleNode)
		edges = append(edges, graph.Edge{Type: graph.EdgeContains, FromID: repoNode.ID, ToID: moduleNode.ID})

		for _, unit := range units {
			if unit.Package == "" || !underSourceDirectories(unit.FilePath, module.SourceDirectories) {
				continue
			}
			edges = append(edges, graph.Edge{
				Type:   graph.EdgeContains,
				FromID: moduleNode.ID,
				ToID:   identifier.PackageID(unit.Package),
			})
		}
	}

	return nodes, edges, nil
}

func underSourceDirectories(filePath string, dirs []string) bool {
	path := identifier.NormalizeFilePath(filePath)
	for _, dir := range dirs {
		prefix := strings.TrimSuffix(identifier.NormalizeFilePath(dir), "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// externalNodes dedupes analyzer placeholders and drops any that collide
// with a node declared in this run.
func (p *Pipeline) externalNodes(results []unitResult, declared []graph.Node) []graph.Node {
	declaredIDs := make(map[string]bool, len(declared))
	for _, node := range declared {
		declaredIDs[node.ID] = true
	}

	seen := make(map[string]bool)
	var externals []graph.Node
	for _, result := range results {
		for _, node := range result.analysis.ExternalNodes {
			if declaredIDs[node.ID] || seen[node.ID] {
				continue
			}
			seen[node.ID] = true
			externals = append(externals, node)
		}
	}

	sort.Slice(externals, func(i, j int) bool { return externals[i].ID < externals[j].ID })
	return externals
}

// nodePhase reconciles declared nodes batch by batch, then ensures external
// placeholders exist without ever overwriting a real declaration.
func (p *Pipeline) nodePhase(ctx context.Context, nodes, externals []graph.Node, report *Report) error {
	size := p.batch.NodeBatchSize
	if size < 1 {
		size = graph.DefaultBatchConfig().NodeBatchSize
	}

	for start := 0; start < len(nodes); start += size {
		end := start + size
		if end > len(nodes) {
			end = len(nodes)
		}
		results, err := p.engine.UpsertBatch(ctx, nodes[start:end])
		if err != nil {
			return fmt.Errorf("node batch %d-%d: %w", start, end, err)
		}
		tally(results, report)
	}

	if len(externals) > 0 {
		results, err := p.engine.EnsureNodes(ctx, externals)
		if err != nil {
			return fmt.Errorf("external node batch: %w", err)
		}
		tally(results, report)
	}

	return nil
}

// edgePhase writes all inferred edges. Gateways that support bulk writes get
// UNWIND batches; others fall back to per-edge merges in a transaction.
func (p *Pipeline) edgePhase(ctx context.Context, edges []graph.Edge, report *Report) error {
	if len(edges) == 0 {
		return nil
	}

	size := p.batch.EdgeBatchSize
	if size < 1 {
		size = graph.DefaultBatchConfig().EdgeBatchSize
	}

	if writer, ok := p.gateway.(graph.EdgeBatchWriter); ok {
		for start := 0; start < len(edges); start += size {
			end := start + size
			if end > len(edges) {
				end = len(edges)
			}
			if err := writer.CreateEdges(ctx, edges[start:end]); err != nil {
				return fmt.Errorf("edge batch %d-%d: %w", start, end, err)
			}
			report.EdgesWritten += end - start
		}
		return nil
	}

	tx, err := p.gateway.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("begin edge transaction: %w", err)
	}
	for _, edge := range edges {
		if _, err := tx.CreateEdgeIfAbsent(ctx, edge); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("edge %s -> %s: %w", edge.FromID, edge.ToID, err)
		}
		report.EdgesWritten++
	}
	if err := tx.Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return fmt.Errorf("commit edge transaction: %w", err)
	}
	return nil
}

func tally(results []reconcile.Result, report *Report) {
	for _, result := range results {
		report.NodesProcessed++
		switch result.Operation {
		case reconcile.OperationInsert:
			report.Inserted++
		case reconcile.OperationUpdate:
			report.Updated++
		case reconcile.OperationSkip:
			report.Skipped++
		default:
			report.Failed++
			report.Failures = append(report.Failures, Failure{NodeID: result.NodeID, Err: result.Err})
		}
	}
}

// dedupeNodes keeps the first occurrence of each node ID. Package nodes are
// minted once per declaring unit, so duplicates are expected.
func dedupeNodes(nodes []graph.Node) []graph.Node {
	seen := make(map[string]bool, len(nodes))
	out := nodes[:0]
	for _, node := range nodes {
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		out = append(out, node)
	}
	return out
}

// dedupeEdges collapses repeats of the same (from, to, type, classifier)
// tuple so batch writes stay idempotent within a single run.
func dedupeEdges(edges []graph.Edge) []graph.Edge {
	seen := make(map[string]bool, len(edges))
	out := edges[:0]
	for _, edge := range edges {
		key := fmt.Sprintf("%s|%s|%s|%v|%v|%v",
			edge.FromID, edge.ToID, edge.Type,
			edge.Properties["kind"], edge.Properties["context"], edge.Properties["target_type"])
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, edge)
	}
	return out
}
