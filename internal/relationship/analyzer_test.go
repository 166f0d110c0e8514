package relationship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/entity"
	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/identifier"
	"github.com/codegraph/codegraph-go/internal/parser"
	"github.com/codegraph/codegraph-go/internal/resolver"
)

func newTestAnalyzer(catalog *Catalog) *Analyzer {
	return NewAnalyzer(resolver.New(), catalog, entity.NewAnnotationCollector(entity.MergeFirstSeen))
}

// registerClass adds a class and its members to the catalog the way the
// pipeline's first pass does.
func registerClass(t *testing.T, catalog *Catalog, pkg string, class parser.ClassDecl) string {
	t.Helper()
	classID, err := identifier.ClassID(pkg, class.Name)
	require.NoError(t, err)

	qualified := class.Name
	if pkg != "" {
		qualified = pkg + "." + class.Name
	}
	catalog.AddClass(qualified, classID)

	for _, method := range class.Methods {
		methodID, err := identifier.MethodID(classID, method.Name, method.ParamTypes)
		require.NoError(t, err)
		catalog.AddMethod(classID, method.Name, methodID)
	}
	for _, field := range class.Fields {
		fieldID, err := identifier.FieldID(classID, field.Name, field.DeclaredType)
		require.NoError(t, err)
		catalog.AddField(classID, field.Name, fieldID)
	}
	return classID
}

func findEdges(edges []graph.Edge, edgeType graph.EdgeType, kind string) []graph.Edge {
	var out []graph.Edge
	for _, edge := range edges {
		if edge.Type != edgeType {
			continue
		}
		if kind != "" && edge.Properties["kind"] != kind {
			continue
		}
		out = append(out, edge)
	}
	return out
}

func TestAnalyzeUnitUserServiceScenario(t *testing.T) {
	unit := parser.CompilationUnit{
		FilePath: "src/main/java/com/example/service/UserService.java",
		Package:  "com.example.service",
		Imports:  []string{"java.util.List", "com.example.repo.UserRepository"},
		Classes: []parser.ClassDecl{
			{
				Name:       "UserService",
				Kind:       "class",
				Visibility: "public",
				Fields: []parser.FieldDecl{
					{Name: "repo", DeclaredType: "UserRepository", Visibility: "private"},
				},
				Methods: []parser.MethodDecl{
					{Name: "findAll", ReturnType: "List<User>", Visibility: "public"},
				},
			},
		},
	}

	catalog := NewCatalog()
	classID := registerClass(t, catalog, unit.Package, unit.Classes[0])

	analyzer := newTestAnalyzer(catalog)
	analysis, err := analyzer.AnalyzeUnit(unit)
	require.NoError(t, err)

	// Package contains the class; class contains its field and method.
	contains := findEdges(analysis.Edges, graph.EdgeContains, "")
	require.Len(t, contains, 3)
	assert.Equal(t, "package:com.example.service", contains[0].FromID)
	assert.Equal(t, classID, contains[0].ToID)

	// Both imports produce USES edges whether referenced or not.
	imports := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesImport)
	require.Len(t, imports, 2)
	importTargets := []string{imports[0].ToID, imports[1].ToID}
	assert.Contains(t, importTargets, "class:java.util:List")
	assert.Contains(t, importTargets, "class:com.example.repo:UserRepository")

	// The field's declared type resolves through the import table.
	fieldTypes := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesFieldType)
	require.Len(t, fieldTypes, 1)
	fieldID, err := identifier.FieldID(classID, "repo", "UserRepository")
	require.NoError(t, err)
	assert.Equal(t, fieldID, fieldTypes[0].FromID)
	assert.Equal(t, "class:com.example.repo:UserRepository", fieldTypes[0].ToID)
	assert.Equal(t, true, fieldTypes[0].Properties["is_external"])

	// Return type List<User> yields a method_return edge to List and a
	// generic_param edge to User, resolved as same-package.
	returns := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesMethodReturn)
	require.Len(t, returns, 1)
	assert.Equal(t, "class:java.util:List", returns[0].ToID)

	generics := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesGenericParam)
	require.Len(t, generics, 1)
	assert.Equal(t, "class:com.example.service:User", generics[0].ToID)
	assert.Equal(t, "method_return", generics[0].Properties["context"])

	// Every external target got a placeholder node.
	externalIDs := make(map[string]bool)
	for _, node := range analysis.ExternalNodes {
		assert.Equal(t, graph.KindClass, node.Kind)
		assert.Equal(t, true, node.Properties["is_external"])
		externalIDs[node.ID] = true
	}
	assert.True(t, externalIDs["class:java.util:List"])
	assert.True(t, externalIDs["class:com.example.repo:UserRepository"])
	assert.True(t, externalIDs["class:com.example.service:User"])
}

func TestAnalyzeUnitInheritance(t *testing.T) {
	unit := parser.CompilationUnit{
		FilePath: "src/Base.java",
		Package:  "com.example",
		Imports:  []string{"java.io.Serializable"},
		Classes: []parser.ClassDecl{
			{Name: "Base", Kind: "class"},
			{
				Name:       "Derived",
				Kind:       "class",
				Superclass: "Base",
				Interfaces: []string{"Serializable"},
			},
		},
	}

	catalog := NewCatalog()
	baseID := registerClass(t, catalog, unit.Package, unit.Classes[0])
	derivedID := registerClass(t, catalog, unit.Package, unit.Classes[1])

	analyzer := newTestAnalyzer(catalog)
	analysis, err := analyzer.AnalyzeUnit(unit)
	require.NoError(t, err)

	extends := findEdges(analysis.Edges, graph.EdgeExtends, "")
	require.Len(t, extends, 1)
	assert.Equal(t, derivedID, extends[0].FromID)
	assert.Equal(t, baseID, extends[0].ToID)
	assert.Equal(t, false, extends[0].Properties["is_external"])

	implements := findEdges(analysis.Edges, graph.EdgeImplements, "")
	require.Len(t, implements, 1)
	assert.Equal(t, "class:java.io:Serializable", implements[0].ToID)
	assert.Equal(t, true, implements[0].Properties["is_external"])
}

func TestAnalyzeUnitCallResolution(t *testing.T) {
	helper := parser.ClassDecl{
		Name: "Helper",
		Kind: "class",
		Methods: []parser.MethodDecl{
			{Name: "run"},
			{Name: "save", ParamTypes: []string{"String"}},
			{Name: "save", ParamTypes: []string{"String", "boolean"}},
		},
	}
	caller := parser.ClassDecl{
		Name: "Caller",
		Kind: "class",
		Methods: []parser.MethodDecl{
			{
				Name: "doWork",
				Calls: []parser.CallRef{
					{TypeName: "Helper", MethodName: "run"},
					{TypeName: "Helper", MethodName: "save"},
					{TypeName: "Unknown", MethodName: "run"},
				},
			},
		},
	}
	unit := parser.CompilationUnit{
		FilePath: "src/Caller.java",
		Package:  "com.example",
		Classes:  []parser.ClassDecl{caller},
	}

	catalog := NewCatalog()
	helperID := registerClass(t, catalog, "com.example", helper)
	registerClass(t, catalog, unit.Package, caller)

	analyzer := newTestAnalyzer(catalog)
	analysis, err := analyzer.AnalyzeUnit(unit)
	require.NoError(t, err)

	// run() is unambiguous and resolves to a CALLS edge.
	calls := findEdges(analysis.Edges, graph.EdgeCalls, "")
	require.Len(t, calls, 1)
	runID, err := identifier.MethodID(helperID, "run", nil)
	require.NoError(t, err)
	assert.Equal(t, runID, calls[0].ToID)

	// save is a two-way overload set and Unknown is not in the catalog;
	// both degrade to class-level method_call USES edges.
	methodCalls := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesMethodCall)
	require.Len(t, methodCalls, 2)
	assert.Equal(t, helperID, methodCalls[0].ToID)
	assert.Equal(t, "save", methodCalls[0].Properties["method_name"])
	assert.Equal(t, false, methodCalls[0].Properties["is_external"])
	assert.Equal(t, "class:com.example:Unknown", methodCalls[1].ToID)
	assert.Equal(t, "run", methodCalls[1].Properties["method_name"])
	assert.Equal(t, true, methodCalls[1].Properties["is_external"])

	// The unresolved callee class gets a placeholder node.
	require.Len(t, analysis.ExternalNodes, 1)
	assert.Equal(t, "class:com.example:Unknown", analysis.ExternalNodes[0].ID)
}

func TestAnalyzeUnitBodyUses(t *testing.T) {
	target := parser.ClassDecl{
		Name:   "Config",
		Kind:   "class",
		Fields: []parser.FieldDecl{{Name: "timeout", DeclaredType: "int"}},
	}
	unit := parser.CompilationUnit{
		FilePath: "src/Worker.java",
		Package:  "com.example",
		Classes: []parser.ClassDecl{
			{
				Name: "Worker",
				Kind: "class",
				Methods: []parser.MethodDecl{
					{
						Name:           "start",
						Instantiations: []string{"Config", "StringBuilder"},
						FieldAccesses: []parser.FieldAccess{
							{TypeName: "Config", FieldName: "timeout"},
							{TypeName: "Config", FieldName: "missing"},
						},
					},
				},
			},
		},
	}

	catalog := NewCatalog()
	configID := registerClass(t, catalog, "com.example", target)
	registerClass(t, catalog, unit.Package, unit.Classes[0])

	analyzer := newTestAnalyzer(catalog)
	analysis, err := analyzer.AnalyzeUnit(unit)
	require.NoError(t, err)

	instantiations := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesInstantiation)
	require.Len(t, instantiations, 2)
	assert.Equal(t, configID, instantiations[0].ToID)
	assert.Equal(t, false, instantiations[0].Properties["is_external"])
	assert.Equal(t, "class:java.lang:StringBuilder", instantiations[1].ToID)
	assert.Equal(t, true, instantiations[1].Properties["is_external"])

	// Only the resolvable field access produces an edge.
	accesses := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesFieldAccess)
	require.Len(t, accesses, 1)
	timeoutID, err := identifier.FieldID(configID, "timeout", "int")
	require.NoError(t, err)
	assert.Equal(t, timeoutID, accesses[0].ToID)
}

func TestAnalyzeUnitAnnotations(t *testing.T) {
	unit := parser.CompilationUnit{
		FilePath: "src/OrderService.java",
		Package:  "com.example",
		Imports:  []string{"org.springframework.stereotype.Service"},
		Classes: []parser.ClassDecl{
			{
				Name: "OrderService",
				Kind: "class",
				Annotations: []parser.AnnotationUse{
					{Name: "Service", Attributes: map[string]string{"value": "orders"}},
				},
				Methods: []parser.MethodDecl{
					{
						Name:        "place",
						Annotations: []parser.AnnotationUse{{Name: "Transactional"}},
					},
				},
			},
		},
	}

	catalog := NewCatalog()
	registerClass(t, catalog, unit.Package, unit.Classes[0])

	collector := entity.NewAnnotationCollector(entity.MergeFirstSeen)
	analyzer := NewAnalyzer(resolver.New(), catalog, collector)
	analysis, err := analyzer.AnalyzeUnit(unit)
	require.NoError(t, err)

	annotations := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesAnnotation)
	require.Len(t, annotations, 2)
	assert.Equal(t, "annotation:org.springframework.stereotype.Service", annotations[0].ToID)
	assert.Equal(t, "class", annotations[0].Properties["target_type"])
	assert.Equal(t, "annotation:Transactional", annotations[1].ToID)
	assert.Equal(t, "method", annotations[1].Properties["target_type"])

	nodes, err := collector.Nodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestAnalyzeUnitWildcardGenerics(t *testing.T) {
	unit := parser.CompilationUnit{
		FilePath: "src/Stats.java",
		Package:  "com.example",
		Classes: []parser.ClassDecl{
			{
				Name: "Stats",
				Kind: "class",
				Fields: []parser.FieldDecl{
					{Name: "values", DeclaredType: "List<? extends Number>"},
				},
			},
		},
	}

	catalog := NewCatalog()
	registerClass(t, catalog, unit.Package, unit.Classes[0])

	analyzer := newTestAnalyzer(catalog)
	analysis, err := analyzer.AnalyzeUnit(unit)
	require.NoError(t, err)

	generics := findEdges(analysis.Edges, graph.EdgeUses, graph.UsesGenericParam)
	require.Len(t, generics, 1)
	assert.Equal(t, "class:java.lang:Number", generics[0].ToID)
	assert.Equal(t, "field", generics[0].Properties["context"])
}
