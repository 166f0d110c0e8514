// Package relationship infers typed edges between code entities from raw
// syntax: containment, inheritance, calls, and the USES family. Targets that
// resolve outside the ingestion scope degrade to external-reference edges
// instead of being dropped; external dependencies are first-class signal.
package relationship

import (
	"strings"

	"github.com/codegraph/codegraph-go/internal/entity"
	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/identifier"
	"github.com/codegraph/codegraph-go/internal/parser"
	"github.com/codegraph/codegraph-go/internal/resolver"
)

// Analysis is the analyzer's output for one compilation unit: the edges it
// inferred plus placeholder nodes for external targets, which the pipeline
// upserts during the node phase so every edge endpoint exists before the
// edge phase begins.
type Analysis struct {
	Edges         []graph.Edge
	ExternalNodes []graph.Node
}

// Analyzer walks class members and emits relationship edges, using the type
// resolver to turn references into target entity IDs and the batch catalog
// to distinguish internal targets from external ones.
type Analyzer struct {
	resolver    *resolver.Resolver
	catalog     *Catalog
	annotations *entity.AnnotationCollector
}

// NewAnalyzer creates an analyzer over one ingestion batch.
func NewAnalyzer(res *resolver.Resolver, catalog *Catalog, annotations *entity.AnnotationCollector) *Analyzer {
	return &Analyzer{
		resolver:    res,
		catalog:     catalog,
		annotations: annotations,
	}
}

// AnalyzeUnit derives all edges for one compilation unit. Entity IDs are
// re-derived with the same pure functions the factory used, so the analyzer
// never needs the factory's output.
func (a *Analyzer) AnalyzeUnit(unit parser.CompilationUnit) (*Analysis, error) {
	out := &Analysis{}
	imports := importTable(unit.Imports)
	packageID := identifier.PackageID(unit.Package)

	for _, class := range unit.Classes {
		classID, err := identifier.ClassID(unit.Package, class.Name)
		if err != nil {
			return nil, err
		}

		out.addEdge(graph.Edge{Type: graph.EdgeContains, FromID: packageID, ToID: classID})

		// Import edges are an over-approximation: emitted whether or not
		// the import is referenced in a body.
		for _, imported := range unit.Imports {
			targetID := a.classTarget(imported, out)
			out.addEdge(graph.Edge{
				Type:   graph.EdgeUses,
				FromID: classID,
				ToID:   targetID,
				Properties: map[string]any{
					"kind":        graph.UsesImport,
					"is_external": !a.catalog.Contains(targetID),
				},
			})
		}

		if err := a.analyzeInheritance(unit, class, classID, imports, out); err != nil {
			return nil, err
		}
		if err := a.analyzeAnnotations(class.Annotations, classID, "class", imports, unit.Package, out); err != nil {
			return nil, err
		}

		for _, field := range class.Fields {
			if err := a.analyzeField(unit, class, field, classID, imports, out); err != nil {
				return nil, err
			}
		}
		for _, method := range class.Methods {
			if err := a.analyzeMethod(unit, class, method, classID, imports, out); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func (a *Analyzer) analyzeInheritance(unit parser.CompilationUnit, class parser.ClassDecl, classID string, imports map[string]string, out *Analysis) error {
	if class.Superclass != "" {
		res := a.resolver.Resolve(class.Superclass, imports, unit.Package)
		targetID := a.classTarget(res.QualifiedName, out)
		out.addEdge(graph.Edge{
			Type:   graph.EdgeExtends,
			FromID: classID,
			ToID:   targetID,
			Properties: map[string]any{
				"is_external": !a.catalog.Contains(targetID),
			},
		})
	}

	for _, iface := range class.Interfaces {
		res := a.resolver.Resolve(iface, imports, unit.Package)
		targetID := a.classTarget(res.QualifiedName, out)
		out.addEdge(graph.Edge{
			Type:   graph.EdgeImplements,
			FromID: classID,
			ToID:   targetID,
			Properties: map[string]any{
				"is_external": !a.catalog.Contains(targetID),
			},
		})
	}
	return nil
}

func (a *Analyzer) analyzeField(unit parser.CompilationUnit, class parser.ClassDecl, field parser.FieldDecl, classID string, imports map[string]string, out *Analysis) error {
	fieldID, err := identifier.FieldID(classID, field.Name, field.DeclaredType)
	if err != nil {
		return err
	}

	out.addEdge(graph.Edge{Type: graph.EdgeContains, FromID: classID, ToID: fieldID})

	if field.DeclaredType != "" && !resolver.IsPrimitive(field.DeclaredType) {
		res := a.resolver.Resolve(field.DeclaredType, imports, unit.Package)
		targetID := a.classTarget(res.QualifiedName, out)
		out.addEdge(graph.Edge{
			Type:   graph.EdgeUses,
			FromID: fieldID,
			ToID:   targetID,
			Properties: map[string]any{
				"kind":        graph.UsesFieldType,
				"is_external": !a.catalog.Contains(targetID),
			},
		})
	}

	a.analyzeGenericArguments(field.DeclaredType, fieldID, "field", imports, unit.Package, out)

	return a.analyzeAnnotations(field.Annotations, fieldID, "field", imports, unit.Package, out)
}

func (a *Analyzer) analyzeMethod(unit parser.CompilationUnit, class parser.ClassDecl, method parser.MethodDecl, classID string, imports map[string]string, out *Analysis) error {
	methodID, err := identifier.MethodID(classID, method.Name, method.ParamTypes)
	if err != nil {
		return err
	}

	out.addEdge(graph.Edge{Type: graph.EdgeContains, FromID: classID, ToID: methodID})

	if method.ReturnType != "" && method.ReturnType != "void" && !resolver.IsPrimitive(method.ReturnType) {
		res := a.resolver.Resolve(method.ReturnType, imports, unit.Package)
		targetID := a.classTarget(res.QualifiedName, out)
		out.addEdge(graph.Edge{
			Type:   graph.EdgeUses,
			FromID: methodID,
			ToID:   targetID,
			Properties: map[string]any{
				"kind":        graph.UsesMethodReturn,
				"is_external": !a.catalog.Contains(targetID),
			},
		})
	}
	a.analyzeGenericArguments(method.ReturnType, methodID, "method_return", imports, unit.Package, out)

	for _, param := range method.ParamTypes {
		if resolver.IsPrimitive(param) {
			continue
		}
		res := a.resolver.Resolve(param, imports, unit.Package)
		targetID := a.classTarget(res.QualifiedName, out)
		out.addEdge(graph.Edge{
			Type:   graph.EdgeUses,
			FromID: methodID,
			ToID:   targetID,
			Properties: map[string]any{
				"kind":        graph.UsesMethodParam,
				"is_external": !a.catalog.Contains(targetID),
			},
		})
		a.analyzeGenericArguments(param, methodID, "method_param", imports, unit.Package, out)
	}

	if err := a.analyzeAnnotations(method.Annotations, methodID, "method", imports, unit.Package, out); err != nil {
		return err
	}
	// Parameters have no standalone node; their annotations are recorded as
	// method-level edges.
	if err := a.analyzeAnnotations(method.ParamAnnotations, methodID, "parameter", imports, unit.Package, out); err != nil {
		return err
	}

	a.analyzeCalls(unit, method, classID, methodID, imports, out)
	a.analyzeBodyUses(unit, method, classID, methodID, imports, out)

	return nil
}

// analyzeCalls emits CALLS edges for body invocations that resolve to a
// known method ID within the same ingestion batch. When the call names a
// class but the callee cannot be pinned to exactly one method (the class is
// outside the batch, the method is undeclared, or the overload set is
// ambiguous), the invocation degrades to a class-level USES edge instead of
// being dropped.
func (a *Analyzer) analyzeCalls(unit parser.CompilationUnit, method parser.MethodDecl, classID, methodID string, imports map[string]string, out *Analysis) {
	for _, call := range method.Calls {
		targetClassID := classID
		if call.TypeName != "" {
			res := a.resolver.Resolve(call.TypeName, imports, unit.Package)
			id, ok := a.catalog.ClassID(res.QualifiedName)
			if !ok {
				targetID := a.classTarget(res.QualifiedName, out)
				out.addEdge(graph.Edge{
					Type:   graph.EdgeUses,
					FromID: methodID,
					ToID:   targetID,
					Properties: map[string]any{
						"kind":        graph.UsesMethodCall,
						"method_name": call.MethodName,
						"is_external": true,
					},
				})
				continue
			}
			targetClassID = id
		}

		candidates := a.catalog.MethodIDs(targetClassID, call.MethodName)
		if len(candidates) != 1 {
			if call.TypeName != "" {
				out.addEdge(graph.Edge{
					Type:   graph.EdgeUses,
					FromID: methodID,
					ToID:   targetClassID,
					Properties: map[string]any{
						"kind":        graph.UsesMethodCall,
						"method_name": call.MethodName,
						"is_external": false,
					},
				})
			}
			continue
		}

		out.addEdge(graph.Edge{
			Type:   graph.EdgeCalls,
			FromID: methodID,
			ToID:   candidates[0],
		})
	}
}

// analyzeBodyUses emits USES edges for instantiations and field accesses
// observed in the method body.
func (a *Analyzer) analyzeBodyUses(unit parser.CompilationUnit, method parser.MethodDecl, classID, methodID string, imports map[string]string, out *Analysis) {
	for _, typeName := range method.Instantiations {
		if resolver.IsPrimitive(typeName) {
			continue
		}
		res := a.resolver.Resolve(typeName, imports, unit.Package)
		targetID := a.classTarget(res.QualifiedName, out)
		out.addEdge(graph.Edge{
			Type:   graph.EdgeUses,
			FromID: methodID,
			ToID:   targetID,
			Properties: map[string]any{
				"kind":        graph.UsesInstantiation,
				"is_external": !a.catalog.Contains(targetID),
			},
		})
	}

	for _, access := range method.FieldAccesses {
		ownerID := classID
		if access.TypeName != "" {
			res := a.resolver.Resolve(access.TypeName, imports, unit.Package)
			id, ok := a.catalog.ClassID(res.QualifiedName)
			if !ok {
				continue
			}
			ownerID = id
		}

		fieldID, ok := a.catalog.FieldID(ownerID, access.FieldName)
		if !ok {
			continue
		}
		out.addEdge(graph.Edge{
			Type:   graph.EdgeUses,
			FromID: methodID,
			ToID:   fieldID,
			Properties: map[string]any{
				"kind": graph.UsesFieldAccess,
			},
		})
	}
}

// analyzeGenericArguments emits one USES edge per top-level generic type
// argument of a parameterized declaration.
func (a *Analyzer) analyzeGenericArguments(typeDeclaration, fromID, context string, imports map[string]string, currentPackage string, out *Analysis) {
	for _, arg := range resolver.ExtractGenericTypeArguments(typeDeclaration) {
		// Wildcard bounds keep the bound type as the edge target.
		arg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(arg, "? extends"), "? super"))
		if arg == "" || arg == "?" {
			continue
		}

		res := a.resolver.Resolve(arg, imports, currentPackage)
		targetID := a.classTarget(res.QualifiedName, out)
		out.addEdge(graph.Edge{
			Type:   graph.EdgeUses,
			FromID: fromID,
			ToID:   targetID,
			Properties: map[string]any{
				"kind":        graph.UsesGenericParam,
				"context":     context,
				"is_external": !a.catalog.Contains(targetID),
			},
		})
	}
}

func (a *Analyzer) analyzeAnnotations(uses []parser.AnnotationUse, fromID, targetType string, imports map[string]string, currentPackage string, out *Analysis) error {
	for _, use := range uses {
		res := a.resolver.Resolve(use.Name, imports, currentPackage)
		qualified := ""
		if res.Resolved {
			qualified = res.QualifiedName
		}

		annotationID, err := a.annotations.Observe(use, qualified)
		if err != nil {
			return err
		}

		out.addEdge(graph.Edge{
			Type:   graph.EdgeUses,
			FromID: fromID,
			ToID:   annotationID,
			Properties: map[string]any{
				"kind":        graph.UsesAnnotation,
				"target_type": targetType,
			},
		})
	}
	return nil
}

// classTarget maps a qualified type name to its class node ID. Targets not
// minted in this batch get a placeholder node flagged is_external so the
// edge phase always finds both endpoints.
func (a *Analyzer) classTarget(qualifiedName string, out *Analysis) string {
	if id, ok := a.catalog.ClassID(qualifiedName); ok {
		return id
	}

	pkg, simple := splitQualifiedName(qualifiedName)
	id, err := identifier.ClassID(pkg, simple)
	if err != nil {
		// Unresolvable reference; fall back to the raw name so the edge
		// still carries a best-effort label.
		id = identifier.PrefixClass + "::" + qualifiedName
	}

	out.addExternalNode(graph.Node{
		Kind: graph.KindClass,
		ID:   id,
		Properties: map[string]any{
			"name":           simple,
			"package_name":   identifier.NormalizePackageName(pkg),
			"qualified_name": qualifiedName,
			"is_external":    true,
		},
	})
	return id
}

func (out *Analysis) addEdge(edge graph.Edge) {
	out.Edges = append(out.Edges, edge)
}

func (out *Analysis) addExternalNode(node graph.Node) {
	out.ExternalNodes = append(out.ExternalNodes, node)
}

// importTable maps simple names to their fully qualified imports.
func importTable(imports []string) map[string]string {
	table := make(map[string]string, len(imports))
	for _, imported := range imports {
		_, simple := splitQualifiedName(imported)
		if simple != "" {
			table[simple] = imported
		}
	}
	return table
}

func splitQualifiedName(qualifiedName string) (pkg, simple string) {
	idx := strings.LastIndex(qualifiedName, ".")
	if idx < 0 {
		return "", qualifiedName
	}
	return qualifiedName[:idx], qualifiedName[idx+1:]
}
