// Package entity builds in-memory graph nodes from parsed-entity records,
// assigning deterministic IDs. Construction has no side effects; persistence
// and timestamps belong to the reconciliation engine.
package entity

import (
	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/identifier"
	"github.com/codegraph/codegraph-go/internal/parser"
)

// Factory assigns node IDs and copies syntactic attributes into property
// maps. Property keys are snake_case, the gateway's compatibility contract.
type Factory struct{}

// NewFactory creates an entity factory.
func NewFactory() *Factory {
	return &Factory{}
}

// PackageNode builds the node for a declared package.
func (f *Factory) PackageNode(packageName string) graph.Node {
	normalized := identifier.NormalizePackageName(packageName)
	return graph.Node{
		Kind: graph.KindPackage,
		ID:   identifier.PackageID(packageName),
		Properties: map[string]any{
			"name":         normalized,
			"package_name": normalized,
		},
	}
}

// ClassNode builds the node for a class declaration.
func (f *Factory) ClassNode(unit parser.CompilationUnit, decl parser.ClassDecl) (graph.Node, error) {
	id, err := identifier.ClassID(unit.Package, decl.Name)
	if err != nil {
		return graph.Node{}, err
	}

	props := map[string]any{
		"name":         decl.Name,
		"package_name": identifier.NormalizePackageName(unit.Package),
		"file_path":    identifier.NormalizeFilePath(unit.FilePath),
		"line_start":   decl.StartLine,
		"line_end":     decl.EndLine,
		"visibility":   decl.Visibility,
		"modifiers":    stringList(decl.Modifiers),
	}
	if decl.Kind != "" {
		props["class_kind"] = decl.Kind
	}
	if decl.Superclass != "" {
		props["superclass"] = decl.Superclass
	}
	if len(decl.Interfaces) > 0 {
		props["interfaces"] = stringList(decl.Interfaces)
	}

	return graph.Node{Kind: graph.KindClass, ID: id, Properties: props}, nil
}

// MethodNode builds the node for a method declaration, scoped under its
// owning class ID.
func (f *Factory) MethodNode(classID string, unit parser.CompilationUnit, decl parser.MethodDecl) (graph.Node, error) {
	id, err := identifier.MethodID(classID, decl.Name, decl.ParamTypes)
	if err != nil {
		return graph.Node{}, err
	}

	props := map[string]any{
		"name":            decl.Name,
		"file_path":       identifier.NormalizeFilePath(unit.FilePath),
		"line_start":      decl.StartLine,
		"line_end":        decl.EndLine,
		"visibility":      decl.Visibility,
		"modifiers":       stringList(decl.Modifiers),
		"parameter_types": stringList(decl.ParamTypes),
	}
	if decl.ReturnType != "" {
		props["return_type"] = decl.ReturnType
	}

	return graph.Node{Kind: graph.KindMethod, ID: id, Properties: props}, nil
}

// FieldNode builds the node for a field declaration, scoped under its owning
// class ID.
func (f *Factory) FieldNode(classID string, unit parser.CompilationUnit, decl parser.FieldDecl) (graph.Node, error) {
	id, err := identifier.FieldID(classID, decl.Name, decl.DeclaredType)
	if err != nil {
		return graph.Node{}, err
	}

	declaredType := decl.DeclaredType
	if declaredType == "" {
		declaredType = "Object"
	}

	return graph.Node{
		Kind: graph.KindField,
		ID:   id,
		Properties: map[string]any{
			"name":          decl.Name,
			"file_path":     identifier.NormalizeFilePath(unit.FilePath),
			"line_start":    decl.StartLine,
			"line_end":      decl.EndLine,
			"visibility":    decl.Visibility,
			"modifiers":     stringList(decl.Modifiers),
			"declared_type": declaredType,
		},
	}, nil
}

// RepositoryNode builds the node for the repository under ingestion.
func (f *Factory) RepositoryNode(decl parser.RepositoryDecl) (graph.Node, error) {
	id, err := identifier.RepositoryID(decl.Name)
	if err != nil {
		return graph.Node{}, err
	}

	props := map[string]any{
		"name": decl.Name,
	}
	if decl.URL != "" {
		props["url"] = decl.URL
	}

	return graph.Node{Kind: graph.KindRepository, ID: id, Properties: props}, nil
}

// ModuleNode builds the node for a build module, scoped under its owning
// repository ID.
func (f *Factory) ModuleNode(repositoryID string, decl parser.ModuleDecl) (graph.Node, error) {
	id, err := identifier.ModuleID(repositoryID, decl.Name)
	if err != nil {
		return graph.Node{}, err
	}

	props := map[string]any{
		"name": decl.Name,
	}
	if decl.Path != "" {
		props["module_path"] = identifier.NormalizeFilePath(decl.Path)
	}
	if len(decl.SourceDirectories) > 0 {
		dirs := make([]string, len(decl.SourceDirectories))
		for i, d := range decl.SourceDirectories {
			dirs[i] = identifier.NormalizeFilePath(d)
		}
		props["source_directories"] = dirs
	}

	return graph.Node{Kind: graph.KindModule, ID: id, Properties: props}, nil
}

// stringList copies a slice so the node owns its properties. Nil slices
// become empty lists, keeping absent-vs-null comparisons stable.
func stringList(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
