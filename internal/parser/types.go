// Package parser defines the contract with the external AST-parsing
// collaborator. The engine never re-parses source text; it only consumes the
// structured records declared here, one compilation unit per source file.
package parser

// CompilationUnit is everything the parser extracted from one source file.
type CompilationUnit struct {
	FilePath string      `json:"file_path"`
	Package  string      `json:"package"`
	Imports  []string    `json:"imports,omitempty"` // fully qualified imported types
	Classes  []ClassDecl `json:"classes,omitempty"`
}

// ClassDecl is a declared class or interface.
type ClassDecl struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind,omitempty"` // "class", "interface", "enum"
	Visibility  string          `json:"visibility,omitempty"`
	Modifiers   []string        `json:"modifiers,omitempty"`
	StartLine   int             `json:"start_line"`
	EndLine     int             `json:"end_line"`
	Superclass  string          `json:"superclass,omitempty"`
	Interfaces  []string        `json:"interfaces,omitempty"`
	Annotations []AnnotationUse `json:"annotations,omitempty"`
	Fields      []FieldDecl     `json:"fields,omitempty"`
	Methods     []MethodDecl    `json:"methods,omitempty"`
}

// FieldDecl is a declared field.
type FieldDecl struct {
	Name         string          `json:"name"`
	DeclaredType string          `json:"declared_type,omitempty"`
	Visibility   string          `json:"visibility,omitempty"`
	Modifiers    []string        `json:"modifiers,omitempty"`
	StartLine    int             `json:"start_line"`
	EndLine      int             `json:"end_line"`
	Annotations  []AnnotationUse `json:"annotations,omitempty"`
}

// MethodDecl is a declared method or constructor.
type MethodDecl struct {
	Name             string          `json:"name"`
	ReturnType       string          `json:"return_type,omitempty"`
	ParamTypes       []string        `json:"param_types,omitempty"`
	Visibility       string          `json:"visibility,omitempty"`
	Modifiers        []string        `json:"modifiers,omitempty"`
	StartLine        int             `json:"start_line"`
	EndLine          int             `json:"end_line"`
	Annotations      []AnnotationUse `json:"annotations,omitempty"`
	ParamAnnotations []AnnotationUse `json:"param_annotations,omitempty"`
	Calls            []CallRef       `json:"calls,omitempty"`
	Instantiations   []string        `json:"instantiations,omitempty"` // types created with `new` in the body
	FieldAccesses    []FieldAccess   `json:"field_accesses,omitempty"`
}

// CallRef is a method invocation observed in a method body. TypeName is empty
// for unqualified calls, which are assumed to target the declaring class.
type CallRef struct {
	TypeName   string `json:"type_name,omitempty"`
	MethodName string `json:"method_name"`
}

// FieldAccess is a field read or write observed in a method body.
type FieldAccess struct {
	TypeName  string `json:"type_name,omitempty"`
	FieldName string `json:"field_name"`
}

// AnnotationUse is one annotation sighting, with its attribute map.
type AnnotationUse struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RepositoryDecl describes the repository under ingestion and its modules.
// Supplied once per ingestion by the VCS-metadata collaborator.
type RepositoryDecl struct {
	Name    string       `json:"name"`
	URL     string       `json:"url,omitempty"`
	Modules []ModuleDecl `json:"modules,omitempty"`
}

// ModuleDecl is a build module inside a repository.
type ModuleDecl struct {
	Name              string   `json:"name"`
	Path              string   `json:"path,omitempty"`
	SourceDirectories []string `json:"source_directories,omitempty"`
}
