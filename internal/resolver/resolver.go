package resolver

import "strings"

// Resolution is the best-guess outcome of resolving a simple or generic type
// reference. Unresolved is not a failure: the name is kept as-is and the
// reference is flagged external so it still works as an edge target.
type Resolution struct {
	Name          string // original simple name (generics stripped)
	QualifiedName string // best-guess fully qualified name
	Resolved      bool   // true when an import, package, or builtin matched
	External      bool   // true when the target is outside the ingestion scope
}

// Resolver resolves simple type names to fully qualified names using an
// import table, the same-package assumption, and builtin defaults.
type Resolver struct {
	builtins map[string]string
}

// New creates a type resolver with the default builtin table.
func New() *Resolver {
	return &Resolver{builtins: defaultBuiltins()}
}

// Resolve resolves a type reference against the import table of the declaring
// compilation unit. Resolution order: exact import match, same-package
// assumption, builtin defaults, unresolved passthrough.
func (r *Resolver) Resolve(typeName string, imports map[string]string, currentPackage string) Resolution {
	simple := RawType(typeName)
	if simple == "" {
		return Resolution{External: true}
	}

	// Already qualified names pass through untouched.
	if strings.Contains(simple, ".") {
		parts := strings.Split(simple, ".")
		return Resolution{
			Name:          parts[len(parts)-1],
			QualifiedName: simple,
			Resolved:      true,
			External:      true,
		}
	}

	if qualified, ok := imports[simple]; ok {
		return Resolution{Name: simple, QualifiedName: qualified, Resolved: true, External: true}
	}

	if qualified, ok := r.builtins[simple]; ok {
		return Resolution{Name: simple, QualifiedName: qualified, Resolved: true, External: true}
	}

	// Same-package assumption: an unimported simple name most likely lives
	// next to the declaring class.
	if currentPackage != "" {
		return Resolution{
			Name:          simple,
			QualifiedName: currentPackage + "." + simple,
			Resolved:      true,
		}
	}

	return Resolution{Name: simple, QualifiedName: simple, External: true}
}

// RawType strips generic arguments, array markers, and varargs from a type
// declaration, leaving the raw type token.
func RawType(typeName string) string {
	t := strings.TrimSpace(typeName)
	if open := strings.Index(t, "<"); open >= 0 {
		t = t[:open]
	}
	t = strings.TrimSuffix(t, "...")
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSuffix(t, "[]")
	}
	return strings.TrimSpace(t)
}

// IsPrimitive reports whether a type token is a language primitive. Primitive
// generic arguments are excluded from edge emission since the target domain
// has no parametrizable primitives.
func IsPrimitive(typeName string) bool {
	switch RawType(typeName) {
	case "boolean", "byte", "char", "short", "int", "long", "float", "double", "void":
		return true
	}
	return false
}

// defaultBuiltins maps simple names of commonly referenced default-namespace
// types to their canonical fully qualified form. Deliberately small: anything
// missing degrades to the same-package guess, which the analyzer then marks
// external when it never sees a matching declaration.
func defaultBuiltins() map[string]string {
	return map[string]string{
		"Object":           "java.lang.Object",
		"String":           "java.lang.String",
		"Integer":          "java.lang.Integer",
		"Long":             "java.lang.Long",
		"Short":            "java.lang.Short",
		"Byte":             "java.lang.Byte",
		"Double":           "java.lang.Double",
		"Float":            "java.lang.Float",
		"Boolean":          "java.lang.Boolean",
		"Character":        "java.lang.Character",
		"Number":           "java.lang.Number",
		"Void":             "java.lang.Void",
		"Exception":        "java.lang.Exception",
		"RuntimeException": "java.lang.RuntimeException",
		"Throwable":        "java.lang.Throwable",
		"Iterable":         "java.lang.Iterable",
		"Comparable":       "java.lang.Comparable",
		"Runnable":         "java.lang.Runnable",
		"Thread":           "java.lang.Thread",
		"StringBuilder":    "java.lang.StringBuilder",
		"Math":             "java.lang.Math",
		"System":           "java.lang.System",
		"List":             "java.util.List",
		"ArrayList":        "java.util.ArrayList",
		"LinkedList":       "java.util.LinkedList",
		"Map":              "java.util.Map",
		"HashMap":          "java.util.HashMap",
		"TreeMap":          "java.util.TreeMap",
		"Set":              "java.util.Set",
		"HashSet":          "java.util.HashSet",
		"TreeSet":          "java.util.TreeSet",
		"Collection":       "java.util.Collection",
		"Iterator":         "java.util.Iterator",
		"Optional":         "java.util.Optional",
		"Stream":           "java.util.stream.Stream",
		"Date":             "java.util.Date",
		"UUID":             "java.util.UUID",
	}
}
