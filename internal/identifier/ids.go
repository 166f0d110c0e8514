package identifier

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/codegraph/codegraph-go/internal/errors"
)

// Node ID namespaces. Every generated ID starts with its kind prefix so a
// bare string can be validated before any graph write.
const (
	PrefixPackage    = "package"
	PrefixClass      = "class"
	PrefixMethod     = "method"
	PrefixField      = "field"
	PrefixAnnotation = "annotation"
	PrefixModule     = "module"
	PrefixRepository = "repository"
)

// PackageID generates a deterministic ID for a package.
// Empty package names are legal (default package) and produce "package:".
func PackageID(packageName string) string {
	return PrefixPackage + ":" + NormalizePackageName(packageName)
}

// ClassID generates a deterministic ID for a class.
// The package part tolerates empty (top-level classes are legal); the class
// name does not.
func ClassID(packageName, className string) (string, error) {
	if strings.TrimSpace(className) == "" {
		return "", errors.InvalidArgument("class name is required for class ID generation")
	}
	return fmt.Sprintf("%s:%s:%s", PrefixClass, NormalizePackageName(packageName), strings.TrimSpace(className)), nil
}

// MethodID generates a deterministic ID for a method, scoped under its owning
// class ID. The signature hash is computed from the normalized parameter type
// list (never parameter names), so overloads never collide and re-ingesting
// the same method always reproduces the same ID.
func MethodID(classID, methodName string, paramTypes []string) (string, error) {
	if strings.TrimSpace(classID) == "" {
		return "", errors.InvalidArgument("owning class ID is required for method ID generation")
	}
	if strings.TrimSpace(methodName) == "" {
		return "", errors.InvalidArgument("method name is required for method ID generation")
	}
	name := strings.TrimSpace(methodName)
	return fmt.Sprintf("%s:%s:%s:%s", PrefixMethod, classID, name, SignatureHash(name, paramTypes)), nil
}

// FieldID generates a deterministic ID for a field, scoped under its owning
// class ID. Fields without a declared type fall back to "Object" so the ID
// stays stable across partial parses.
func FieldID(classID, fieldName, declaredType string) (string, error) {
	if strings.TrimSpace(classID) == "" {
		return "", errors.InvalidArgument("owning class ID is required for field ID generation")
	}
	if strings.TrimSpace(fieldName) == "" {
		return "", errors.InvalidArgument("field name is required for field ID generation")
	}
	typeName := strings.TrimSpace(declaredType)
	if typeName == "" {
		typeName = "Object"
	}
	return fmt.Sprintf("%s:%s:%s:%s", PrefixField, classID, strings.TrimSpace(fieldName), typeName), nil
}

// AnnotationID generates a deterministic ID for an annotation. The fully
// qualified name is preferred; a simple name is accepted when resolution
// failed upstream.
func AnnotationID(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.InvalidArgument("annotation name is required for annotation ID generation")
	}
	return PrefixAnnotation + ":" + strings.TrimSpace(name), nil
}

// RepositoryID generates a deterministic ID for a repository.
func RepositoryID(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.InvalidArgument("repository name is required for repository ID generation")
	}
	return PrefixRepository + ":" + strings.TrimSpace(name), nil
}

// ModuleID generates a deterministic ID for a module, scoped under its owning
// repository ID.
func ModuleID(repositoryID, moduleName string) (string, error) {
	if strings.TrimSpace(repositoryID) == "" {
		return "", errors.InvalidArgument("owning repository ID is required for module ID generation")
	}
	if strings.TrimSpace(moduleName) == "" {
		return "", errors.InvalidArgument("module name is required for module ID generation")
	}
	return fmt.Sprintf("%s:%s:%s", PrefixModule, repositoryID, strings.TrimSpace(moduleName)), nil
}

// SignatureHash computes a stable hash over a method name and its normalized
// parameter type list. Parameter order is preserved; parameter names never
// participate. Varargs and generic spellings are normalized by
// NormalizeTypeName before hashing.
func SignatureHash(methodName string, paramTypes []string) string {
	normalized := make([]string, len(paramTypes))
	for i, p := range paramTypes {
		normalized[i] = NormalizeTypeName(p)
	}

	h := fnv.New64a()
	h.Write([]byte(methodName))
	h.Write([]byte("("))
	h.Write([]byte(strings.Join(normalized, ",")))
	h.Write([]byte(")"))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NormalizeTypeName reduces a parameter type to its erasure-like textual form:
// whitespace stripped, varargs spelled as arrays, generic arguments dropped.
// Boxed and primitive spellings are NOT unified; "int" and "Integer" hash
// differently.
func NormalizeTypeName(typeName string) string {
	t := strings.Join(strings.Fields(typeName), "")
	if t == "" {
		return "Object"
	}

	// Varargs erase to an array of the element type.
	if strings.HasSuffix(t, "...") {
		t = strings.TrimSuffix(t, "...") + "[]"
	}

	// Generic arguments erase to the raw type, keeping any array suffix.
	if open := strings.Index(t, "<"); open >= 0 {
		if close := strings.LastIndex(t, ">"); close > open {
			t = t[:open] + t[close+1:]
		} else {
			t = t[:open]
		}
	}

	return t
}

// ValidateNodeID checks that an ID carries the expected kind prefix and a
// non-empty body.
func ValidateNodeID(id, prefix string) error {
	if id == "" {
		return errors.InvalidArgument("node ID is empty")
	}
	if !strings.HasPrefix(id, prefix+":") {
		return errors.InvalidArgumentf("node ID %q does not carry the %q namespace", id, prefix)
	}
	// Package IDs legally have an empty body (default package).
	if prefix != PrefixPackage && len(id) == len(prefix)+1 {
		return errors.InvalidArgumentf("node ID %q has an empty body", id)
	}
	return nil
}

// IsConsistentID reports whether two IDs are non-empty and identical. Used in
// tests and in conflict detection.
func IsConsistentID(a, b string) bool {
	return a != "" && b != "" && a == b
}
