package identifier

import "strings"

// NormalizePackageName lower-cases a package path and converts whitespace and
// backslash separators to the dotted form, collapsing repeats. Empty input is
// returned as-is (default package).
func NormalizePackageName(packageName string) string {
	p := strings.TrimSpace(strings.ToLower(packageName))
	if p == "" {
		return ""
	}

	p = strings.ReplaceAll(p, "\\", ".")
	p = strings.Join(strings.Fields(p), ".")

	// Collapse repeated dots and trim the ends.
	for strings.Contains(p, "..") {
		p = strings.ReplaceAll(p, "..", ".")
	}
	return strings.Trim(p, ".")
}

// NormalizeFilePath converts backslashes to forward slashes, strips leading
// separators, and collapses repeated separators. Drive-letter prefixes are
// kept so Windows paths stay recognizable.
func NormalizeFilePath(filePath string) string {
	p := strings.TrimSpace(filePath)
	if p == "" {
		return ""
	}

	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.TrimPrefix(p, "/")
}
