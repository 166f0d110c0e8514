package resolver

import "strings"

// ExtractGenericTypeArguments parses the text between the outermost angle
// brackets of a type declaration and returns the top-level type-argument
// tokens in order. Nested generics surface their own outer token, not their
// arguments: Map<String,List<Object>> yields ["String","List"]. Wildcard
// bounds stay one token ("? extends Number"). Primitive-only arguments are
// excluded. Non-generic declarations return an empty list.
func ExtractGenericTypeArguments(typeDeclaration string) []string {
	inner, ok := outerGenericBody(typeDeclaration)
	if !ok {
		return nil
	}

	args := []string{}
	for _, token := range splitTopLevel(inner) {
		token = strings.TrimSpace(token)
		if token == "" || token == "?" {
			continue
		}
		if IsPrimitive(token) {
			continue
		}
		// A nested generic surfaces as its raw outer token; wildcard bounds
		// keep the bound keyword and type as one token.
		if strings.HasPrefix(token, "?") {
			args = append(args, normalizeWildcard(token))
			continue
		}
		args = append(args, RawType(token))
	}
	return args
}

// outerGenericBody returns the text between the outermost angle brackets, or
// false when the declaration is not parameterized or unbalanced.
func outerGenericBody(typeDeclaration string) (string, bool) {
	t := strings.TrimSpace(typeDeclaration)
	open := strings.Index(t, "<")
	if open < 0 {
		return "", false
	}
	close := strings.LastIndex(t, ">")
	if close <= open {
		return "", false
	}
	return t[open+1 : close], true
}

// splitTopLevel splits on commas that sit outside any nested angle brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// normalizeWildcard collapses internal whitespace in a wildcard token so
// "?  extends   Number" compares stably. The bound type itself is kept
// verbatim, generics included, since the wildcard is returned as one token.
func normalizeWildcard(token string) string {
	return strings.Join(strings.Fields(token), " ")
}
