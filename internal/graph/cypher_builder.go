package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// CypherBuilder builds safe, parameterized Cypher queries. All values travel
// as parameters; labels and property keys are validated identifiers, which
// prevents Cypher injection.
type CypherBuilder struct {
	params  map[string]any
	counter int
}

// NewCypherBuilder creates a query builder
func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{
		params: make(map[string]any),
	}
}

// AddParam adds a parameter and returns its placeholder
func (b *CypherBuilder) AddParam(value any) string {
	paramName := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[paramName] = value
	return "$" + paramName
}

// Params returns all parameters for the query
func (b *CypherBuilder) Params() map[string]any {
	return b.params
}

// BuildMergeNode creates an idempotent MERGE for a node, matched on its id
// property. Every property value is parameterized.
func (b *CypherBuilder) BuildMergeNode(label string, id string, properties map[string]any) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %s (must be alphanumeric + underscore)", label)
	}

	idParam := b.AddParam(id)

	setClauses := []string{}
	for key, value := range properties {
		if !isValidIdentifier(key) {
			return "", fmt.Errorf("invalid property key: %s (must be alphanumeric + underscore)", key)
		}
		paramName := b.AddParam(value)
		setClauses = append(setClauses, fmt.Sprintf("n.%s = %s", key, paramName))
	}

	query := fmt.Sprintf("MERGE (n:%s {id: %s})", label, idParam)
	if len(setClauses) > 0 {
		query += " SET " + strings.Join(setClauses, ", ")
	}
	return query + " RETURN n.id AS id", nil
}

// BuildMergeEdge creates an idempotent MERGE for an edge between two nodes
// matched by id. The merge key includes the classifier properties (kind,
// context, target_type) so distinct USES edges between the same pair stay
// distinct; the remaining properties are applied with SET.
func (b *CypherBuilder) BuildMergeEdge(fromID, toID string, edgeType string, properties map[string]any) (string, error) {
	if !isValidIdentifier(edgeType) {
		return "", fmt.Errorf("invalid edge type: %s", edgeType)
	}

	fromParam := b.AddParam(fromID)
	toParam := b.AddParam(toID)

	properties = normalizeEdgeProperties(properties)

	mergeKeys := []string{}
	setClauses := []string{}
	for key, value := range properties {
		if !isValidIdentifier(key) {
			return "", fmt.Errorf("invalid edge property key: %s", key)
		}
		paramName := b.AddParam(value)
		if isEdgeMergeKey(key) {
			mergeKeys = append(mergeKeys, fmt.Sprintf("%s: %s", key, paramName))
		} else {
			setClauses = append(setClauses, fmt.Sprintf("r.%s = %s", key, paramName))
		}
	}

	mergePattern := fmt.Sprintf("(from)-[r:%s]->(to)", edgeType)
	if len(mergeKeys) > 0 {
		mergePattern = fmt.Sprintf("(from)-[r:%s {%s}]->(to)", edgeType, strings.Join(mergeKeys, ", "))
	}

	markerParam := b.AddParam(true)
	query := fmt.Sprintf(
		"MATCH (from {id: %s}) MATCH (to {id: %s}) MERGE %s ON CREATE SET r._new = %s",
		fromParam, toParam, mergePattern, markerParam,
	)
	if len(setClauses) > 0 {
		query += " SET " + strings.Join(setClauses, ", ")
	}
	return query + " WITH r, coalesce(r._new, false) AS created REMOVE r._new RETURN created", nil
}

// isEdgeMergeKey reports whether an edge property participates in the merge
// key. These classifiers distinguish parallel edges between the same pair.
func isEdgeMergeKey(key string) bool {
	switch key {
	case "kind", "context", "target_type":
		return true
	}
	return false
}

// normalizeEdgeProperties ensures the classifier keys are always present,
// defaulting to "". Both the per-edge and the UNWIND batch write paths merge
// on the same three keys, which keeps them mutually idempotent.
func normalizeEdgeProperties(properties map[string]any) map[string]any {
	normalized := make(map[string]any, len(properties)+3)
	for k, v := range properties {
		normalized[k] = v
	}
	for _, key := range []string{"kind", "context", "target_type"} {
		if _, ok := normalized[key]; !ok {
			normalized[key] = ""
		}
	}
	return normalized
}

// isValidIdentifier validates that a string can be safely used as a Cypher
// identifier. Only allows alphanumeric characters and underscores.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	matched, _ := regexp.MatchString(`^[a-zA-Z_][a-zA-Z0-9_]*$`, s)
	return matched
}
