package reconcile

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/codegraph/codegraph-go/internal/graph"
)

// Outcome classifies a comparison between an incoming and a persisted node.
type Outcome string

const (
	OutcomeIdentical         Outcome = "IDENTICAL"
	OutcomePropertiesChanged Outcome = "PROPERTIES_CHANGED"
	OutcomeStructureChanged  Outcome = "STRUCTURE_CHANGED"
	OutcomeConflict          Outcome = "CONFLICT"
)

// ChangeType classifies one property-level difference.
type ChangeType string

const (
	ChangeAdded       ChangeType = "ADDED"
	ChangeRemoved     ChangeType = "REMOVED"
	ChangeModified    ChangeType = "MODIFIED"
	ChangeTypeChanged ChangeType = "TYPE_CHANGED"
)

// PropertyChange records one differing property with old and new values.
// Insignificant changes (source positions shifting) still trigger an update
// but are flagged so audit consumers can filter them.
type PropertyChange struct {
	Type        ChangeType
	OldValue    any
	NewValue    any
	Significant bool
}

// ComparisonResult is the ephemeral outcome of one upsert comparison.
type ComparisonResult struct {
	Outcome        Outcome
	Changes        map[string]PropertyChange
	RequiresUpdate bool
	Reason         string
}

// engineProperties are stamped by the engine, never compared.
var engineProperties = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// orderedProperties compare by exact sequence; reordering is a structural
// change (a method's parameter list is positional).
var orderedProperties = map[string]bool{
	"parameter_types": true,
}

// multiValuedProperties compare by content regardless of encounter order.
var multiValuedProperties = map[string]bool{
	"modifiers":          true,
	"interfaces":         true,
	"source_directories": true,
}

// insignificantProperties mark position-only drift; the node is updated but
// the change is not flagged significant.
var insignificantProperties = map[string]bool{
	"line_start": true,
	"line_end":   true,
}

// Compare computes a structured diff between the persisted node and the
// incoming node sharing its ID. A kind mismatch is a CONFLICT and is never
// silently resolved. Absent-vs-present is ADDED/REMOVED, not MODIFIED.
func Compare(existing, incoming graph.Node) ComparisonResult {
	if existing.Kind != incoming.Kind {
		return ComparisonResult{
			Outcome: OutcomeConflict,
			Reason: fmt.Sprintf("node %s is persisted as kind %s but incoming declaration is kind %s",
				incoming.ID, existing.Kind, incoming.Kind),
		}
	}

	changes := make(map[string]PropertyChange)
	structural := false

	for _, key := range propertyKeys(existing.Properties, incoming.Properties) {
		if engineProperties[key] {
			continue
		}

		oldValue, hasOld := existing.Properties[key]
		newValue, hasNew := incoming.Properties[key]

		switch {
		case !hasOld:
			changes[key] = PropertyChange{Type: ChangeAdded, NewValue: newValue, Significant: !insignificantProperties[key]}
		case !hasNew:
			changes[key] = PropertyChange{Type: ChangeRemoved, OldValue: oldValue, Significant: !insignificantProperties[key]}
		default:
			change, differs := compareValues(key, oldValue, newValue)
			if !differs {
				continue
			}
			changes[key] = change
			if orderedProperties[key] {
				structural = true
			}
		}
	}

	if len(changes) == 0 {
		return ComparisonResult{Outcome: OutcomeIdentical, Changes: changes}
	}

	outcome := OutcomePropertiesChanged
	if structural {
		outcome = OutcomeStructureChanged
	}
	return ComparisonResult{
		Outcome:        outcome,
		Changes:        changes,
		RequiresUpdate: true,
	}
}

// compareValues diffs one property present on both sides.
func compareValues(key string, oldValue, newValue any) (PropertyChange, bool) {
	oldList, oldIsList := toStringSlice(oldValue)
	newList, newIsList := toStringSlice(newValue)

	if oldIsList != newIsList {
		return PropertyChange{Type: ChangeTypeChanged, OldValue: oldValue, NewValue: newValue, Significant: true}, true
	}

	if oldIsList {
		equal := false
		if multiValuedProperties[key] {
			equal = equalUnordered(oldList, newList)
		} else {
			equal = reflect.DeepEqual(oldList, newList)
		}
		if equal {
			return PropertyChange{}, false
		}
		return PropertyChange{Type: ChangeModified, OldValue: oldValue, NewValue: newValue, Significant: !insignificantProperties[key]}, true
	}

	if reflect.TypeOf(oldValue) != reflect.TypeOf(newValue) {
		// Numeric spellings drift between drivers (int vs int64); compare
		// the rendered value before declaring a type change.
		if isNumeric(oldValue) && isNumeric(newValue) {
			if fmt.Sprintf("%v", oldValue) == fmt.Sprintf("%v", newValue) {
				return PropertyChange{}, false
			}
			return PropertyChange{Type: ChangeModified, OldValue: oldValue, NewValue: newValue, Significant: !insignificantProperties[key]}, true
		}
		return PropertyChange{Type: ChangeTypeChanged, OldValue: oldValue, NewValue: newValue, Significant: true}, true
	}

	if reflect.DeepEqual(oldValue, newValue) {
		return PropertyChange{}, false
	}
	return PropertyChange{Type: ChangeModified, OldValue: oldValue, NewValue: newValue, Significant: !insignificantProperties[key]}, true
}

// toStringSlice normalizes []string and []any (what the driver returns for
// list properties) to a common shape.
func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprintf("%v", item)
		}
		return out, true
	}
	return nil, false
}

func equalUnordered(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	return reflect.DeepEqual(as, bs)
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// propertyKeys returns the sorted union of both property maps, giving the
// change map a deterministic iteration order in audit snapshots.
func propertyKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
