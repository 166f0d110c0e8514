package entity

import (
	"encoding/json"
	"sync"

	"github.com/codegraph/codegraph-go/internal/graph"
	"github.com/codegraph/codegraph-go/internal/identifier"
	"github.com/codegraph/codegraph-go/internal/parser"
)

// MergeStrategy decides which value wins when repeated annotation sightings
// carry conflicting attribute values. A heuristic, not a correctness
// guarantee, so it stays configurable.
type MergeStrategy string

const (
	// MergeFirstSeen keeps the first observed value for a conflicting key.
	MergeFirstSeen MergeStrategy = "first-seen"
	// MergeLastSeen lets later sightings overwrite earlier values.
	MergeLastSeen MergeStrategy = "last-seen"
)

// AnnotationCollector accumulates annotation sightings across an ingestion
// batch and merges their attribute maps. One node is emitted per annotation
// name regardless of how many declarations carry it. Safe for concurrent use
// by analysis workers.
type AnnotationCollector struct {
	mu         sync.Mutex
	strategy   MergeStrategy
	attributes map[string]map[string]string // annotation ID -> merged attributes
	names      map[string]string            // annotation ID -> name
	order      []string                     // insertion order for deterministic emission
}

// NewAnnotationCollector creates a collector with the given merge strategy.
// An empty strategy defaults to first-seen.
func NewAnnotationCollector(strategy MergeStrategy) *AnnotationCollector {
	if strategy == "" {
		strategy = MergeFirstSeen
	}
	return &AnnotationCollector{
		strategy:   strategy,
		attributes: make(map[string]map[string]string),
		names:      make(map[string]string),
	}
}

// Observe records one sighting. The qualified name is preferred for the ID;
// a simple name is accepted when resolution failed upstream.
func (c *AnnotationCollector) Observe(use parser.AnnotationUse, qualifiedName string) (string, error) {
	name := qualifiedName
	if name == "" {
		name = use.Name
	}

	id, err := identifier.AnnotationID(name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	merged, ok := c.attributes[id]
	if !ok {
		merged = make(map[string]string)
		c.attributes[id] = merged
		c.names[id] = name
		c.order = append(c.order, id)
	}

	for key, value := range use.Attributes {
		if _, exists := merged[key]; exists && c.strategy == MergeFirstSeen {
			continue
		}
		merged[key] = value
	}

	return id, nil
}

// Nodes materializes one Annotation node per observed annotation. The
// attribute map is serialized only here, at the persistence edge; upstream it
// stays a typed map.
func (c *AnnotationCollector) Nodes() ([]graph.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := make([]graph.Node, 0, len(c.order))
	for _, id := range c.order {
		props := map[string]any{
			"name": c.names[id],
		}
		if len(c.attributes[id]) > 0 {
			serialized, err := serializeAttributes(c.attributes[id])
			if err != nil {
				return nil, err
			}
			props["attributes"] = serialized
		}
		nodes = append(nodes, graph.Node{Kind: graph.KindAnnotation, ID: id, Properties: props})
	}
	return nodes, nil
}

// serializeAttributes renders the attribute map as JSON. encoding/json sorts
// map keys, so re-ingesting the same annotation reproduces the same text.
func serializeAttributes(attributes map[string]string) (string, error) {
	data, err := json.Marshal(attributes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
