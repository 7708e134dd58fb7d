package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// nodeLink is the on-disk snapshot format: a node-link JSON document.
type nodeLink struct {
	Directed bool     `json:"directed"`
	Nodes    []Entity `json:"nodes"`
	Links    []Edge   `json:"links"`
}

// Export writes the full graph to path as node-link JSON.
func (g *Graph) Export(path string) error {
	g.mu.RLock()
	doc := nodeLink{Directed: true}
	for _, node := range g.nodes {
		doc.Nodes = append(doc.Nodes, cloneEntity(node))
	}
	for _, targets := range g.out {
		for _, relations := range targets {
			for _, edge := range relations {
				doc.Links = append(doc.Links, *edge)
			}
		}
	}
	g.mu.RUnlock()

	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].ID < doc.Nodes[j].ID })
	sort.Slice(doc.Links, func(i, j int) bool {
		a, b := doc.Links[i], doc.Links[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Relation < b.Relation
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("export graph: %w", err)
	}
	return nil
}

// Import replaces the in-memory graph wholesale with the snapshot at path.
// A malformed file is an error for this operation; the current graph is left
// untouched on failure.
func (g *Graph) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	var doc nodeLink
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("import graph: malformed snapshot: %w", err)
	}

	nodes := make(map[string]*Entity, len(doc.Nodes))
	for i := range doc.Nodes {
		node := doc.Nodes[i]
		if node.ID == "" {
			return fmt.Errorf("import graph: node without id")
		}
		nodes[node.ID] = &node
	}

	out := make(map[string]map[string]map[string]*Edge)
	for i := range doc.Links {
		edge := doc.Links[i]
		if _, ok := nodes[edge.Source]; !ok {
			return fmt.Errorf("import graph: link source %q not in nodes", edge.Source)
		}
		if _, ok := nodes[edge.Target]; !ok {
			return fmt.Errorf("import graph: link target %q not in nodes", edge.Target)
		}
		targets, ok := out[edge.Source]
		if !ok {
			targets = make(map[string]map[string]*Edge)
			out[edge.Source] = targets
		}
		relations, ok := targets[edge.Target]
		if !ok {
			relations = make(map[string]*Edge)
			targets[edge.Target] = relations
		}
		relations[edge.Relation] = &edge
	}

	g.mu.Lock()
	g.nodes = nodes
	g.out = out
	g.mu.Unlock()

	return nil
}
