package graph

import (
	"fmt"
	"sort"
	"strings"
)

// NoContextSentinel is returned by ContextForQuery when nothing matches.
const NoContextSentinel = "No previous context found."

// ContextForQuery retrieves memories relevant to a query and formats them as
// generation context. Matching is deliberately literal: a memory matches if
// any lower-cased query token is a substring of its content or keyword.
// Semantic retrieval is a known upgrade path, out of scope here.
func (g *Graph) ContextForQuery(query string, topK int) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	words := strings.Fields(strings.ToLower(query))

	var matches []MemoryRef
	for _, node := range g.nodes {
		if node.Type != TypeMemory {
			continue
		}
		ref := memoryRef(node, 0)
		content := strings.ToLower(ref.Content)
		keyword := strings.ToLower(ref.Keyword)
		for _, w := range words {
			if strings.Contains(content, w) || strings.Contains(keyword, w) {
				matches = append(matches, ref)
				break
			}
		}
	}

	// Map iteration order is random per call; sort newest first with ID as
	// tiebreak so the retained subset and numbering are stable.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Timestamp != matches[j].Timestamp {
			return matches[i].Timestamp > matches[j].Timestamp
		}
		return matches[i].ID < matches[j].ID
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	if len(matches) == 0 {
		return NoContextSentinel
	}

	var b strings.Builder
	b.WriteString("RELEVANT MEMORIES:")
	for i, m := range matches {
		fmt.Fprintf(&b, "\n%d. [%s] %s (at %s)", i+1, m.Keyword, m.Content, m.Timestamp)
	}
	return b.String()
}
