package graph

import "sort"

// RelatedMemories walks outgoing edges breadth-first from entityID up to
// maxHops and collects every reachable memory node. Results are ordered by
// (distance descending, timestamp descending): farther-but-more-recent
// memories surface first. An absent entity yields an empty result.
func (g *Graph) RelatedMemories(entityID string, maxHops int) []MemoryRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[entityID]; !ok {
		return nil
	}

	visited := map[string]int{entityID: 0}
	queue := []string{entityID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		depth := visited[current]
		if depth >= maxHops {
			continue
		}

		for target := range g.out[current] {
			if _, seen := visited[target]; seen {
				continue
			}
			visited[target] = depth + 1
			queue = append(queue, target)
		}
	}

	var memories []MemoryRef
	for id, distance := range visited {
		node := g.nodes[id]
		if node.Type != TypeMemory {
			continue
		}
		memories = append(memories, memoryRef(node, distance))
	}

	sort.Slice(memories, func(i, j int) bool {
		if memories[i].Distance != memories[j].Distance {
			return memories[i].Distance > memories[j].Distance
		}
		return memories[i].Timestamp > memories[j].Timestamp
	})

	return memories
}
