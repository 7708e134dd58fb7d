package graph

import (
	"testing"
	"time"
)

func TestNewHasUserRoot(t *testing.T) {
	g := New()

	node, ok := g.GetEntity(UserNode)
	if !ok {
		t.Fatal("expected user root entity")
	}
	if node.Type != TypeUser {
		t.Fatalf("expected type %q, got %q", TypeUser, node.Type)
	}
}

func TestUpsertEntityMergesAttributes(t *testing.T) {
	g := New()

	g.UpsertEntity("Sarah", TypePerson, map[string]interface{}{"relation": "friend"})
	g.UpsertEntity("Sarah", TypePerson, map[string]interface{}{"city": "Berlin"})

	node, ok := g.GetEntity("Sarah")
	if !ok {
		t.Fatal("expected entity")
	}
	if node.Attributes["relation"] != "friend" {
		t.Fatalf("expected earlier attribute preserved, got %v", node.Attributes["relation"])
	}
	if node.Attributes["city"] != "Berlin" {
		t.Fatalf("expected merged attribute, got %v", node.Attributes["city"])
	}

	if got := g.Stats().TotalNodes; got != 2 {
		t.Fatalf("expected 2 nodes (user root + Sarah), got %d", got)
	}
}

func TestUpsertEntityTypeOnlyOverwrittenWhenSet(t *testing.T) {
	g := New()

	g.UpsertEntity("Sarah", TypeUnknown, nil)
	g.UpsertEntity("Sarah", TypePerson, nil)
	g.UpsertEntity("Sarah", "", nil)

	node, _ := g.GetEntity("Sarah")
	if node.Type != TypePerson {
		t.Fatalf("expected type %q, got %q", TypePerson, node.Type)
	}
}

func TestUpsertEntityCreatedAtStable(t *testing.T) {
	g := New()

	g.UpsertEntity("Sarah", TypePerson, nil)
	first, _ := g.GetEntity("Sarah")

	time.Sleep(time.Millisecond)
	g.UpsertEntity("Sarah", TypePerson, map[string]interface{}{"x": 1})
	second, _ := g.GetEntity("Sarah")

	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Fatal("CreatedAt must be stamped on first creation only")
	}
}

func TestUpsertRelationshipAutoCreatesEndpoints(t *testing.T) {
	g := New()

	g.UpsertRelationship("a", "b", "knows", nil)

	for _, id := range []string{"a", "b"} {
		node, ok := g.GetEntity(id)
		if !ok {
			t.Fatalf("expected auto-created endpoint %q", id)
		}
		if node.Type != TypeUnknown {
			t.Fatalf("expected unknown type for %q, got %q", id, node.Type)
		}
	}
	if got := g.Stats().TotalEdges; got != 1 {
		t.Fatalf("expected 1 edge, got %d", got)
	}
}

func TestEdgesKeyedByRelationTriple(t *testing.T) {
	g := New()

	g.UpsertRelationship("a", "b", "knows", nil)
	g.UpsertRelationship("a", "b", "mentions", nil)
	// Re-adding an existing triple merges, never duplicates.
	g.UpsertRelationship("a", "b", "knows", map[string]interface{}{"since": "2026"})

	if got := g.Stats().TotalEdges; got != 2 {
		t.Fatalf("expected 2 edges for distinct relations, got %d", got)
	}
}

func TestAddMemoryFromMessage(t *testing.T) {
	g := New()

	id := g.AddMemoryFromMessage("I have a meeting with Sarah tomorrow", MemoryInput{
		Keyword: "meeting",
		Entities: []EntityInput{
			{ID: "event_meeting_20260829", Type: TypeEvent},
			{ID: "Sarah", Type: TypePerson},
		},
	})

	mem, ok := g.GetEntity(id)
	if !ok {
		t.Fatal("expected memory entity")
	}
	if mem.Type != TypeMemory {
		t.Fatalf("expected type %q, got %q", TypeMemory, mem.Type)
	}
	if mem.Attributes["content"] != "I have a meeting with Sarah tomorrow" {
		t.Fatalf("unexpected content: %v", mem.Attributes["content"])
	}
	if mem.Attributes["keyword"] != "meeting" {
		t.Fatalf("unexpected keyword: %v", mem.Attributes["keyword"])
	}

	stats := g.Stats()
	if stats.TotalMemories != 1 {
		t.Fatalf("expected 1 memory, got %d", stats.TotalMemories)
	}
	// USER, memory, event, Sarah
	if stats.TotalNodes != 4 {
		t.Fatalf("expected 4 nodes, got %d", stats.TotalNodes)
	}
	// USER->memory has_memory, memory->event mentions, memory->Sarah mentions,
	// USER->Sarah knows
	if stats.TotalEdges != 4 {
		t.Fatalf("expected 4 edges, got %d", stats.TotalEdges)
	}

	rels := g.UserRelationships()
	foundKnows := false
	for _, r := range rels {
		if r.Entity == "Sarah" && r.Relation == RelKnows {
			foundKnows = true
		}
	}
	if !foundKnows {
		t.Fatal("expected USER knows Sarah edge for person entity")
	}
}

func TestAddMemoryDefaultsKeyword(t *testing.T) {
	g := New()

	id := g.AddMemoryFromMessage("nothing special", MemoryInput{})
	mem, _ := g.GetEntity(id)
	if mem.Attributes["keyword"] != "general" {
		t.Fatalf("expected keyword 'general', got %v", mem.Attributes["keyword"])
	}
}

func TestMemoryIDsUnique(t *testing.T) {
	g := New()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := g.AddMemoryFromMessage("same message", MemoryInput{Keyword: "work"})
		if seen[id] {
			t.Fatalf("duplicate memory id %q", id)
		}
		seen[id] = true
	}
	if got := g.Stats().TotalMemories; got != 100 {
		t.Fatalf("expected 100 memories, got %d", got)
	}
}

func addMemoryAt(g *Graph, id, content, keyword string, ts time.Time) {
	g.UpsertEntity(id, TypeMemory, map[string]interface{}{
		"content":   content,
		"keyword":   keyword,
		"timestamp": ts.Format(time.RFC3339),
	})
	g.UpsertRelationship(UserNode, id, RelHasMemory, nil)
}

func TestRecentMemoriesOrderAndLimit(t *testing.T) {
	g := New()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	addMemoryAt(g, "memory_a", "oldest", "work", base)
	addMemoryAt(g, "memory_b", "middle", "work", base.Add(time.Hour))
	addMemoryAt(g, "memory_c", "newest", "work", base.Add(2*time.Hour))

	recent := g.RecentMemories(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(recent))
	}
	if recent[0].Content != "newest" || recent[1].Content != "middle" {
		t.Fatalf("expected newest-first ordering, got %q then %q", recent[0].Content, recent[1].Content)
	}
}

func TestClearKeepsUserRoot(t *testing.T) {
	g := New()
	g.AddMemoryFromMessage("I am stressed about work", MemoryInput{Keyword: "stressed"})

	g.Clear()

	stats := g.Stats()
	if stats.TotalNodes != 1 {
		t.Fatalf("expected only the user root after clear, got %d nodes", stats.TotalNodes)
	}
	if stats.TotalEdges != 0 {
		t.Fatalf("expected no edges after clear, got %d", stats.TotalEdges)
	}
	if !g.HasEntity(UserNode) {
		t.Fatal("user root must survive clear")
	}
}

func TestEntitiesByTypeSorted(t *testing.T) {
	g := New()
	g.UpsertEntity("Zoe", TypePerson, nil)
	g.UpsertEntity("Alice", TypePerson, nil)
	g.UpsertEntity("work", TypeTopic, nil)

	people := g.EntitiesByType(TypePerson)
	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}
	if people[0].ID != "Alice" || people[1].ID != "Zoe" {
		t.Fatalf("expected sorted order, got %q then %q", people[0].ID, people[1].ID)
	}
}
