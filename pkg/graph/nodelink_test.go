package graph

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExportImportRoundTrip(t *testing.T) {
	g := New()
	g.AddMemoryFromMessage("I have a meeting with Sarah tomorrow", MemoryInput{
		Keyword:  "meeting",
		Entities: []EntityInput{{ID: "Sarah", Type: TypePerson}},
	})

	path := filepath.Join(t.TempDir(), "graph.json")
	if err := g.Export(path); err != nil {
		t.Fatal(err)
	}

	restored := New()
	if err := restored.Import(path); err != nil {
		t.Fatal(err)
	}

	want := g.Stats()
	got := restored.Stats()
	if got.TotalNodes != want.TotalNodes || got.TotalEdges != want.TotalEdges || got.TotalMemories != want.TotalMemories {
		t.Fatalf("stats mismatch after round trip: want %+v, got %+v", want, got)
	}

	sarah, ok := restored.GetEntity("Sarah")
	if !ok {
		t.Fatal("expected Sarah after import")
	}
	if sarah.Type != TypePerson {
		t.Fatalf("expected type %q, got %q", TypePerson, sarah.Type)
	}
}

func TestImportMalformedLeavesGraphUntouched(t *testing.T) {
	g := New()
	g.UpsertEntity("Sarah", TypePerson, nil)
	before := g.Stats()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := g.Import(path); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
	if got := g.Stats(); got.TotalNodes != before.TotalNodes {
		t.Fatalf("graph modified by failed import: %+v", got)
	}
}

func TestImportRejectsDanglingLink(t *testing.T) {
	g := New()

	snapshot := `{
  "directed": true,
  "nodes": [{"id": "USER", "type": "user"}],
  "links": [{"source": "USER", "target": "ghost", "relation_type": "knows"}]
}`
	path := filepath.Join(t.TempDir(), "dangling.json")
	if err := os.WriteFile(path, []byte(snapshot), 0644); err != nil {
		t.Fatal(err)
	}

	if err := g.Import(path); err == nil {
		t.Fatal("expected error for link to missing node")
	}
}

func TestImportReplacesWholesale(t *testing.T) {
	g := New()
	g.UpsertEntity("Old", TypePerson, nil)

	path := filepath.Join(t.TempDir(), "graph.json")
	fresh := New()
	fresh.UpsertEntity("New", TypePerson, nil)
	if err := fresh.Export(path); err != nil {
		t.Fatal(err)
	}

	if err := g.Import(path); err != nil {
		t.Fatal(err)
	}
	if g.HasEntity("Old") {
		t.Fatal("import must replace, not merge")
	}
	if !g.HasEntity("New") {
		t.Fatal("expected imported entity")
	}
}
