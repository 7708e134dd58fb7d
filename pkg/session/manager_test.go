package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetOrCreate(t *testing.T) {
	m := NewManager("")

	s1 := m.GetOrCreate("terminal:local")
	s2 := m.GetOrCreate("terminal:local")
	if s1 != s2 {
		t.Fatal("expected the same session for the same key")
	}
	if s1.Key != "terminal:local" {
		t.Fatalf("unexpected key %q", s1.Key)
	}
}

func TestAddTurnAndHistory(t *testing.T) {
	m := NewManager("")

	m.AddTurn("k", SenderUser, "hello")
	m.AddTurn("k", SenderAgent, "hi there!")

	history := m.History("k")
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Sender != SenderUser || history[0].Message != "hello" {
		t.Fatalf("unexpected first turn %+v", history[0])
	}
	if history[1].Sender != SenderAgent {
		t.Fatalf("unexpected second turn %+v", history[1])
	}
}

func TestHistoryIsACopy(t *testing.T) {
	m := NewManager("")
	m.AddTurn("k", SenderUser, "original")

	history := m.History("k")
	history[0].Message = "mutated"

	if got := m.History("k")[0].Message; got != "original" {
		t.Fatalf("internal state leaked through History: %q", got)
	}
}

func TestRecentWindow(t *testing.T) {
	m := NewManager("")
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		m.AddTurn("k", SenderUser, msg)
	}

	recent := m.Recent("k", 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(recent))
	}
	if recent[0].Message != "d" || recent[1].Message != "e" {
		t.Fatalf("expected the last two turns, got %+v", recent)
	}

	// A window larger than the history returns everything.
	if got := m.Recent("k", 50); len(got) != 5 {
		t.Fatalf("expected full history, got %d turns", len(got))
	}

	if got := m.Recent("missing", 3); len(got) != 0 {
		t.Fatalf("expected no turns for unknown key, got %d", len(got))
	}
}

func TestProactiveTurnFlag(t *testing.T) {
	m := NewManager("")
	m.AddProactiveTurn("k", "checking in!")

	history := m.History("k")
	if len(history) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(history))
	}
	if !history[0].Proactive || history[0].Sender != SenderAgent {
		t.Fatalf("unexpected turn %+v", history[0])
	}
}

func TestClear(t *testing.T) {
	m := NewManager("")
	m.AddTurn("k", SenderUser, "hello")

	m.Clear("k")

	if got := m.History("k"); len(got) != 0 {
		t.Fatalf("expected empty history after clear, got %d turns", len(got))
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(dir)
	m.AddTurn("telegram:42", SenderUser, "remember me")
	m.AddTurn("telegram:42", SenderAgent, "always")

	reloaded := NewManager(dir)
	history := reloaded.History("telegram:42")
	if len(history) != 2 {
		t.Fatalf("expected 2 turns after reload, got %d", len(history))
	}
	if history[0].Message != "remember me" {
		t.Fatalf("unexpected first turn %+v", history[0])
	}
}

func TestSanitizeSessionKey(t *testing.T) {
	if got := SanitizeSessionKey("telegram:42"); got != "telegram_42" {
		t.Fatalf("expected sanitized key, got %q", got)
	}

	dir := t.TempDir()
	m := NewManager(dir)
	m.AddTurn("telegram:42", SenderUser, "x")

	if _, err := os.Stat(filepath.Join(dir, "telegram_42.json")); err != nil {
		t.Fatalf("expected sanitized filename: %v", err)
	}
}
