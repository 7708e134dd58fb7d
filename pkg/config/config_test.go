package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agent.Name != "Emma" {
		t.Fatalf("unexpected agent name %q", cfg.Agent.Name)
	}
	if cfg.Agent.MaxTokens != 300 {
		t.Fatalf("unexpected max tokens %d", cfg.Agent.MaxTokens)
	}
	if !cfg.Proactive.Enabled {
		t.Fatal("proactive must default to enabled")
	}
	if cfg.Proactive.CheckinIntervalSecs != 120 {
		t.Fatalf("unexpected check-in interval %d", cfg.Proactive.CheckinIntervalSecs)
	}
	if !cfg.Channels.Terminal.Enabled {
		t.Fatal("terminal channel must default to enabled")
	}
	// The default delivery target must match the session key the terminal
	// channel publishes under, or check-ins bind to a companion that never
	// sees the user's messages.
	if cfg.Proactive.Channel != "terminal" || cfg.Proactive.ChatID != "local" {
		t.Fatalf("unexpected proactive target %s:%s", cfg.Proactive.Channel, cfg.Proactive.ChatID)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.Name != "Emma" {
		t.Fatalf("expected defaults, got name %q", cfg.Agent.Name)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{broken"), 0644)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Agent.Name = "Luna"
	cfg.Proactive.FollowUpDelaySecs = 90
	cfg.Memory.Keywords = []string{"concert"}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Agent.Name != "Luna" {
		t.Fatalf("expected saved name, got %q", loaded.Agent.Name)
	}
	if loaded.Proactive.FollowUpDelaySecs != 90 {
		t.Fatalf("expected saved delay, got %d", loaded.Proactive.FollowUpDelaySecs)
	}
	if len(loaded.Memory.Keywords) != 1 || loaded.Memory.Keywords[0] != "concert" {
		t.Fatalf("expected saved keywords, got %v", loaded.Memory.Keywords)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EMMA_AGENT_MODEL", "mistral-small-latest")
	t.Setenv("EMMA_PROVIDER_API_KEY", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.Model != "mistral-small-latest" {
		t.Fatalf("expected env override, got %q", cfg.Agent.Model)
	}
	if cfg.Provider.APIKey != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.Provider.APIKey)
	}
}

func TestTriggerKeywordsFallback(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.TriggerKeywords(); len(got) != len(DefaultKeywords) {
		t.Fatalf("expected default keyword list, got %d entries", len(got))
	}

	cfg.Memory.Keywords = []string{"concert", "festival"}
	got := cfg.TriggerKeywords()
	if len(got) != 2 || got[0] != "concert" {
		t.Fatalf("expected configured keywords, got %v", got)
	}
}

func TestDefaultKeywordsPriority(t *testing.T) {
	// Event keywords come before activity keywords, so a message mentioning
	// both triggers on the event.
	meetingIdx, workIdx := -1, -1
	for i, kw := range DefaultKeywords {
		switch kw {
		case "meeting":
			meetingIdx = i
		case "work":
			workIdx = i
		}
	}
	if meetingIdx < 0 || workIdx < 0 || meetingIdx > workIdx {
		t.Fatalf("expected 'meeting' before 'work', got %d and %d", meetingIdx, workIdx)
	}
}

func TestWorkspacePathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.WorkspacePath()
	if strings.HasPrefix(got, "~") {
		t.Fatalf("expected expanded path, got %q", got)
	}
	home, _ := os.UserHomeDir()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("expected path under home, got %q", got)
	}
}

func TestGetChannelAllowFrom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels.Telegram.AllowFrom = []string{"42"}

	if got := cfg.GetChannelAllowFrom("telegram"); len(got) != 1 || got[0] != "42" {
		t.Fatalf("unexpected allow list %v", got)
	}
	if got := cfg.GetChannelAllowFrom("unknown"); got != nil {
		t.Fatalf("expected nil for unknown channel, got %v", got)
	}
}
