package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Provider  ProviderConfig  `json:"provider"`
	Proactive ProactiveConfig `json:"proactive"`
	Memory    MemoryConfig    `json:"memory"`
	Channels  ChannelsConfig  `json:"channels"`
	Log       LogConfig       `json:"log"`
	mu        sync.RWMutex
}

type AgentConfig struct {
	Name          string  `json:"name" env:"EMMA_AGENT_NAME"`
	Workspace     string  `json:"workspace" env:"EMMA_AGENT_WORKSPACE"`
	Model         string  `json:"model" env:"EMMA_AGENT_MODEL"`
	MaxTokens     int     `json:"max_tokens" env:"EMMA_AGENT_MAX_TOKENS"`
	Temperature   float64 `json:"temperature" env:"EMMA_AGENT_TEMPERATURE"`
	ContextWindow int     `json:"context_window" env:"EMMA_AGENT_CONTEXT_WINDOW"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"EMMA_PROVIDER_API_KEY"`
	APIBase string `json:"api_base" env:"EMMA_PROVIDER_API_BASE"`
}

type ProactiveConfig struct {
	Enabled             bool   `json:"enabled" env:"EMMA_PROACTIVE_ENABLED"`
	FollowUpDelaySecs   int    `json:"follow_up_delay_seconds" env:"EMMA_PROACTIVE_FOLLOW_UP_DELAY_SECONDS"`
	CheckinIntervalSecs int    `json:"checkin_interval_seconds" env:"EMMA_PROACTIVE_CHECKIN_INTERVAL_SECONDS"`
	PollIntervalSecs    int    `json:"poll_interval_seconds" env:"EMMA_PROACTIVE_POLL_INTERVAL_SECONDS"`
	Schedule            string `json:"schedule,omitempty" env:"EMMA_PROACTIVE_SCHEDULE"`
	Channel             string `json:"channel" env:"EMMA_PROACTIVE_CHANNEL"`
	ChatID              string `json:"chat_id" env:"EMMA_PROACTIVE_CHAT_ID"`
}

type MemoryConfig struct {
	Keywords       []string `json:"keywords,omitempty"`
	ContextTopK    int      `json:"context_top_k" env:"EMMA_MEMORY_CONTEXT_TOP_K"`
	MaxHops        int      `json:"max_hops" env:"EMMA_MEMORY_MAX_HOPS"`
	RecentLimit    int      `json:"recent_limit" env:"EMMA_MEMORY_RECENT_LIMIT"`
	ArchiveEnabled bool     `json:"archive_enabled" env:"EMMA_MEMORY_ARCHIVE_ENABLED"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	Terminal TerminalConfig `json:"terminal"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled" env:"EMMA_CHANNELS_TELEGRAM_ENABLED"`
	Token     string   `json:"token" env:"EMMA_CHANNELS_TELEGRAM_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"EMMA_CHANNELS_TELEGRAM_ALLOW_FROM"`
}

type DiscordConfig struct {
	Enabled   bool     `json:"enabled" env:"EMMA_CHANNELS_DISCORD_ENABLED"`
	Token     string   `json:"token" env:"EMMA_CHANNELS_DISCORD_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"EMMA_CHANNELS_DISCORD_ALLOW_FROM"`
}

type TerminalConfig struct {
	Enabled bool `json:"enabled" env:"EMMA_CHANNELS_TERMINAL_ENABLED"`
}

type LogConfig struct {
	Level string `json:"level" env:"EMMA_LOG_LEVEL"`
}

// DefaultKeywords is the priority-ordered trigger list. Earlier entries win
// when a message contains more than one keyword.
var DefaultKeywords = []string{
	// Events and appointments
	"meeting", "appointment", "interview", "date", "deadline", "exam", "test", "presentation",
	// People and relationships
	"friend", "family", "mom", "dad", "sister", "brother", "boyfriend", "girlfriend", "partner",
	// Emotions and states
	"stressed", "worried", "excited", "nervous", "happy", "sad", "anxious", "tired", "overwhelmed",
	// Important activities
	"job", "work", "school", "vacation", "trip", "birthday", "anniversary", "graduation",
	// Health and wellbeing
	"doctor", "sick", "medicine", "exercise", "diet", "sleep", "therapy",
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:          "Emma",
			Workspace:     "~/.emma/workspace",
			Model:         "mistral-tiny-latest",
			MaxTokens:     300,
			Temperature:   0.8,
			ContextWindow: 6,
		},
		Provider: ProviderConfig{},
		Proactive: ProactiveConfig{
			Enabled:             true,
			FollowUpDelaySecs:   60,
			CheckinIntervalSecs: 120,
			PollIntervalSecs:    3,
			Schedule:            "",
			Channel:             "terminal",
			ChatID:              "local",
		},
		Memory: MemoryConfig{
			Keywords:       nil, // nil means DefaultKeywords
			ContextTopK:    5,
			MaxHops:        2,
			RecentLimit:    3,
			ArchiveEnabled: false,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{Enabled: false, AllowFrom: []string{}},
			Discord:  DiscordConfig{Enabled: false, AllowFrom: []string{}},
			Terminal: TerminalConfig{Enabled: true},
		},
		Log: LogConfig{Level: "info"},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: config file not found at %s, using defaults\n", path)
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agent.Workspace)
}

// TriggerKeywords returns the configured keyword list, falling back to
// DefaultKeywords when none are configured.
func (c *Config) TriggerKeywords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.Memory.Keywords) > 0 {
		return c.Memory.Keywords
	}
	return DefaultKeywords
}

// GetChannelAllowFrom returns the allow_from list for a given channel name.
func (c *Config) GetChannelAllowFrom(channel string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch channel {
	case "telegram":
		return c.Channels.Telegram.AllowFrom
	case "discord":
		return c.Channels.Discord.AllowFrom
	default:
		return nil
	}
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
