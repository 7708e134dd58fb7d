package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/haivist/emma/pkg/agent"
	"github.com/haivist/emma/pkg/bus"
	"github.com/haivist/emma/pkg/channels"
	"github.com/haivist/emma/pkg/config"
	"github.com/haivist/emma/pkg/graph"
	"github.com/haivist/emma/pkg/logger"
	"github.com/haivist/emma/pkg/proactive"
	"github.com/haivist/emma/pkg/providers"
	"github.com/haivist/emma/pkg/session"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Log.Level)

	if err := run(cfg); err != nil {
		logger.ErrorCF("main", "Fatal error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".emma", "config.json")
}

func run(cfg *config.Config) error {
	workspace := cfg.WorkspacePath()
	os.MkdirAll(workspace, 0755)

	var archive *graph.Archive
	if cfg.Memory.ArchiveEnabled {
		var err error
		archive, err = graph.OpenArchive(workspace)
		if err != nil {
			logger.WarnCF("main", "Failed to open archive, continuing without it",
				map[string]interface{}{"error": err.Error()})
		}
	}
	if archive != nil {
		defer archive.Close()
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	msgBus := bus.NewMessageBus()
	sessions := session.NewManager(filepath.Join(workspace, "sessions"))
	registry := agent.NewRegistry(cfg, provider, sessions, archive)
	loop := agent.NewLoop(msgBus, registry)

	manager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("build channels: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	var svc *proactive.Service
	if cfg.Proactive.Enabled {
		channel, chatID := proactiveTarget(cfg, manager)
		if channel == "" {
			logger.WarnCF("main", "Proactive enabled but no delivery target, skipping", nil)
		} else {
			companion := registry.GetOrCreate(fmt.Sprintf("%s:%s", channel, chatID))
			svc = proactive.NewService(
				time.Duration(cfg.Proactive.PollIntervalSecs)*time.Second,
				cfg.Proactive.Schedule,
			)
			svc.SetCheck(companion.CheckProactive)
			svc.SetDelivery(msgBus, channel, chatID)
			svc.Start()
			logger.InfoCF("main", "Proactive service started", map[string]interface{}{
				"channel": channel,
				"chat_id": chatID,
			})
		}
	}

	logger.InfoCF("main", fmt.Sprintf("%s is ready", cfg.Agent.Name), map[string]interface{}{
		"channels":  manager.Names(),
		"model":     cfg.Agent.Model,
		"workspace": workspace,
	})

	err = loop.Run(ctx)

	if svc != nil {
		svc.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	manager.StopAll(shutdownCtx)

	return err
}

// proactiveTarget resolves where unprompted messages go. Explicit config wins;
// otherwise the terminal channel's local chat is used when available.
func proactiveTarget(cfg *config.Config, manager *channels.Manager) (string, string) {
	if cfg.Proactive.Channel != "" && cfg.Proactive.ChatID != "" {
		return cfg.Proactive.Channel, cfg.Proactive.ChatID
	}
	if _, ok := manager.Get("terminal"); ok {
		return "terminal", channels.TerminalChatID
	}
	return "", ""
}
