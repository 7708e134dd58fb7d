package channels

import (
	"context"
	"fmt"

	"github.com/haivist/emma/pkg/bus"
	"github.com/haivist/emma/pkg/config"
	"github.com/haivist/emma/pkg/logger"
)

// Manager owns the enabled channels and pumps outbound bus messages to them.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

// NewManager builds the channels enabled in the configuration. At least one
// channel must be enabled.
func NewManager(cfg *config.Config, msgBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
	}

	if cfg.Channels.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Channels.Telegram, cfg.GetChannelAllowFrom("telegram"), msgBus)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		m.channels[ch.Name()] = ch
	}

	if cfg.Channels.Discord.Enabled {
		ch, err := NewDiscordChannel(cfg.Channels.Discord, cfg.GetChannelAllowFrom("discord"), msgBus)
		if err != nil {
			return nil, fmt.Errorf("discord channel: %w", err)
		}
		m.channels[ch.Name()] = ch
	}

	if cfg.Channels.Terminal.Enabled {
		ch, err := NewTerminalChannel(msgBus)
		if err != nil {
			return nil, fmt.Errorf("terminal channel: %w", err)
		}
		m.channels[ch.Name()] = ch
	}

	if len(m.channels) == 0 {
		return nil, fmt.Errorf("no channels enabled")
	}

	return m, nil
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// Names returns the names of all managed channels.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

func (m *Manager) StartAll(ctx context.Context) error {
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		logger.InfoC("channels", fmt.Sprintf("Channel %s started", name))
	}

	go m.dispatchLoop(ctx)
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Channel stop failed", map[string]interface{}{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// dispatchLoop routes outbound bus messages to their channel by name.
func (m *Manager) dispatchLoop(ctx context.Context) {
	for {
		msg, ok := m.bus.ConsumeOutbound(ctx)
		if !ok {
			return
		}

		ch, found := m.channels[msg.Channel]
		if !found {
			logger.WarnCF("channels", "No channel for outbound message", map[string]interface{}{
				"channel": msg.Channel,
			})
			continue
		}

		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Send failed", map[string]interface{}{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}
