package agent

import (
	"context"
	"sync/atomic"

	"github.com/haivist/emma/pkg/bus"
	"github.com/haivist/emma/pkg/logger"
)

// Loop consumes inbound messages from the bus, routes each to its session's
// companion and publishes the reply.
type Loop struct {
	bus      *bus.MessageBus
	registry *Registry
	running  atomic.Bool
}

func NewLoop(msgBus *bus.MessageBus, registry *Registry) *Loop {
	return &Loop{
		bus:      msgBus,
		registry: registry,
	}
}

// Registry returns the companion registry behind the loop.
func (l *Loop) Registry() *Registry {
	return l.registry
}

func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)

	for l.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, ok := l.bus.ConsumeInbound(ctx)
			if !ok {
				continue
			}

			companion := l.registry.GetOrCreate(msg.SessionKey)

			logger.InfoCF("agent", "Processing message", map[string]interface{}{
				"channel":     msg.Channel,
				"chat_id":     msg.ChatID,
				"sender_id":   msg.SenderID,
				"session_key": msg.SessionKey,
			})

			reply, err := companion.HandleMessage(ctx, msg.Content)
			if err != nil {
				// Superseded by a newer message for the same session.
				continue
			}

			if reply != "" {
				l.bus.PublishOutbound(bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: reply,
				})
			}
		}
	}

	return nil
}

func (l *Loop) Stop() {
	l.running.Store(false)
}
