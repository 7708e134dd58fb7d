package channels

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/haivist/emma/pkg/bus"
	"github.com/haivist/emma/pkg/logger"
)

// TerminalChatID is the single chat ID the terminal REPL conducts its
// conversation under.
const TerminalChatID = "local"

// TerminalChannel is an interactive REPL on stdin/stdout, mainly for local
// use and development.
type TerminalChannel struct {
	*BaseChannel
	rl     *readline.Instance
	cancel context.CancelFunc
}

func NewTerminalChannel(msgBus *bus.MessageBus) (*TerminalChannel, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init readline: %w", err)
	}

	return &TerminalChannel{
		BaseChannel: NewBaseChannel("terminal", msgBus, nil),
		rl:          rl,
	}, nil
}

func (c *TerminalChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setRunning(true)

	go c.readLoop(runCtx)
	return nil
}

func (c *TerminalChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	return c.rl.Close()
}

func (c *TerminalChannel) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			logger.InfoC("terminal", "Input closed")
			return
		}
		if err != nil {
			logger.WarnCF("terminal", "Read failed", map[string]interface{}{"error": err.Error()})
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		c.HandleMessage("user", TerminalChatID, line, nil)
	}
}

func (c *TerminalChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("terminal not running")
	}

	prefix := "emma> "
	if msg.Proactive {
		prefix = "emma (checking in)> "
	}
	fmt.Fprintf(c.rl.Stdout(), "%s%s\n", prefix, msg.Content)
	return nil
}
