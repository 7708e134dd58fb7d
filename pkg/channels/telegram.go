package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/haivist/emma/pkg/bus"
	"github.com/haivist/emma/pkg/config"
	"github.com/haivist/emma/pkg/logger"
)

type TelegramChannel struct {
	*BaseChannel
	bot           *telego.Bot
	config        config.TelegramConfig
	cancelPolling context.CancelFunc
	botUsername   string
}

func NewTelegramChannel(cfg config.TelegramConfig, allowFrom []string, msgBus *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", msgBus, allowFrom),
		bot:         bot,
		config:      cfg,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	c.setRunning(true)

	botInfo, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	c.botUsername = botInfo.Username
	logger.InfoCF("telegram", "Bot connected", map[string]interface{}{"username": botInfo.Username})

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancelPolling = cancel

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	go func() {
		for update := range updates {
			if update.Message != nil {
				c.handleUpdate(update)
			}
		}
		logger.InfoC("telegram", "Updates channel closed")
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	if c.cancelPolling != nil {
		c.cancelPolling()
		c.cancelPolling = nil
	}
	return nil
}

func (c *TelegramChannel) handleUpdate(update telego.Update) {
	message := update.Message
	user := message.From
	if user == nil || message.Text == "" {
		return
	}

	senderID := fmt.Sprintf("%d", user.ID)
	if user.Username != "" {
		senderID = fmt.Sprintf("%d|%s", user.ID, user.Username)
	}

	metadata := map[string]string{
		"user_id":    fmt.Sprintf("%d", user.ID),
		"username":   user.Username,
		"first_name": user.FirstName,
		"message_id": fmt.Sprintf("%d", message.MessageID),
	}

	c.HandleMessage(senderID, fmt.Sprintf("%d", message.Chat.ID), message.Text, metadata)
}

// sendWithRetry retries a Telegram API call on rate limit (429) errors.
func (c *TelegramChannel) sendWithRetry(fn func() error) error {
	const maxRetries = 3
	for i := 0; i <= maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		var tgErr *telegoapi.Error
		if errors.As(err, &tgErr) && tgErr.Parameters != nil && tgErr.Parameters.RetryAfter > 0 {
			wait := time.Duration(tgErr.Parameters.RetryAfter) * time.Second
			logger.WarnCF("telegram", "Rate limited, retrying", map[string]interface{}{
				"retry_after": tgErr.Parameters.RetryAfter,
				"attempt":     i + 1,
			})
			time.Sleep(wait)
			continue
		}
		return err
	}
	return fmt.Errorf("telegram send failed after retries")
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	params := &telego.SendMessageParams{
		ChatID: tu.ID(chatID),
		Text:   msg.Content,
	}

	return c.sendWithRetry(func() error {
		_, e := c.bot.SendMessage(ctx, params)
		return e
	})
}
