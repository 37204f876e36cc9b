package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollTimeout = 30 * time.Second
	minBackoff         = time.Second
	maxBackoff         = time.Minute
)

const stopMessage = "🔕 <b>To disable notifications:</b>\n\n" +
	"1️⃣ Open Form Manager → Settings\n" +
	"2️⃣ Toggle off Telegram notifications\n\n" +
	"💡 You can re-enable them anytime!"

// Bot answers /start with the user's chat ID so it can be pasted into the
// notification settings.
type Bot struct {
	client      *Client
	logger      *zap.Logger
	pollTimeout time.Duration
	offset      int64
}

// NewBot creates a long-polling bot
func NewBot(client *Client, pollTimeout time.Duration, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Bot{
		client:      client,
		logger:      logger.Named("telegram_bot"),
		pollTimeout: pollTimeout,
	}
}

// Run polls for updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	if b.client == nil || b.client.token == "" {
		return ErrNotConfigured
	}

	if err := b.client.DeleteWebhook(ctx, true); err != nil {
		b.logger.Warn("failed to delete webhook", zap.Error(err))
	}
	b.logger.Info("telegram bot polling started")

	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			b.logger.Info("telegram bot polling stopped")
			return nil
		}

		n, err := b.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Warn("telegram polling failed",
				zap.Error(err),
				zap.Duration("retry_in", backoff),
			)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff
		if n > 0 {
			b.logger.Debug("processed telegram updates", zap.Int("count", n))
		}
	}
}

// PollOnce fetches one batch of updates and answers the commands in it
func (b *Bot) PollOnce(ctx context.Context) (int, error) {
	updates, err := b.client.GetUpdates(ctx, b.offset, b.pollTimeout)
	if err != nil {
		return 0, err
	}
	for _, u := range updates {
		if u.UpdateID >= b.offset {
			b.offset = u.UpdateID + 1
		}
		if u.Message == nil {
			continue
		}
		b.handleMessage(ctx, u.Message)
	}
	return len(updates), nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	var reply string
	switch command(msg.Text) {
	case "/start":
		reply = StartMessage(chatID)
	case "/stop":
		reply = stopMessage
	default:
		return
	}

	if err := b.client.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.Error("failed to answer command",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// command extracts "/cmd" from "/cmd@BotName args"
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

// StartMessage is the greeting that shows a user their chat ID
func StartMessage(chatID string) string {
	return fmt.Sprintf("👋 <b>Welcome to Form Manager Bot!</b>\n\n"+
		"📋 <b>Your Chat ID:</b> <code>%s</code>\n\n"+
		"📝 <b>How to enable notifications:</b>\n"+
		"1️⃣ Copy your Chat ID (tap to copy)\n"+
		"2️⃣ Open Form Manager → Settings\n"+
		"3️⃣ Paste your Chat ID\n"+
		"4️⃣ Click Save and enable notifications\n\n"+
		"✅ You'll receive instant alerts when new forms are submitted!\n\n"+
		"💡 <b>Commands:</b>\n"+
		"/start - Show this message\n"+
		"/stop - Disable notifications", chatID)
}
