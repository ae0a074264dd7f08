package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Min interval between any two Telegram messages to the same chat to avoid 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

// Notifier delivers a text summary somewhere a human will read it.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends Markdown messages to one chat.
type TelegramNotifier struct {
	bot      telegramSender
	chatID   int64
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	slog.Info("Telegram notifier initialized", "chat_id", chatID, "bot", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, chatID: chatID, interval: telegramSendInterval}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if elapsed := time.Since(n.lastSend); elapsed < n.interval {
		wait := n.interval - elapsed
		slog.Debug("Telegram send: waiting for rate limit", "wait_time", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	n.lastSend = time.Now()
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	slog.Info("Telegram send: success", "chat_id", n.chatID, "message_preview", truncateString(text, 50))
	return nil
}

// FormatSummary renders the daily and all-time summaries as a Markdown message.
func FormatSummary(sport string, daily, total Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Opening lines %s*\n", escapeMarkdown(daily.Date))
	fmt.Fprintf(&b, "Sport: `%s`\n\n", sport)
	writeSummary(&b, "Today", daily)
	b.WriteString("\n")
	writeSummary(&b, "All dates", total)
	return b.String()
}

func writeSummary(b *strings.Builder, title string, s Summary) {
	fmt.Fprintf(b, "*%s*: %d lines\n", title, s.Count)
	if s.Count == 0 {
		return
	}
	fmt.Fprintf(b, "Mean favorite: `%s` (p=%s)\n", s.MeanFavorite, s.MeanFavoriteProb)
	fmt.Fprintf(b, "Mean underdog: `%s` (p=%s)\n", s.MeanUnderdog, s.MeanUnderdogProb)
	fmt.Fprintf(b, "Mean hold: `%s`\n", s.MeanHold)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// escapeMarkdown escapes the legacy Markdown control characters.
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
