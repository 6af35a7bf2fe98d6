// Package notify reports finished pig runs to chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLength is Telegram's limit for message text.
const maxMessageLength = 4096

// Summary describes a finished run.
type Summary struct {
	ConnID   string
	Script   string // script name as given on the command line
	ExitCode int
	Duration time.Duration
	Output   string
}

// Notifier delivers run summaries.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// NopNotifier drops all summaries.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(ctx context.Context, s Summary) error {
	return nil
}

// TelegramNotifier sends summaries to a fixed set of chats.
type TelegramNotifier struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
}

// NewTelegramNotifier authorizes the bot token and returns a notifier.
func NewTelegramNotifier(token string, chatIDs []int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	slog.Info("authorized on telegram", "username", api.Self.UserName)

	return &TelegramNotifier{api: api, chatIDs: chatIDs}, nil
}

// Notify sends the summary to every chat. Delivery continues past failures;
// the last error is returned.
func (n *TelegramNotifier) Notify(ctx context.Context, s Summary) error {
	text := Format(s)

	var lastErr error
	for _, chatID := range n.chatIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = "Markdown"
		if _, err := n.api.Send(msg); err != nil {
			slog.Warn("failed to send run summary", "chat_id", chatID, "error", err)
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("send telegram message: %w", lastErr)
	}
	return nil
}

// Format renders a summary as a Markdown message that fits in a single
// Telegram message. Long output keeps its tail.
func Format(s Summary) string {
	result := "succeeded"
	if s.ExitCode != 0 {
		result = fmt.Sprintf("failed (exit %d)", s.ExitCode)
	}

	header := fmt.Sprintf("pig %s on %s %s in %s\n",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s.Script),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s.ConnID),
		result, s.Duration.Round(time.Millisecond))

	// Entities cannot be escaped inside a pre block, so a fence in the
	// output would end it early.
	content := strings.ReplaceAll(strings.TrimRight(s.Output, "\n"), "```", "'''")
	if content == "" {
		content = "(no output)"
	}

	// Room for the header and the code fence.
	budget := maxMessageLength - len(header) - len("```\n\n```") - len("[truncated]\n")
	if budget < 0 {
		budget = 0
	}
	if len(content) > budget {
		cut := len(content) - budget
		for cut < len(content) && !utf8.RuneStart(content[cut]) {
			cut++
		}
		content = "[truncated]\n" + content[cut:]
	}

	return header + "```\n" + content + "\n```"
}
