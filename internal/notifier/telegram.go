package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattmezza/alertdesk/internal/instance"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

type TelegramNotifier struct {
	name   string
	params instance.TelegramParams
	http   *httpSender
}

func NewTelegramNotifier(name string, p instance.TelegramParams, h *httpSender) (*TelegramNotifier, error) {
	if p.BotToken == "" || p.ChatID == "" {
		return nil, fmt.Errorf("telegram notifier '%s' is missing botToken or chatId", name)
	}
	if p.APIBase == "" {
		p.APIBase = defaultTelegramAPIBase
	}
	return &TelegramNotifier{name: name, params: p, http: h}, nil
}

func (tn *TelegramNotifier) Name() string {
	return tn.name
}

// Send sends a message to Telegram using MarkdownV2 with the title in bold.
func (tn *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	text := fmt.Sprintf("*%s*\n%s", escapeTextForMarkdownV2(msg.Title), escapeTextForMarkdownV2(msg.Content))
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(tn.params.APIBase, "/"), tn.params.BotToken)

	payload := map[string]string{
		"chat_id":    tn.params.ChatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}
	return tn.http.postJSON(ctx, tn.name, apiURL, payload, nil)
}

// escapeTextForMarkdownV2 escapes text for Telegram MarkdownV2.
// Telegram requires escaping: _ * [ ] ( ) ~ ` > # + - = | { } . !
func escapeTextForMarkdownV2(text string) string {
	const escapeChars = "_*[]()~`>#+-=|{}.!\\"
	var result strings.Builder
	for _, r := range text {
		if strings.ContainsRune(escapeChars, r) {
			result.WriteRune('\\')
		}
		result.WriteRune(r)
	}
	return result.String()
}
