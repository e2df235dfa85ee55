package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"oanda-trading-bot/config"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier posts alerts to a Telegram chat via the bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewTelegramNotifier returns nil when the channel is not configured.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  telegramAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", alert.Title, alert.Message),
		"parse_mode": "Markdown",
	}
	return postJSON(ctx, t.client, fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken), payload)
}

// DiscordNotifier posts alerts to a Discord webhook as embeds.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier returns nil when the channel is not configured.
func NewDiscordNotifier(cfg config.DiscordConfig) *DiscordNotifier {
	if !cfg.Enabled || cfg.WebhookURL == "" {
		return nil
	}
	return &DiscordNotifier{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Send(ctx context.Context, alert Alert) error {
	color := 0x2ECC71
	switch {
	case alert.Type == AlertError || alert.Type == AlertCircuit:
		color = 0xE74C3C
	case alert.Type == AlertTradeClose && alert.PnL < 0:
		color = 0xE74C3C
	}

	embed := map[string]interface{}{
		"title":       alert.Title,
		"description": alert.Message,
		"color":       color,
		"timestamp":   alert.Timestamp.Format(time.RFC3339),
	}
	if alert.Symbol != "" {
		embed["fields"] = []map[string]interface{}{
			{"name": "Instrument", "value": alert.Symbol, "inline": true},
		}
	}

	return postJSON(ctx, d.client, d.webhookURL, map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	})
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notification: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notification: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notification: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("notification: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
)
