package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/cache"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingNotifier) Send(_ context.Context, alert Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *recordingNotifier) Name() string { return "recorder" }

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func newTestManager(dedup cache.DedupCache) (*Manager, *recordingNotifier) {
	m := NewManager(config.NotificationConfig{Enabled: true}, dedup)
	rec := &recordingNotifier{}
	m.AddNotifier(rec)
	return m, rec
}

func TestManagerSuppressesDuplicates(t *testing.T) {
	m, rec := newTestManager(cache.NewMemoryDedupCache())
	ctx := context.Background()

	m.TradeOpened(ctx, "EUR_USD", "buy", 5000, 1.1000, 1.0984, 1.1029)
	m.TradeOpened(ctx, "EUR_USD", "buy", 5000, 1.1000, 1.0984, 1.1029)
	if rec.count() != 1 {
		t.Errorf("alerts delivered = %d, want duplicate suppressed", rec.count())
	}

	// A different instrument is a different fingerprint.
	m.TradeOpened(ctx, "GBP_USD", "buy", 5000, 1.2500, 1.2484, 1.2529)
	if rec.count() != 2 {
		t.Errorf("alerts delivered = %d, want 2", rec.count())
	}
}

func TestManagerWithoutDedupSendsAll(t *testing.T) {
	m, rec := newTestManager(nil)
	ctx := context.Background()

	m.CircuitTripped(ctx, "4 consecutive losses")
	m.CircuitTripped(ctx, "4 consecutive losses")
	if rec.count() != 2 {
		t.Errorf("alerts delivered = %d, want 2 without dedup", rec.count())
	}
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(config.NotificationConfig{Enabled: false}, nil)
	rec := &recordingNotifier{}
	m.AddNotifier(rec)

	m.Error(context.Background(), "broker down", "pricing unavailable")
	if rec.count() != 0 {
		t.Error("disabled manager must not deliver")
	}
}

func TestTelegramNotifierPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottoken123/sendMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "token123", ChatID: "42"})
	tg.apiBase = srv.URL

	err := tg.Send(context.Background(), Alert{Title: "Opened buy EUR_USD", Message: "5000 units @ 1.10000"})
	if err != nil {
		t.Fatalf("Send error = %v", err)
	}
	if got["chat_id"] != "42" {
		t.Errorf("chat_id = %v", got["chat_id"])
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, "Opened buy EUR_USD") {
		t.Errorf("text = %q", text)
	}
}

func TestDiscordNotifierStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	dc := NewDiscordNotifier(config.DiscordConfig{Enabled: true, WebhookURL: srv.URL})
	if err := dc.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Error("expected error on non-2xx webhook response")
	}
}

func TestUnconfiguredProvidersAreNil(t *testing.T) {
	if NewTelegramNotifier(config.TelegramConfig{Enabled: true}) != nil {
		t.Error("telegram without token must be nil")
	}
	if NewDiscordNotifier(config.DiscordConfig{Enabled: false, WebhookURL: "x"}) != nil {
		t.Error("disabled discord must be nil")
	}
}
