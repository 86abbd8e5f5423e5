package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"binance-pattern-scanner/config"
	"binance-pattern-scanner/internal/events"

	"github.com/rs/zerolog"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal  NotificationType = "signal"
	NotifySummary NotificationType = "scan_summary"
	NotifyError   NotificationType = "error"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	sendTimeout        = 10 * time.Second
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Timeframe string
	Price     float64
	Bullish   bool
	Timestamp time.Time
}

// SignalAlert is one reported pattern occurrence
type SignalAlert struct {
	Symbol          string
	Timeframe       string
	Kind            string
	CandlesAgo      int
	EntryPrice      float64
	LastPrice       float64
	WithinThreshold bool
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(ctx context.Context, notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
	summaries bool // also notify on every completed scan
	logger    zerolog.Logger
}

// NewManager creates a new notification manager
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
		logger:    logger.With().Str("component", "notification").Logger(),
	}
}

// NewManagerFromConfig builds a manager with the providers enabled in cfg
func NewManagerFromConfig(cfg config.NotificationConfig, logger zerolog.Logger) *Manager {
	m := NewManager(logger)
	m.enabled = cfg.Enabled
	m.summaries = cfg.ScanSummary
	m.AddNotifier(NewTelegramNotifier(TelegramConfig{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		Enabled:  cfg.Telegram.Enabled,
	}))
	m.AddNotifier(NewDiscordNotifier(DiscordConfig{
		WebhookURL: cfg.Discord.WebhookURL,
		Enabled:    cfg.Discord.Enabled,
	}))
	return m
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// IsEnabled reports whether the manager is on and has at least one active provider
func (m *Manager) IsEnabled() bool {
	if !m.enabled {
		return false
	}
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(ctx context.Context, notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(ctx, notification); err != nil {
				m.logger.Warn().Err(err).Str("provider", n.Name()).Msg("Notification failed")
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendSignal sends a pattern signal notification
func (m *Manager) SendSignal(ctx context.Context, alert SignalAlert) error {
	bullish := strings.HasPrefix(alert.Kind, "bullish")
	emoji := "🟢"
	if !bullish {
		emoji = "🔴"
	}

	near := "no"
	if alert.WithinThreshold {
		near = "yes"
	}

	return m.Send(ctx, &Notification{
		Type:      NotifySignal,
		Title:     fmt.Sprintf("%s %s %s", emoji, alert.Symbol, strings.ToUpper(alert.Timeframe)),
		Message:   fmt.Sprintf("%s, %d candle(s) ago\nEntry ≈ %.2f | Price ≈ %.2f\nNear entry: %s", alert.Kind, alert.CandlesAgo, alert.EntryPrice, alert.LastPrice, near),
		Symbol:    alert.Symbol,
		Timeframe: alert.Timeframe,
		Price:     alert.EntryPrice,
		Bullish:   bullish,
		Timestamp: time.Now(),
	})
}

// SendScanSummary sends a short summary after a scan finished
func (m *Manager) SendScanSummary(ctx context.Context, units, signals, failures int, duration time.Duration) error {
	return m.Send(ctx, &Notification{
		Type:      NotifySummary,
		Title:     "📊 Scan completed",
		Message:   fmt.Sprintf("Units: %d\nSignals: %d\nFailures: %d\nDuration: %s", units, signals, failures, duration.Round(time.Millisecond)),
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(ctx context.Context, title, message string) error {
	return m.Send(ctx, &Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// HandleEvent forwards signal, error and scan summary events from the event bus
func (m *Manager) HandleEvent(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	switch event.Type {
	case events.EventSignalDetected:
		alert := SignalAlert{
			Symbol:          stringField(event.Data, "symbol"),
			Timeframe:       stringField(event.Data, "timeframe"),
			Kind:            stringField(event.Data, "kind"),
			CandlesAgo:      intField(event.Data, "candles_ago"),
			EntryPrice:      floatField(event.Data, "entry_price"),
			LastPrice:       floatField(event.Data, "last_price"),
			WithinThreshold: boolField(event.Data, "within_threshold"),
		}
		if err := m.SendSignal(ctx, alert); err != nil {
			m.logger.Error().Err(err).Str("symbol", alert.Symbol).Msg("Failed to deliver signal alert")
		}

	case events.EventScanCompleted:
		duration := time.Duration(intField(event.Data, "duration_ms")) * time.Millisecond
		err := m.SendScanSummary(ctx, intField(event.Data, "units"), intField(event.Data, "signals"),
			intField(event.Data, "failures"), duration)
		if err != nil {
			m.logger.Error().Err(err).Msg("Failed to deliver scan summary")
		}

	case events.EventError:
		message := stringField(event.Data, "message")
		if detail := stringField(event.Data, "error"); detail != "" {
			message += ": " + detail
		}
		if err := m.SendError(ctx, stringField(event.Data, "source"), message); err != nil {
			m.logger.Error().Err(err).Msg("Failed to deliver error alert")
		}
	}
}

// Attach subscribes the manager to signal and error events, plus completed
// scans when summaries are on
func (m *Manager) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventSignalDetected, m.HandleEvent)
	bus.Subscribe(events.EventError, m.HandleEvent)
	if m.summaries {
		bus.Subscribe(events.EventScanCompleted, m.HandleEvent)
	}
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func intField(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatField(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func boolField(data map[string]interface{}, key string) bool {
	b, _ := data[key].(bool)
	return b
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
	APIBase  string // defaults to api.telegram.org
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	apiBase := config.APIBase
	if apiBase == "" {
		apiBase = defaultTelegramAPI
	}
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		apiBase:  strings.TrimRight(apiBase, "/"),
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: sendTimeout},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(ctx context.Context, notification *Notification) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message),
		"parse_mode": "Markdown",
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	resp, err := postJSON(ctx, t.client, url, payload)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: sendTimeout},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(ctx context.Context, notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00
	switch {
	case notification.Type == NotifyError:
		color = 0xFF0000
	case notification.Type == NotifySignal && !notification.Bullish:
		color = 0xFF0000
	case notification.Type == NotifySummary:
		color = 0x3498DB
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Timeframe != "" {
			fields = append(fields, map[string]interface{}{
				"name": "Timeframe", "value": strings.ToUpper(notification.Timeframe), "inline": true,
			})
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Entry", "value": fmt.Sprintf("%.2f", notification.Price), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	resp, err := postJSON(ctx, d.client, d.webhookURL, payload)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
