package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/medassist/clinical-core/pkg/idempotency"
)

// ErrRejected is returned when a channel refuses an alert (4xx).
var ErrRejected = errors.New("notification rejected")

// Notifier delivers an alert over one channel.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, alert *Alert) error
}

// WebhookConfig configures a webhook channel
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// WebhookNotifier posts alerts as JSON to an HTTP endpoint
type WebhookNotifier struct {
	cfg    WebhookConfig
	host   string
	client *http.Client
}

// NewWebhookNotifier validates the URL and builds the notifier
func NewWebhookNotifier(cfg WebhookConfig, client *http.Client) (*WebhookNotifier, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url: %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebhookNotifier{cfg: cfg, host: u.Host, client: client}, nil
}

// Channel names the breaker and inbox scope for this webhook
func (w *WebhookNotifier) Channel() string {
	return "webhook:" + w.host
}

// Notify posts the alert. 4xx responses are terminal, anything else non-2xx is retried.
func (w *WebhookNotifier) Notify(ctx context.Context, alert *Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return idempotency.Terminal(fmt.Errorf("marshal alert: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return idempotency.Terminal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", alert.EventID)
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook throttled: %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return idempotency.Terminal(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	default:
		return fmt.Errorf("webhook failed: status %d", resp.StatusCode)
	}
}

// LogNotifier writes alerts to the logger. Used when no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only channel
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Channel returns "log"
func (l *LogNotifier) Channel() string { return "log" }

// Notify logs the alert
func (l *LogNotifier) Notify(_ context.Context, alert *Alert) error {
	l.logger.Warn("labor action line crossed",
		zap.String("event_id", alert.EventID),
		zap.String("record_id", alert.RecordID),
		zap.String("patient_ref", alert.PatientRef),
		zap.Float64("hours_from_start", alert.HoursFromStart),
		zap.Float64("dilation_cm", alert.DilationCm),
		zap.Float64("expected_dilation_cm", alert.ExpectedDilationCm))
	return nil
}
