package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/florasync/florasync/internal/config"
)

// Notifier delivers one alert over one channel. Delivery is
// best-effort; callers log failures and move on.
type Notifier interface {
	// Name identifies the channel, e.g. "email" or "webhook"
	Name() string

	Send(ctx context.Context, alert Alert) error
}

// NewNotifiers builds the configured delivery channels
func NewNotifiers(cfg *config.AlertingConfig) []Notifier {
	if cfg == nil {
		return nil
	}

	var notifiers []Notifier
	if cfg.Email != nil {
		notifiers = append(notifiers, &emailNotifier{cfg: cfg.Email})
	}
	if cfg.Webhook != nil {
		notifiers = append(notifiers, &webhookNotifier{
			url:  cfg.Webhook.URL,
			http: &http.Client{Timeout: 10 * time.Second},
		})
	}
	return notifiers
}

type emailNotifier struct {
	cfg *config.EmailConfig
}

func (*emailNotifier) Name() string {
	return "email"
}

func (n *emailNotifier) Send(_ context.Context, alert Alert) error {
	subject := fmt.Sprintf("[florasync] %s: %s on provider %s",
		strings.ToUpper(string(alert.Severity)), alert.Event, alert.Provider)

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n", subject)
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&body, "%s\n\nprovider: %s\ncircuit state: %s\nhealth score: %d\ntime: %s\n",
		alert.Message, alert.Provider, alert.CircuitState, alert.HealthScore,
		alert.Timestamp.Format(time.RFC3339))

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := smtp.SendMail(addr, nil, n.cfg.From, n.cfg.To, []byte(body.String())); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

type webhookNotifier struct {
	url  string
	http *http.Client
}

func (*webhookNotifier) Name() string {
	return "webhook"
}

func (n *webhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
