package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/smokecheck/models"
)

// Event types.
const (
	EventCheckPassed = "check.passed"
	EventCheckFailed = "check.failed"
)

// SignatureHeader carries the HMAC-SHA256 of the body as "sha256=<hex>".
const SignatureHeader = "X-Smokecheck-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string              `json:"type"`
	URL       string              `json:"url"`
	Timestamp int64               `json:"timestamp"`
	Data      *models.CheckReport `json:"data"`
}

// NewEvent builds the event for a finished report. The event carries its own
// copy of r, so callers may keep mutating r while delivery runs.
func NewEvent(r *models.CheckReport) *Event {
	typ := EventCheckPassed
	if !r.Passed {
		typ = EventCheckFailed
	}
	snapshot := *r
	return &Event{
		Type:      typ,
		URL:       r.URL,
		Timestamp: r.CheckedAt.Unix(),
		Data:      &snapshot,
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Smokecheck-Webhook/1.0")

	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// retryDelays are the waits before each delivery attempt in DeliverAsync.
var retryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// DeliverAsync sends a webhook event in the background with up to 3 retries.
// done, if non-nil, is called with the final error once delivery finishes.
func DeliverAsync(url, secret string, event *Event, done func(error)) {
	go func() {
		var err error
		for attempt, delay := range retryDelays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"attempt", attempt+1,
				)
				break
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"attempt", attempt+1,
				"error", err,
			)
		}
		if err != nil {
			slog.Error("webhook delivery exhausted all retries",
				"url", url,
				"event", event.Type,
			)
		}
		if done != nil {
			done(err)
		}
	}()
}

// Notifier posts check reports to a webhook endpoint.
type Notifier struct {
	URL          string
	Secret       string
	OnlyFailures bool

	// Async delivers in the background with retries; otherwise a single
	// synchronous attempt is made and failures are logged.
	Async bool
}

// Notify delivers r unless OnlyFailures is set and r passed.
func (n *Notifier) Notify(ctx context.Context, r *models.CheckReport) {
	if n.URL == "" || (n.OnlyFailures && r.Passed) {
		return
	}
	event := NewEvent(r)
	if n.Async {
		DeliverAsync(n.URL, n.Secret, event, nil)
		return
	}
	if err := Deliver(ctx, n.URL, n.Secret, event); err != nil {
		slog.Warn("webhook delivery failed", "url", n.URL, "event", event.Type, "error", err)
	}
}
