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

	"github.com/use-agent/productlens/models"
)

// SignatureHeader carries "sha256=<hex>" of the request body when a secret
// is configured.
const SignatureHeader = "X-Productlens-Signature"

// EventCrawlCompleted announces a crawl whose images are ready for the
// description generator.
const EventCrawlCompleted = "crawl.completed"

// Event is the payload sent to the describer endpoint.
type Event struct {
	Type      string               `json:"type"`
	JobID     string               `json:"job_id"`
	Timestamp int64                `json:"timestamp"`
	Data      models.DescribeInput `json:"data"`
}

// Notifier posts signed events to a single endpoint.
type Notifier struct {
	url    string
	secret string
	client *http.Client

	// Delays are the waits before each attempt made by DescribeAsync.
	Delays []time.Duration
}

// NewNotifier creates a Notifier. The body is signed with HMAC-SHA256 if
// secret is non-empty.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		Delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends an event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Productlens-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Describe hands a crawl's validated images to the describer without
// blocking the caller.
func (n *Notifier) Describe(requestID string, in models.DescribeInput) {
	n.DeliverAsync(&Event{
		Type:      EventCrawlCompleted,
		JobID:     requestID,
		Timestamp: time.Now().Unix(),
		Data:      in,
	})
}

// DeliverAsync sends an event in the background, retrying after each
// entry of Delays.
func (n *Notifier) DeliverAsync(event *Event) {
	go func() {
		for attempt, delay := range n.Delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}
