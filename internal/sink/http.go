package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/overhead/internal/render"
)

// WebhookUserAgent identifies webhook requests
const WebhookUserAgent = "overhead-webhook"

// DefaultHTTPTimeout bounds every display and webhook request
const DefaultHTTPTimeout = 10 * time.Second

func postJSON(ctx context.Context, client *http.Client, url, userAgent string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

// DisplayPayload is the body the remote two-row panel expects
type DisplayPayload struct {
	Ident        string
	AircraftType string
	Origin       string
	Destination  string
	Line1        string
	Line2        string
}

// Display posts the alerting aircraft to the remote character panel
type Display struct {
	url    string
	client *http.Client
}

// NewDisplay creates a display sink posting to url
func NewDisplay(url string, timeout time.Duration) *Display {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Display{url: url, client: &http.Client{Timeout: timeout}}
}

func (d *Display) Name() string { return "display" }

func (d *Display) Send(ctx context.Context, alert *render.Alert) error {
	pos := alert.Position
	return postJSON(ctx, d.client, d.url, "", DisplayPayload{
		Ident:        pos.Ident,
		AircraftType: pos.AircraftType,
		Origin:       pos.Origin,
		Destination:  pos.Destination,
		Line1:        alert.Panel[0],
		Line2:        alert.Panel[1],
	})
}

// Webhook posts the alerting position as JSON to a user supplied URL
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook sink posting to url
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, alert *render.Alert) error {
	return postJSON(ctx, w.client, w.url, WebhookUserAgent, alert.Position)
}
