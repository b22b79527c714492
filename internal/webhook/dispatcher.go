package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderSignature = "X-Webhook-Signature"
	HeaderJobID     = "X-Webhook-Job-ID"

	EventPipelineCompleted = "pipeline.completed"
	EventPipelineFailed    = "pipeline.failed"
)

// Dispatcher posts signed job notifications to client callback URLs.
type Dispatcher struct {
	httpClient *http.Client
	secret     string
}

type DeliveryRequest struct {
	JobID   string
	URL     string
	Event   string
	Payload []byte
}

func NewDispatcher(secret string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		secret:     secret,
	}
}

// Deliver sends one notification. Non-2xx responses are errors so the
// caller's queue can retry.
func (d *Dispatcher) Deliver(ctx context.Context, req DeliveryRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderEvent, req.Event)
	httpReq.Header.Set(HeaderJobID, req.JobID)
	if d.secret != "" {
		httpReq.Header.Set(HeaderSignature, Sign(req.Payload, d.secret))
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("deliver webhook for job %s: %w", req.JobID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook for job %s: receiver returned %d", req.JobID, resp.StatusCode)
	}

	slog.Info("webhook delivered", "job_id", req.JobID, "event", req.Event, "status", resp.StatusCode)
	return nil
}

// Sign returns the signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature header produced by Sign.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

// ValidateCallbackURL accepts absolute http and https URLs only.
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("callbackUrl is invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("callbackUrl must be an absolute http(s) URL")
	}
	return nil
}
