// Package sms delivers one-time codes through the SMS Local gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultBaseURL    = "https://www.smslocal.com/dev/bulkV2"
	defaultMaxRetries = 3
	baseBackoff       = 200 * time.Millisecond
	maxBackoff        = 5 * time.Second
)

// ErrNotConfigured is returned when the client has no API key.
var ErrNotConfigured = errors.New("sms: API key not configured")

// StatusError is returned when the gateway answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sms: request failed status=%d body=%s", e.StatusCode, e.Body)
}

// SMSLocalClient sends OTP SMS via the SMS Local API (route=otp).
type SMSLocalClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	MaxRetries int
	HTTPClient *http.Client
	// backoff builds the retry schedule; tests shorten it.
	backoff func() retry.Backoff
}

// NewSMSLocalClient returns a client for apiKey. Empty baseURL uses the public endpoint;
// maxRetries <= 0 uses 3.
func NewSMSLocalClient(apiKey, baseURL, sender string, maxRetries int) *SMSLocalClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &SMSLocalClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		MaxRetries: maxRetries,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		backoff: func() retry.Backoff {
			return retry.WithCappedDuration(maxBackoff, retry.NewFibonacci(baseBackoff))
		},
	}
}

// digitsOnly strips everything but ASCII digits; the gateway expects country code + number.
func digitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SendOTP sends code to phone. Network failures and 5xx/429 answers are retried with capped
// Fibonacci backoff; other statuses fail immediately. The code is never logged.
func (c *SMSLocalClient) SendOTP(ctx context.Context, phone, code string) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	body := map[string]interface{}{
		"route":     "otp",
		"numbers":   digitsOnly(phone),
		"variables": code,
	}
	if c.Sender != "" {
		body["sender_id"] = c.Sender
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	b := c.backoff
	if b == nil {
		b = func() retry.Backoff { return retry.NewFibonacci(baseBackoff) }
	}
	return retry.Do(ctx, retry.WithMaxRetries(uint64(c.MaxRetries), b()), func(ctx context.Context) error {
		err := c.post(ctx, raw)
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return err
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (c *SMSLocalClient) post(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}
