// Package loki pushes lifecycle events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultJob is the job label attached to every stream.
const DefaultJob = "otp-gateway"

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters that are awkward in Loki label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:.]`)

// eventFields picks the label and timestamp fields out of an event's JSON.
type eventFields struct {
	EventType string `json:"eventType"`
	Source    string `json:"source"`
	Purpose   string `json:"purpose"`
	CreatedAt string `json:"createdAt"`
}

// Client pushes log lines to a Loki instance.
type Client struct {
	BaseURL    string
	Job        string
	HTTPClient *http.Client
}

// NewClient returns a Client for baseURL (e.g. http://localhost:3100) with a 10s HTTP timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Job:        DefaultJob,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// PushEventJSON parses an event's JSON (a Kafka message value), extracts timestamp and labels, and pushes it.
// Unparseable input is pushed as-is with the current time and no extra labels.
// Identity and challenge ID stay in the line; they are unbounded and never become labels.
func (c *Client) PushEventJSON(ctx context.Context, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields eventFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		if fields.EventType != "" {
			labels["event_type"] = fields.EventType
		}
		if fields.Source != "" {
			labels["source"] = fields.Source
		}
		if fields.Purpose != "" {
			labels["purpose"] = fields.Purpose
		}
		if t, err := time.Parse(time.RFC3339Nano, fields.CreatedAt); err == nil {
			ts = t
		}
	}
	return c.PushEvent(ctx, ts, string(rawJSON), labels)
}

// PushEvent sends a single log line at timestamp with the given stream labels.
// Returns an error if the HTTP request fails or Loki returns non-2xx.
func (c *Client) PushEvent(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c.BaseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := make(map[string]string, len(labels)+1)
	job := c.Job
	if job == "" {
		job = DefaultJob
	}
	streamLabels["job"] = job
	for k, v := range labels {
		if sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	payload, err := json.Marshal(PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
