package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"project-workspace-api/internal/metrics"
)

const DefaultSlackAPIBaseURL = "https://slack.com/api"

// TextObject is a Slack block-kit text element.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Block is a Slack block-kit block. Only the fields used by the workspace are modelled.
type Block struct {
	Type     string       `json:"type"`
	Text     *TextObject  `json:"text,omitempty"`
	Fields   []TextObject `json:"fields,omitempty"`
	Elements []TextObject `json:"elements,omitempty"`
}

// SlackMessage is the body for both webhooks and chat.postMessage.
type SlackMessage struct {
	Channel  string  `json:"channel,omitempty"`
	Text     string  `json:"text"`
	Blocks   []Block `json:"blocks,omitempty"`
	ThreadTS string  `json:"thread_ts,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error"`
}

// SlackClient delivers messages to Slack.
type SlackClient interface {
	// PostWebhook posts msg to an incoming webhook URL.
	PostWebhook(ctx context.Context, webhookURL string, msg SlackMessage) error
	// PostMessage calls chat.postMessage with a bot token and returns the message ts.
	PostMessage(ctx context.Context, token string, msg SlackMessage) (string, error)
}

type slackClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewSlackClient creates a Slack client. timeout bounds every call regardless of the caller's deadline.
func NewSlackClient(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) SlackClient {
	if baseURL == "" {
		baseURL = DefaultSlackAPIBaseURL
	}
	return &slackClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

func (c *slackClient) PostWebhook(ctx context.Context, webhookURL string, msg SlackMessage) error {
	msg.Channel = ""
	resp, body, err := c.post(ctx, webhookURL, "", msg)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *slackClient) PostMessage(ctx context.Context, token string, msg SlackMessage) (string, error) {
	resp, body, err := c.post(ctx, c.baseURL+"/chat.postMessage", token, msg)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat.postMessage returned %d", resp.StatusCode)
	}
	var out postMessageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode chat.postMessage response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("chat.postMessage failed: %s", out.Error)
	}
	return out.TS, nil
}

func (c *slackClient) post(ctx context.Context, url, token string, msg SlackMessage) (*http.Response, []byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(url, http.MethodPost, statusCode, duration, err)

	if err != nil {
		c.logger.Warn("Slack request failed",
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read slack response: %w", err)
	}
	c.logger.Debug("Slack request completed",
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return resp, body, nil
}
