// Package slack posts review alerts to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	afotel "github.com/Strob0t/ActionForge/internal/adapter/otel"
	"github.com/Strob0t/ActionForge/internal/port/notifier"
)

const providerName = "slack"

// Notifier sends review alerts to Slack via incoming webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

var _ notifier.Notifier = (*Notifier)(nil)

// NewNotifier creates a Slack notifier with the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second, Transport: afotel.Transport(nil)},
	}
}

func (n *Notifier) Name() string { return providerName }

// slackMessage is the Slack Block Kit message payload.
type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	header := fmt.Sprintf("%s %s", levelTag(notification.Level), notification.Title)
	msg := slackMessage{
		// Fallback for clients that do not render blocks.
		Text: header,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: header}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: notification.Message}},
		},
	}
	if notification.ProposalID != "" || notification.Event != "" {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type: "context",
			Elements: []slackText{{
				Type: "mrkdwn",
				Text: fmt.Sprintf("_%s_ | proposal `%s`", notification.Event, notification.ProposalID),
			}},
		})
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack webhook %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func levelTag(level string) string {
	if level == notifier.LevelWarning {
		return "[REVIEW]"
	}
	return "[INFO]"
}
