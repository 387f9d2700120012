// Package discord posts review alerts to a Discord webhook.
package discord

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

const providerName = "discord"

// Discord rejects embed descriptions longer than this.
const maxDescription = 4096

// Notifier sends review alerts to Discord via incoming webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

var _ notifier.Notifier = (*Notifier)(nil)

// NewNotifier creates a Discord notifier with the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second, Transport: afotel.Transport(nil)},
	}
}

func (n *Notifier) Name() string { return providerName }

type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	desc := notification.Message
	if r := []rune(desc); len(r) > maxDescription {
		desc = string(r[:maxDescription-1]) + "…"
	}
	embed := discordEmbed{
		Title:       notification.Title,
		Description: desc,
		Color:       levelColor(notification.Level),
	}
	if notification.ProposalID != "" {
		embed.Footer = &discordFooter{Text: notification.Event + " | proposal " + notification.ProposalID}
	}

	body, err := json.Marshal(discordWebhook{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Discord returns 204 on success
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord webhook %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func levelColor(level string) int {
	if level == notifier.LevelWarning {
		return 0xF39C12 // orange
	}
	return 0x3498DB // blue
}
