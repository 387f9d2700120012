package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Strob0t/ActionForge/internal/port/notifier"
)

func TestSendNotConfigured(t *testing.T) {
	err := NewNotifier("").Send(context.Background(), notifier.Notification{Title: "test"})
	if !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSend(t *testing.T) {
	tests := []struct {
		name      string
		n         notifier.Notification
		wantColor int
	}{
		{"review", notifier.Notification{Title: "needs review", Level: notifier.LevelWarning, Event: "proposal.review_required", ProposalID: "p-1"}, 0xF39C12},
		{"info", notifier.Notification{Title: "all auto", Level: notifier.LevelInfo}, 0x3498DB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got discordWebhook
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			if err := NewNotifier(srv.URL).Send(context.Background(), tt.n); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got.Embeds) != 1 || got.Embeds[0].Color != tt.wantColor {
				t.Fatalf("embeds = %+v", got.Embeds)
			}
			if tt.n.ProposalID != "" && (got.Embeds[0].Footer == nil || !strings.Contains(got.Embeds[0].Footer.Text, "p-1")) {
				t.Fatalf("footer = %+v", got.Embeds[0].Footer)
			}
		})
	}
}

func TestSendTruncatesDescription(t *testing.T) {
	var got discordWebhook
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	long := strings.Repeat("é", maxDescription+10)
	if err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{Title: "t", Message: long}); err != nil {
		t.Fatal(err)
	}
	if n := utf8.RuneCountInString(got.Embeds[0].Description); n != maxDescription {
		t.Fatalf("description runes = %d, want %d", n, maxDescription)
	}
}

func TestSendWebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{Title: "t"}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
