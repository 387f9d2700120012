package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/ActionForge/internal/domain/proposal"
	"github.com/Strob0t/ActionForge/internal/port/notifier"
)

// Alert events.
const (
	EventReviewRequired = "proposal.review_required"
	EventAutoEligible   = "proposal.auto_eligible"
)

const (
	notifyTimeout = 10 * time.Second
	// maxAlertLines caps the per-action lines in one alert.
	maxAlertLines = 10
)

// NotificationService alerts reviewers about recorded proposals.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
}

// NewNotificationService creates a NotificationService with the given notifiers
// and list of enabled events. If enabledEvents is empty, all events are enabled.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
	}
}

// NotifyProposal builds the alert for p and sends it. Proposals without
// actions raise no alert.
func (s *NotificationService) NotifyProposal(ctx context.Context, p *proposal.Proposal) {
	if len(p.Actions) == 0 {
		return
	}
	s.Notify(ctx, ProposalNotification(p))
}

// Notify sends a notification to all notifiers.
// Errors are logged but do not interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Event] {
		return
	}

	for _, provider := range s.notifiers {
		sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		err := provider.Send(sendCtx, n)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "notification send failed",
				"provider", provider.Name(),
				"proposal_id", n.ProposalID,
				"error", err,
			)
			continue
		}
		slog.DebugContext(ctx, "notification sent", "provider", provider.Name(), "proposal_id", n.ProposalID)
	}
}

// NotifierCount returns the number of configured notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}

// ProposalNotification renders p as an alert. Any action needing review
// makes it a review_required warning.
func ProposalNotification(p *proposal.Proposal) notifier.Notification {
	auto := p.Evaluation.AutoEligibleCount()
	review := len(p.Evaluation.Assessments) - auto

	n := notifier.Notification{
		Level:      notifier.LevelInfo,
		Event:      EventAutoEligible,
		ProposalID: p.ID,
		Title:      fmt.Sprintf("%d %s action(s) auto-eligible", auto, p.Source),
	}
	if review > 0 {
		n.Level = notifier.LevelWarning
		n.Event = EventReviewRequired
		n.Title = fmt.Sprintf("%d %s action(s) need review", review, p.Source)
	}

	var b strings.Builder
	if p.Interaction.Subject != "" {
		fmt.Fprintf(&b, "*%s*\n", p.Interaction.Subject)
	}
	for i, a := range p.Actions {
		if i == maxAlertLines {
			fmt.Fprintf(&b, "... and %d more", len(p.Actions)-maxAlertLines)
			break
		}
		mark := "review"
		if i < len(p.Evaluation.Assessments) && p.Evaluation.Assessments[i].AutoEligible {
			mark = "auto"
		}
		fmt.Fprintf(&b, "- [%s] %s %s: %s\n", mark, a.Type, a.Target, a.Reason)
	}
	n.Message = strings.TrimRight(b.String(), "\n")
	return n
}
