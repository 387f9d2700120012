package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Strob0t/ActionForge/internal/domain"
	"github.com/Strob0t/ActionForge/internal/logger"
	"github.com/Strob0t/ActionForge/internal/port/messagequeue"
)

// Intake consumes interactions.received and feeds each interaction through
// the proposal service.
type Intake struct {
	queue     messagequeue.Queue
	proposals *ProposalService
}

// NewIntake creates an Intake.
func NewIntake(queue messagequeue.Queue, proposals *ProposalService) *Intake {
	return &Intake{queue: queue, proposals: proposals}
}

// Start subscribes to interactions.received. The returned function stops
// the subscription.
func (in *Intake) Start(ctx context.Context) (func(), error) {
	stop, err := in.queue.Subscribe(ctx, messagequeue.SubjectInteractionsReceived, in.Handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messagequeue.SubjectInteractionsReceived, err)
	}
	slog.Info("intake subscribed", "subject", messagequeue.SubjectInteractionsReceived)
	return stop, nil
}

// Handle processes one interactions.received message. Payloads that can never
// succeed are reported as poison so the queue does not redeliver them.
func (in *Intake) Handle(ctx context.Context, _ string, data []byte) error {
	if err := messagequeue.Validate(messagequeue.SubjectInteractionsReceived, data); err != nil {
		return err
	}
	var p messagequeue.InteractionReceivedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: decode interaction: %w", messagequeue.ErrPoison, err)
	}
	if p.RequestID != "" && logger.RequestID(ctx) == "" {
		ctx = logger.WithRequestID(ctx, p.RequestID)
	}

	res, err := in.proposals.Propose(ctx, &ProposeRequest{
		Interaction: p.Interaction,
		Related:     p.Related,
		Policy:      p.Policy,
		PolicyName:  p.PolicyName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fmt.Errorf("%w: %w", messagequeue.ErrPoison, err)
		}
		return err
	}

	slog.InfoContext(ctx, "intake orchestrated",
		"proposal_id", res.ProposalID,
		"state", res.State,
		"actions", len(res.Output.Actions),
		"duplicate", res.Duplicate,
	)
	return nil
}
