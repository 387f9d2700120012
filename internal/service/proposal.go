package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	afotel "github.com/Strob0t/ActionForge/internal/adapter/otel"
	"github.com/Strob0t/ActionForge/internal/adapter/ws"
	"github.com/Strob0t/ActionForge/internal/domain"
	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
	"github.com/Strob0t/ActionForge/internal/domain/proposal"
	"github.com/Strob0t/ActionForge/internal/port/broadcast"
	"github.com/Strob0t/ActionForge/internal/port/database"
	"github.com/Strob0t/ActionForge/internal/port/messagequeue"
)

// ProposeRequest is an orchestration request as received from a caller.
type ProposeRequest struct {
	Interaction interaction.Interaction      `json:"interaction"`
	Related     *interaction.RelatedEntities `json:"related_entities,omitempty"`
	Policy      *policy.Policy               `json:"policy,omitempty"`
	PolicyName  string                       `json:"policy_name,omitempty"`
}

// ProposeResult is the engine result plus its audit identity.
type ProposeResult struct {
	Result
	ProposalID  string `json:"proposal_id,omitempty"`
	Fingerprint string `json:"fingerprint"`
	// Duplicate reports that an identical request was already recorded;
	// ProposalID then names the earlier proposal.
	Duplicate bool `json:"duplicate"`
}

// ProposalService runs orchestrations for callers and records the outcome:
// an audit row, a review-feed event, an actions.proposed message and,
// when configured, a reviewer alert.
type ProposalService struct {
	engine   *Engine
	policies *PolicyService
	store    database.ProposalStore
	hub      broadcast.Broadcaster
	queue    messagequeue.Queue
	alerts   *NotificationService
	now      func() time.Time
}

// NewProposalService creates a ProposalService. store, hub and queue may be
// nil; the corresponding side effect is then skipped.
func NewProposalService(
	engine *Engine,
	policies *PolicyService,
	store database.ProposalStore,
	hub broadcast.Broadcaster,
	queue messagequeue.Queue,
) *ProposalService {
	return &ProposalService{
		engine:   engine,
		policies: policies,
		store:    store,
		hub:      hub,
		queue:    queue,
		now:      time.Now,
	}
}

// SetNotifications enables review alerts for newly recorded proposals.
func (s *ProposalService) SetNotifications(n *NotificationService) {
	s.alerts = n
}

// Propose resolves the policy, orchestrates and records the result. Only an
// unknown policy name is an error; recording failures are logged.
func (s *ProposalService) Propose(ctx context.Context, req *ProposeRequest) (*ProposeResult, error) {
	pol, err := s.resolvePolicy(req.PolicyName, req.Policy)
	if err != nil {
		return nil, err
	}

	fp := proposal.Fingerprint(req.Interaction, req.Related, pol)
	if existing := s.lookup(ctx, fp); existing != nil {
		slog.InfoContext(ctx, "duplicate proposal", "proposal_id", existing.ID)
		return fromRecord(existing), nil
	}

	res := s.engine.Orchestrate(ctx, Request{
		Interaction: req.Interaction,
		Related:     req.Related,
		Policy:      pol,
	})

	out := &ProposeResult{Result: res, Fingerprint: fp}
	// Errored results are not recorded so a retry after recovery is not
	// mistaken for a duplicate.
	if res.State != StateDone {
		return out, nil
	}

	p := &proposal.Proposal{
		ID:          uuid.NewString(),
		Fingerprint: out.Fingerprint,
		Source:      req.Interaction.Source,
		Interaction: req.Interaction,
		Related:     req.Related,
		PolicyName:  policyName(req.PolicyName, pol),
		Actions:     res.Output.Actions,
		Evaluation:  res.Evaluation,
		State:       string(res.State),
		Dropped:     res.Dropped,
		Model:       res.Model,
		CreatedAt:   s.now().UTC(),
	}
	if existing := s.record(ctx, p); existing != nil {
		// A concurrent identical request was recorded first.
		return fromRecord(existing), nil
	}
	out.ProposalID = p.ID
	return out, nil
}

// lookup returns the proposal already recorded for fp, if any.
func (s *ProposalService) lookup(ctx context.Context, fp string) *proposal.Proposal {
	if s.store == nil {
		return nil
	}
	p, err := s.store.GetProposalByFingerprint(ctx, fp)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "lookup proposal", "fingerprint", fp, "error", err)
		}
		return nil
	}
	return p
}

// fromRecord answers a duplicate request with the audited proposal so the
// caller never sees actions that differ from the record it references.
func fromRecord(p *proposal.Proposal) *ProposeResult {
	actions := p.Actions
	if actions == nil {
		actions = []action.Action{}
	}
	return &ProposeResult{
		Result: Result{
			Output:     action.Output{Actions: actions},
			Evaluation: p.Evaluation,
			State:      State(p.State),
			Dropped:    p.Dropped,
			Model:      p.Model,
		},
		ProposalID:  p.ID,
		Fingerprint: p.Fingerprint,
		Duplicate:   true,
	}
}

func (s *ProposalService) resolvePolicy(name string, inline *policy.Policy) (*policy.Policy, error) {
	if s.policies == nil {
		if name != "" && inline == nil {
			if p, ok := policy.PresetByName(name); ok {
				return &p, nil
			}
			return nil, fmt.Errorf("%w: unknown policy profile %q", domain.ErrValidation, name)
		}
		return inline, nil
	}
	return s.policies.Resolve(name, inline)
}

// record stores p and fans it out. When an identical request was recorded
// in the meantime, that earlier proposal is returned and nothing is fanned out.
func (s *ProposalService) record(ctx context.Context, p *proposal.Proposal) *proposal.Proposal {
	ctx, span := afotel.StartProposalSpan(ctx, p.ID)
	var spanErr error
	defer func() { afotel.EndSpan(span, spanErr) }()

	if s.store != nil {
		written, err := s.store.CreateProposal(ctx, p)
		if err != nil {
			spanErr = err
			slog.ErrorContext(ctx, "record proposal", "proposal_id", p.ID, "error", err)
		} else if !written {
			existing, err := s.store.GetProposalByFingerprint(ctx, p.Fingerprint)
			if err != nil {
				spanErr = err
				slog.ErrorContext(ctx, "load duplicate proposal", "fingerprint", p.Fingerprint, "error", err)
				return p
			}
			slog.InfoContext(ctx, "duplicate proposal", "proposal_id", existing.ID)
			return existing
		}
	}

	autoEligible := make([]int, 0, len(p.Evaluation.Assessments))
	for i := range p.Evaluation.Assessments {
		if p.Evaluation.Assessments[i].AutoEligible {
			autoEligible = append(autoEligible, p.Evaluation.Assessments[i].Index)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventProposalCreated, ws.ProposalCreatedEvent{
			ProposalID:   p.ID,
			Fingerprint:  p.Fingerprint,
			Source:       string(p.Source),
			State:        p.State,
			PolicyName:   p.PolicyName,
			ActionCount:  len(p.Actions),
			AutoEligible: len(autoEligible),
			Dropped:      p.Dropped,
			CreatedAt:    p.CreatedAt,
		})
	}

	if s.queue != nil {
		if err := s.publish(ctx, p, autoEligible); err != nil {
			spanErr = errors.Join(spanErr, err)
			slog.ErrorContext(ctx, "publish proposal", "proposal_id", p.ID, "error", err)
		}
	}

	if s.alerts != nil {
		go s.alerts.NotifyProposal(context.WithoutCancel(ctx), p)
	}

	slog.InfoContext(ctx, "proposal recorded", "proposal_id", p.ID, "actions", len(p.Actions), "auto_eligible", len(autoEligible))
	return nil
}

func (s *ProposalService) publish(ctx context.Context, p *proposal.Proposal, autoEligible []int) error {
	data, err := json.Marshal(messagequeue.ActionsProposedPayload{
		ProposalID:   p.ID,
		Fingerprint:  p.Fingerprint,
		Source:       p.Source,
		State:        p.State,
		Actions:      p.Actions,
		Companions:   p.Evaluation.Companions,
		AutoEligible: autoEligible,
		CreatedAt:    p.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal actions.proposed: %w", err)
	}
	return s.queue.Publish(ctx, messagequeue.SubjectActionsProposed, data)
}

// Get returns a recorded proposal.
func (s *ProposalService) Get(ctx context.Context, id string) (*proposal.Proposal, error) {
	if s.store == nil {
		return nil, fmt.Errorf("get proposal %s: no store: %w", id, domain.ErrNotFound)
	}
	return s.store.GetProposal(ctx, id)
}

// List returns the most recent proposals.
func (s *ProposalService) List(ctx context.Context, limit int) ([]proposal.Proposal, error) {
	if s.store == nil {
		return []proposal.Proposal{}, nil
	}
	return s.store.ListProposals(ctx, limit)
}

func policyName(requested string, pol *policy.Policy) string {
	if pol != nil && pol.Name != "" {
		return pol.Name
	}
	return requested
}
