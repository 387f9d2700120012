package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Strob0t/ActionForge/internal/adapter/ws"
	"github.com/Strob0t/ActionForge/internal/domain"
	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/proposal"
	"github.com/Strob0t/ActionForge/internal/port/messagequeue"
	"github.com/Strob0t/ActionForge/internal/port/notifier"
)

type proposalFixture struct {
	svc   *ProposalService
	gen   *fakeGenerator
	store *fakeProposalStore
	hub   *fakeBroadcaster
	queue *fakeQueue
}

func newProposalFixture(raw string) *proposalFixture {
	f := &proposalFixture{
		gen:   &fakeGenerator{raw: raw},
		store: newFakeProposalStore(),
		hub:   &fakeBroadcaster{},
		queue: newFakeQueue(),
	}
	engine := NewEngine(f.gen, WithClock(fixedClock))
	f.svc = NewProposalService(engine, NewPolicyService("balanced", nil), f.store, f.hub, f.queue)
	f.svc.now = fixedClock
	return f
}

func TestPropose_RecordsAndFansOut(t *testing.T) {
	f := newProposalFixture(twoDealUpdates)

	res, err := f.svc.Propose(context.Background(), &ProposeRequest{Interaction: proposalEmail()})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if res.ProposalID == "" || res.Duplicate {
		t.Fatalf("unexpected result: id=%q duplicate=%v", res.ProposalID, res.Duplicate)
	}

	stored, err := f.store.GetProposal(context.Background(), res.ProposalID)
	if err != nil {
		t.Fatalf("stored proposal: %v", err)
	}
	if stored.PolicyName != "balanced" {
		t.Errorf("policy name = %q, want default balanced", stored.PolicyName)
	}
	if !stored.CreatedAt.Equal(fixedNow) {
		t.Errorf("created_at = %v", stored.CreatedAt)
	}

	if len(f.hub.events) != 1 || f.hub.events[0] != ws.EventProposalCreated {
		t.Errorf("broadcast events = %v", f.hub.events)
	}
	if f.queue.count(messagequeue.SubjectActionsProposed) != 1 {
		t.Fatalf("published = %d, want 1", f.queue.count(messagequeue.SubjectActionsProposed))
	}

	data := f.queue.published[messagequeue.SubjectActionsProposed][0]
	if err := messagequeue.Validate(messagequeue.SubjectActionsProposed, data); err != nil {
		t.Fatalf("published payload fails validation: %v", err)
	}
	var msg messagequeue.ActionsProposedPayload
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ProposalID != res.ProposalID || len(msg.Actions) != 2 {
		t.Fatalf("payload = %+v", msg)
	}
	// balanced: 0.85 threshold, amount always reviewed
	if len(msg.AutoEligible) != 1 || msg.AutoEligible[0] != 0 {
		t.Fatalf("auto eligible = %v, want [0]", msg.AutoEligible)
	}
}

func TestPropose_DuplicateReturnsOriginal(t *testing.T) {
	f := newProposalFixture(twoDealUpdates)
	req := &ProposeRequest{Interaction: proposalEmail(), PolicyName: "trusted-assistant"}

	first, err := f.svc.Propose(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Propose(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if !second.Duplicate {
		t.Fatal("expected second proposal to be a duplicate")
	}
	if second.ProposalID != first.ProposalID {
		t.Fatalf("duplicate id = %s, want %s", second.ProposalID, first.ProposalID)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Fatal("fingerprints differ for identical requests")
	}
	if len(f.hub.events) != 1 || f.queue.count(messagequeue.SubjectActionsProposed) != 1 {
		t.Fatal("duplicate was fanned out again")
	}
}

func TestPropose_DuplicateAnswersWithRecordedActions(t *testing.T) {
	f := newProposalFixture(twoDealUpdates)
	req := &ProposeRequest{Interaction: proposalEmail()}

	first, err := f.svc.Propose(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	// The backend would now answer differently.
	f.gen.raw = `{"actions":[{"type":"suggest","target":"deals","reason":"changed mind","confidence":0.1}]}`
	second, err := f.svc.Propose(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if !second.Duplicate || second.ProposalID != first.ProposalID {
		t.Fatalf("duplicate=%v id=%s, want duplicate of %s", second.Duplicate, second.ProposalID, first.ProposalID)
	}
	if f.gen.calls.Load() != 1 {
		t.Fatalf("generator calls = %d, want 1", f.gen.calls.Load())
	}
	stored, err := f.store.GetProposal(context.Background(), first.ProposalID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(second.Output.Actions, stored.Actions) {
		t.Fatalf("returned actions differ from the record:\n%+v\n%+v", second.Output.Actions, stored.Actions)
	}
	if !reflect.DeepEqual(second.Evaluation, stored.Evaluation) || second.State != StateDone {
		t.Fatal("returned evaluation or state differ from the record")
	}
}

// lateStore hides the first fingerprint lookup, as if an identical request
// was recorded between the lookup and the insert.
type lateStore struct {
	*fakeProposalStore
	lookups int
}

func (s *lateStore) GetProposalByFingerprint(ctx context.Context, fp string) (*proposal.Proposal, error) {
	s.lookups++
	if s.lookups == 1 {
		return nil, domain.ErrNotFound
	}
	return s.fakeProposalStore.GetProposalByFingerprint(ctx, fp)
}

func TestPropose_ConcurrentDuplicateAnswersWithRecord(t *testing.T) {
	policies := NewPolicyService("balanced", nil)
	pol, err := policies.Resolve("", nil)
	if err != nil {
		t.Fatal(err)
	}
	in := proposalEmail()
	fp := proposal.Fingerprint(in, nil, pol)

	inner := newFakeProposalStore()
	earlier := &proposal.Proposal{
		ID:          "earlier",
		Fingerprint: fp,
		Actions:     []action.Action{{Type: action.TypeSuggest, Target: action.TargetDeals, Reason: "recorded"}},
		State:       string(StateDone),
	}
	if _, err := inner.CreateProposal(context.Background(), earlier); err != nil {
		t.Fatal(err)
	}

	hub := &fakeBroadcaster{}
	svc := NewProposalService(NewEngine(&fakeGenerator{raw: twoDealUpdates}), policies, &lateStore{fakeProposalStore: inner}, hub, nil)
	res, err := svc.Propose(context.Background(), &ProposeRequest{Interaction: in})
	if err != nil {
		t.Fatal(err)
	}

	if !res.Duplicate || res.ProposalID != "earlier" {
		t.Fatalf("duplicate=%v id=%s, want earlier", res.Duplicate, res.ProposalID)
	}
	if len(res.Output.Actions) != 1 || res.Output.Actions[0].Reason != "recorded" {
		t.Fatalf("actions = %+v, want the recorded one", res.Output.Actions)
	}
	if len(hub.events) != 0 {
		t.Fatal("duplicate was broadcast")
	}
}

func TestPropose_ErroredIsNotRecorded(t *testing.T) {
	f := newProposalFixture(twoDealUpdates)
	in := proposalEmail()
	in.Source = ""

	res, err := f.svc.Propose(context.Background(), &ProposeRequest{Interaction: in})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if res.State != StateErrored || res.ProposalID != "" {
		t.Fatalf("state=%s id=%q, want errored without id", res.State, res.ProposalID)
	}
	if len(f.store.byID) != 0 || len(f.hub.events) != 0 {
		t.Fatal("errored result was recorded")
	}
}

func TestPropose_UnknownPolicy(t *testing.T) {
	f := newProposalFixture(twoDealUpdates)
	_, err := f.svc.Propose(context.Background(), &ProposeRequest{Interaction: proposalEmail(), PolicyName: "nope"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if f.gen.calls.Load() != 0 {
		t.Fatal("model called for an unknown policy")
	}
}

func TestPropose_StoreFailureIsNotFatal(t *testing.T) {
	f := newProposalFixture(twoDealUpdates)
	f.store.createErr = errors.New("db down")

	res, err := f.svc.Propose(context.Background(), &ProposeRequest{Interaction: proposalEmail()})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(res.Output.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(res.Output.Actions))
	}
}

func TestPropose_NoCollaborators(t *testing.T) {
	svc := NewProposalService(NewEngine(&fakeGenerator{raw: twoDealUpdates}), nil, nil, nil, nil)

	res, err := svc.Propose(context.Background(), &ProposeRequest{
		Interaction: proposalEmail(),
		Related:     &interaction.RelatedEntities{Company: &interaction.EntityRef{Name: "Acme"}},
		PolicyName:  "balanced",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if res.ProposalID == "" {
		t.Fatal("expected an id even without a store")
	}
	if _, err := svc.Get(context.Background(), res.ProposalID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get without store err = %v, want ErrNotFound", err)
	}
}

func TestPropose_SendsReviewAlert(t *testing.T) {
	f := newProposalFixture(twoDealUpdates)
	m := &mockNotifier{name: "mock", done: make(chan struct{})}
	f.svc.SetNotifications(NewNotificationService([]notifier.Notifier{m}, nil))

	res, err := f.svc.Propose(context.Background(), &ProposeRequest{Interaction: proposalEmail()})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	select {
	case <-m.done:
	case <-time.After(5 * time.Second):
		t.Fatal("no alert sent")
	}
	if m.count() != 1 {
		t.Fatalf("alerts = %d, want 1", m.count())
	}
	m.mu.Lock()
	got := m.sent[0]
	m.mu.Unlock()
	if got.ProposalID != res.ProposalID || got.Event != EventReviewRequired {
		t.Fatalf("alert = %+v", got)
	}
}
