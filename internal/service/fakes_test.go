package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/ActionForge/internal/domain"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/proposal"
	"github.com/Strob0t/ActionForge/internal/port/database"
	"github.com/Strob0t/ActionForge/internal/port/generation"
	"github.com/Strob0t/ActionForge/internal/port/messagequeue"
)

// fakeGenerator returns a fixed response and records every request.
type fakeGenerator struct {
	raw     string
	err     error
	panicV  any
	delay   time.Duration
	calls   atomic.Int32
	mu      sync.Mutex
	lastReq generation.Request
	active  atomic.Int32
	peak    atomic.Int32
}

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()

	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.panicV != nil {
		panic(f.panicV)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, generation.ErrTimeout
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &generation.Result{Raw: json.RawMessage(f.raw), Model: "stub-model", TokensIn: 10, TokensOut: 5}, nil
}

func (f *fakeGenerator) request() generation.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// fakeProposalStore keeps proposals in memory keyed by fingerprint.
type fakeProposalStore struct {
	mu        sync.Mutex
	byID      map[string]proposal.Proposal
	byFP      map[string]string
	createErr error
}

func newFakeProposalStore() *fakeProposalStore {
	return &fakeProposalStore{byID: map[string]proposal.Proposal{}, byFP: map[string]string{}}
}

func (s *fakeProposalStore) CreateProposal(_ context.Context, p *proposal.Proposal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return false, s.createErr
	}
	if _, ok := s.byFP[p.Fingerprint]; ok {
		return false, nil
	}
	s.byID[p.ID] = *p
	s.byFP[p.Fingerprint] = p.ID
	return true, nil
}

func (s *fakeProposalStore) GetProposal(_ context.Context, id string) (*proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *fakeProposalStore) GetProposalByFingerprint(ctx context.Context, fp string) (*proposal.Proposal, error) {
	s.mu.Lock()
	id, ok := s.byFP[fp]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetProposal(ctx, id)
}

func (s *fakeProposalStore) ListProposals(_ context.Context, _ int) ([]proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proposal.Proposal, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	return out, nil
}

// fakeEntityStore serves a fixed directory and counts loads.
type fakeEntityStore struct {
	mu    sync.Mutex
	dir   interaction.Directory
	loads int
}

func (s *fakeEntityStore) LoadDirectory(_ context.Context) (*interaction.Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	d := s.dir
	return &d, nil
}

func (s *fakeEntityStore) UpsertEntity(_ context.Context, kind database.EntityKind, e *interaction.EntityRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == database.KindCompany {
		s.dir.Companies = append(s.dir.Companies, *e)
	}
	return nil
}

func (s *fakeEntityStore) DeleteEntity(_ context.Context, _ database.EntityKind, _ string) error {
	return nil
}

// fakeBroadcaster records broadcast event types.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

// fakeQueue records published messages and hands out the subscribed handler.
type fakeQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
	handler   messagequeue.Handler
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{published: map[string][][]byte{}}
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[subject] = append(q.published[subject], data)
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, _ string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
	return func() {}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

func (q *fakeQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published[subject])
}

// memCache is a map-backed cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
