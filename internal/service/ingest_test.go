package service

import (
	"context"
	"strings"
	"testing"

	"github.com/Strob0t/ActionForge/internal/domain/interaction"
)

func testDirectory() *interaction.Directory {
	return &interaction.Directory{
		Companies: []interaction.EntityRef{
			{ID: "c-0", Name: ""},
			{ID: "c-1", Name: "Acme"},
			{ID: "c-2", Name: "Acme Europe"},
		},
		Contacts: []interaction.EntityRef{{ID: "p-1", Name: "Dana Smith"}},
		Deals:    []interaction.EntityRef{{ID: "d-1", Name: "Renewal 2027"}},
	}
}

func TestResolveEntities(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantCompany string
		wantContact string
		wantDeal    string
		wantNil     bool
	}{
		{name: "first hit wins", text: "Call with Acme Europe about Renewal 2027", wantCompany: "c-1", wantDeal: "d-1"},
		{name: "contact only", text: "Dana Smith asked for a callback", wantContact: "p-1"},
		{name: "case sensitive", text: "acme and dana smith", wantNil: true},
		{name: "nothing", text: "unrelated text here", wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := ResolveEntities(tt.text, testDirectory())
			if tt.wantNil {
				if rel != nil {
					t.Fatalf("expected nil, got %+v", rel)
				}
				return
			}
			if rel == nil {
				t.Fatal("expected entities")
			}
			check := func(label string, ref *interaction.EntityRef, want string) {
				t.Helper()
				got := ""
				if ref != nil {
					got = ref.ID
				}
				if got != want {
					t.Errorf("%s = %q, want %q", label, got, want)
				}
			}
			check("company", rel.Company, tt.wantCompany)
			check("contact", rel.Contact, tt.wantContact)
			check("deal", rel.Deal, tt.wantDeal)
		})
	}
}

func TestResolveEntities_EmptyDirectory(t *testing.T) {
	if rel := ResolveEntities("Acme", nil); rel != nil {
		t.Fatalf("expected nil for nil directory, got %+v", rel)
	}
	if rel := ResolveEntities("Acme", &interaction.Directory{}); rel != nil {
		t.Fatalf("expected nil for empty directory, got %+v", rel)
	}
}

func TestIngest_ShortTextSkipsModel(t *testing.T) {
	tests := []string{"", "hello", "123456789", "ÄÖÜäöüßéè"}
	for _, text := range tests {
		gen := &fakeGenerator{raw: twoDealUpdates}
		ing := NewIngestor(NewEngine(gen), nil, DefaultMinIngestLength)

		res := ing.Ingest(context.Background(), text, testDirectory(), nil)
		if res.State != StateDone {
			t.Fatalf("%q: state = %s, want done", text, res.State)
		}
		if res.Output.Actions == nil || len(res.Output.Actions) != 0 {
			t.Fatalf("%q: actions = %#v, want empty", text, res.Output.Actions)
		}
		if gen.calls.Load() != 0 {
			t.Fatalf("%q: generator called %d times", text, gen.calls.Load())
		}
	}
}

func TestIngest_BuildsNoteInteraction(t *testing.T) {
	gen := &fakeGenerator{raw: twoDealUpdates}
	ing := NewIngestor(NewEngine(gen, WithClock(fixedClock)), nil, DefaultMinIngestLength)

	res := ing.Ingest(context.Background(), "Acme wants to close Renewal 2027 this week", testDirectory(), nil)
	if res.State != StateDone {
		t.Fatalf("state = %s (err %v)", res.State, res.Err)
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls.Load())
	}
	user := gen.request().User
	for _, want := range []string{`"source": "note"`, `"timestamp": "2026-10-16T09:30:00Z"`, `"c-1"`, `"d-1"`} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %s:\n%s", want, user)
		}
	}
}

func TestIngestFromStore(t *testing.T) {
	store := &fakeEntityStore{dir: *testDirectory()}
	gen := &fakeGenerator{raw: `{"actions":[]}`}
	ing := NewIngestor(NewEngine(gen), store, DefaultMinIngestLength)

	if _, err := ing.IngestFromStore(context.Background(), "short", nil); err != nil {
		t.Fatal(err)
	}
	if store.loads != 0 {
		t.Fatalf("short text loaded the directory %d times", store.loads)
	}

	if _, err := ing.IngestFromStore(context.Background(), "Dana Smith called about pricing", nil); err != nil {
		t.Fatal(err)
	}
	if store.loads != 1 {
		t.Fatalf("loads = %d, want 1", store.loads)
	}
	if !strings.Contains(gen.request().User, `"p-1"`) {
		t.Fatal("resolved contact missing from prompt")
	}
}

func TestNewIngestor_NegativeMinLength(t *testing.T) {
	ing := NewIngestor(NewEngine(nil), nil, -1)
	if ing.minLength != DefaultMinIngestLength {
		t.Fatalf("minLength = %d, want %d", ing.minLength, DefaultMinIngestLength)
	}
}
