package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
	"github.com/Strob0t/ActionForge/internal/port/database"
)

// DefaultMinIngestLength is the shortest free text worth a model call.
const DefaultMinIngestLength = 10

// Ingestor turns free text into an orchestration by wrapping it in a note
// interaction and resolving the entities it mentions.
type Ingestor struct {
	engine    *Engine
	dir       database.EntityDirectory
	minLength int
}

// NewIngestor creates an Ingestor. dir may be nil when callers always pass
// their own directory. A negative minLength selects the default.
func NewIngestor(engine *Engine, dir database.EntityDirectory, minLength int) *Ingestor {
	if minLength < 0 {
		minLength = DefaultMinIngestLength
	}
	return &Ingestor{engine: engine, dir: dir, minLength: minLength}
}

// Ingest orchestrates text against dir. Text shorter than the minimum length
// (counted in characters) yields no actions and no model call.
func (i *Ingestor) Ingest(ctx context.Context, text string, dir *interaction.Directory, pol *policy.Policy) Result {
	if utf8.RuneCountInString(text) < i.minLength {
		slog.DebugContext(ctx, "ingest skipped short text", "length", utf8.RuneCountInString(text))
		return Result{
			Output:     action.Empty(),
			Evaluation: policy.Evaluation{Threshold: pol.Threshold(), Assessments: []policy.Assessment{}},
			State:      StateDone,
		}
	}

	req := Request{
		Interaction: interaction.Interaction{
			Source:    interaction.SourceNote,
			Body:      text,
			Timestamp: i.engine.now().UTC().Format(time.RFC3339),
		},
		Related: ResolveEntities(text, dir),
		Policy:  pol,
	}
	return i.engine.Orchestrate(ctx, req)
}

// IngestFromStore is Ingest with the directory loaded from the configured
// EntityDirectory. The directory is only loaded when the text is long enough.
func (i *Ingestor) IngestFromStore(ctx context.Context, text string, pol *policy.Policy) (Result, error) {
	if utf8.RuneCountInString(text) < i.minLength || i.dir == nil {
		return i.Ingest(ctx, text, nil, pol), nil
	}
	dir, err := i.dir.LoadDirectory(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load directory: %w", err)
	}
	return i.Ingest(ctx, text, dir, pol), nil
}

// ResolveEntities picks, per category, the first record whose name occurs in
// text. Matching is a case-sensitive substring test; records without a name
// never match. It returns nil when nothing matches.
func ResolveEntities(text string, dir *interaction.Directory) *interaction.RelatedEntities {
	if dir.Empty() {
		return nil
	}
	rel := &interaction.RelatedEntities{
		Company: firstMention(text, dir.Companies),
		Contact: firstMention(text, dir.Contacts),
		Deal:    firstMention(text, dir.Deals),
	}
	if rel.IsZero() {
		return nil
	}
	return rel
}

func firstMention(text string, refs []interaction.EntityRef) *interaction.EntityRef {
	for i := range refs {
		if refs[i].Name != "" && strings.Contains(text, refs[i].Name) {
			ref := refs[i]
			return &ref
		}
	}
	return nil
}
