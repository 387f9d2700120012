package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/ActionForge/internal/domain"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/proposal"
	"github.com/Strob0t/ActionForge/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Proposals ---

const proposalColumns = `id, fingerprint, source, interaction, related, policy_name,
	actions, evaluation, state, dropped, model, created_at`

// CreateProposal inserts p. A proposal with the same fingerprint wins; in
// that case nothing is written and false is returned.
func (s *Store) CreateProposal(ctx context.Context, p *proposal.Proposal) (bool, error) {
	in, err := json.Marshal(p.Interaction)
	if err != nil {
		return false, fmt.Errorf("create proposal: marshal interaction: %w", err)
	}
	related, err := jsonbOrNull(p.Related)
	if err != nil {
		return false, fmt.Errorf("create proposal: marshal related: %w", err)
	}
	acts, err := json.Marshal(orEmpty(p.Actions))
	if err != nil {
		return false, fmt.Errorf("create proposal: marshal actions: %w", err)
	}
	eval, err := json.Marshal(p.Evaluation)
	if err != nil {
		return false, fmt.Errorf("create proposal: marshal evaluation: %w", err)
	}

	const q = `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (fingerprint) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q,
		p.ID, p.Fingerprint, string(p.Source), in, related, p.PolicyName,
		acts, eval, p.State, p.Dropped, p.Model, p.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("create proposal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetProposal retrieves a proposal by ID.
func (s *Store) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get proposal %s: %w", id, domain.ErrNotFound)
	}
	row := s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		return nil, notFoundWrap(err, "get proposal %s", id)
	}
	return &p, nil
}

// GetProposalByFingerprint retrieves the proposal recorded for a request fingerprint.
func (s *Store) GetProposalByFingerprint(ctx context.Context, fingerprint string) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE fingerprint = $1`, fingerprint)
	p, err := scanProposal(row)
	if err != nil {
		return nil, notFoundWrap(err, "get proposal by fingerprint")
	}
	return &p, nil
}

// ListProposals returns the most recent proposals, newest first.
func (s *Store) ListProposals(ctx context.Context, limit int) ([]proposal.Proposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+proposalColumns+` FROM proposals ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return orEmpty(out), rows.Err()
}

func scanProposal(row scannable) (proposal.Proposal, error) {
	var (
		p                         proposal.Proposal
		source                    string
		in, related, acts, evalJS []byte
	)
	if err := row.Scan(
		&p.ID, &p.Fingerprint, &source, &in, &related, &p.PolicyName,
		&acts, &evalJS, &p.State, &p.Dropped, &p.Model, &p.CreatedAt,
	); err != nil {
		return p, err
	}
	p.Source = interaction.Source(source)
	if err := json.Unmarshal(in, &p.Interaction); err != nil {
		return p, fmt.Errorf("decode interaction: %w", err)
	}
	if len(related) > 0 {
		p.Related = &interaction.RelatedEntities{}
		if err := json.Unmarshal(related, p.Related); err != nil {
			return p, fmt.Errorf("decode related: %w", err)
		}
	}
	if err := json.Unmarshal(acts, &p.Actions); err != nil {
		return p, fmt.Errorf("decode actions: %w", err)
	}
	if err := json.Unmarshal(evalJS, &p.Evaluation); err != nil {
		return p, fmt.Errorf("decode evaluation: %w", err)
	}
	return p, nil
}

// --- Entity directory ---

// LoadDirectory returns every known company, contact and deal ordered by name.
func (s *Store) LoadDirectory(ctx context.Context) (*interaction.Directory, error) {
	var dir interaction.Directory
	for _, c := range []struct {
		kind database.EntityKind
		dst  *[]interaction.EntityRef
	}{
		{database.KindCompany, &dir.Companies},
		{database.KindContact, &dir.Contacts},
		{database.KindDeal, &dir.Deals},
	} {
		refs, err := s.listEntities(ctx, c.kind)
		if err != nil {
			return nil, err
		}
		*c.dst = refs
	}
	return &dir, nil
}

func (s *Store) listEntities(ctx context.Context, kind database.EntityKind) ([]interaction.EntityRef, error) {
	// kind is one of three fixed table names, checked by Valid.
	if !kind.Valid() {
		return nil, fmt.Errorf("list %s: %w", kind, domain.ErrValidation)
	}
	rows, err := s.pool.Query(ctx, `SELECT data FROM `+string(kind)+` ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	refs := []interaction.EntityRef{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		var ref interaction.EntityRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// UpsertEntity inserts or replaces a directory record. The record needs an id.
func (s *Store) UpsertEntity(ctx context.Context, kind database.EntityKind, e *interaction.EntityRef) error {
	if !kind.Valid() {
		return fmt.Errorf("upsert entity: unknown kind %q: %w", kind, domain.ErrValidation)
	}
	if e == nil || e.ID == "" {
		return fmt.Errorf("upsert %s: id is required: %w", kind, domain.ErrValidation)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("upsert %s: marshal: %w", kind, err)
	}

	q := `INSERT INTO ` + string(kind) + ` (id, name, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data, updated_at = now()`
	if _, err := s.pool.Exec(ctx, q, e.ID, e.Name, data); err != nil {
		return fmt.Errorf("upsert %s %s: %w", kind, e.ID, err)
	}
	return nil
}

// DeleteEntity removes a directory record.
func (s *Store) DeleteEntity(ctx context.Context, kind database.EntityKind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("delete entity: unknown kind %q: %w", kind, domain.ErrValidation)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+string(kind)+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
