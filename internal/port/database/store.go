// Package database defines the persistence ports (interfaces).
package database

import (
	"context"

	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/proposal"
)

// EntityKind names a directory collection.
type EntityKind string

const (
	KindCompany EntityKind = "companies"
	KindContact EntityKind = "contacts"
	KindDeal    EntityKind = "deals"
)

// Valid reports whether k is a known collection.
func (k EntityKind) Valid() bool {
	switch k {
	case KindCompany, KindContact, KindDeal:
		return true
	}
	return false
}

// ProposalStore keeps the audit trail of orchestrations.
type ProposalStore interface {
	// CreateProposal inserts p unless a proposal with the same fingerprint
	// exists. It reports whether a row was written.
	CreateProposal(ctx context.Context, p *proposal.Proposal) (bool, error)
	GetProposal(ctx context.Context, id string) (*proposal.Proposal, error)
	GetProposalByFingerprint(ctx context.Context, fingerprint string) (*proposal.Proposal, error)
	ListProposals(ctx context.Context, limit int) ([]proposal.Proposal, error)
}

// EntityDirectory supplies the known CRM records used to resolve free text.
type EntityDirectory interface {
	LoadDirectory(ctx context.Context) (*interaction.Directory, error)
}

// EntityStore is an EntityDirectory that also accepts record updates.
type EntityStore interface {
	EntityDirectory
	UpsertEntity(ctx context.Context, kind EntityKind, e *interaction.EntityRef) error
	DeleteEntity(ctx context.Context, kind EntityKind, id string) error
}

// Store is the full persistence port.
type Store interface {
	ProposalStore
	EntityStore
}
