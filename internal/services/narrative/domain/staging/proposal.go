// Package staging defines the proposal held by the singleton staging slot.
package staging

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/delta"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
)

// State is the review lifecycle position of a staged proposal. An empty slot
// has no proposal at all; committed is transient and never observed at rest.
type State string

const (
	StateProvisional State = "provisional"
	StateApproved    State = "approved"
	StateCommitted   State = "committed"
)

// ValidState reports whether the state is a known lifecycle value.
func ValidState(s State) bool {
	switch s {
	case StateProvisional, StateApproved, StateCommitted:
		return true
	}
	return false
}

// Proposal is one candidate chunk extension plus all of its derived deltas.
// The slot holds at most one; a new proposal replaces the old unconditionally.
type Proposal struct {
	// TargetChunkID is the pre-assigned identity of the proposed chunk.
	TargetChunkID string
	// ParentChunkID must resolve to a committed chunk.
	ParentChunkID string
	// Content is the proposed narrative text.
	Content string
	// Metadata carries the structured metadata deltas for the new chunk.
	Metadata chunk.Metadata
	// EntityDeltas are the typed world-state changes to apply at commit.
	EntityDeltas []delta.Entity
	// References are the entity links the new chunk should hold, by kind.
	References []reference.Reference
	// State is the review lifecycle position.
	State State
	// AttemptID is regenerated whenever content is (re-)populated, so a
	// reviewer can tell a replaced proposal from the one they read.
	AttemptID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk builds the ledger chunk this proposal would commit.
func (p Proposal) Chunk() chunk.Chunk {
	return chunk.Chunk{
		ID:       p.TargetChunkID,
		ParentID: p.ParentChunkID,
		Content:  p.Content,
		Metadata: p.Metadata,
	}
}

// Validate checks the proposal's payload ahead of staging. Parent resolution
// and target uniqueness are checked against the ledger by the staging
// workflow, not here.
func (p Proposal) Validate() error {
	if strings.TrimSpace(p.TargetChunkID) == "" {
		return apperrors.New(apperrors.CodeChunkEmptyID, "target chunk id is required")
	}
	if strings.TrimSpace(p.ParentChunkID) == "" {
		return apperrors.New(apperrors.CodeIdentityConflict, "parent chunk id is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return apperrors.New(apperrors.CodeChunkEmptyContent, "proposed content is required")
	}
	if err := p.Metadata.Validate(); err != nil {
		return err
	}
	if err := delta.ValidateAll(p.EntityDeltas); err != nil {
		return err
	}
	if _, err := reference.Normalize(p.References); err != nil {
		return err
	}
	return nil
}
