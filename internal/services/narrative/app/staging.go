package app

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/platform/id"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/staging"
	"github.com/louisbranch/storyloom/internal/services/narrative/observability/audit"
	"github.com/louisbranch/storyloom/internal/services/narrative/observability/audit/events"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

// Propose places a proposal in the staging slot, replacing whatever was there.
// The slot is a value, not a queue: concurrent proposers race and the last
// write wins, with exactly one proposal observable afterward. A fresh attempt
// id is stamped so reviewers can detect the replacement.
func (s *Service) Propose(ctx context.Context, p staging.Proposal) (staging.Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.Propose")
	defer span.End()

	if err := p.Validate(); err != nil {
		return staging.Proposal{}, err
	}

	// Early identity checks give proposers fast feedback; commit re-validates
	// inside its transaction regardless.
	exists, err := s.store.ChunkExists(ctx, p.TargetChunkID)
	if err != nil {
		return staging.Proposal{}, err
	}
	if exists {
		return staging.Proposal{}, apperrors.WithMetadata(apperrors.CodeIdentityConflict, "target chunk already exists", map[string]string{
			"chunk_id": p.TargetChunkID,
		})
	}
	parentExists, err := s.store.ChunkExists(ctx, p.ParentChunkID)
	if err != nil {
		return staging.Proposal{}, err
	}
	if !parentExists {
		return staging.Proposal{}, apperrors.WithMetadata(apperrors.CodeIdentityConflict, "parent chunk does not resolve", map[string]string{
			"parent_id": p.ParentChunkID,
		})
	}

	attemptID, err := id.NewID()
	if err != nil {
		return staging.Proposal{}, fmt.Errorf("generate attempt id: %w", err)
	}
	p.State = staging.StateProvisional
	p.AttemptID = attemptID
	if err := s.store.PutStagingSlot(ctx, p); err != nil {
		return staging.Proposal{}, err
	}

	s.emitAudit(ctx, storage.AuditEvent{
		EventName: events.ChunkProposed,
		Severity:  string(audit.SeverityInfo),
		ChunkID:   p.TargetChunkID,
		AttemptID: p.AttemptID,
	})
	return p, nil
}

// Slot returns the staged proposal, or a not-found error when the slot is
// empty.
func (s *Service) Slot(ctx context.Context) (staging.Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.Slot")
	defer span.End()
	return s.store.GetStagingSlot(ctx)
}

// Approve moves the staged proposal from provisional to approved. The attempt
// id must name the proposal the reviewer actually read; a replaced proposal
// surfaces as a stale-attempt error instead of approving unseen content.
func (s *Service) Approve(ctx context.Context, attemptID string) error {
	ctx, span := s.tracer.Start(ctx, "narrative.Approve")
	defer span.End()

	if err := s.store.UpdateStagingState(ctx, attemptID, staging.StateProvisional, staging.StateApproved); err != nil {
		return err
	}
	s.emitAudit(ctx, storage.AuditEvent{
		EventName: events.ChunkApproved,
		Severity:  string(audit.SeverityInfo),
		AttemptID: attemptID,
	})
	return nil
}

// Discard empties the staging slot with no other side effects. Discarding an
// already-empty slot is a no-op.
func (s *Service) Discard(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "narrative.Discard")
	defer span.End()

	p, err := s.store.GetStagingSlot(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.ClearStagingSlot(ctx); err != nil {
		return err
	}
	s.emitAudit(ctx, storage.AuditEvent{
		EventName: events.ChunkDiscarded,
		Severity:  string(audit.SeverityInfo),
		ChunkID:   p.TargetChunkID,
		AttemptID: p.AttemptID,
	})
	return nil
}

// Commit promotes the approved proposal into the ledger. The append, entity
// delta application, reference rebuild, and slot clear all happen in one
// storage transaction; on failure the slot stays approved and nothing else
// changes.
func (s *Service) Commit(ctx context.Context) (chunk.Chunk, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.Commit")
	defer span.End()

	p, err := s.store.GetStagingSlot(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return chunk.Chunk{}, apperrors.New(apperrors.CodeStagingSlotEmpty, "staging slot is empty")
	}
	if err != nil {
		return chunk.Chunk{}, err
	}

	committed, err := s.store.CommitStagingSlot(ctx, p.AttemptID)
	if err != nil {
		s.emitAudit(ctx, storage.AuditEvent{
			EventName: events.ChunkCommitted,
			Severity:  string(audit.SeverityError),
			ChunkID:   p.TargetChunkID,
			AttemptID: p.AttemptID,
			Attributes: map[string]any{
				"code": string(apperrors.GetCode(err)),
			},
		})
		return chunk.Chunk{}, err
	}

	s.emitAudit(ctx, storage.AuditEvent{
		EventName: events.ChunkCommitted,
		Severity:  string(audit.SeverityInfo),
		ChunkID:   committed.ID,
		AttemptID: p.AttemptID,
		Attributes: map[string]any{
			"seq": committed.Seq,
		},
	})
	return committed, nil
}
