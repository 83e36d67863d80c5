package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/staging"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

// CommitStagingSlot turns the approved proposal into durable ledger state.
// The whole commit is one transaction: append the chunk, apply the entity
// deltas, rebuild the chunk's references, clear the slot. Any failure rolls
// everything back and the slot stays approved.
func (s *Store) CommitStagingSlot(ctx context.Context, attemptID string) (chunk.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return chunk.Chunk{}, err
	}
	if s == nil || s.sqlDB == nil {
		return chunk.Chunk{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	p, err := readSlotForCommitTx(ctx, tx, attemptID)
	if err != nil {
		return chunk.Chunk{}, err
	}

	committed, err := commitProposalTx(ctx, tx, p)
	if err != nil {
		// Validation failures keep their own codes so callers can tell a
		// rejected proposal from an aborted transaction.
		if apperrors.GetCode(err) != apperrors.CodeUnknown {
			return chunk.Chunk{}, err
		}
		return chunk.Chunk{}, apperrors.Wrap(apperrors.CodeCommitAborted, "commit rolled back", err)
	}

	if err := tx.Commit(); err != nil {
		return chunk.Chunk{}, apperrors.Wrap(apperrors.CodeCommitAborted, "commit rolled back", err)
	}
	return committed, nil
}

// readSlotForCommitTx loads the proposal and checks it is the reviewed one
// and has been approved.
func readSlotForCommitTx(ctx context.Context, tx *sql.Tx, attemptID string) (staging.Proposal, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT state, target_chunk_id, parent_chunk_id, content, episode_transition, elapsed_seconds,
		        world_layer, pacing, entity_deltas_json, references_json, attempt_id, created_at, updated_at
		 FROM staging_slot WHERE id = ?`,
		slotID,
	)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return staging.Proposal{}, apperrors.New(apperrors.CodeStagingSlotEmpty, "staging slot is empty")
	}
	if err != nil {
		return staging.Proposal{}, fmt.Errorf("read staging slot: %w", err)
	}
	if p.AttemptID != attemptID {
		return staging.Proposal{}, apperrors.WithMetadata(apperrors.CodeStagingStaleAttempt, "proposal was replaced after review started", map[string]string{
			"attempt_id": attemptID,
		})
	}
	if p.State != staging.StateApproved {
		return staging.Proposal{}, apperrors.WithMetadata(apperrors.CodeStagingNotApproved, "staging slot is not approved", map[string]string{
			"state": string(p.State),
		})
	}
	return p, nil
}

// commitProposalTx runs the commit steps inside the caller's transaction.
func commitProposalTx(ctx context.Context, tx *sql.Tx, p staging.Proposal) (chunk.Chunk, error) {
	// Re-validate identity against the ledger as it stands now, not as it
	// stood when the proposal was staged.
	committed, err := appendChunkTx(ctx, tx, p.Chunk())
	if err != nil {
		return chunk.Chunk{}, err
	}

	for _, d := range p.EntityDeltas {
		if err := applyEntityDeltaTx(ctx, tx, d); err != nil {
			return chunk.Chunk{}, err
		}
	}

	normalized, err := reference.Normalize(p.References)
	if err != nil {
		return chunk.Chunk{}, err
	}
	if err := rebuildReferencesTx(ctx, tx, committed.ID, normalized); err != nil {
		return chunk.Chunk{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM staging_slot WHERE id = ?`, slotID); err != nil {
		return chunk.Chunk{}, fmt.Errorf("clear staging slot: %w", err)
	}
	return committed, nil
}

var _ storage.StagingStore = (*Store)(nil)
