package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/delta"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/staging"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

// slotID is the fixed key of the single staging slot row. The schema carries
// a CHECK (id = 1) so a second slot cannot exist no matter what code does.
const slotID = 1

// GetStagingSlot returns the current proposal.
// Returns storage.ErrNotFound when the slot is empty.
func (s *Store) GetStagingSlot(ctx context.Context) (staging.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return staging.Proposal{}, err
	}
	if s == nil || s.sqlDB == nil {
		return staging.Proposal{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT state, target_chunk_id, parent_chunk_id, content, episode_transition, elapsed_seconds,
		        world_layer, pacing, entity_deltas_json, references_json, attempt_id, created_at, updated_at
		 FROM staging_slot WHERE id = ?`,
		slotID,
	)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return staging.Proposal{}, storage.ErrNotFound
	}
	if err != nil {
		return staging.Proposal{}, fmt.Errorf("get staging slot: %w", err)
	}
	return p, nil
}

// PutStagingSlot unconditionally replaces the slot's proposal. The slot is a
// value, not a queue: an unreviewed prior proposal is simply discarded.
func (s *Store) PutStagingSlot(ctx context.Context, p staging.Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if !staging.ValidState(p.State) {
		return fmt.Errorf("unknown staging state %q", p.State)
	}

	deltasJSON, err := delta.Encode(p.EntityDeltas)
	if err != nil {
		return err
	}
	refsJSON, err := encodeReferences(p.References)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO staging_slot (id, state, target_chunk_id, parent_chunk_id, content, episode_transition,
		                           elapsed_seconds, world_layer, pacing, entity_deltas_json, references_json,
		                           attempt_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     state = excluded.state,
		     target_chunk_id = excluded.target_chunk_id,
		     parent_chunk_id = excluded.parent_chunk_id,
		     content = excluded.content,
		     episode_transition = excluded.episode_transition,
		     elapsed_seconds = excluded.elapsed_seconds,
		     world_layer = excluded.world_layer,
		     pacing = excluded.pacing,
		     entity_deltas_json = excluded.entity_deltas_json,
		     references_json = excluded.references_json,
		     attempt_id = excluded.attempt_id,
		     created_at = excluded.created_at,
		     updated_at = excluded.updated_at`,
		slotID,
		string(p.State),
		p.TargetChunkID,
		p.ParentChunkID,
		p.Content,
		boolToInt(p.Metadata.EpisodeTransition),
		int64(p.Metadata.Elapsed/time.Second),
		string(p.Metadata.WorldLayer),
		string(p.Metadata.Pacing),
		deltasJSON,
		refsJSON,
		p.AttemptID,
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	); err != nil {
		if isConstraintError(err) {
			return apperrors.Wrap(apperrors.CodeSingletonViolation, "staging slot row rejected", err)
		}
		return fmt.Errorf("put staging slot: %w", err)
	}
	return nil
}

// UpdateStagingState moves the slot between lifecycle states. The attempt id
// guards against approving a proposal that was replaced after review started.
func (s *Store) UpdateStagingState(ctx context.Context, attemptID string, from, to staging.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if !staging.ValidState(from) || !staging.ValidState(to) {
		return fmt.Errorf("unknown staging state transition %q -> %q", from, to)
	}

	var storedAttempt string
	var storedState string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT attempt_id, state FROM staging_slot WHERE id = ?`, slotID,
	).Scan(&storedAttempt, &storedState)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.New(apperrors.CodeStagingSlotEmpty, "staging slot is empty")
	}
	if err != nil {
		return fmt.Errorf("read staging slot: %w", err)
	}
	if storedAttempt != attemptID {
		return apperrors.WithMetadata(apperrors.CodeStagingStaleAttempt, "proposal was replaced after review started", map[string]string{
			"attempt_id": attemptID,
		})
	}
	if staging.State(storedState) != from {
		return apperrors.WithMetadata(apperrors.CodeStagingNotProvisional, "staging slot is not in the expected state", map[string]string{
			"state": storedState,
		})
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		`UPDATE staging_slot SET state = ?, updated_at = ? WHERE id = ? AND attempt_id = ? AND state = ?`,
		string(to), toMillis(time.Now().UTC()), slotID, attemptID, string(from),
	); err != nil {
		return fmt.Errorf("update staging state: %w", err)
	}
	return nil
}

// ClearStagingSlot empties the slot with no other side effects.
func (s *Store) ClearStagingSlot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM staging_slot WHERE id = ?`, slotID); err != nil {
		return fmt.Errorf("clear staging slot: %w", err)
	}
	return nil
}

type referenceEnvelope struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Kind       string `json:"kind"`
}

func encodeReferences(refs []reference.Reference) ([]byte, error) {
	normalized, err := reference.Normalize(refs)
	if err != nil {
		return nil, err
	}
	envelopes := make([]referenceEnvelope, 0, len(normalized))
	for _, ref := range normalized {
		envelopes = append(envelopes, referenceEnvelope{
			EntityType: string(ref.Entity.Type),
			EntityID:   ref.Entity.ID,
			Kind:       string(ref.Kind),
		})
	}
	data, err := json.Marshal(envelopes)
	if err != nil {
		return nil, fmt.Errorf("marshal references: %w", err)
	}
	return data, nil
}

func decodeReferences(data []byte) ([]reference.Reference, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var envelopes []referenceEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("unmarshal references: %w", err)
	}
	refs := make([]reference.Reference, 0, len(envelopes))
	for _, env := range envelopes {
		ref := reference.Reference{
			Entity: reference.Entity{Type: reference.EntityType(env.EntityType), ID: env.EntityID},
			Kind:   reference.Kind(env.Kind),
		}
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func scanProposal(row rowScanner) (staging.Proposal, error) {
	var p staging.Proposal
	var state, worldLayer, pacing string
	var episodeTransition int
	var elapsedSeconds, createdAtMillis, updatedAtMillis int64
	var deltasJSON, refsJSON []byte
	if err := row.Scan(&state, &p.TargetChunkID, &p.ParentChunkID, &p.Content, &episodeTransition,
		&elapsedSeconds, &worldLayer, &pacing, &deltasJSON, &refsJSON, &p.AttemptID,
		&createdAtMillis, &updatedAtMillis); err != nil {
		return staging.Proposal{}, err
	}
	p.State = staging.State(state)
	p.Metadata = chunk.Metadata{
		EpisodeTransition: episodeTransition != 0,
		Elapsed:           time.Duration(elapsedSeconds) * time.Second,
		WorldLayer:        chunk.WorldLayer(worldLayer),
		Pacing:            chunk.Pacing(pacing),
	}
	deltas, err := delta.Decode(deltasJSON)
	if err != nil {
		return staging.Proposal{}, err
	}
	p.EntityDeltas = deltas
	refs, err := decodeReferences(refsJSON)
	if err != nil {
		return staging.Proposal{}, err
	}
	p.References = refs
	p.CreatedAt = fromMillis(createdAtMillis)
	p.UpdatedAt = fromMillis(updatedAtMillis)
	return p, nil
}
