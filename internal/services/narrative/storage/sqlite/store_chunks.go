package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/sequencer"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

// AppendChunk assigns the next sequence value and durably writes the chunk.
func (s *Store) AppendChunk(ctx context.Context, c chunk.Chunk) (chunk.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return chunk.Chunk{}, err
	}
	if s == nil || s.sqlDB == nil {
		return chunk.Chunk{}, fmt.Errorf("storage is not configured")
	}
	if err := c.Validate(); err != nil {
		return chunk.Chunk{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	appended, err := appendChunkTx(ctx, tx, c)
	if err != nil {
		return chunk.Chunk{}, err
	}

	if err := tx.Commit(); err != nil {
		return chunk.Chunk{}, fmt.Errorf("commit: %w", err)
	}
	return appended, nil
}

// appendChunkTx performs the append inside the caller's transaction so the
// staging commit can reuse it.
func appendChunkTx(ctx context.Context, tx *sql.Tx, c chunk.Chunk) (chunk.Chunk, error) {
	exists, err := chunkExistsTx(ctx, tx, c.ID)
	if err != nil {
		return chunk.Chunk{}, err
	}
	if exists {
		return chunk.Chunk{}, apperrors.WithMetadata(apperrors.CodeIdentityConflict, "target chunk already exists", map[string]string{
			"chunk_id": c.ID,
		})
	}

	if strings.TrimSpace(c.ParentID) != "" {
		parentExists, err := chunkExistsTx(ctx, tx, c.ParentID)
		if err != nil {
			return chunk.Chunk{}, err
		}
		if !parentExists {
			return chunk.Chunk{}, apperrors.WithMetadata(apperrors.CodeIdentityConflict, "parent chunk does not resolve", map[string]string{
				"parent_id": c.ParentID,
			})
		}
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM chunks`).Scan(&maxSeq); err != nil {
		return chunk.Chunk{}, fmt.Errorf("read max seq: %w", err)
	}
	c.Seq = uint64(maxSeq.Int64) + 1

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.CreatedAt = c.CreatedAt.UTC().Truncate(time.Millisecond)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunks (id, seq, parent_id, content, episode_transition, elapsed_seconds, world_layer, pacing, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		int64(c.Seq),
		c.ParentID,
		c.Content,
		boolToInt(c.Metadata.EpisodeTransition),
		int64(c.Metadata.Elapsed/time.Second),
		string(c.Metadata.WorldLayer),
		string(c.Metadata.Pacing),
		toMillis(c.CreatedAt),
	); err != nil {
		if isConstraintError(err) {
			return chunk.Chunk{}, apperrors.Wrap(apperrors.CodeIdentityConflict, "append chunk", err)
		}
		return chunk.Chunk{}, fmt.Errorf("append chunk: %w", err)
	}
	return c, nil
}

// GetChunk returns one chunk by identity.
// Returns storage.ErrNotFound if no chunk exists.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (chunk.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return chunk.Chunk{}, err
	}
	if s == nil || s.sqlDB == nil {
		return chunk.Chunk{}, fmt.Errorf("storage is not configured")
	}
	chunkID = strings.TrimSpace(chunkID)
	if chunkID == "" {
		return chunk.Chunk{}, fmt.Errorf("chunk id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, seq, parent_id, content, episode_transition, elapsed_seconds, world_layer, pacing, created_at
		 FROM chunks WHERE id = ?`,
		chunkID,
	)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chunk.Chunk{}, storage.ErrNotFound
	}
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("get chunk: %w", err)
	}
	return c, nil
}

// ChunkExists reports whether a chunk id is present in the ledger.
func (s *Store) ChunkExists(ctx context.Context, chunkID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	var one int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM chunks WHERE id = ?`, chunkID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check chunk exists: %w", err)
	}
	return true, nil
}

func chunkExistsTx(ctx context.Context, tx *sql.Tx, chunkID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM chunks WHERE id = ?`, chunkID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check chunk exists: %w", err)
	}
	return true, nil
}

// ListChunkOrder returns every chunk's (id, seq) pair ordered by seq.
func (s *Store) ListChunkOrder(ctx context.Context) ([]sequencer.ChunkSeq, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, seq FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list chunk order: %w", err)
	}
	defer rows.Close()

	var order []sequencer.ChunkSeq
	for rows.Next() {
		var cs sequencer.ChunkSeq
		var seq int64
		if err := rows.Scan(&cs.ChunkID, &seq); err != nil {
			return nil, fmt.Errorf("scan chunk order: %w", err)
		}
		cs.Seq = uint64(seq)
		order = append(order, cs)
	}
	return order, rows.Err()
}

// ListChunkRange returns up to limit chunks with fromSeq <= seq <= toSeq and
// seq > afterSeq, ordered by seq. Keyset pagination keeps pages stable under
// concurrent appends.
func (s *Store) ListChunkRange(ctx context.Context, fromSeq, toSeq, afterSeq uint64, limit int) ([]chunk.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	lower := fromSeq
	if afterSeq >= lower {
		lower = afterSeq + 1
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, seq, parent_id, content, episode_transition, elapsed_seconds, world_layer, pacing, created_at
		 FROM chunks WHERE seq >= ? AND seq <= ? ORDER BY seq LIMIT ?`,
		int64(lower), int64(toSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunk range: %w", err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// RenumberChunks executes a renumbering plan inside one transaction:
// displacements into the temporary range first, then final placements. Any
// failure rolls the whole batch back.
func (s *Store) RenumberChunks(ctx context.Context, plan sequencer.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if plan.Empty() {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := applyAssignments(ctx, tx, plan.Displacements); err != nil {
		return err
	}

	if s.renumberFault != nil {
		if err := s.renumberFault(); err != nil {
			return err
		}
	}

	if err := applyAssignments(ctx, tx, plan.Placements); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func applyAssignments(ctx context.Context, tx *sql.Tx, assignments []sequencer.Assignment) error {
	for _, a := range assignments {
		res, err := tx.ExecContext(ctx, `UPDATE chunks SET seq = ? WHERE id = ?`, int64(a.Seq), a.ChunkID)
		if err != nil {
			return fmt.Errorf("assign seq %d to chunk %s: %w", a.Seq, a.ChunkID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("assign seq rows affected: %w", err)
		}
		if affected != 1 {
			return apperrors.WithMetadata(apperrors.CodeOrderingIncomplete, "chunk disappeared during renumbering", map[string]string{
				"chunk_id": a.ChunkID,
			})
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (chunk.Chunk, error) {
	var c chunk.Chunk
	var seq, elapsedSeconds, createdAtMillis int64
	var episodeTransition int
	var worldLayer, pacing string
	if err := row.Scan(&c.ID, &seq, &c.ParentID, &c.Content, &episodeTransition, &elapsedSeconds, &worldLayer, &pacing, &createdAtMillis); err != nil {
		return chunk.Chunk{}, err
	}
	c.Seq = uint64(seq)
	c.Metadata = chunk.Metadata{
		EpisodeTransition: episodeTransition != 0,
		Elapsed:           time.Duration(elapsedSeconds) * time.Second,
		WorldLayer:        chunk.WorldLayer(worldLayer),
		Pacing:            chunk.Pacing(pacing),
	}
	c.CreatedAt = fromMillis(createdAtMillis)
	return c, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

var _ storage.ChunkStore = (*Store)(nil)
