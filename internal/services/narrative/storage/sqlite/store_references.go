package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

var _ storage.ReferenceStore = (*Store)(nil)

// RebuildReferences replaces a chunk's full reference set wholesale. The
// delete-then-insert shape makes the operation idempotent: the same input
// always yields identical stored rows.
func (s *Store) RebuildReferences(ctx context.Context, chunkID string, refs []reference.Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	chunkID = strings.TrimSpace(chunkID)
	if chunkID == "" {
		return fmt.Errorf("chunk id is required")
	}
	normalized, err := reference.Normalize(refs)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := rebuildReferencesTx(ctx, tx, chunkID, normalized); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rebuildReferencesTx expects an already-normalized reference set.
func rebuildReferencesTx(ctx context.Context, tx *sql.Tx, chunkID string, refs []reference.Reference) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM entity_references WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("delete chunk references: %w", err)
	}
	for _, ref := range refs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entity_references (chunk_id, entity_type, entity_id, kind) VALUES (?, ?, ?, ?)`,
			chunkID,
			string(ref.Entity.Type),
			ref.Entity.ID,
			string(ref.Kind),
		); err != nil {
			return fmt.Errorf("insert chunk reference: %w", err)
		}
	}
	return nil
}

// ListChunkReferences returns a chunk's reference rows in stored order.
func (s *Store) ListChunkReferences(ctx context.Context, chunkID string) ([]reference.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT entity_type, entity_id, kind FROM entity_references
		 WHERE chunk_id = ? ORDER BY entity_type, entity_id, kind`,
		chunkID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunk references: %w", err)
	}
	defer rows.Close()

	var refs []reference.Reference
	for rows.Next() {
		var entityType, entityID, kind string
		if err := rows.Scan(&entityType, &entityID, &kind); err != nil {
			return nil, fmt.Errorf("scan chunk reference: %w", err)
		}
		refs = append(refs, reference.Reference{
			Entity: reference.Entity{Type: reference.EntityType(entityType), ID: entityID},
			Kind:   reference.Kind(kind),
		})
	}
	return refs, rows.Err()
}

// FindChunksByEntity returns ids of chunks referencing the entity, optionally
// restricted to the given kinds, ordered by the ledger's sequence.
func (s *Store) FindChunksByEntity(ctx context.Context, ent reference.Entity, kinds ...reference.Kind) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := ent.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT DISTINCT r.chunk_id FROM entity_references r
	          JOIN chunks c ON c.id = r.chunk_id
	          WHERE r.entity_type = ? AND r.entity_id = ?`
	args := []any{string(ent.Type), ent.ID}
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, kind := range kinds {
			if !reference.ValidKind(kind) {
				return nil, fmt.Errorf("unknown reference kind %q", kind)
			}
			placeholders[i] = "?"
			args = append(args, string(kind))
		}
		query += " AND r.kind IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY c.seq"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find chunks by entity: %w", err)
	}
	defer rows.Close()

	var chunkIDs []string
	for rows.Next() {
		var chunkID string
		if err := rows.Scan(&chunkID); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		chunkIDs = append(chunkIDs, chunkID)
	}
	return chunkIDs, rows.Err()
}

// ExpandChunksByEntity unions the chunks directly referencing the entity with
// the full spans of every episode containing at least one of them. A direct
// chunk with no owning episode contributes only itself; nothing is counted
// twice. Results are ordered by the ledger's sequence.
func (s *Store) ExpandChunksByEntity(ctx context.Context, ent reference.Entity) ([]string, error) {
	direct, err := s.FindChunksByEntity(ctx, ent)
	if err != nil {
		return nil, err
	}
	if len(direct) == 0 {
		return nil, nil
	}

	directSeqs := make(map[string]uint64, len(direct))
	for _, chunkID := range direct {
		var seq int64
		if err := s.sqlDB.QueryRowContext(ctx, `SELECT seq FROM chunks WHERE id = ?`, chunkID).Scan(&seq); err != nil {
			return nil, fmt.Errorf("read chunk seq: %w", err)
		}
		directSeqs[chunkID] = uint64(seq)
	}

	spans, err := s.episodeSpans(ctx)
	if err != nil {
		return nil, err
	}

	included := make(map[string]struct{}, len(direct))
	for _, chunkID := range direct {
		included[chunkID] = struct{}{}
	}
	for _, span := range spans {
		touched := false
		for _, seq := range directSeqs {
			if seq >= span.first && seq <= span.last {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		members, err := s.chunkIDsInSeqRange(ctx, span.first, span.last)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			included[member] = struct{}{}
		}
	}

	ordered, err := s.orderChunkIDsBySeq(ctx, included)
	if err != nil {
		return nil, err
	}
	return ordered, nil
}

type seqSpan struct {
	episodeID string
	first     uint64
	last      uint64
}

// episodeSpans resolves every episode's endpoints to a sequence range.
// Episodes whose endpoints no longer resolve are skipped here; renumbering
// validation is where stale spans become hard failures.
func (s *Store) episodeSpans(ctx context.Context) ([]seqSpan, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT e.id, f.seq, l.seq FROM episodes e
		 JOIN chunks f ON f.id = e.first_chunk_id
		 JOIN chunks l ON l.id = e.last_chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("list episode spans: %w", err)
	}
	defer rows.Close()

	var spans []seqSpan
	for rows.Next() {
		var span seqSpan
		var first, last int64
		if err := rows.Scan(&span.episodeID, &first, &last); err != nil {
			return nil, fmt.Errorf("scan episode span: %w", err)
		}
		span.first, span.last = uint64(first), uint64(last)
		if span.first > span.last {
			span.first, span.last = span.last, span.first
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

func (s *Store) chunkIDsInSeqRange(ctx context.Context, first, last uint64) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id FROM chunks WHERE seq >= ? AND seq <= ? ORDER BY seq`,
		int64(first), int64(last),
	)
	if err != nil {
		return nil, fmt.Errorf("list chunks in span: %w", err)
	}
	defer rows.Close()

	var chunkIDs []string
	for rows.Next() {
		var chunkID string
		if err := rows.Scan(&chunkID); err != nil {
			return nil, fmt.Errorf("scan span member: %w", err)
		}
		chunkIDs = append(chunkIDs, chunkID)
	}
	return chunkIDs, rows.Err()
}

func (s *Store) orderChunkIDsBySeq(ctx context.Context, chunkIDs map[string]struct{}) ([]string, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("order chunks by seq: %w", err)
	}
	defer rows.Close()

	ordered := make([]string, 0, len(chunkIDs))
	for rows.Next() {
		var chunkID string
		if err := rows.Scan(&chunkID); err != nil {
			return nil, fmt.Errorf("scan ordered chunk: %w", err)
		}
		if _, ok := chunkIDs[chunkID]; ok {
			ordered = append(ordered, chunkID)
		}
	}
	return ordered, rows.Err()
}
