package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/delta"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

// GetEntityFact returns the stored value for one entity field.
// Returns storage.ErrNotFound if the fact does not exist.
func (s *Store) GetEntityFact(ctx context.Context, entityType reference.EntityType, entityID, field string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM entity_facts WHERE entity_type = ? AND entity_id = ? AND field = ?`,
		string(entityType), entityID, field,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get entity fact: %w", err)
	}
	return value, nil
}

// PutEntityFact upserts one entity field value.
func (s *Store) PutEntityFact(ctx context.Context, entityType reference.EntityType, entityID, field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if !reference.ValidEntityType(entityType) {
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	if strings.TrimSpace(entityID) == "" || strings.TrimSpace(field) == "" {
		return fmt.Errorf("entity id and field are required")
	}
	return putEntityFactExec(ctx, s.sqlDB, entityType, entityID, field, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putEntityFactExec(ctx context.Context, db execer, entityType reference.EntityType, entityID, field, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO entity_facts (entity_type, entity_id, field, value, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id, field) DO UPDATE SET
		     value = excluded.value,
		     updated_at = excluded.updated_at`,
		string(entityType), entityID, field, value, toMillis(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("put entity fact: %w", err)
	}
	return nil
}

// applyEntityDeltaTx applies one typed delta to its entity record. When the
// delta declares the value the proposer observed, a diverged stored value
// refuses the delta instead of silently clobbering it.
func applyEntityDeltaTx(ctx context.Context, tx *sql.Tx, d delta.Entity) error {
	change := d.Change()

	if change.OldValue != "" {
		var stored string
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM entity_facts WHERE entity_type = ? AND entity_id = ? AND field = ?`,
			string(d.EntityType()), d.EntityID(), change.Field,
		).Scan(&stored)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read entity fact: %w", err)
		}
		if err == nil && stored != change.OldValue {
			return apperrors.WithMetadata(apperrors.CodeDeltaStaleOldValue, "entity fact diverged from delta's old value", map[string]string{
				"entity_type": string(d.EntityType()),
				"entity_id":   d.EntityID(),
				"field":       change.Field,
			})
		}
	}

	return putEntityFactExec(ctx, tx, d.EntityType(), d.EntityID(), change.Field, change.NewValue)
}

var _ storage.EntityFactStore = (*Store)(nil)
