package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/storyloom/internal/services/narrative/domain/episode"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

// PutEpisode upserts one episode span. Endpoints are stored as chunk ids, not
// sequence values, so spans survive renumbering without rewrites. Endpoints
// are allowed to reference chunks that do not exist yet; the sequencer is
// where unresolved spans become hard failures.
func (s *Store) PutEpisode(ctx context.Context, e episode.Episode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := e.Validate(); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO episodes (id, title, first_chunk_id, last_chunk_id, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     title = excluded.title,
		     first_chunk_id = excluded.first_chunk_id,
		     last_chunk_id = excluded.last_chunk_id,
		     updated_at = excluded.updated_at`,
		e.ID, e.Title, e.FirstChunkID, e.LastChunkID, toMillis(time.Now().UTC()),
	); err != nil {
		return fmt.Errorf("put episode: %w", err)
	}
	return nil
}

// GetEpisode returns one episode by id.
func (s *Store) GetEpisode(ctx context.Context, episodeID string) (episode.Episode, error) {
	if err := ctx.Err(); err != nil {
		return episode.Episode{}, err
	}
	if s == nil || s.sqlDB == nil {
		return episode.Episode{}, fmt.Errorf("storage is not configured")
	}

	var e episode.Episode
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, title, first_chunk_id, last_chunk_id FROM episodes WHERE id = ?`,
		episodeID,
	).Scan(&e.ID, &e.Title, &e.FirstChunkID, &e.LastChunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return episode.Episode{}, storage.ErrNotFound
	}
	if err != nil {
		return episode.Episode{}, fmt.Errorf("get episode: %w", err)
	}
	return e, nil
}

// ListEpisodes returns every episode ordered by id.
func (s *Store) ListEpisodes(ctx context.Context) ([]episode.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, title, first_chunk_id, last_chunk_id FROM episodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []episode.Episode
	for rows.Next() {
		var e episode.Episode
		if err := rows.Scan(&e.ID, &e.Title, &e.FirstChunkID, &e.LastChunkID); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	return episodes, nil
}

var _ storage.EpisodeStore = (*Store)(nil)
