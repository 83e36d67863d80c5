// Package episode defines the externally curated contiguous spans over the
// chunk ledger. The narrative core reads episodes for reference expansion and
// renumbering validation; it never writes them.
package episode

import (
	"strings"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
)

// Episode is a contiguous range over the ledger's order, bounded by its first
// and last chunk. Membership is every chunk whose sequence lies between the
// two endpoints, inclusive, so spans survive bulk renumbering as long as the
// members stay contiguous.
type Episode struct {
	ID           string
	Title        string
	FirstChunkID string
	LastChunkID  string
}

// Validate checks the episode's identity and span endpoints.
func (e Episode) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return apperrors.New(apperrors.CodeEpisodeEmptySpan, "episode id is required")
	}
	if strings.TrimSpace(e.FirstChunkID) == "" || strings.TrimSpace(e.LastChunkID) == "" {
		return apperrors.WithMetadata(apperrors.CodeEpisodeEmptySpan, "episode span endpoints are required", map[string]string{
			"episode_id": e.ID,
		})
	}
	return nil
}
