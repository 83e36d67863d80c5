// Package chunk defines the immutable narrative unit stored in the ledger.
package chunk

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
)

// WorldLayer identifies which narrative reality a chunk takes place in.
type WorldLayer string

const (
	// LayerWaking is the default, literal storyline.
	LayerWaking WorldLayer = "waking"
	// LayerDream covers dream sequences and visions.
	LayerDream WorldLayer = "dream"
	// LayerMythic covers in-world legends, songs, and recounted history.
	LayerMythic WorldLayer = "mythic"
)

// Pacing describes the narrative tempo of a chunk.
type Pacing string

const (
	PacingSlow   Pacing = "slow"
	PacingSteady Pacing = "steady"
	PacingBrisk  Pacing = "brisk"
	PacingUrgent Pacing = "urgent"
)

// Metadata carries the structured descriptors attached to a chunk when it is
// staged and committed.
type Metadata struct {
	// EpisodeTransition marks that this chunk opens a new episode.
	EpisodeTransition bool
	// Elapsed is the in-story time that passes during the chunk.
	Elapsed time.Duration
	// WorldLayer identifies the narrative reality of the chunk.
	WorldLayer WorldLayer
	// Pacing is the narrative tempo of the chunk.
	Pacing Pacing
}

// Chunk is one immutable narrative unit. Its identity never changes; its Seq
// is reassigned only by bulk renumbering.
type Chunk struct {
	ID        string
	Seq       uint64
	ParentID  string
	Content   string
	Metadata  Metadata
	CreatedAt time.Time
}

// ValidWorldLayer reports whether the layer is a known value.
func ValidWorldLayer(layer WorldLayer) bool {
	switch layer {
	case LayerWaking, LayerDream, LayerMythic:
		return true
	}
	return false
}

// ValidPacing reports whether the pacing is a known value.
func ValidPacing(p Pacing) bool {
	switch p {
	case PacingSlow, PacingSteady, PacingBrisk, PacingUrgent:
		return true
	}
	return false
}

// Validate checks the metadata enumerations.
func (m Metadata) Validate() error {
	if !ValidWorldLayer(m.WorldLayer) {
		return apperrors.WithMetadata(apperrors.CodeChunkInvalidLayer, "unknown world layer", map[string]string{
			"world_layer": string(m.WorldLayer),
		})
	}
	if !ValidPacing(m.Pacing) {
		return apperrors.WithMetadata(apperrors.CodeChunkInvalidPacing, "unknown pacing", map[string]string{
			"pacing": string(m.Pacing),
		})
	}
	return nil
}

// Validate checks the chunk's identity and payload ahead of persistence.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return apperrors.New(apperrors.CodeChunkEmptyID, "chunk id is required")
	}
	if strings.TrimSpace(c.Content) == "" {
		return apperrors.New(apperrors.CodeChunkEmptyContent, "chunk content is required")
	}
	return c.Metadata.Validate()
}
