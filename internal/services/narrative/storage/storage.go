// Package storage defines the persistence contracts for the narrative core.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/episode"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/staging"
	"github.com/louisbranch/storyloom/internal/services/narrative/sequencer"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such record"
// states and storage failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ChunkStore owns the ordered chunk ledger.
type ChunkStore interface {
	// AppendChunk assigns the next sequence value and durably writes the
	// chunk. Fails with IdentityConflict when the chunk id already exists
	// or a non-empty parent does not resolve.
	AppendChunk(ctx context.Context, c chunk.Chunk) (chunk.Chunk, error)
	// GetChunk returns one chunk by identity.
	GetChunk(ctx context.Context, chunkID string) (chunk.Chunk, error)
	// ChunkExists reports whether a chunk id is present in the ledger.
	ChunkExists(ctx context.Context, chunkID string) (bool, error)
	// ListChunkOrder returns every chunk's (id, seq) pair ordered by seq.
	ListChunkOrder(ctx context.Context) ([]sequencer.ChunkSeq, error)
	// ListChunkRange returns up to limit chunks with fromSeq <= seq <= toSeq
	// and seq > afterSeq, ordered by seq.
	ListChunkRange(ctx context.Context, fromSeq, toSeq, afterSeq uint64, limit int) ([]chunk.Chunk, error)
	// RenumberChunks executes a renumbering plan inside one transaction.
	RenumberChunks(ctx context.Context, plan sequencer.Plan) error
}

// ReferenceStore owns the derived chunk-to-entity index.
type ReferenceStore interface {
	// RebuildReferences replaces a chunk's full reference set wholesale.
	RebuildReferences(ctx context.Context, chunkID string, refs []reference.Reference) error
	// ListChunkReferences returns a chunk's reference rows in stored order.
	ListChunkReferences(ctx context.Context, chunkID string) ([]reference.Reference, error)
	// FindChunksByEntity returns ids of chunks referencing the entity,
	// optionally restricted to the given kinds, ordered by seq.
	FindChunksByEntity(ctx context.Context, ent reference.Entity, kinds ...reference.Kind) ([]string, error)
	// ExpandChunksByEntity unions the direct chunks with the full spans of
	// every episode containing at least one of them, ordered by seq. A
	// direct chunk with no owning episode contributes only itself.
	ExpandChunksByEntity(ctx context.Context, ent reference.Entity) ([]string, error)
}

// EntityFactStore holds the per-entity world facts entity deltas apply to.
type EntityFactStore interface {
	// GetEntityFact returns the stored value for one entity field.
	GetEntityFact(ctx context.Context, entityType reference.EntityType, entityID, field string) (string, error)
	// PutEntityFact upserts one entity field value.
	PutEntityFact(ctx context.Context, entityType reference.EntityType, entityID, field, value string) error
}

// StagingStore owns the singleton staging slot.
type StagingStore interface {
	// GetStagingSlot returns the current proposal, or ErrNotFound when the
	// slot is empty.
	GetStagingSlot(ctx context.Context) (staging.Proposal, error)
	// PutStagingSlot unconditionally replaces the slot's proposal.
	PutStagingSlot(ctx context.Context, p staging.Proposal) error
	// UpdateStagingState moves the slot between lifecycle states, guarded
	// by attempt id and current state.
	UpdateStagingState(ctx context.Context, attemptID string, from, to staging.State) error
	// ClearStagingSlot empties the slot with no other side effects.
	ClearStagingSlot(ctx context.Context) error
	// CommitStagingSlot promotes the approved proposal in one transaction:
	// re-validate identities, append the chunk, apply entity deltas,
	// rebuild the chunk's references, clear the slot. Any failure rolls the
	// whole transaction back and leaves the slot approved. The attempt id
	// must match the reviewed proposal.
	CommitStagingSlot(ctx context.Context, attemptID string) (chunk.Chunk, error)
}

// EpisodeStore reads the externally curated episode index. PutEpisode exists
// for the episode collaborator's writer; the narrative core only reads.
type EpisodeStore interface {
	PutEpisode(ctx context.Context, e episode.Episode) error
	GetEpisode(ctx context.Context, episodeID string) (episode.Episode, error)
	ListEpisodes(ctx context.Context) ([]episode.Episode, error)
}

// AuditEvent captures one operational observation about the core.
type AuditEvent struct {
	Timestamp      time.Time
	EventName      string
	Severity       string
	ChunkID        string
	AttemptID      string
	TraceID        string
	SpanID         string
	Attributes     map[string]any
	AttributesJSON []byte
}

// AuditEventStore records operational audit events.
type AuditEventStore interface {
	AppendAuditEvent(ctx context.Context, evt AuditEvent) error
	ListAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error)
}
