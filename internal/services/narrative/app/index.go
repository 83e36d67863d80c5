package app

import (
	"context"

	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
)

// RebuildReferences replaces a chunk's reference set wholesale. The same
// input always produces identical stored rows, so index rebuilds are safe to
// repeat.
func (s *Service) RebuildReferences(ctx context.Context, chunkID string, refs []reference.Reference) error {
	ctx, span := s.tracer.Start(ctx, "narrative.RebuildReferences")
	defer span.End()
	return s.store.RebuildReferences(ctx, chunkID, refs)
}

// ChunkReferences returns a chunk's stored reference rows.
func (s *Service) ChunkReferences(ctx context.Context, chunkID string) ([]reference.Reference, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.ChunkReferences")
	defer span.End()
	return s.store.ListChunkReferences(ctx, chunkID)
}

// FindByEntity returns ids of chunks referencing the entity, optionally
// restricted by reference kind, in ledger order.
func (s *Service) FindByEntity(ctx context.Context, ent reference.Entity, kinds ...reference.Kind) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.FindByEntity")
	defer span.End()
	return s.store.FindChunksByEntity(ctx, ent, kinds...)
}

// ExpandViaEpisode returns the entity's direct chunks together with the full
// span of every episode containing at least one of them, in ledger order. A
// direct chunk with no owning episode contributes only itself.
func (s *Service) ExpandViaEpisode(ctx context.Context, ent reference.Entity) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.ExpandViaEpisode")
	defer span.End()
	return s.store.ExpandChunksByEntity(ctx, ent)
}

// EntityFact returns one stored world fact for an entity field.
func (s *Service) EntityFact(ctx context.Context, entityType reference.EntityType, entityID, field string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.EntityFact")
	defer span.End()
	return s.store.GetEntityFact(ctx, entityType, entityID, field)
}
