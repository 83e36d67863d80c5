package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

func TestAppendChunkAssignsSequence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := appendTestChunk(t, store, "chunk-a", "")
	second := appendTestChunk(t, store, "chunk-b", "chunk-a")
	third := appendTestChunk(t, store, "chunk-c", "chunk-b")

	if first.Seq != 1 || second.Seq != 2 || third.Seq != 3 {
		t.Fatalf("expected seqs 1,2,3, got %d,%d,%d", first.Seq, second.Seq, third.Seq)
	}

	got, err := store.GetChunk(ctx, "chunk-b")
	if err != nil {
		t.Fatalf("get chunk: %v", err)
	}
	if got.Seq != 2 || got.ParentID != "chunk-a" || got.Content != "content of chunk-b" {
		t.Fatalf("unexpected chunk: %+v", got)
	}
	if got.Metadata != testMetadata() {
		t.Fatalf("metadata did not round trip: %+v", got.Metadata)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created at not persisted")
	}
}

func TestAppendChunkMetadataRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	in := chunk.Chunk{
		ID:      "chunk-a",
		Content: "a dream within a dream",
		Metadata: chunk.Metadata{
			EpisodeTransition: true,
			Elapsed:           3 * time.Hour,
			WorldLayer:        chunk.LayerDream,
			Pacing:            chunk.PacingUrgent,
		},
	}
	if _, err := store.AppendChunk(ctx, in); err != nil {
		t.Fatalf("append chunk: %v", err)
	}

	got, err := store.GetChunk(ctx, "chunk-a")
	if err != nil {
		t.Fatalf("get chunk: %v", err)
	}
	if got.Metadata != in.Metadata {
		t.Fatalf("metadata = %+v, want %+v", got.Metadata, in.Metadata)
	}
}

func TestAppendChunkDuplicateID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	appendTestChunk(t, store, "chunk-a", "")

	_, err := store.AppendChunk(ctx, chunk.Chunk{
		ID:       "chunk-a",
		Content:  "different content, same identity",
		Metadata: testMetadata(),
	})
	if !apperrors.IsCode(err, apperrors.CodeIdentityConflict) {
		t.Fatalf("expected identity conflict, got %v", err)
	}
	if meta := apperrors.GetMetadata(err); meta["chunk_id"] != "chunk-a" {
		t.Fatalf("expected chunk_id metadata, got %v", meta)
	}

	got, err := store.GetChunk(ctx, "chunk-a")
	if err != nil {
		t.Fatalf("get chunk: %v", err)
	}
	if got.Content != "content of chunk-a" {
		t.Fatal("existing chunk was overwritten")
	}
}

func TestAppendChunkUnresolvedParent(t *testing.T) {
	store := openTestStore(t)

	_, err := store.AppendChunk(context.Background(), chunk.Chunk{
		ID:       "chunk-a",
		ParentID: "missing-parent",
		Content:  "orphan",
		Metadata: testMetadata(),
	})
	if !apperrors.IsCode(err, apperrors.CodeIdentityConflict) {
		t.Fatalf("expected identity conflict, got %v", err)
	}
	if meta := apperrors.GetMetadata(err); meta["parent_id"] != "missing-parent" {
		t.Fatalf("expected parent_id metadata, got %v", meta)
	}
}

func TestGetChunkNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetChunk(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChunkExists(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	appendTestChunk(t, store, "chunk-a", "")

	exists, err := store.ChunkExists(ctx, "chunk-a")
	if err != nil {
		t.Fatalf("chunk exists: %v", err)
	}
	if !exists {
		t.Fatal("expected chunk-a to exist")
	}

	exists, err = store.ChunkExists(ctx, "chunk-z")
	if err != nil {
		t.Fatalf("chunk exists: %v", err)
	}
	if exists {
		t.Fatal("expected chunk-z to not exist")
	}
}

func TestListChunkOrder(t *testing.T) {
	store := openTestStore(t)

	appendTestChunk(t, store, "chunk-a", "")
	appendTestChunk(t, store, "chunk-b", "chunk-a")
	appendTestChunk(t, store, "chunk-c", "chunk-b")

	order, err := store.ListChunkOrder(context.Background())
	if err != nil {
		t.Fatalf("list chunk order: %v", err)
	}
	want := []string{"chunk-a", "chunk-b", "chunk-c"}
	if len(order) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(order))
	}
	for i, cs := range order {
		if cs.ChunkID != want[i] || cs.Seq != uint64(i+1) {
			t.Fatalf("entry %d = %+v, want (%s, %d)", i, cs, want[i], i+1)
		}
	}
}

func TestListChunkRangePagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ids := []string{"chunk-a", "chunk-b", "chunk-c", "chunk-d", "chunk-e"}
	parent := ""
	for _, id := range ids {
		appendTestChunk(t, store, id, parent)
		parent = id
	}

	page, err := store.ListChunkRange(ctx, 2, 5, 0, 2)
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "chunk-b" || page[1].ID != "chunk-c" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page, err = store.ListChunkRange(ctx, 2, 5, page[1].Seq, 2)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "chunk-d" || page[1].ID != "chunk-e" {
		t.Fatalf("unexpected second page: %+v", page)
	}

	page, err = store.ListChunkRange(ctx, 2, 5, page[1].Seq, 2)
	if err != nil {
		t.Fatalf("list final page: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty final page, got %+v", page)
	}
}

func TestListChunkRangeRequiresPositiveLimit(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.ListChunkRange(context.Background(), 1, 10, 0, 0); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}
