package sqlite

import (
	"context"
	"testing"

	"github.com/louisbranch/storyloom/internal/services/narrative/domain/episode"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
)

func ref(entityType reference.EntityType, entityID string, kind reference.Kind) reference.Reference {
	return reference.Reference{
		Entity: reference.Entity{Type: entityType, ID: entityID},
		Kind:   kind,
	}
}

func rebuildTestReferences(t *testing.T, store *Store, chunkID string, refs ...reference.Reference) {
	t.Helper()
	if err := store.RebuildReferences(context.Background(), chunkID, refs); err != nil {
		t.Fatalf("rebuild references for %s: %v", chunkID, err)
	}
}

func TestRebuildReferencesReplacesWholesale(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	appendTestChunk(t, store, "chunk-a", "")

	rebuildTestReferences(t, store, "chunk-a",
		ref(reference.EntityCharacter, "mira", reference.KindPresent),
		ref(reference.EntityPlace, "lighthouse", reference.KindSetting),
	)
	rebuildTestReferences(t, store, "chunk-a",
		ref(reference.EntityCharacter, "tomas", reference.KindMentioned),
	)

	refs, err := store.ListChunkReferences(ctx, "chunk-a")
	if err != nil {
		t.Fatalf("list references: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected prior set to be replaced, got %+v", refs)
	}
	if refs[0] != ref(reference.EntityCharacter, "tomas", reference.KindMentioned) {
		t.Fatalf("unexpected reference: %+v", refs[0])
	}
}

func TestRebuildReferencesDeduplicates(t *testing.T) {
	store := openTestStore(t)
	appendTestChunk(t, store, "chunk-a", "")

	rebuildTestReferences(t, store, "chunk-a",
		ref(reference.EntityCharacter, "mira", reference.KindPresent),
		ref(reference.EntityCharacter, "mira", reference.KindPresent),
	)

	refs, err := store.ListChunkReferences(context.Background(), "chunk-a")
	if err != nil {
		t.Fatalf("list references: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected duplicate collapsed, got %+v", refs)
	}
}

func TestFindChunksByEntity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedLedger(t, store, "chunk-a", "chunk-b", "chunk-c")

	mira := reference.Entity{Type: reference.EntityCharacter, ID: "mira"}
	rebuildTestReferences(t, store, "chunk-c", ref(reference.EntityCharacter, "mira", reference.KindPresent))
	rebuildTestReferences(t, store, "chunk-a", ref(reference.EntityCharacter, "mira", reference.KindMentioned))
	rebuildTestReferences(t, store, "chunk-b", ref(reference.EntityPlace, "lighthouse", reference.KindSetting))

	chunkIDs, err := store.FindChunksByEntity(ctx, mira)
	if err != nil {
		t.Fatalf("find chunks: %v", err)
	}
	if len(chunkIDs) != 2 || chunkIDs[0] != "chunk-a" || chunkIDs[1] != "chunk-c" {
		t.Fatalf("expected [chunk-a chunk-c] in ledger order, got %v", chunkIDs)
	}

	chunkIDs, err = store.FindChunksByEntity(ctx, mira, reference.KindPresent)
	if err != nil {
		t.Fatalf("find chunks by kind: %v", err)
	}
	if len(chunkIDs) != 1 || chunkIDs[0] != "chunk-c" {
		t.Fatalf("expected [chunk-c], got %v", chunkIDs)
	}
}

func TestFindChunksByEntityRejectsUnknownKind(t *testing.T) {
	store := openTestStore(t)
	mira := reference.Entity{Type: reference.EntityCharacter, ID: "mira"}
	if _, err := store.FindChunksByEntity(context.Background(), mira, reference.Kind("lurking")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestExpandChunksByEntityIncludesEpisodeSpans(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedLedger(t, store, "chunk-a", "chunk-b", "chunk-c", "chunk-d", "chunk-e")

	if err := store.PutEpisode(ctx, episode.Episode{
		ID:           "ep-1",
		Title:        "The Lighthouse",
		FirstChunkID: "chunk-b",
		LastChunkID:  "chunk-d",
	}); err != nil {
		t.Fatalf("put episode: %v", err)
	}

	mira := reference.Entity{Type: reference.EntityCharacter, ID: "mira"}
	rebuildTestReferences(t, store, "chunk-c", ref(reference.EntityCharacter, "mira", reference.KindPresent))
	rebuildTestReferences(t, store, "chunk-e", ref(reference.EntityCharacter, "mira", reference.KindMentioned))

	chunkIDs, err := store.ExpandChunksByEntity(ctx, mira)
	if err != nil {
		t.Fatalf("expand chunks: %v", err)
	}
	want := []string{"chunk-b", "chunk-c", "chunk-d", "chunk-e"}
	if len(chunkIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, chunkIDs)
	}
	for i := range want {
		if chunkIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, chunkIDs)
		}
	}
}

func TestExpandChunksByEntityWithoutEpisodes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedLedger(t, store, "chunk-a", "chunk-b")

	mira := reference.Entity{Type: reference.EntityCharacter, ID: "mira"}
	rebuildTestReferences(t, store, "chunk-b", ref(reference.EntityCharacter, "mira", reference.KindPresent))

	chunkIDs, err := store.ExpandChunksByEntity(ctx, mira)
	if err != nil {
		t.Fatalf("expand chunks: %v", err)
	}
	if len(chunkIDs) != 1 || chunkIDs[0] != "chunk-b" {
		t.Fatalf("expected only the direct chunk, got %v", chunkIDs)
	}
}

func TestExpandChunksByEntityNoMatches(t *testing.T) {
	store := openTestStore(t)
	seedLedger(t, store, "chunk-a")

	nobody := reference.Entity{Type: reference.EntityCharacter, ID: "nobody"}
	chunkIDs, err := store.ExpandChunksByEntity(context.Background(), nobody)
	if err != nil {
		t.Fatalf("expand chunks: %v", err)
	}
	if len(chunkIDs) != 0 {
		t.Fatalf("expected no chunks, got %v", chunkIDs)
	}
}
