package app

import (
	"context"
	"testing"

	"github.com/louisbranch/storyloom/internal/services/narrative/domain/episode"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/reference"
)

func TestFindByEntity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedLedger(t, svc, "chunk-a", "chunk-b", "chunk-c")

	mira := reference.Entity{Type: reference.EntityCharacter, ID: "mira"}
	if err := svc.RebuildReferences(ctx, "chunk-a", []reference.Reference{
		{Entity: mira, Kind: reference.KindMentioned},
	}); err != nil {
		t.Fatalf("rebuild chunk-a: %v", err)
	}
	if err := svc.RebuildReferences(ctx, "chunk-c", []reference.Reference{
		{Entity: mira, Kind: reference.KindPresent},
	}); err != nil {
		t.Fatalf("rebuild chunk-c: %v", err)
	}

	chunkIDs, err := svc.FindByEntity(ctx, mira)
	if err != nil {
		t.Fatalf("find by entity: %v", err)
	}
	if len(chunkIDs) != 2 || chunkIDs[0] != "chunk-a" || chunkIDs[1] != "chunk-c" {
		t.Fatalf("expected [chunk-a chunk-c], got %v", chunkIDs)
	}

	chunkIDs, err = svc.FindByEntity(ctx, mira, reference.KindPresent)
	if err != nil {
		t.Fatalf("find by entity and kind: %v", err)
	}
	if len(chunkIDs) != 1 || chunkIDs[0] != "chunk-c" {
		t.Fatalf("expected [chunk-c], got %v", chunkIDs)
	}
}

func TestExpandViaEpisode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedLedger(t, svc, "chunk-a", "chunk-b", "chunk-c", "chunk-d")

	if err := svc.store.PutEpisode(ctx, episode.Episode{
		ID:           "ep-1",
		Title:        "Night Crossing",
		FirstChunkID: "chunk-a",
		LastChunkID:  "chunk-c",
	}); err != nil {
		t.Fatalf("put episode: %v", err)
	}

	mira := reference.Entity{Type: reference.EntityCharacter, ID: "mira"}
	if err := svc.RebuildReferences(ctx, "chunk-b", []reference.Reference{
		{Entity: mira, Kind: reference.KindPresent},
	}); err != nil {
		t.Fatalf("rebuild references: %v", err)
	}

	chunkIDs, err := svc.ExpandViaEpisode(ctx, mira)
	if err != nil {
		t.Fatalf("expand via episode: %v", err)
	}
	want := []string{"chunk-a", "chunk-b", "chunk-c"}
	if len(chunkIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, chunkIDs)
	}
	for i := range want {
		if chunkIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, chunkIDs)
		}
	}
}
