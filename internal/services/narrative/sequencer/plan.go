// Package sequencer plans safe bulk renumbering of the chunk ledger.
//
// Desired final sequence values can collide with values still held by other
// chunks in the same batch (a swap is the smallest example), so a plan runs
// in two phases: first every moving chunk is displaced into a temporary range
// disjoint from both the old and the new value sets, then every chunk is
// placed at its true value. The store executes both phases inside one
// transaction; the split exists only to keep the unique index on seq
// satisfied at every statement boundary inside it.
package sequencer

import (
	"fmt"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
)

// ChunkSeq pairs a chunk identity with its current sequence value.
type ChunkSeq struct {
	ChunkID string
	Seq     uint64
}

// Assignment sets one chunk's sequence to one value.
type Assignment struct {
	ChunkID string
	Seq     uint64
}

// Plan is an executable renumbering batch. Displacements run first, then
// placements, all inside a single transaction.
type Plan struct {
	Displacements []Assignment
	Placements    []Assignment
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Placements) == 0
}

// BuildPlan derives a two-phase plan that renumbers the ledger to match the
// desired order. Final values are 1..n in desired order. The desired order
// must name every current chunk exactly once and nothing else; anything less
// is OrderingIncomplete and refuses the whole batch, including chunks that
// disappeared between order derivation and planning.
func BuildPlan(current []ChunkSeq, desired []string) (Plan, error) {
	if len(current) == 0 && len(desired) == 0 {
		return Plan{}, nil
	}

	currentSeq := make(map[string]uint64, len(current))
	maxSeq := uint64(0)
	for _, cs := range current {
		if _, ok := currentSeq[cs.ChunkID]; ok {
			return Plan{}, apperrors.WithMetadata(apperrors.CodeOrderingIncomplete, "ledger reports duplicate chunk", map[string]string{
				"chunk_id": cs.ChunkID,
			})
		}
		currentSeq[cs.ChunkID] = cs.Seq
		if cs.Seq > maxSeq {
			maxSeq = cs.Seq
		}
	}

	if len(desired) != len(current) {
		return Plan{}, apperrors.WithMetadata(apperrors.CodeOrderingIncomplete, "desired order does not cover the ledger", map[string]string{
			"ledger_size":  fmt.Sprintf("%d", len(current)),
			"desired_size": fmt.Sprintf("%d", len(desired)),
		})
	}

	desiredSeq := make(map[string]uint64, len(desired))
	for i, chunkID := range desired {
		if _, ok := currentSeq[chunkID]; !ok {
			return Plan{}, apperrors.WithMetadata(apperrors.CodeOrderingIncomplete, "desired order names unknown chunk", map[string]string{
				"chunk_id": chunkID,
			})
		}
		if _, ok := desiredSeq[chunkID]; ok {
			return Plan{}, apperrors.WithMetadata(apperrors.CodeOrderingIncomplete, "desired order repeats chunk", map[string]string{
				"chunk_id": chunkID,
			})
		}
		desiredSeq[chunkID] = uint64(i + 1)
	}

	// Temporary values sit strictly above both the current and the final
	// value sets, so no displacement can collide with a still-current value
	// or with another temporary.
	tempBase := maxSeq
	if n := uint64(len(desired)); n > tempBase {
		tempBase = n
	}

	var plan Plan
	next := tempBase
	for _, chunkID := range desired {
		target := desiredSeq[chunkID]
		if currentSeq[chunkID] == target {
			continue
		}
		next++
		plan.Displacements = append(plan.Displacements, Assignment{ChunkID: chunkID, Seq: next})
		plan.Placements = append(plan.Placements, Assignment{ChunkID: chunkID, Seq: target})
	}

	return plan, nil
}

// EpisodeMembers is one episode's current member set, resolved by the caller
// from the episode's span endpoints.
type EpisodeMembers struct {
	EpisodeID string
	ChunkIDs  []string
}

// CheckEpisodeContiguity verifies that every episode's member set occupies
// contiguous positions in the desired order. A desired order that tears an
// episode apart refuses the batch, since episode spans are the ground truth
// the rest of the system reads.
func CheckEpisodeContiguity(desired []string, episodes []EpisodeMembers) error {
	position := make(map[string]int, len(desired))
	for i, chunkID := range desired {
		position[chunkID] = i
	}

	for _, ep := range episodes {
		if len(ep.ChunkIDs) == 0 {
			continue
		}
		min, max := len(desired), -1
		for _, chunkID := range ep.ChunkIDs {
			pos, ok := position[chunkID]
			if !ok {
				return apperrors.WithMetadata(apperrors.CodeEpisodeFragmented, "episode member missing from desired order", map[string]string{
					"episode_id": ep.EpisodeID,
					"chunk_id":   chunkID,
				})
			}
			if pos < min {
				min = pos
			}
			if pos > max {
				max = pos
			}
		}
		if max-min+1 != len(ep.ChunkIDs) {
			return apperrors.WithMetadata(apperrors.CodeEpisodeFragmented, "desired order fragments episode span", map[string]string{
				"episode_id": ep.EpisodeID,
			})
		}
	}
	return nil
}
