package app

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/storyloom/internal/platform/errors"
	"github.com/louisbranch/storyloom/internal/platform/storage/cursor"
	"github.com/louisbranch/storyloom/internal/services/narrative/domain/chunk"
	"github.com/louisbranch/storyloom/internal/services/narrative/observability/audit"
	"github.com/louisbranch/storyloom/internal/services/narrative/observability/audit/events"
	"github.com/louisbranch/storyloom/internal/services/narrative/sequencer"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ReadRangeRequest bounds a paginated scan of the ledger's sequence order.
type ReadRangeRequest struct {
	// FromSeq and ToSeq are inclusive sequence bounds.
	FromSeq uint64
	ToSeq   uint64
	// PageSize caps the page; zero means the default.
	PageSize int
	// PageToken resumes a prior scan. Tokens are opaque and bound to the
	// requested range.
	PageToken string
}

// Page is one page of a range scan.
type Page struct {
	Chunks []chunk.Chunk
	// NextPageToken is empty when the scan is exhausted.
	NextPageToken string
}

// Append writes a chunk directly to the end of the ledger, bypassing the
// staging slot. Import and recovery paths use it; interactive authoring goes
// through Propose and Commit.
func (s *Service) Append(ctx context.Context, c chunk.Chunk) (chunk.Chunk, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.Append")
	defer span.End()
	return s.store.AppendChunk(ctx, c)
}

// GetChunk returns one chunk by identity.
func (s *Service) GetChunk(ctx context.Context, chunkID string) (chunk.Chunk, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.GetChunk")
	defer span.End()
	return s.store.GetChunk(ctx, chunkID)
}

// ReadRange returns chunks within the inclusive sequence bounds, ordered by
// seq. Pages are keyset-based, so a scan restarted from its token neither
// skips nor repeats chunks when the ledger grows concurrently.
func (s *Service) ReadRange(ctx context.Context, req ReadRangeRequest) (Page, error) {
	ctx, span := s.tracer.Start(ctx, "narrative.ReadRange")
	defer span.End()

	if req.FromSeq > req.ToSeq {
		return Page{}, fmt.Errorf("range bounds inverted: %d > %d", req.FromSeq, req.ToSeq)
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var afterSeq uint64
	if req.PageToken != "" {
		c, err := cursor.Decode(req.PageToken)
		if err != nil {
			return Page{}, fmt.Errorf("invalid page token: %w", err)
		}
		if err := cursor.ValidateRangeHash(c, req.FromSeq, req.ToSeq); err != nil {
			return Page{}, fmt.Errorf("invalid page token: %w", err)
		}
		afterSeq = c.Seq
	}

	chunks, err := s.store.ListChunkRange(ctx, req.FromSeq, req.ToSeq, afterSeq, pageSize)
	if err != nil {
		return Page{}, err
	}

	page := Page{Chunks: chunks}
	if len(chunks) == pageSize {
		token, err := cursor.Encode(cursor.New(chunks[len(chunks)-1].Seq, req.FromSeq, req.ToSeq))
		if err != nil {
			return Page{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// Renumber reorders the whole ledger to match the desired id order. The
// desired order must cover the ledger exactly and must keep every episode's
// member set contiguous; anything less refuses the batch and the ledger keeps
// its prior assignment.
func (s *Service) Renumber(ctx context.Context, desired []string) error {
	ctx, span := s.tracer.Start(ctx, "narrative.Renumber")
	defer span.End()

	order, err := s.store.ListChunkOrder(ctx)
	if err != nil {
		return err
	}
	plan, err := sequencer.BuildPlan(order, desired)
	if err != nil {
		return err
	}

	episodes, err := s.episodeMembers(ctx, order)
	if err != nil {
		return err
	}
	if err := sequencer.CheckEpisodeContiguity(desired, episodes); err != nil {
		return err
	}

	if err := s.store.RenumberChunks(ctx, plan); err != nil {
		return err
	}

	s.emitAudit(ctx, storage.AuditEvent{
		EventName: events.LedgerRenumbered,
		Severity:  string(audit.SeverityInfo),
		Attributes: map[string]any{
			"ledger_size": len(desired),
			"moved":       len(plan.Placements),
		},
	})
	return nil
}

// episodeMembers resolves every episode's span endpoints against the current
// ledger order. An endpoint that no longer resolves makes the episode index
// stale, which refuses renumbering rather than silently dropping the span.
func (s *Service) episodeMembers(ctx context.Context, order []sequencer.ChunkSeq) ([]sequencer.EpisodeMembers, error) {
	episodes, err := s.store.ListEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		return nil, nil
	}

	seqByID := make(map[string]uint64, len(order))
	for _, cs := range order {
		seqByID[cs.ChunkID] = cs.Seq
	}

	members := make([]sequencer.EpisodeMembers, 0, len(episodes))
	for _, ep := range episodes {
		first, okFirst := seqByID[ep.FirstChunkID]
		last, okLast := seqByID[ep.LastChunkID]
		if !okFirst || !okLast {
			return nil, apperrors.WithMetadata(apperrors.CodeEpisodeFragmented, "episode endpoint does not resolve", map[string]string{
				"episode_id": ep.ID,
			})
		}
		if first > last {
			first, last = last, first
		}
		em := sequencer.EpisodeMembers{EpisodeID: ep.ID}
		for _, cs := range order {
			if cs.Seq >= first && cs.Seq <= last {
				em.ChunkIDs = append(em.ChunkIDs, cs.ChunkID)
			}
		}
		members = append(members, em)
	}
	return members, nil
}
