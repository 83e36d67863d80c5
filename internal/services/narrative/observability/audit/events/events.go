// Package events defines canonical narrative audit event names.
//
// The names intentionally remain stable because operational consumers rely on
// these values across releases.
package events

const (
	// ChunkProposed captures a proposal landing in the staging slot.
	ChunkProposed = "narrative.chunk.proposed"
	// ChunkApproved captures a reviewer approving the staged proposal.
	ChunkApproved = "narrative.chunk.approved"
	// ChunkDiscarded captures the staged proposal being discarded.
	ChunkDiscarded = "narrative.chunk.discarded"
	// ChunkCommitted captures a staged proposal becoming a durable chunk.
	ChunkCommitted = "narrative.chunk.committed"
	// LedgerRenumbered captures a bulk reordering of the chunk ledger.
	LedgerRenumbered = "narrative.ledger.renumbered"
)
