// Package errors provides structured error handling for the narrative core.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Ledger errors
	CodeIdentityConflict   Code = "IDENTITY_CONFLICT"
	CodeChunkEmptyID       Code = "CHUNK_EMPTY_ID"
	CodeChunkEmptyContent  Code = "CHUNK_EMPTY_CONTENT"
	CodeChunkInvalidLayer  Code = "CHUNK_INVALID_WORLD_LAYER"
	CodeChunkInvalidPacing Code = "CHUNK_INVALID_PACING"

	// Sequencer errors
	CodeOrderingIncomplete Code = "ORDERING_INCOMPLETE"
	CodeEpisodeFragmented  Code = "EPISODE_SPAN_FRAGMENTED"

	// Reference index errors
	CodeReferenceInvalidKind       Code = "REFERENCE_INVALID_KIND"
	CodeReferenceInvalidEntityType Code = "REFERENCE_INVALID_ENTITY_TYPE"
	CodeReferenceEmptyEntityID     Code = "REFERENCE_EMPTY_ENTITY_ID"

	// Delta errors
	CodeDeltaInvalidEntityType Code = "DELTA_INVALID_ENTITY_TYPE"
	CodeDeltaEmptyEntityID     Code = "DELTA_EMPTY_ENTITY_ID"
	CodeDeltaEmptyField        Code = "DELTA_EMPTY_FIELD"
	CodeDeltaStaleOldValue     Code = "DELTA_STALE_OLD_VALUE"

	// Staging errors
	CodeSingletonViolation    Code = "SINGLETON_VIOLATION"
	CodeCommitAborted         Code = "COMMIT_ABORTED"
	CodeStagingSlotEmpty      Code = "STAGING_SLOT_EMPTY"
	CodeStagingNotProvisional Code = "STAGING_NOT_PROVISIONAL"
	CodeStagingNotApproved    Code = "STAGING_NOT_APPROVED"
	CodeStagingStaleAttempt   Code = "STAGING_STALE_ATTEMPT"

	// Episode errors
	CodeEpisodeEmptySpan Code = "EPISODE_EMPTY_SPAN"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)
