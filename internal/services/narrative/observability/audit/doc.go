// Package audit contains durable in-product audit writes for narrative core
// operations.
//
// This package owns persisted operational audit events that are used for
// incident analysis and debugging of the staged-commit pipeline.
//
// For distributed tracing, this service still uses package `internal/platform/otel`.
package audit
