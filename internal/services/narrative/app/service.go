// Package app exposes the narrative core's operations over durable storage:
// appending to the chunk ledger, staging and committing proposals, bulk
// renumbering, and entity-based retrieval.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/storyloom/internal/platform/config"
	platformotel "github.com/louisbranch/storyloom/internal/platform/otel"
	"github.com/louisbranch/storyloom/internal/services/narrative/observability/audit"
	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
	storagesqlite "github.com/louisbranch/storyloom/internal/services/narrative/storage/sqlite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Storage is the full persistence surface the service operates over.
type Storage interface {
	storage.ChunkStore
	storage.ReferenceStore
	storage.EntityFactStore
	storage.StagingStore
	storage.EpisodeStore
	storage.AuditEventStore
}

// EnvConfig holds environment-derived narrative service configuration.
type EnvConfig struct {
	DBPath string `env:"STORYLOOM_NARRATIVE_DB_PATH" envDefault:"narrative.db"`
}

// Service orchestrates ledger, staging, and index operations.
type Service struct {
	store  Storage
	tracer trace.Tracer
	audit  *audit.Emitter
	closer func() error
}

// NewService creates a service over an already-open storage backend. The
// caller keeps ownership of the backend's lifecycle.
func NewService(store Storage) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	return &Service{
		store:  store,
		tracer: otel.Tracer("storyloom/narrative"),
		audit:  audit.NewEmitter(store),
	}, nil
}

// NewServiceFromEnv opens the SQLite store named by the environment, sets up
// env-gated tracing, and wires a service over both. Close flushes spans and
// releases the store.
func NewServiceFromEnv(ctx context.Context) (*Service, error) {
	var cfg EnvConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, err
	}

	shutdownTracing, err := platformotel.Setup(ctx, "narrative")
	if err != nil {
		return nil, err
	}

	store, err := storagesqlite.Open(cfg.DBPath)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}
	svc, err := NewService(store)
	if err != nil {
		_ = store.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}
	svc.closer = func() error {
		storeErr := store.Close()
		if err := shutdownTracing(context.Background()); err != nil && storeErr == nil {
			storeErr = err
		}
		return storeErr
	}
	return svc, nil
}

// Close releases resources the service opened itself. It is a no-op for
// services built over a caller-owned backend.
func (s *Service) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// emitAudit records an operational event. Audit failures are logged and never
// fail the operation they describe.
func (s *Service) emitAudit(ctx context.Context, evt storage.AuditEvent) {
	if err := s.audit.Emit(ctx, evt); err != nil {
		log.Printf("audit emit %s: %v", evt.EventName, err)
	}
}
