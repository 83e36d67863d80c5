package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/storyloom/internal/services/narrative/storage"
)

// AppendAuditEvent records one operational observation. Attributes are
// serialized to JSON at write time when the caller did not already do so.
func (s *Store) AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if evt.EventName == "" {
		return fmt.Errorf("audit event name is required")
	}

	attributesJSON := evt.AttributesJSON
	if attributesJSON == nil && len(evt.Attributes) > 0 {
		data, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("marshal audit attributes: %w", err)
		}
		attributesJSON = data
	}

	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO audit_events (timestamp, event_name, severity, chunk_id, attempt_id, trace_id, span_id, attributes_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(ts), evt.EventName, evt.Severity, evt.ChunkID, evt.AttemptID, evt.TraceID, evt.SpanID, attributesJSON,
	); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the most recent events, newest first.
func (s *Store) ListAuditEvents(ctx context.Context, limit int) ([]storage.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT timestamp, event_name, severity, chunk_id, attempt_id, trace_id, span_id, attributes_json
		 FROM audit_events ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []storage.AuditEvent
	for rows.Next() {
		var evt storage.AuditEvent
		var tsMillis int64
		var chunkID, attemptID, traceID, spanID *string
		if err := rows.Scan(&tsMillis, &evt.EventName, &evt.Severity, &chunkID, &attemptID, &traceID, &spanID, &evt.AttributesJSON); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.Timestamp = fromMillis(tsMillis)
		if chunkID != nil {
			evt.ChunkID = *chunkID
		}
		if attemptID != nil {
			evt.AttemptID = *attemptID
		}
		if traceID != nil {
			evt.TraceID = *traceID
		}
		if spanID != nil {
			evt.SpanID = *spanID
		}
		if len(evt.AttributesJSON) > 0 {
			if err := json.Unmarshal(evt.AttributesJSON, &evt.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal audit attributes: %w", err)
			}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

var _ storage.AuditEventStore = (*Store)(nil)
