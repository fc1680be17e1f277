package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/egannguyen/energystack-storefront/internal/repository"
	"github.com/google/uuid"
)

type eventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore backed by Postgres.
func NewEventStore(db *sql.DB) repository.EventStore {
	return &eventStore{db: db}
}

// appendEvent writes event as the next version of streamID. Callers hold the stream's
// aggregate row lock, so the version read cannot race; the unique (stream_id, version)
// constraint rejects it if it somehow does.
func appendEvent(ctx context.Context, q querier, streamID, streamType string, event entity.Event) error {
	var currentVersion int
	err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM order_events WHERE stream_id = $1", streamID).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current stream version: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO order_events (id, stream_id, stream_type, version, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		uuid.NewString(), streamID, streamType, currentVersion+1, event.EventType(), payload, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.EventType(), err)
	}
	return nil
}

func (s *eventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, stream_id, stream_type, version, event_type, payload, created_at FROM order_events WHERE stream_id = $1 ORDER BY version ASC", streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for stream %s: %w", streamID, err)
	}
	defer rows.Close()

	events := []entity.EventStoreRecord{}
	for rows.Next() {
		var (
			record  entity.EventStoreRecord
			payload []byte
		)
		if err := rows.Scan(&record.ID, &record.StreamID, &record.StreamType, &record.Version, &record.EventType, &payload, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event record: %w", err)
		}
		record.Payload = payload
		events = append(events, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}
