package store

import (
	"context"
	"fmt"

	"renthub/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// insertOutbox enqueues a notification event inside the caller's transaction.
func insertOutbox(ctx context.Context, tx *sqlx.Tx, event *models.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO outbox_events (id, event_type, payload) VALUES ($1, $2, $3)",
		event.ID, event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}

// FetchUnpublishedEvents returns the oldest pending outbox events.
func (s *Store) FetchUnpublishedEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM outbox_events
		WHERE published = FALSE
		ORDER BY created_at
		LIMIT $1`, limit)
	return events, err
}

// MarkEventPublished flags an outbox event as handed to the broker.
func (s *Store) MarkEventPublished(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET published = TRUE WHERE id = $1", id)
	return err
}

// IsEventProcessed checks if a notification event has already been handled.
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records a handled notification event.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
