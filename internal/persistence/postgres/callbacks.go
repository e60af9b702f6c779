package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/jackc/pgx/v5"
)

// CallbackRepository keeps the latest callback per conversation id.
type CallbackRepository struct {
	db *DB
}

func NewCallbackRepository(db *DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

func (r *CallbackRepository) Save(ctx context.Context, cb *domain.Callback) error {
	payload, err := json.Marshal(cb.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	query := `
		INSERT INTO callbacks (conversation_id, id, payload, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id) DO UPDATE
		SET id = EXCLUDED.id, payload = EXCLUDED.payload, received_at = EXCLUDED.received_at
	`
	if _, err := r.db.Pool.Exec(ctx, query, cb.ConversationID, cb.ID, payload, cb.ReceivedAt); err != nil {
		return fmt.Errorf("failed to save callback %s: %w", cb.ConversationID, err)
	}
	return nil
}

func (r *CallbackRepository) FindByConversationID(ctx context.Context, conversationID string) (*domain.Callback, error) {
	query := `SELECT id::text, payload, received_at FROM callbacks WHERE conversation_id = $1`

	cb := &domain.Callback{ConversationID: conversationID}
	var payload []byte
	err := r.db.Pool.QueryRow(ctx, query, conversationID).Scan(&cb.ID, &payload, &cb.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCallbackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find callback %s: %w", conversationID, err)
	}

	if err := json.Unmarshal(payload, &cb.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode callback %s: %w", conversationID, err)
	}
	return cb, nil
}

func (r *CallbackRepository) DeleteReceivedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM callbacks WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge callbacks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
