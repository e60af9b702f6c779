package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/application"
	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/google/uuid"
)

// CallbackService records downstream requests received by the listener and
// serves them back by conversation id.
type CallbackService struct {
	repo       application.CallbackRepository
	matchField string
	clock      clock.Clock
	logger     *slog.Logger
}

func NewCallbackService(repo application.CallbackRepository, matchField string, c clock.Clock, logger *slog.Logger) *CallbackService {
	return &CallbackService{
		repo:       repo,
		matchField: matchField,
		clock:      c,
		logger:     logger,
	}
}

func (s *CallbackService) Record(ctx context.Context, payload map[string]any) (*domain.Callback, error) {
	id, ok := payload[s.matchField].(string)
	if !ok || id == "" {
		return nil, application.NewInvalidInputError(fmt.Errorf("payload has no %s", s.matchField))
	}

	cb := &domain.Callback{
		ID:             uuid.New().String(),
		ConversationID: id,
		Payload:        payload,
		ReceivedAt:     s.clock.Now(),
	}
	if err := s.repo.Save(ctx, cb); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("callback recorded", "callback_id", cb.ID, "conversation_id", id)
	return cb, nil
}

func (s *CallbackService) Find(ctx context.Context, conversationID string) (*domain.Callback, error) {
	cb, err := s.repo.FindByConversationID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrCallbackNotFound) {
			return nil, application.NewNotFoundError("callback for " + conversationID)
		}
		return nil, application.NewInternalError(err)
	}
	return cb, nil
}

// Purge deletes callbacks received longer than retention ago.
func (s *CallbackService) Purge(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-retention)
	n, err := s.repo.DeleteReceivedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return n, nil
}
