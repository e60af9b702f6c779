package rest

import (
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// CallbackReceipt acknowledges a recorded downstream request.
type CallbackReceipt struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

func ToCallbackReceipt(cb *domain.Callback) CallbackReceipt {
	return CallbackReceipt{
		ID:             cb.ID,
		ConversationID: cb.ConversationID,
		ReceivedAt:     cb.ReceivedAt,
	}
}
