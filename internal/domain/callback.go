package domain

import (
	"errors"
	"time"
)

var ErrCallbackNotFound = errors.New("callback not found")

// Callback is a downstream request received by the listener.
type Callback struct {
	ID             string
	ConversationID string
	Payload        map[string]any
	ReceivedAt     time.Time
}
