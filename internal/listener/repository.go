// Package listener holds the callback storage of the listener simulator.
package listener

import (
	"context"
	"sync"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// MemoryRepository keeps the latest callback per conversation id.
type MemoryRepository struct {
	mu        sync.RWMutex
	callbacks map[string]*domain.Callback
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{callbacks: make(map[string]*domain.Callback)}
}

func (r *MemoryRepository) Save(_ context.Context, cb *domain.Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[cb.ConversationID] = cb
	return nil
}

func (r *MemoryRepository) FindByConversationID(_ context.Context, conversationID string) (*domain.Callback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.callbacks[conversationID]
	if !ok {
		return nil, domain.ErrCallbackNotFound
	}
	return cb, nil
}

func (r *MemoryRepository) DeleteReceivedBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, cb := range r.callbacks {
		if cb.ReceivedAt.Before(cutoff) {
			delete(r.callbacks, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}
