package transport

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// Sender is anything that can perform an exchange.
type Sender interface {
	Send(ctx context.Context, spec domain.RequestSpec) (domain.ResponseSpec, error)
}

// RetrySender retries idempotent requests that failed without a response.
// Received responses are returned as-is whatever their status.
type RetrySender struct {
	inner      Sender
	baseDelay  time.Duration
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

func NewRetrySender(inner Sender, cfg config.TransportConfig, logger *slog.Logger) *RetrySender {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetrySender{
		inner:      inner,
		baseDelay:  cfg.RetryBaseDelay,
		maxRetries: maxRetries,
		sleep:      sleepContext,
		logger:     logger,
	}
}

func (r *RetrySender) Send(ctx context.Context, spec domain.RequestSpec) (domain.ResponseSpec, error) {
	if !isIdempotent(spec.Method) {
		return r.inner.Send(ctx, spec)
	}

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.ResponseSpec{}, err
		}

		resp, err := r.inner.Send(ctx, spec)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !domain.IsErrorCode(err, domain.ErrCodeTransportFailure) {
			return domain.ResponseSpec{}, err
		}

		if attempt < r.maxRetries-1 {
			delay := r.backoff(attempt)
			r.logger.Warn("request failed, retrying",
				"method", spec.Method,
				"url", spec.URL,
				"attempt", attempt+1,
				"delay", delay,
				"error", err,
			)
			if err := r.sleep(ctx, delay); err != nil {
				return domain.ResponseSpec{}, err
			}
		}
	}

	return domain.ResponseSpec{}, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// backoff doubles the base delay per attempt and adds up to 100ms of jitter.
func (r *RetrySender) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(100)) * time.Millisecond
	return base + jitter
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
