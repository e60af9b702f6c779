// Package correlator matches a downstream callback, as reported by the
// listener, with the request that triggered it.
package correlator

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/config"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

type Sender interface {
	Send(ctx context.Context, spec domain.RequestSpec) (domain.ResponseSpec, error)
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

type Poller struct {
	sender     Sender
	attempts   int
	interval   time.Duration
	matchField string
	wait       WaitFunc
	logger     *slog.Logger
}

type Option func(*Poller)

func WithWait(w WaitFunc) Option {
	return func(p *Poller) {
		p.wait = w
	}
}

func NewPoller(sender Sender, cfg config.CorrelatorConfig, logger *slog.Logger, opts ...Option) *Poller {
	p := &Poller{
		sender:     sender,
		attempts:   cfg.Attempts,
		interval:   cfg.Interval,
		matchField: cfg.MatchField,
		wait:       sleep,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll sends spec until a response's match field equals correlationID. An
// attempt that fails without a response counts as an empty result. The loop
// ends on a match, on ctx cancellation, or after the configured attempts with
// a CorrelationTimeoutError.
func (p *Poller) Poll(ctx context.Context, spec domain.RequestSpec, correlationID string) (domain.ResponseSpec, error) {
	if correlationID == "" {
		return domain.ResponseSpec{}, &domain.FlowError{Code: domain.ErrCodeUsage, Message: "correlation id is empty"}
	}

	var last *domain.ResponseSpec

	for attempt := 0; attempt < p.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return domain.ResponseSpec{}, ctx.Err()
		default:
		}

		resp, err := p.sender.Send(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				return domain.ResponseSpec{}, ctx.Err()
			}
			p.logger.Debug("listener poll failed", "attempt", attempt+1, "error", err)
			resp = domain.ResponseSpec{}
		}
		last = &resp

		if resp.Field(p.matchField) == correlationID {
			p.logger.Debug("correlation found", "correlation_id", correlationID, "attempt", attempt+1)
			return resp, nil
		}

		p.logger.Debug("correlation pending",
			"correlation_id", correlationID,
			"attempt", attempt+1,
			"status", resp.Status,
		)

		if attempt < p.attempts-1 {
			if err := p.wait(ctx, p.interval); err != nil {
				return domain.ResponseSpec{}, err
			}
		}
	}

	return domain.ResponseSpec{}, &domain.CorrelationTimeoutError{
		CorrelationID: correlationID,
		Attempts:      p.attempts,
		LastObserved:  last,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
