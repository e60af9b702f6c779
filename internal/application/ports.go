package application

import (
	"context"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// FlowBuilder turns fixtures into concrete requests and expectations.
type FlowBuilder interface {
	BuildSync(ctx context.Context, flowType, application, sideEffect string) (domain.RequestSpec, domain.ResponseSpec, error)
	BuildAsync(ctx context.Context, flowType, application, sideEffect string) (domain.RequestSpec, domain.ResponseSpec, *domain.ResponseSpec, error)
	ListenerRequest(correlationID string) (domain.RequestSpec, error)
}

// Sender is the port for outbound HTTP.
type Sender interface {
	Send(ctx context.Context, spec domain.RequestSpec) (domain.ResponseSpec, error)
}

type Correlator interface {
	Poll(ctx context.Context, spec domain.RequestSpec, correlationID string) (domain.ResponseSpec, error)
}

type ResponseValidator interface {
	Validate(actual, expected domain.ResponseSpec, strict bool) error
}

// ContractChecker validates an exchange against an API description.
type ContractChecker interface {
	Check(ctx context.Context, req domain.RequestSpec, resp domain.ResponseSpec) error
}

type FlowCache interface {
	Save(ctx context.Context, snap domain.Snapshot) error
}

type FlowStore interface {
	Save(ctx context.Context, name string, snap domain.Snapshot) error
}

// Reporter receives human readable progress and diagnostics. Fail records a
// failed step and returns the error the step should end with.
type Reporter interface {
	Report(message string)
	Fail(message string) error
}

// CallbackRepository is the port for listener persistence.
type CallbackRepository interface {
	Save(ctx context.Context, cb *domain.Callback) error
	FindByConversationID(ctx context.Context, conversationID string) (*domain.Callback, error)
	DeleteReceivedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
