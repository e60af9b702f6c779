package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// Exit codes for flowctl commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeFlowFailed means the flow ran but the response did not match.
	ExitCodeFlowFailed = 2
	// ExitCodeTimeout means the downstream request never reached the listener.
	ExitCodeTimeout = 3
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.Version = version
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr),
		domain.IsErrorCode(err, domain.ErrCodeValidationFailed),
		domain.IsErrorCode(err, domain.ErrCodeContractViolation):
		return ExitCodeFlowFailed
	case domain.IsErrorCode(err, domain.ErrCodeCorrelationTimeout):
		return ExitCodeTimeout
	}
	return ExitCodeError
}
