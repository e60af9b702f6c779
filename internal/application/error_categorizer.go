package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case errors.Is(err, domain.ErrCallbackNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if flowErr, ok := domain.IsFlowError(err); ok {
		switch flowErr.Code {
		case domain.ErrCodeUsage, domain.ErrCodeInvalidFixture, domain.ErrCodeMissingTestData:
			return http.StatusBadRequest
		case domain.ErrCodePersistenceReadMiss:
			return http.StatusNotFound
		case domain.ErrCodeTransportFailure:
			return http.StatusBadGateway
		}
	}

	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}
	if errors.Is(err, domain.ErrCallbackNotFound) {
		return "CALLBACK_NOT_FOUND"
	}
	if flowErr, ok := domain.IsFlowError(err); ok {
		return flowErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	return ErrCodeInternal
}
