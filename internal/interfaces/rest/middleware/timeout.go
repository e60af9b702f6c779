package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/interfaces/rest"
)

// Timeout bounds each listener request and answers 503 with the listener's
// error envelope once the budget is spent.
func Timeout(timeout time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	body, _ := json.Marshal(rest.ErrorResponse{
		Error: rest.ErrorDetail{Code: "TIMEOUT", Message: "callback request timed out after " + timeout.String()},
	})

	return func(next http.Handler) http.Handler {
		h := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			h.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.Warn("callback request timed out",
					"method", r.Method,
					"path", r.URL.Path,
					"conversation_id", conversationID(r),
					"timeout", timeout,
				)
			}
		})
	}
}
