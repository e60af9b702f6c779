package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/openapi-testflow/internal/application"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/DanielPopoola/openapi-testflow/internal/interfaces/rest"
	"github.com/oapi-codegen/runtime"
)

const maxCallbackBytes = 1 << 20

// CallbackService is the listener use case served over HTTP.
type CallbackService interface {
	Record(ctx context.Context, payload map[string]any) (*domain.Callback, error)
	Find(ctx context.Context, conversationID string) (*domain.Callback, error)
}

// Handlers serves the listener simulator endpoints.
type Handlers struct {
	callbacks CallbackService
	logger    *slog.Logger
}

func NewHandlers(callbacks CallbackService, logger *slog.Logger) *Handlers {
	return &Handlers{
		callbacks: callbacks,
		logger:    logger,
	}
}

// Register mounts the listener routes on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /callbacks", h.RecordCallback)
	mux.HandleFunc("GET /callbacks/{conversationID}", h.GetCallback)
}

// RecordCallback stores a downstream request posted by the API under test.
func (h *Handlers) RecordCallback(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallbackBytes)).Decode(&payload); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(fmt.Errorf("decode callback body: %w", err)), h.logger)
		return
	}

	cb, err := h.callbacks.Record(r.Context(), payload)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.SuccessResponse{
		Success: true,
		Data:    rest.ToCallbackReceipt(cb),
	}, h.logger)
}

// GetCallback returns the payload recorded for a conversation id as-is.
func (h *Handlers) GetCallback(w http.ResponseWriter, r *http.Request) {
	var conversationID string
	err := runtime.BindStyledParameterWithOptions("simple", "conversationID", r.PathValue("conversationID"), &conversationID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	cb, err := h.callbacks.Find(r.Context(), conversationID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, cb.Payload, h.logger)
}
