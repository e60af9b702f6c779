package transport

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

var recordHeader = []string{
	"Scenario",
	"Open API Response Code",
	"Open API Response Description",
	"Transaction ID",
	"Request Data JSON",
}

// Recorder appends one CSV row per exchange. Failures are logged and never
// returned.
type Recorder struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

func NewRecorder(path string, logger *slog.Logger) *Recorder {
	return &Recorder{path: path, logger: logger}
}

func (r *Recorder) Record(scenario string, req domain.RequestSpec, resp domain.ResponseSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.append(scenario, req, resp); err != nil {
		r.logger.Warn("failed to record transaction", "path", r.path, "error", err)
	}
}

func (r *Recorder) append(scenario string, req domain.RequestSpec, resp domain.ResponseSpec) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	data, err := json.Marshal(req.Data)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(recordHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		scenario,
		resp.Field("output_ResponseCode"),
		resp.Field("output_ResponseDesc"),
		resp.Field("output_TransactionID"),
		string(data),
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
