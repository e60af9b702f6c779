package persistence

import (
	"context"
	"log/slog"
	"sort"

	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

const (
	syncSuffix  = " sync"
	asyncSuffix = " async"
)

// Backend persists named flow records.
type Backend interface {
	Put(ctx context.Context, entry string, rec domain.FlowRecord) error
	Get(ctx context.Context, entry string) (domain.FlowRecord, bool, error)
	List(ctx context.Context) (map[string]domain.FlowRecord, error)
}

// EntryName is the key a flow is stored under.
func EntryName(name string, async bool) string {
	if async {
		return name + asyncSuffix
	}
	return name + syncSuffix
}

// Store keeps named flows for reuse by later scenarios.
type Store struct {
	backend Backend
	clock   clock.Clock
	logger  *slog.Logger
}

func NewStore(backend Backend, c clock.Clock, logger *slog.Logger) *Store {
	return &Store{backend: backend, clock: c, logger: logger}
}

// Save stores snap under name, suffixed by whether it is an async flow.
func (s *Store) Save(ctx context.Context, name string, snap domain.Snapshot) error {
	rec := snap.Record(s.clock.Now())
	entry := EntryName(name, rec.IsAsync())
	if err := s.backend.Put(ctx, entry, rec); err != nil {
		return err
	}
	s.logger.Info("flow stored", "entry", entry, "scenario", rec.Scenario)
	return nil
}

// ReadField reads fields of a stored flow. Request fields come from the sync
// entry when there is one, otherwise from the async entry.
func (s *Store) ReadField(ctx context.Context, section string, keyMap map[string]string, name string) (map[string]any, error) {
	var entries []string
	switch section {
	case domain.SectionRequest:
		entries = []string{EntryName(name, false), EntryName(name, true)}
	case domain.SectionSyncResponse:
		entries = []string{EntryName(name, false)}
	case domain.SectionAsyncResponse, domain.SectionAsyncOpenAPIRequest:
		entries = []string{EntryName(name, true)}
	default:
		return nil, &domain.FlowError{Code: domain.ErrCodeUsage, Message: "unknown section " + section}
	}

	for _, entry := range entries {
		rec, ok, err := s.backend.Get(ctx, entry)
		if err != nil {
			return nil, err
		}
		if ok {
			return pick(rec, "store entry "+entry, section, keyMap)
		}
	}
	return nil, domain.NewPersistenceReadMissError("store", section, name)
}

// Entries returns all stored entries, sorted by name.
func (s *Store) Entries(ctx context.Context) ([]string, map[string]domain.FlowRecord, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, all, nil
}

// FileBackend keeps all entries in one JSON object keyed by entry name.
type FileBackend struct {
	file *JSONFile
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{file: NewJSONFile(path)}
}

func (b *FileBackend) Put(ctx context.Context, entry string, rec domain.FlowRecord) error {
	records := map[string]domain.FlowRecord{}
	return b.file.Update(ctx, &records, func(bool) error {
		records[entry] = rec
		return nil
	})
}

func (b *FileBackend) Get(ctx context.Context, entry string) (domain.FlowRecord, bool, error) {
	records, err := b.List(ctx)
	if err != nil {
		return domain.FlowRecord{}, false, err
	}
	rec, ok := records[entry]
	return rec, ok, nil
}

func (b *FileBackend) List(ctx context.Context) (map[string]domain.FlowRecord, error) {
	records := map[string]domain.FlowRecord{}
	if _, err := b.file.Read(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
