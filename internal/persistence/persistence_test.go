package persistence

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func syncSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Request: domain.RequestSpec{
			Method:  "POST",
			URL:     "https://openapi.example.com/customers",
			Headers: map[string]string{"Authorization": "Bearer tok"},
			Data:    map[string]any{"input_Amount": "10", "input_ThirdPartyConversationID": "tp-1"},
		},
		Response: domain.ResponseSpec{
			Status: 201,
			Data:   map[string]any{"output_ResponseCode": "INS-0", "output_TransactionID": "tx-1"},
		},
		Feature:         "customers",
		Scenario:        "create customer",
		TestEnvironment: "sandbox",
		TestMarket:      "vodacomTZN",
	}
}

func asyncSnapshot() domain.Snapshot {
	snap := syncSnapshot()
	snap.Request.Data = map[string]any{"input_Amount": "20"}
	snap.DownstreamRequest = &domain.ResponseSpec{
		Status: 200,
		Data:   map[string]any{"input_OriginalConversationID": "conv-1", "input_ResultCode": "0"},
	}
	return snap
}

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "output", "store.json")
	return NewStore(NewFileBackend(path), clock.NewMock(storedAt), discardLogger()), path
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStore(t)

	require.NoError(t, store.Save(ctx, "customer", syncSnapshot()))

	got, err := store.ReadField(ctx, domain.SectionSyncResponse, map[string]string{"txID": "output_TransactionID"}, "customer")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"txID": "tx-1"}, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Contains(t, onDisk, "customer sync")
	entry := onDisk["customer sync"]
	assert.Equal(t, "create customer", entry["scenario"])
	assert.Equal(t, "sandbox", entry["testEnvironment"])
	assert.Contains(t, entry, "syncResponse")
	assert.NotContains(t, entry, "asyncResponse")
	assert.Contains(t, string(raw), "\n  \"customer sync\"")
}

func TestStore_AsyncEntries(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStore(t)

	require.NoError(t, store.Save(ctx, "payment", asyncSnapshot()))

	got, err := store.ReadField(ctx, domain.SectionAsyncOpenAPIRequest, map[string]string{"result": "input_ResultCode"}, "payment")
	require.NoError(t, err)
	assert.Equal(t, "0", got["result"])

	got, err = store.ReadField(ctx, domain.SectionAsyncResponse, map[string]string{"code": "output_ResponseCode"}, "payment")
	require.NoError(t, err)
	assert.Equal(t, "INS-0", got["code"])

	_, err = store.ReadField(ctx, domain.SectionSyncResponse, map[string]string{"code": "output_ResponseCode"}, "payment")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodePersistenceReadMiss))
}

func TestStore_RequestPrefersSyncEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStore(t)

	require.NoError(t, store.Save(ctx, "both", asyncSnapshot()))
	got, err := store.ReadField(ctx, domain.SectionRequest, map[string]string{"amount": "input_Amount"}, "both")
	require.NoError(t, err)
	assert.Equal(t, "20", got["amount"])

	require.NoError(t, store.Save(ctx, "both", syncSnapshot()))
	got, err = store.ReadField(ctx, domain.SectionRequest, map[string]string{"amount": "input_Amount"}, "both")
	require.NoError(t, err)
	assert.Equal(t, "10", got["amount"])

	names, _, err := store.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"both async", "both sync"}, names)
}

func TestStore_ReadMisses(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStore(t)

	_, err := store.ReadField(ctx, domain.SectionSyncResponse, map[string]string{"x": "x"}, "nothing")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodePersistenceReadMiss))

	require.NoError(t, store.Save(ctx, "customer", syncSnapshot()))
	_, err = store.ReadField(ctx, domain.SectionSyncResponse, map[string]string{"x": "output_Missing"}, "customer")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodePersistenceReadMiss))

	_, err = store.ReadField(ctx, "bogus", map[string]string{"x": "x"}, "customer")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUsage))
}

func TestStore_ConcurrentWritersKeepEveryEntry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewStore(NewFileBackend(path), clock.Real{}, discardLogger())
			assert.NoError(t, s.Save(ctx, string(rune('a'+i)), syncSnapshot()))
		}(i)
	}
	wg.Wait()

	names, _, err := NewStore(NewFileBackend(path), clock.Real{}, discardLogger()).Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 8)
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	cache := NewCache(path, clock.NewMock(storedAt), discardLogger())

	_, err := cache.ReadField(ctx, domain.SectionRequest, map[string]string{"a": "input_Amount"})
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodePersistenceReadMiss))

	require.NoError(t, cache.Save(ctx, syncSnapshot()))
	require.NoError(t, cache.Save(ctx, asyncSnapshot()))

	rec, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsAsync())
	assert.Nil(t, rec.SyncResponse)
	assert.True(t, storedAt.Equal(rec.StoredAt))

	got, err := cache.ReadField(ctx, domain.SectionRequest, map[string]string{"a": "input_Amount"})
	require.NoError(t, err)
	assert.Equal(t, "20", got["a"])

	require.NoError(t, cache.Delete(ctx))
	assert.NoFileExists(t, path)
	require.NoError(t, cache.Delete(ctx))
}

func TestCache_SaveOverwritesUnreadableFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`["left over", {not json`), 0o644))

	cache := NewCache(path, clock.NewMock(storedAt), discardLogger())
	require.NoError(t, cache.Save(ctx, syncSnapshot()))

	rec, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "create customer", rec.Scenario)
}

func TestRunStateFile(t *testing.T) {
	ctx := context.Background()
	state := NewRunStateFile(filepath.Join(t.TempDir(), "output", "run-state.json"))

	empty, err := state.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.LastUUID)

	require.NoError(t, state.Save(ctx, RunState{LastUUID: "u-1", UpdatedAt: storedAt}))
	got, err := state.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.LastUUID)
	assert.True(t, storedAt.Equal(got.UpdatedAt))
}

func TestJSONFile_UpdatePreservesOnFnError(t *testing.T) {
	ctx := context.Background()
	f := NewJSONFile(filepath.Join(t.TempDir(), "doc.json"))

	doc := map[string]string{}
	require.NoError(t, f.Update(ctx, &doc, func(exists bool) error {
		assert.False(t, exists)
		doc["a"] = "1"
		return nil
	}))

	doc = map[string]string{}
	err := f.Update(ctx, &doc, func(exists bool) error {
		assert.True(t, exists)
		doc["a"] = "2"
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var after map[string]string
	found, err := f.Read(ctx, &after)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", after["a"])
}
