package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// JSONFile is a JSON document shared between processes. Reads hold a shared
// lock, updates hold an exclusive lock for the whole read-modify-write and
// commit through a temp file and rename.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (f *JSONFile) Path() string {
	return f.path
}

func (f *JSONFile) lock() *flock.Flock {
	return flock.New(f.path + ".lock")
}

// Read decodes the file into v. It reports false, without error, when the
// file does not exist.
func (f *JSONFile) Read(ctx context.Context, v any) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", f.path, err)
	}
	lock := f.lock()
	if _, err := lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return false, fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer lock.Unlock()

	return f.decode(v)
}

// Update runs fn with the current contents decoded into v, then writes v back
// atomically. v is left zero when the file does not exist yet.
func (f *JSONFile) Update(ctx context.Context, v any, fn func(exists bool) error) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.path, err)
	}
	lock := f.lock()
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer lock.Unlock()

	exists, err := f.decode(v)
	if err != nil {
		return err
	}
	if err := fn(exists); err != nil {
		return err
	}
	return f.write(v)
}

// Write replaces the file with v under the exclusive lock without decoding
// what was there before.
func (f *JSONFile) Write(ctx context.Context, v any) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.path, err)
	}
	lock := f.lock()
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer lock.Unlock()

	return f.write(v)
}

// Remove deletes the file. A missing file is not an error.
func (f *JSONFile) Remove(ctx context.Context) error {
	if _, err := os.Stat(filepath.Dir(f.path)); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	lock := f.lock()
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer lock.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}

func (f *JSONFile) decode(v any) (bool, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return true, nil
}

func (f *JSONFile) write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", f.path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}
