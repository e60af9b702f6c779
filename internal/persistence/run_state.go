package persistence

import (
	"context"
	"time"
)

// RunState carries values from one flowctl run to the next.
type RunState struct {
	LastUUID  string    `json:"last_uuid"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStateFile persists RunState between processes.
type RunStateFile struct {
	file *JSONFile
}

func NewRunStateFile(path string) *RunStateFile {
	return &RunStateFile{file: NewJSONFile(path)}
}

// Load returns the saved state, or the zero state when nothing was saved.
func (r *RunStateFile) Load(ctx context.Context) (RunState, error) {
	var state RunState
	if _, err := r.file.Read(ctx, &state); err != nil {
		return RunState{}, err
	}
	return state, nil
}

func (r *RunStateFile) Save(ctx context.Context, state RunState) error {
	return r.file.Write(ctx, state)
}
