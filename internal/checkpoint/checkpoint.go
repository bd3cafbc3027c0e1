// Package checkpoint persists the working set of an unfinished pipeline run
// so a later invocation can resume where it stopped.
package checkpoint

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/model"
)

// DefaultFileName is the checkpoint file name inside the output directory.
const DefaultFileName = ".pipeline_checkpoint.json"

// Store saves, loads and clears the single checkpoint of a run.
type Store interface {
	Save(cp *model.Checkpoint) error
	Load() (*model.Checkpoint, error)
	Clear() error
	Exists() bool
}

// FileStore keeps the checkpoint as one JSON file. Writes go to a temp file
// in the same directory and are renamed into place, so a crash mid-save
// leaves the previous checkpoint intact.
type FileStore struct {
	path    string
	nowFunc func() time.Time
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, nowFunc: time.Now}
}

// Path returns the checkpoint file location.
func (f *FileStore) Path() string {
	return f.path
}

// Save overwrites the checkpoint with cp and stamps SavedAt.
func (f *FileStore) Save(cp *model.Checkpoint) error {
	if cp == nil {
		return eris.New("checkpoint: nil checkpoint")
	}
	if !cp.Stage.Resumable() {
		return eris.Errorf("checkpoint: stage %q cannot be checkpointed", cp.Stage)
	}
	cp.SavedAt = f.nowFunc().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "checkpoint: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return eris.Wrap(err, "checkpoint: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "checkpoint: write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "checkpoint: sync")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "checkpoint: close temp file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return eris.Wrap(err, "checkpoint: rename")
	}

	zap.L().Debug("checkpoint: saved",
		zap.String("stage", string(cp.Stage)),
		zap.Int("cursor", cp.Cursor),
		zap.Int("listings", len(cp.Listings)),
	)
	return nil
}

// Load returns the saved checkpoint, or nil when none exists. A file that
// cannot be decoded, or that names an unknown stage, is treated as absent.
func (f *FileStore) Load() (*model.Checkpoint, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: read %s", f.path)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		zap.L().Warn("checkpoint: ignoring corrupt checkpoint",
			zap.String("path", f.path),
			zap.Error(err),
		)
		return nil, nil
	}
	if !cp.Stage.Resumable() {
		zap.L().Warn("checkpoint: ignoring checkpoint with unknown stage",
			zap.String("path", f.path),
			zap.String("stage", string(cp.Stage)),
		)
		return nil, nil
	}
	if cp.Cursor < 0 || cp.Cursor > len(cp.Listings) {
		zap.L().Warn("checkpoint: clamping out-of-range cursor",
			zap.Int("cursor", cp.Cursor),
			zap.Int("listings", len(cp.Listings)),
		)
		cp.Cursor = max(0, min(cp.Cursor, len(cp.Listings)))
	}
	return &cp, nil
}

// Clear removes the checkpoint. A missing file is not an error.
func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "checkpoint: remove %s", f.path)
	}
	return nil
}

// Exists reports whether a checkpoint file is present.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}
