package checkpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/fileutil"
	"github.com/JaimeStill/folio/pkg/mirror"
	"github.com/JaimeStill/folio/pkg/pagination"
)

type file struct {
	dir    string
	mirror *mirror.Mirror
	logger *slog.Logger
}

// NewFile returns a store keeping one JSON document per thread under dir.
// When m is enabled the directory is pulled from the replica first and
// pushed after every Put. A nil mirror keeps the store local-only.
func NewFile(ctx context.Context, dir string, m *mirror.Mirror, logger *slog.Logger) (workflow.CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	if m != nil {
		if err := m.Pull(ctx); err != nil {
			return nil, fmt.Errorf("pull checkpoints: %w", err)
		}
	}

	return &file{
		dir:    dir,
		mirror: m,
		logger: logger.With("system", "checkpoints", "backend", BackendFile),
	}, nil
}

func (f *file) path(threadID string) (string, error) {
	if !workflow.ValidThreadID(threadID) {
		return "", fmt.Errorf("%w: %q", workflow.ErrInvalidThreadID, threadID)
	}
	return filepath.Join(f.dir, threadID+".json"), nil
}

func (f *file) Get(ctx context.Context, threadID string) (workflow.Checkpoint, error) {
	p, err := f.path(threadID)
	if err != nil {
		return workflow.Checkpoint{}, err
	}
	return readCheckpoint(p)
}

func (f *file) Put(ctx context.Context, cp workflow.Checkpoint) error {
	p, err := f.path(cp.ThreadID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if err := fileutil.WriteFileAtomic(p, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", cp.ThreadID, err)
	}

	if f.mirror != nil {
		if err := f.mirror.Push(ctx); err != nil {
			f.logger.Warn("checkpoint replica push failed", "thread_id", cp.ThreadID, "error", err)
		}
	}

	return nil
}

func (f *file) Exists(ctx context.Context, threadID string) (bool, error) {
	p, err := f.path(threadID)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (f *file) List(ctx context.Context, page pagination.PageRequest, filters workflow.Filters) ([]workflow.Checkpoint, int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read checkpoint dir: %w", err)
	}

	all := make([]workflow.Checkpoint, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || fileutil.IsTemp(name) || !strings.HasSuffix(name, ".json") {
			continue
		}

		cp, err := readCheckpoint(filepath.Join(f.dir, name))
		if err != nil {
			f.logger.Warn("skipping unreadable checkpoint", "file", name, "error", err)
			continue
		}
		all = append(all, cp)
	}

	cps, total := paginate(all, page, filters)
	return cps, total, nil
}

func readCheckpoint(path string) (workflow.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return workflow.Checkpoint{}, workflow.ErrCheckpointNotFound
		}
		return workflow.Checkpoint{}, err
	}

	var cp workflow.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", filepath.Base(path), err)
	}
	return cp, nil
}
