package checkpoints

import (
	"context"
	"sync"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/pagination"
)

type memory struct {
	mu  sync.RWMutex
	cps map[string]workflow.Checkpoint
}

// NewMemory returns a process-local store. Nothing survives a restart.
func NewMemory() workflow.CheckpointStore {
	return &memory{cps: make(map[string]workflow.Checkpoint)}
}

func (m *memory) Get(ctx context.Context, threadID string) (workflow.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.cps[threadID]
	if !ok {
		return workflow.Checkpoint{}, workflow.ErrCheckpointNotFound
	}
	cp.State = cp.State.Clone()
	return cp, nil
}

func (m *memory) Put(ctx context.Context, cp workflow.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.State = cp.State.Clone()
	m.cps[cp.ThreadID] = cp
	return nil
}

func (m *memory) Exists(ctx context.Context, threadID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.cps[threadID]
	return ok, nil
}

func (m *memory) List(ctx context.Context, page pagination.PageRequest, filters workflow.Filters) ([]workflow.Checkpoint, int, error) {
	m.mu.RLock()
	all := make([]workflow.Checkpoint, 0, len(m.cps))
	for _, cp := range m.cps {
		all = append(all, cp)
	}
	m.mu.RUnlock()

	cps, total := paginate(all, page, filters)
	for i := range cps {
		cps[i].State = cps[i].State.Clone()
	}
	return cps, total, nil
}
