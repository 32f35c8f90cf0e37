package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/openladder/laddercore/internal/domain/cycle"
	"github.com/openladder/laddercore/internal/domain/ladder"
)

type checkpointKey struct {
	region ladder.Region
	season int
}

type CycleRepository struct {
	mu    sync.RWMutex
	items map[checkpointKey]cycle.Checkpoint
}

func NewCycleRepository() *CycleRepository {
	return &CycleRepository{items: make(map[checkpointKey]cycle.Checkpoint)}
}

func (r *CycleRepository) Get(_ context.Context, region ladder.Region, season int) (cycle.Checkpoint, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checkpoint, ok := r.items[checkpointKey{region: region, season: season}]
	return checkpoint, ok, nil
}

func (r *CycleRepository) Insert(_ context.Context, checkpoint cycle.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := checkpointKey{region: checkpoint.Region, season: checkpoint.Season}
	if _, exists := r.items[key]; exists {
		return fmt.Errorf("checkpoint %s/%d already exists", checkpoint.Region, checkpoint.Season)
	}
	r.items[key] = checkpoint
	return nil
}

func (r *CycleRepository) CompareAndSwap(_ context.Context, checkpoint cycle.Checkpoint, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := checkpointKey{region: checkpoint.Region, season: checkpoint.Season}
	stored, ok := r.items[key]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}

	checkpoint.Version = expectedVersion + 1
	r.items[key] = checkpoint
	return true, nil
}
