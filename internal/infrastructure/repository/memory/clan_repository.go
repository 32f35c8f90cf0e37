package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openladder/laddercore/internal/domain/clan"
)

type ClanRepository struct {
	mu     sync.RWMutex
	events map[int64][]clan.Event
}

func NewClanRepository() *ClanRepository {
	return &ClanRepository{events: make(map[int64][]clan.Event)}
}

func (r *ClanRepository) LastEvents(_ context.Context, characterIDs []int64) (map[int64]clan.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]clan.Event, len(characterIDs))
	for _, id := range characterIDs {
		list := r.events[id]
		if len(list) > 0 {
			out[id] = list[len(list)-1]
		}
	}
	return out, nil
}

func (r *ClanRepository) Append(_ context.Context, events []clan.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range events {
		list := append(r.events[event.CharacterID], event)
		sort.Slice(list, func(i, j int) bool { return list[i].Created.Before(list[j].Created) })
		r.events[event.CharacterID] = list
	}
	return nil
}

func (r *ClanRepository) ListByCharacterAfter(_ context.Context, characterID int64, after time.Time, limit int) ([]clan.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []clan.Event
	for _, event := range r.events[characterID] {
		if !event.Created.After(after) {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
