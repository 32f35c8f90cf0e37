package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/domain/teamstate"
)

type TeamStateRepository struct {
	mu     sync.RWMutex
	states map[int64][]teamstate.State
	// teams, when set, enforces the foreign-key boundary the database
	// repository gets for free.
	teams *TeamRepository
}

func NewTeamStateRepository(teams *TeamRepository) *TeamStateRepository {
	return &TeamStateRepository{
		states: make(map[int64][]teamstate.State),
		teams:  teams,
	}
}

func (r *TeamStateRepository) AppendBatch(_ context.Context, states []teamstate.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// All-or-nothing, like one transactional statement.
	for _, state := range states {
		if r.teams != nil && !r.teams.has(state.TeamID) {
			return fmt.Errorf("%w: team %d", team.ErrMissing, state.TeamID)
		}
		for _, existing := range r.states[state.TeamID] {
			if existing.Timestamp.Equal(state.Timestamp) {
				return fmt.Errorf("duplicate state for team %d at %s", state.TeamID, state.Timestamp)
			}
		}
	}

	for _, state := range states {
		list := append(r.states[state.TeamID], state)
		sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
		r.states[state.TeamID] = list
	}
	return nil
}

func (r *TeamStateRepository) LatestByTeams(_ context.Context, teamIDs []int64) (map[int64]teamstate.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]teamstate.State, len(teamIDs))
	for _, id := range teamIDs {
		list := r.states[id]
		if len(list) > 0 {
			out[id] = list[len(list)-1]
		}
	}
	return out, nil
}

func (r *TeamStateRepository) ListByTeamsWithin(_ context.Context, teamIDs []int64, from, to time.Time) ([]teamstate.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []teamstate.State
	for _, id := range teamIDs {
		for _, state := range r.states[id] {
			if state.Timestamp.Before(from) || state.Timestamp.After(to) {
				continue
			}
			out = append(out, state)
		}
	}
	return out, nil
}

func (r *TeamStateRepository) ListByTeamAfter(_ context.Context, teamID int64, after time.Time, limit int) ([]teamstate.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []teamstate.State
	for _, state := range r.states[teamID] {
		if !state.Timestamp.After(after) {
			continue
		}
		out = append(out, state)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *TeamStateRepository) MarkArchived(_ context.Context, refs []teamstate.StateRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range refs {
		list := r.states[ref.TeamID]
		for i := range list {
			if list[i].Timestamp.Equal(ref.Timestamp) {
				list[i].Archived = true
			}
		}
	}
	return nil
}

func (r *TeamStateRepository) ListWithin(_ context.Context, from, to time.Time) ([]teamstate.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []teamstate.State
	for _, list := range r.states {
		for _, state := range list {
			if !from.IsZero() && state.Timestamp.Before(from) {
				continue
			}
			if state.Timestamp.After(to) {
				continue
			}
			out = append(out, state)
		}
	}
	return out, nil
}

func (r *TeamStateRepository) DeleteUnarchivedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, list := range r.states {
		kept := list[:0]
		for _, state := range list {
			if !state.Archived && state.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, state)
		}
		r.states[id] = kept
	}
	return deleted, nil
}
