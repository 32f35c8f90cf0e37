package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/team"
)

type TeamRepository struct {
	mu      sync.RWMutex
	seq     int64
	byID    map[int64]team.Team
	byKey   map[team.Key]int64
	members map[int64][]team.Member
}

func NewTeamRepository() *TeamRepository {
	return &TeamRepository{
		byID:    make(map[int64]team.Team),
		byKey:   make(map[team.Key]int64),
		members: make(map[int64][]team.Member),
	}
}

// InTx mirrors the transactional merge path: when fn fails, every write it
// made through this repository is rolled back.
func (r *TeamRepository) InTx(_ context.Context, fn func(team.Repository) error) error {
	r.mu.Lock()
	seq := r.seq
	byID := make(map[int64]team.Team, len(r.byID))
	for id, row := range r.byID {
		byID[id] = row
	}
	byKey := make(map[team.Key]int64, len(r.byKey))
	for key, id := range r.byKey {
		byKey[key] = id
	}
	members := make(map[int64][]team.Member, len(r.members))
	for id, rows := range r.members {
		members[id] = append([]team.Member(nil), rows...)
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.seq, r.byID, r.byKey, r.members = seq, byID, byKey, members
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *TeamRepository) GetByKeys(_ context.Context, keys []team.Key) (map[team.Key]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[team.Key]team.Team, len(keys))
	for _, key := range keys {
		if id, ok := r.byKey[key]; ok {
			out[key] = r.byID[id]
		}
	}
	return out, nil
}

func (r *TeamRepository) GetByID(_ context.Context, id int64) (team.Team, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.byID[id]
	return row, ok, nil
}

func (r *TeamRepository) ListByIDs(_ context.Context, ids []int64) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]team.Team, 0, len(ids))
	for _, id := range ids {
		if row, ok := r.byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *TeamRepository) Insert(_ context.Context, teams []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range teams {
		key := teams[i].Key()
		if _, exists := r.byKey[key]; exists {
			return fmt.Errorf("duplicate team key %+v", key)
		}
		r.seq++
		teams[i].ID = r.seq
		r.byID[teams[i].ID] = teams[i]
		r.byKey[key] = teams[i].ID
	}
	return nil
}

// Update mirrors the conditional set-based statement: the merge guards are
// re-checked against the stored row and rows failing them are skipped.
func (r *TeamRepository) Update(_ context.Context, teams []team.Team) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := make([]int64, 0, len(teams))
	for _, candidate := range teams {
		stored, ok := r.byID[candidate.ID]
		if !ok {
			continue
		}
		if !timePtrGte(candidate.LastPlayed, stored.LastPlayed) ||
			!timePtrGte(candidate.Joined, stored.Joined) ||
			!candidate.PrimaryDataUpdated.After(stored.PrimaryDataUpdated) {
			continue
		}
		if candidate.DivisionID == stored.DivisionID && candidate.TotalGames() == stored.TotalGames() {
			continue
		}

		candidate.GlobalRank = stored.GlobalRank
		candidate.RegionRank = stored.RegionRank
		candidate.LeagueRank = stored.LeagueRank
		candidate.PopulationSnapshotID = stored.PopulationSnapshotID
		r.byID[candidate.ID] = candidate
		updated = append(updated, candidate.ID)
	}
	return updated, nil
}

func (r *TeamRepository) MaxLastPlayed(_ context.Context, region ladder.Region, season int) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max *time.Time
	for _, row := range r.byID {
		if row.Region != region || row.Season != season || row.LastPlayed == nil {
			continue
		}
		if max == nil || row.LastPlayed.After(*max) {
			v := *row.LastPlayed
			max = &v
		}
	}
	return max, nil
}

func (r *TeamRepository) ListBySeason(_ context.Context, season int) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []team.Team
	for id := int64(1); id <= r.seq; id++ {
		if row, ok := r.byID[id]; ok && row.Season == season {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *TeamRepository) SetRanks(_ context.Context, teams []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, candidate := range teams {
		stored, ok := r.byID[candidate.ID]
		if !ok {
			continue
		}
		stored.GlobalRank = candidate.GlobalRank
		stored.RegionRank = candidate.RegionRank
		stored.LeagueRank = candidate.LeagueRank
		stored.PopulationSnapshotID = candidate.PopulationSnapshotID
		r.byID[stored.ID] = stored
	}
	return nil
}

func (r *TeamRepository) UpsertMembers(_ context.Context, members []team.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, member := range members {
		if _, ok := r.byID[member.TeamID]; !ok {
			return fmt.Errorf("%w: team %d", team.ErrMissing, member.TeamID)
		}
		existing := r.members[member.TeamID]
		replaced := false
		for i := range existing {
			if existing[i].CharacterID == member.CharacterID && existing[i].Realm == member.Realm {
				existing[i] = member
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, member)
		}
		r.members[member.TeamID] = existing
	}
	return nil
}

func (r *TeamRepository) ListMembersByCharacter(_ context.Context, characterID int64) ([]team.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []team.Member
	for id := int64(1); id <= r.seq; id++ {
		for _, member := range r.members[id] {
			if member.CharacterID == characterID {
				out = append(out, member)
			}
		}
	}
	return out, nil
}

func (r *TeamRepository) ListMembersByTeams(_ context.Context, teamIDs []int64) ([]team.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []team.Member
	for _, id := range teamIDs {
		out = append(out, r.members[id]...)
	}
	return out, nil
}

func (r *TeamRepository) has(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byID[id]
	return ok
}

func timePtrGte(candidate, stored *time.Time) bool {
	if stored == nil {
		return true
	}
	if candidate == nil {
		return false
	}
	return !candidate.Before(*stored)
}
