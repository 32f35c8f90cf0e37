package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/match"
)

type matchKey struct {
	date   time.Time
	kind   match.Type
	mapID  int64
	region ladder.Region
}

type MatchRepository struct {
	mu           sync.RWMutex
	seq          int64
	matches      map[int64]match.Match
	byKey        map[matchKey]int64
	participants map[int64][]match.Participant
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{
		matches:      make(map[int64]match.Match),
		byKey:        make(map[matchKey]int64),
		participants: make(map[int64][]match.Participant),
	}
}

func (r *MatchRepository) UpsertMatch(_ context.Context, m match.Match) (match.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := matchKey{date: m.Date.UTC(), kind: m.Type, mapID: m.MapID, region: m.Region}
	if id, ok := r.byKey[key]; ok {
		return r.matches[id], nil
	}

	r.seq++
	m.ID = r.seq
	r.matches[m.ID] = m
	r.byKey[key] = m.ID
	return m, nil
}

func (r *MatchRepository) UpsertParticipants(_ context.Context, participants []match.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range participants {
		existing := r.participants[p.MatchID]
		found := false
		for i := range existing {
			if existing[i].CharacterID == p.CharacterID {
				// (matchId, characterId) is the natural key; resolved
				// attribution is never overwritten by a re-observation.
				if !existing[i].Resolved() {
					existing[i].Decision = p.Decision
					existing[i].Realm = p.Realm
				}
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, p)
		}
		r.participants[p.MatchID] = existing
	}
	return nil
}

func (r *MatchRepository) ListUnresolved(_ context.Context, from, to time.Time) ([]match.ParticipantRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []match.ParticipantRow
	ids := make([]int64, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		m := r.matches[id]
		if m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		for _, p := range r.participants[id] {
			if p.Resolved() {
				continue
			}
			out = append(out, match.ParticipantRow{Match: m, Participant: p})
		}
	}
	return out, nil
}

func (r *MatchRepository) ListParticipants(_ context.Context, matchID int64) ([]match.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Participant, 0, len(r.participants[matchID]))
	out = append(out, r.participants[matchID]...)
	return out, nil
}

func (r *MatchRepository) Resolve(_ context.Context, resolved []match.Participant) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var written int64
	for _, p := range resolved {
		list := r.participants[p.MatchID]
		for i := range list {
			if list[i].CharacterID != p.CharacterID || list[i].Resolved() {
				continue
			}
			list[i].TeamID = p.TeamID
			list[i].TeamStateTimestamp = p.TeamStateTimestamp
			list[i].RatingChange = p.RatingChange
			written++
		}
		r.participants[p.MatchID] = list
	}
	return written, nil
}
