package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/openladder/laddercore/internal/domain/ladder"
	"github.com/openladder/laddercore/internal/domain/match"
	"github.com/openladder/laddercore/internal/domain/scan"
	"github.com/openladder/laddercore/internal/domain/team"
	"github.com/openladder/laddercore/internal/domain/teamstate"
	"github.com/openladder/laddercore/internal/platform/logging"
)

type MatchResolveConfig struct {
	// Window bounds how far after a match date a team state may sit and
	// still identify the participant.
	Window time.Duration
	// ScanLookback is how far before a match date recorded scan durations
	// are considered when deriving the staleness filter.
	ScanLookback time.Duration
	// Workers bounds the per-match fan-out.
	Workers int
}

type ResolveResult struct {
	Examined   int
	Resolved   int
	Unresolved int
}

// MatchResolveService attributes anonymous match participants to ladder
// teams by temporal proximity of their recorded team states.
type MatchResolveService struct {
	matchRepo match.Repository
	teamRepo  team.Repository
	stateRepo teamstate.Repository
	scanRepo  scan.Repository
	cfg       MatchResolveConfig
	logger    *logging.Logger
}

func NewMatchResolveService(
	matchRepo match.Repository,
	teamRepo team.Repository,
	stateRepo teamstate.Repository,
	scanRepo scan.Repository,
	cfg MatchResolveConfig,
	logger *logging.Logger,
) *MatchResolveService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Minute
	}
	if cfg.ScanLookback <= 0 {
		cfg.ScanLookback = 24 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}

	return &MatchResolveService{
		matchRepo: matchRepo,
		teamRepo:  teamRepo,
		stateRepo: stateRepo,
		scanRepo:  scanRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// RecordMatch stores an observed match and its participants. The match is
// created on the first observed participant event; later observations of
// the same (date, type, mapId, region) attach to the existing row.
func (s *MatchResolveService) RecordMatch(
	ctx context.Context,
	observed match.Match,
	participants []match.Participant,
) (match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchResolveService.RecordMatch")
	defer span.End()

	if observed.Date.IsZero() {
		return match.Match{}, fmt.Errorf("%w: match date is required", ErrInvalidInput)
	}

	stored, err := s.matchRepo.UpsertMatch(ctx, observed)
	if err != nil {
		return match.Match{}, fmt.Errorf("upsert match: %w", err)
	}
	if len(participants) > 0 {
		rows := make([]match.Participant, 0, len(participants))
		for _, p := range participants {
			p.MatchID = stored.ID
			rows = append(rows, p)
		}
		if err := s.matchRepo.UpsertParticipants(ctx, rows); err != nil {
			return match.Match{}, fmt.Errorf("upsert match participants: %w", err)
		}
	}
	return stored, nil
}

// resolveIndex is the per-window scratch index: everything a match worker
// needs, loaded once up front so workers never touch the repositories.
type resolveIndex struct {
	teams               map[int64]team.Team
	teamsByChar         map[ladder.MemberKey][]int64
	statesByTeam        map[int64][]teamstate.State
	participantsByMatch map[int64][]match.Participant
	scanByPartition     map[scanKey]time.Duration
}

type scanKey struct {
	region ladder.Region
	queue  ladder.QueueType
	league ladder.LeagueType
}

// ResolveWindow resolves every still-unresolved participant of matches
// dated within [from, to]. Re-running over the same window is a no-op for
// rows already resolved; attribution never changes once written.
func (s *MatchResolveService) ResolveWindow(ctx context.Context, from, to time.Time) (ResolveResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchResolveService.ResolveWindow")
	defer span.End()

	result := ResolveResult{}
	if !to.After(from) {
		return result, fmt.Errorf("%w: resolve window is empty", ErrInvalidInput)
	}

	rows, err := s.matchRepo.ListUnresolved(ctx, from, to)
	if err != nil {
		return result, fmt.Errorf("list unresolved participants: %w", err)
	}
	result.Examined = len(rows)
	if len(rows) == 0 {
		return result, nil
	}

	index, err := s.buildIndex(ctx, rows, from, to)
	if err != nil {
		return result, err
	}

	byMatch := make(map[int64][]match.ParticipantRow)
	for _, row := range rows {
		byMatch[row.Match.ID] = append(byMatch[row.Match.ID], row)
	}

	var mu sync.Mutex
	var resolved []match.Participant

	workers := pool.New().WithMaxGoroutines(s.cfg.Workers).WithContext(ctx)
	for _, group := range byMatch {
		group := group
		workers.Go(func(ctx context.Context) error {
			found := s.resolveMatch(group, index)
			if len(found) == 0 {
				return nil
			}
			mu.Lock()
			resolved = append(resolved, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return result, fmt.Errorf("resolve matches: %w", err)
	}

	if len(resolved) > 0 {
		written, err := s.matchRepo.Resolve(ctx, resolved)
		if err != nil {
			return result, fmt.Errorf("persist resolved participants: %w", err)
		}
		result.Resolved = int(written)
	}
	result.Unresolved = result.Examined - result.Resolved

	s.logger.InfoContext(ctx, "match resolution window done",
		"from", from.Format(time.RFC3339),
		"to", to.Format(time.RFC3339),
		"examined", result.Examined,
		"resolved", result.Resolved,
		"unresolved", result.Unresolved,
	)
	return result, nil
}

func (s *MatchResolveService) buildIndex(
	ctx context.Context,
	rows []match.ParticipantRow,
	from, to time.Time,
) (*resolveIndex, error) {
	index := &resolveIndex{
		teams:               make(map[int64]team.Team),
		teamsByChar:         make(map[ladder.MemberKey][]int64),
		statesByTeam:        make(map[int64][]teamstate.State),
		participantsByMatch: make(map[int64][]match.Participant),
		scanByPartition:     make(map[scanKey]time.Duration),
	}

	chars := make(map[ladder.MemberKey]struct{})
	for _, row := range rows {
		chars[ladder.MemberKey{Realm: row.Participant.Realm, CharacterID: row.Participant.CharacterID}] = struct{}{}
		if _, loaded := index.participantsByMatch[row.Match.ID]; !loaded {
			participants, err := s.matchRepo.ListParticipants(ctx, row.Match.ID)
			if err != nil {
				return nil, fmt.Errorf("list participants for match %d: %w", row.Match.ID, err)
			}
			index.participantsByMatch[row.Match.ID] = participants
		}
	}

	teamIDSet := make(map[int64]struct{})
	for key := range chars {
		memberships, err := s.teamRepo.ListMembersByCharacter(ctx, key.CharacterID)
		if err != nil {
			return nil, fmt.Errorf("list memberships for character %d: %w", key.CharacterID, err)
		}
		for _, member := range memberships {
			if member.Realm != key.Realm {
				continue
			}
			index.teamsByChar[key] = append(index.teamsByChar[key], member.TeamID)
			teamIDSet[member.TeamID] = struct{}{}
		}
	}
	if len(teamIDSet) == 0 {
		return index, nil
	}

	teamIDs := make([]int64, 0, len(teamIDSet))
	for id := range teamIDSet {
		teamIDs = append(teamIDs, id)
	}
	sort.Slice(teamIDs, func(i, j int) bool { return teamIDs[i] < teamIDs[j] })

	teams, err := s.teamRepo.ListByIDs(ctx, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("load candidate teams: %w", err)
	}
	for _, row := range teams {
		index.teams[row.ID] = row
	}

	// States one window before the earliest match date are included so a
	// resolved state still has its predecessor for the rating delta.
	states, err := s.stateRepo.ListByTeamsWithin(ctx, teamIDs, from.Add(-s.cfg.Window), to.Add(s.cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("load candidate team states: %w", err)
	}
	for _, state := range states {
		index.statesByTeam[state.TeamID] = append(index.statesByTeam[state.TeamID], state)
	}
	for id := range index.statesByTeam {
		list := index.statesByTeam[id]
		sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
		index.statesByTeam[id] = list
	}

	partitions := make(map[scanKey]struct{})
	for _, row := range teams {
		partitions[scanKey{region: row.Region, queue: row.QueueType, league: row.LeagueType}] = struct{}{}
	}
	for key := range partitions {
		duration, err := s.scanRepo.MaxDurationWithin(ctx, key.region, key.queue, key.league, from.Add(-s.cfg.ScanLookback), to)
		if err != nil {
			return nil, fmt.Errorf("load scan durations region=%s queue=%d: %w", key.region, key.queue, err)
		}
		index.scanByPartition[key] = duration
	}

	return index, nil
}

func (s *MatchResolveService) resolveMatch(rows []match.ParticipantRow, index *resolveIndex) []match.Participant {
	var out []match.Participant
	for _, row := range rows {
		if row.Participant.Resolved() || row.Participant.Decision == ladder.DecisionObserver {
			continue
		}
		if resolved, ok := s.resolveParticipant(row, index); ok {
			out = append(out, resolved)
		}
	}
	return out
}

func (s *MatchResolveService) resolveParticipant(row match.ParticipantRow, index *resolveIndex) (match.Participant, bool) {
	m := row.Match
	p := row.Participant
	charKey := ladder.MemberKey{Realm: p.Realm, CharacterID: p.CharacterID}
	queue := m.Type.QueueType()
	sideKeys := sameDecisionKeys(index.participantsByMatch[m.ID], p.Decision)

	type candidate struct {
		teamID   int64
		state    teamstate.State
		previous *teamstate.State
		distance time.Duration
	}
	var best *candidate

	for _, teamID := range index.teamsByChar[charKey] {
		candidateTeam, ok := index.teams[teamID]
		if !ok || candidateTeam.QueueType != queue || candidateTeam.Region != m.Region {
			continue
		}
		if !consistentIdentity(candidateTeam, sideKeys) {
			continue
		}

		staleBound := s.cfg.Window
		if maxScan := index.scanByPartition[scanKey{
			region: candidateTeam.Region,
			queue:  candidateTeam.QueueType,
			league: candidateTeam.LeagueType,
		}]; maxScan > 0 && 2*maxScan < staleBound {
			staleBound = 2 * maxScan
		}

		states := index.statesByTeam[teamID]
		for i := range states {
			state := states[i]
			offset := state.Timestamp.Sub(m.Date)
			if offset < 0 || offset > staleBound {
				continue
			}
			c := candidate{teamID: teamID, state: state, distance: offset}
			if i > 0 {
				c.previous = &states[i-1]
			}
			if best == nil ||
				c.distance < best.distance ||
				(c.distance == best.distance && c.teamID < best.teamID) {
				chosen := c
				best = &chosen
			}
		}
	}

	if best == nil {
		return match.Participant{}, false
	}

	resolved := p
	teamID := best.teamID
	timestamp := best.state.Timestamp
	resolved.TeamID = &teamID
	resolved.TeamStateTimestamp = &timestamp
	if best.previous != nil {
		change := best.state.Rating - best.previous.Rating
		resolved.RatingChange = &change
	}
	return resolved, true
}

func sameDecisionKeys(participants []match.Participant, decision ladder.Decision) []ladder.MemberKey {
	keys := make([]ladder.MemberKey, 0, len(participants))
	for _, p := range participants {
		if p.Decision != decision {
			continue
		}
		keys = append(keys, ladder.MemberKey{Realm: p.Realm, CharacterID: p.CharacterID})
	}
	return keys
}

// consistentIdentity requires that the participant's side of the match
// reproduces the candidate team's legacy composite id. Disambiguates
// concurrently active teams sharing a character. Applies only to
// multi-member queues; 1v1 legacy ids embed the played race, which match
// participants do not carry.
func consistentIdentity(candidateTeam team.Team, sideKeys []ladder.MemberKey) bool {
	size := candidateTeam.QueueType.TeamSize()
	if size <= 1 {
		return true
	}
	if len(sideKeys) != size {
		return false
	}
	return ladder.LegacyID(sideKeys) == candidateTeam.LegacyID
}
