package ladder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// Region is the upstream game region. Values match the provider's ids.
type Region int16

const (
	RegionUS Region = 1
	RegionEU Region = 2
	RegionKR Region = 3
	RegionCN Region = 5
)

func (r Region) String() string {
	switch r {
	case RegionUS:
		return "US"
	case RegionEU:
		return "EU"
	case RegionKR:
		return "KR"
	case RegionCN:
		return "CN"
	default:
		return "UNKNOWN"
	}
}

func ParseRegion(v string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "US":
		return RegionUS, nil
	case "EU":
		return RegionEU, nil
	case "KR":
		return RegionKR, nil
	case "CN":
		return RegionCN, nil
	default:
		return 0, fmt.Errorf("invalid region %q", v)
	}
}

// QueueType identifies a ladder queue. Values match the provider's ids.
type QueueType int16

const (
	Queue1v1    QueueType = 201
	Queue2v2    QueueType = 202
	Queue3v3    QueueType = 203
	Queue4v4    QueueType = 204
	QueueArchon QueueType = 206
)

// TeamSize is the number of characters on a team in this queue. Archon
// teams have two players acting as one.
func (q QueueType) TeamSize() int {
	switch q {
	case Queue1v1:
		return 1
	case Queue2v2, QueueArchon:
		return 2
	case Queue3v3:
		return 3
	case Queue4v4:
		return 4
	default:
		return 1
	}
}

// TeamType distinguishes arranged from random teams within a queue.
type TeamType int16

const (
	TeamArranged TeamType = iota
	TeamRandom
)

// LeagueType orders leagues from lowest to highest.
type LeagueType int16

const (
	LeagueBronze LeagueType = iota
	LeagueSilver
	LeagueGold
	LeaguePlatinum
	LeagueDiamond
	LeagueMaster
	LeagueGrandmaster
)

func (l LeagueType) String() string {
	switch l {
	case LeagueBronze:
		return "bronze"
	case LeagueSilver:
		return "silver"
	case LeagueGold:
		return "gold"
	case LeaguePlatinum:
		return "platinum"
	case LeagueDiamond:
		return "diamond"
	case LeagueMaster:
		return "master"
	case LeagueGrandmaster:
		return "grandmaster"
	default:
		return "unknown"
	}
}

// TierType is the tier within a league, 1 being highest.
type TierType int16

// Race is the playable race of a ladder character.
type Race int16

const (
	RaceTerran Race = iota + 1
	RaceProtoss
	RaceZerg
	RaceRandom
)

func (r Race) String() string {
	switch r {
	case RaceTerran:
		return "TERRAN"
	case RaceProtoss:
		return "PROTOSS"
	case RaceZerg:
		return "ZERG"
	case RaceRandom:
		return "RANDOM"
	default:
		return "UNKNOWN"
	}
}

// Decision is a participant's match outcome.
type Decision int16

const (
	DecisionWin Decision = iota + 1
	DecisionLoss
	DecisionTie
	DecisionObserver
)

// MemberKey identifies one character within a region.
type MemberKey struct {
	Realm       int16
	CharacterID int64
}

// LegacyID builds the composite identity the upstream assigns to a team:
// member keys sorted by (realm, characterId) joined with '~', each encoded
// as realm.characterId, with the played race appended for 1v1 teams. This
// string is what makes a team recognizable across division shuffles.
func LegacyID(members []MemberKey, race ...Race) string {
	sorted := append([]MemberKey(nil), members...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Realm != sorted[j].Realm {
			return sorted[i].Realm < sorted[j].Realm
		}
		return sorted[i].CharacterID < sorted[j].CharacterID
	})

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, member := range sorted {
		if i > 0 {
			buf.WriteByte('~')
		}
		buf.B = strconv.AppendInt(buf.B, int64(member.Realm), 10)
		buf.WriteByte('.')
		buf.B = strconv.AppendInt(buf.B, member.CharacterID, 10)
	}
	if len(sorted) == 1 && len(race) > 0 {
		buf.WriteByte('.')
		buf.B = strconv.AppendInt(buf.B, int64(race[0]), 10)
	}

	return buf.String()
}
