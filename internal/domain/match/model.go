package match

import (
	"time"

	"github.com/openladder/laddercore/internal/domain/ladder"
)

type Type int16

const (
	Type1v1 Type = iota + 1
	Type2v2
	Type3v3
	Type4v4
	TypeArchon
	TypeCustom
)

// QueueType maps a match type onto the ladder queue its participants
// played in, which is where candidate team states come from.
func (t Type) QueueType() ladder.QueueType {
	switch t {
	case Type1v1:
		return ladder.Queue1v1
	case Type2v2:
		return ladder.Queue2v2
	case Type3v3:
		return ladder.Queue3v3
	case Type4v4:
		return ladder.Queue4v4
	case TypeArchon:
		return ladder.QueueArchon
	default:
		return ladder.Queue1v1
	}
}

// Match is created on the first observed participant event; its natural key
// is (date, type, mapId, region).
type Match struct {
	ID     int64
	Date   time.Time
	Type   Type
	MapID  int64
	Region ladder.Region
}

// Participant is one anonymous character observed in a match. TeamID stays
// nil until the resolver identifies the team; once set it is immutable.
type Participant struct {
	MatchID            int64
	CharacterID        int64
	Realm              int16
	Decision           ladder.Decision
	TeamID             *int64
	TeamStateTimestamp *time.Time
	RatingChange       *int
}

func (p Participant) Resolved() bool {
	return p.TeamID != nil
}
