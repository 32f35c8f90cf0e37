package clan

import "time"

type EventType int16

const (
	EventJoin EventType = iota + 1
	EventLeave
)

// Event is one append-only clan membership transition, strictly ordered per
// character by Created. ClanID is the clan joined or left; nil means the
// provider observed the character clanless.
type Event struct {
	CharacterID          int64
	Created              time.Time
	ClanID               *int64
	Type                 EventType
	SecondsSincePrevious *int64
}

// Observation is one polled membership reading for a character.
type Observation struct {
	CharacterID int64
	ClanID      *int64
	ObservedAt  time.Time
}
