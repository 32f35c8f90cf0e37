package cheater

// Report is a moderation record. A character whose report is confirmed
// (Status) and restriction-flagged (Restrictions) disqualifies every team
// it is a member of from ranked listings.
type Report struct {
	CharacterID  int64
	Status       bool
	Restrictions bool
}

func (r Report) Disqualifying() bool {
	return r.Status && r.Restrictions
}
