package ladder

import "testing"

func TestLegacyIDSortsMembers(t *testing.T) {
	got := LegacyID([]MemberKey{
		{Realm: 2, CharacterID: 9},
		{Realm: 1, CharacterID: 77},
		{Realm: 1, CharacterID: 5},
	})
	want := "1.5~1.77~2.9"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLegacyIDAppendsRaceForSoloTeams(t *testing.T) {
	got := LegacyID([]MemberKey{{Realm: 1, CharacterID: 42}}, RaceZerg)
	if got != "1.42.3" {
		t.Fatalf("expected race suffix on solo team, got %q", got)
	}

	// Race is ignored for multi-member teams.
	got = LegacyID([]MemberKey{
		{Realm: 1, CharacterID: 42},
		{Realm: 1, CharacterID: 43},
	}, RaceZerg)
	if got != "1.42~1.43" {
		t.Fatalf("expected no race suffix on duo team, got %q", got)
	}
}

func TestParseRegion(t *testing.T) {
	cases := []struct {
		in   string
		want Region
	}{
		{"US", RegionUS},
		{"eu", RegionEU},
		{" kr ", RegionKR},
		{"CN", RegionCN},
	}
	for _, tc := range cases {
		got, err := ParseRegion(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: expected %v, got %v", tc.in, tc.want, got)
		}
	}

	if _, err := ParseRegion("SEA"); err == nil {
		t.Fatal("expected error for unknown region")
	}
}

func TestQueueTeamSize(t *testing.T) {
	if Queue1v1.TeamSize() != 1 || Queue4v4.TeamSize() != 4 || QueueArchon.TeamSize() != 2 {
		t.Fatal("unexpected queue team sizes")
	}
}
