package poker

import (
	"testing"
	"time"
)

func voters(votes ...*Vote) []Participant {
	participants := []Participant{{ID: "owner", IsObserver: true, IsOwner: true}}
	for i, v := range votes {
		participants = append(participants, Participant{ID: string(rune('a' + i)), Vote: v})
	}
	return participants
}

func TestComputeConsensus(t *testing.T) {
	cases := []struct {
		name    string
		ps      []Participant
		ok      bool
		value   int
		percent int
	}{
		{name: "no votes", ps: voters(nil, nil), ok: false},
		{name: "only abstain", ps: voters(AbstainVote(), AbstainVote()), ok: false},
		{name: "unanimous", ps: voters(PointsVote(5), PointsVote(5), PointsVote(5)), ok: true, value: 5, percent: 100},
		{name: "two thirds", ps: voters(PointsVote(5), PointsVote(5), PointsVote(8)), ok: true, value: 5, percent: 67},
		{name: "abstain ignored", ps: voters(PointsVote(3), AbstainVote(), PointsVote(3)), ok: true, value: 3, percent: 100},
		{name: "tie goes to first to reach count", ps: voters(PointsVote(8), PointsVote(5), PointsVote(5), PointsVote(8)), ok: true, value: 5, percent: 50},
		{name: "tie on singletons keeps first", ps: voters(PointsVote(13), PointsVote(2)), ok: true, value: 13, percent: 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ComputeConsensus(tc.ps)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if got.Value != tc.value || got.Percentage != tc.percent {
				t.Fatalf("consensus = %+v, want value %d at %d%%", got, tc.value, tc.percent)
			}
		})
	}
}

func TestComputeConsensusIgnoresObserverVotes(t *testing.T) {
	ps := voters(PointsVote(5), PointsVote(5))
	ps[0].Vote = PointsVote(13)

	got, ok := ComputeConsensus(ps)
	if !ok || got.Value != 5 || got.Percentage != 100 {
		t.Fatalf("consensus = %+v, %v", got, ok)
	}
}

func TestConsensusDropsWhenOneVoteChanges(t *testing.T) {
	s := &Session{Participants: voters(PointsVote(8), PointsVote(8), PointsVote(8))}
	s.RefreshShowResults()
	if !s.ShowResults || !HasFullConsensus(s) {
		t.Fatal("expected full consensus with identical votes")
	}

	s.Participants[2].Vote = PointsVote(3)
	got, _ := ComputeConsensus(s.Participants)
	if got.Percentage >= 100 {
		t.Fatalf("percentage = %d, want < 100", got.Percentage)
	}
	if HasFullConsensus(s) {
		t.Fatal("full consensus must drop after a differing vote")
	}
}

func TestHasFullConsensus(t *testing.T) {
	cases := []struct {
		name string
		ps   []Participant
		want bool
	}{
		{name: "single voter", ps: voters(PointsVote(5)), want: false},
		{name: "someone missing", ps: voters(PointsVote(5), PointsVote(5), nil), want: false},
		{name: "agree with abstain", ps: voters(PointsVote(5), PointsVote(5), AbstainVote()), want: true},
		{name: "all abstain", ps: voters(AbstainVote(), AbstainVote()), want: false},
		{name: "disagree", ps: voters(PointsVote(5), PointsVote(8)), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Session{Participants: tc.ps}
			if got := HasFullConsensus(s); got != tc.want {
				t.Fatalf("HasFullConsensus = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAverage(t *testing.T) {
	if got := Average(voters(PointsVote(1), PointsVote(2), PointsVote(2))); got != 1.7 {
		t.Fatalf("Average = %v, want 1.7", got)
	}
	if got := Average(voters(AbstainVote())); got != 0 {
		t.Fatalf("Average = %v, want 0", got)
	}
}

func TestBuildView(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	s := &Session{
		ExpiresAt:        now.Add(5 * time.Hour).UnixMilli(),
		Participants:     voters(PointsVote(5), nil),
		UserStories:      []UserStory{{ID: "s1", Title: "Login flow"}},
		ActiveStoryIndex: 0,
	}

	voterView := BuildView(s, "a", now)
	if voterView.ShouldShowResults {
		t.Fatal("voter should not see results before everyone voted")
	}
	if voterView.ActiveStory == nil || voterView.ActiveStory.Title != "Login flow" {
		t.Fatalf("active story = %+v", voterView.ActiveStory)
	}
	if voterView.TimeRemaining != "5 hours" {
		t.Fatalf("time remaining = %q", voterView.TimeRemaining)
	}
	if voterView.ExpiringSoon {
		t.Fatal("five hours left is not expiring soon")
	}

	observerView := BuildView(s, "owner", now)
	if !observerView.ShouldShowResults {
		t.Fatal("observers always see results")
	}

	votingOwner := &Session{
		ExpiresAt:    s.ExpiresAt,
		Participants: []Participant{{ID: "owner", IsOwner: true, Vote: PointsVote(3)}, {ID: "b"}},
	}
	if BuildView(votingOwner, "owner", now).ShouldShowResults {
		t.Fatal("an owner who votes must not see results early")
	}

	soon := BuildView(s, "a", now.Add(3*time.Hour))
	if !soon.ExpiringSoon {
		t.Fatal("two hours left should be expiring soon")
	}
	if got := BuildView(s, "a", now.Add(6*time.Hour)).TimeRemaining; got != "expired" {
		t.Fatalf("time remaining = %q, want expired", got)
	}
}
