package poker

import (
	"testing"
	"time"
)

func TestNormalizeCleanRecordIsUntouched(t *testing.T) {
	raw := `{"id":"abc","name":"Sprint","createdBy":"Ana","ownerId":"own","createdAt":1000,"expiresAt":5000,
		"participants":[{"id":"own","name":"Ana","vote":null,"lastActive":1000,"isObserver":true,"isOwner":true}],
		"userStories":[{"id":"s1","title":"Login"}],"activeStoryIndex":0,"showResults":false}`

	s, repaired, err := Normalize([]byte(raw), DefaultTTL)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if repaired {
		t.Fatal("clean record should not be flagged as repaired")
	}
	if s.ID != "abc" || len(s.Participants) != 1 || len(s.UserStories) != 1 || s.ActiveStoryIndex != 0 {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !s.Participants[0].IsOwner {
		t.Fatal("owner flag lost")
	}
}

func TestNormalizeRepairs(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		check func(t *testing.T, s Session)
	}{
		{
			name: "backfills expiry",
			raw:  `{"id":"a","createdAt":1000,"participants":[],"userStories":[],"activeStoryIndex":-1}`,
			check: func(t *testing.T, s Session) {
				if want := int64(1000) + DefaultTTL.Milliseconds(); s.ExpiresAt != want {
					t.Fatalf("expiresAt = %d, want %d", s.ExpiresAt, want)
				}
			},
		},
		{
			name: "coerces malformed collections",
			raw:  `{"id":"a","expiresAt":9,"participants":{"x":1},"userStories":"nope","activeStoryIndex":3}`,
			check: func(t *testing.T, s Session) {
				if s.Participants == nil || len(s.Participants) != 0 {
					t.Fatalf("participants = %#v", s.Participants)
				}
				if s.UserStories == nil || len(s.UserStories) != 0 {
					t.Fatalf("stories = %#v", s.UserStories)
				}
				if s.ActiveStoryIndex != NoActiveStory {
					t.Fatalf("index = %d", s.ActiveStoryIndex)
				}
			},
		},
		{
			name: "missing collections",
			raw:  `{"id":"a","expiresAt":9}`,
			check: func(t *testing.T, s Session) {
				if s.Participants == nil || s.UserStories == nil {
					t.Fatal("collections must never be nil")
				}
			},
		},
		{
			name: "drops only the malformed participant",
			raw: `{"id":"a","expiresAt":9,"userStories":[],"activeStoryIndex":-1,"participants":[
				{"id":"own","name":"Ana","isObserver":true,"isOwner":true},
				{"id":"u1","name":"Ben","vote":"XL"},
				{"id":"u2","name":"Cy","vote":5}]}`,
			check: func(t *testing.T, s Session) {
				if len(s.Participants) != 2 || s.Participants[0].ID != "own" || s.Participants[1].ID != "u2" {
					t.Fatalf("participants = %#v", s.Participants)
				}
				if !s.Participants[0].IsOwner {
					t.Fatal("owner flag lost")
				}
			},
		},
		{
			name: "strips legacy story fields",
			raw:  `{"id":"a","expiresAt":9,"participants":[],"userStories":[{"id":"s1","title":"Login","description":"old"}],"activeStoryIndex":0}`,
			check: func(t *testing.T, s Session) {
				if len(s.UserStories) != 1 || s.UserStories[0] != (UserStory{ID: "s1", Title: "Login"}) {
					t.Fatalf("stories = %#v", s.UserStories)
				}
			},
		},
		{
			name: "clamps index past the end",
			raw:  `{"id":"a","expiresAt":9,"participants":[],"userStories":[{"id":"s1","title":"a"},{"id":"s2","title":"b"}],"activeStoryIndex":7}`,
			check: func(t *testing.T, s Session) {
				if s.ActiveStoryIndex != 0 {
					t.Fatalf("index = %d, want 0", s.ActiveStoryIndex)
				}
			},
		},
		{
			name: "activates first story when index is unset",
			raw:  `{"id":"a","expiresAt":9,"participants":[],"userStories":[{"id":"s1","title":"a"}],"activeStoryIndex":-1}`,
			check: func(t *testing.T, s Session) {
				if s.ActiveStoryIndex != 0 {
					t.Fatalf("index = %d, want 0", s.ActiveStoryIndex)
				}
			},
		},
		{
			name: "null index",
			raw:  `{"id":"a","expiresAt":9,"participants":[],"userStories":[{"id":"s1","title":"a"}],"activeStoryIndex":null}`,
			check: func(t *testing.T, s Session) {
				if s.ActiveStoryIndex != 0 {
					t.Fatalf("index = %d, want 0", s.ActiveStoryIndex)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, repaired, err := Normalize([]byte(tc.raw), DefaultTTL)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if !repaired {
				t.Fatal("expected the record to be flagged as repaired")
			}
			tc.check(t, s)
		})
	}
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	if _, _, err := Normalize([]byte(`[1,2]`), DefaultTTL); err == nil {
		t.Fatal("expected error for non-object record")
	}
}

func TestExpired(t *testing.T) {
	created := time.UnixMilli(1_000_000)
	s := Session{CreatedAt: created.UnixMilli(), ExpiresAt: created.Add(time.Hour).UnixMilli()}

	if s.Expired(created.Add(time.Hour - time.Millisecond)) {
		t.Fatal("session should be alive just before expiry")
	}
	if !s.Expired(created.Add(time.Hour + time.Millisecond)) {
		t.Fatal("session should be expired just after expiry")
	}
}
