package poker

import "time"

// Expired reports whether the session is past its expiry at now. A session
// without an expiry never expires here; Normalize backfills one on load.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && now.UnixMilli() > s.ExpiresAt
}

// FindParticipant returns the roster index of the participant, or -1.
func (s *Session) FindParticipant(participantID string) int {
	for i := range s.Participants {
		if s.Participants[i].ID == participantID {
			return i
		}
	}
	return -1
}

// ActiveStory returns the story currently being voted on.
func (s *Session) ActiveStory() (UserStory, bool) {
	if s.ActiveStoryIndex < 0 || s.ActiveStoryIndex >= len(s.UserStories) {
		return UserStory{}, false
	}
	return s.UserStories[s.ActiveStoryIndex], true
}

// Voters returns the non-observer participants in roster order.
func (s *Session) Voters() []Participant {
	voters := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if !p.IsObserver {
			voters = append(voters, p)
		}
	}
	return voters
}

// AllVoted reports whether there is at least one voter and every voter has
// cast a vote, numeric or abstain.
func (s *Session) AllVoted() bool {
	voters := s.Voters()
	if len(voters) == 0 {
		return false
	}
	for _, p := range voters {
		if p.Vote == nil {
			return false
		}
	}
	return true
}

// AnyVoterVoted reports whether voting on the current round has started.
func (s *Session) AnyVoterVoted() bool {
	for _, p := range s.Participants {
		if !p.IsObserver && p.Vote != nil {
			return true
		}
	}
	return false
}

// RefreshShowResults recomputes the cached showResults flag.
func (s *Session) RefreshShowResults() {
	s.ShowResults = s.AllVoted()
}

// ResetVotes clears every vote and starts a fresh round.
func (s *Session) ResetVotes(now time.Time) {
	stamp := now.UnixMilli()
	for i := range s.Participants {
		s.Participants[i].Vote = nil
		s.Participants[i].LastActive = stamp
	}
	s.ShowResults = false
}

// TotalPoints sums every numeric vote on the session regardless of story.
func (s *Session) TotalPoints() int {
	total := 0
	for _, p := range s.Participants {
		if p.Vote.Numeric() {
			total += p.Vote.Points
		}
	}
	return total
}

// Summary returns the administrative listing entry for the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:               s.ID,
		Name:             s.Name,
		CreatedBy:        s.CreatedBy,
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
		TotalPoints:      s.TotalPoints(),
		ParticipantCount: len(s.Participants),
	}
}
