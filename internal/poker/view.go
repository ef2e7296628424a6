package poker

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"planningpoker/internal/rbac"
)

// View is what a given viewer should see of a session at a point in time.
type View struct {
	Consensus         *Consensus `json:"consensus"`
	Average           float64    `json:"average"`
	FullConsensus     bool       `json:"fullConsensus"`
	AllVoted          bool       `json:"allVoted"`
	ShouldShowResults bool       `json:"shouldShowResults"`
	ActiveStory       *UserStory `json:"activeStory"`
	TimeRemaining     string     `json:"timeRemaining"`
	ExpiringSoon      bool       `json:"expiringSoon"`
}

// BuildView derives the display state of s for viewerID. An empty or unknown
// viewerID is treated as a voter who has not joined.
func BuildView(s *Session, viewerID string, now time.Time) View {
	view := View{
		Average:       Average(s.Participants),
		FullConsensus: HasFullConsensus(s),
		AllVoted:      s.AllVoted(),
		TimeRemaining: TimeRemaining(s.ExpiresAt, now),
	}
	if consensus, ok := ComputeConsensus(s.Participants); ok {
		view.Consensus = &consensus
	}
	if story, ok := s.ActiveStory(); ok {
		view.ActiveStory = &story
	}

	canPeek := false
	if idx := s.FindParticipant(viewerID); idx >= 0 {
		p := s.Participants[idx]
		canPeek = rbac.Can(rbac.For(p.IsObserver, p.IsOwner), rbac.ActionPeek)
	}
	view.ShouldShowResults = s.ShowResults || canPeek || view.AllVoted

	if s.ExpiresAt > 0 {
		view.ExpiringSoon = s.ExpiresAt-now.UnixMilli() < ExpiringSoonWindow.Milliseconds()
	}
	return view
}

// TimeRemaining renders the time left until expiresAt (unix ms).
func TimeRemaining(expiresAt int64, now time.Time) string {
	if expiresAt == 0 {
		return "unknown"
	}
	deadline := time.UnixMilli(expiresAt)
	if !deadline.After(now) {
		return "expired"
	}
	return strings.TrimSpace(humanize.RelTime(now, deadline, "", ""))
}
