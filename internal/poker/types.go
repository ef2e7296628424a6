// Package poker holds the planning poker session model and the pure rules
// computed over it. Nothing in here touches storage.
package poker

import "time"

const (
	// DefaultTTL is how long a session lives after creation.
	DefaultTTL = 12 * time.Hour
	// DefaultInactivityThreshold is how long a participant may go without a
	// heartbeat before the inactivity sweep drops them.
	DefaultInactivityThreshold = 5 * time.Minute
	// ExpiringSoonWindow marks sessions that are close to their expiry.
	ExpiringSoonWindow = 3 * time.Hour

	NoActiveStory    = -1
	DefaultStoryName = "Default story"
)

// Participant is a member of a session roster.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Vote       *Vote  `json:"vote"`
	LastActive int64  `json:"lastActive"`
	IsObserver bool   `json:"isObserver"`
	IsOwner    bool   `json:"isOwner"`
}

// UserStory is a unit of work being estimated.
type UserStory struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Session is the full persisted state of one voting room. Timestamps are
// unix milliseconds so the stored record stays compatible with existing data.
type Session struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	CreatedBy        string        `json:"createdBy"`
	OwnerID          string        `json:"ownerId"`
	CreatedAt        int64         `json:"createdAt"`
	ExpiresAt        int64         `json:"expiresAt"`
	Participants     []Participant `json:"participants"`
	UserStories      []UserStory   `json:"userStories"`
	ActiveStoryIndex int           `json:"activeStoryIndex"`
	ShowResults      bool          `json:"showResults"`
}

// Summary is the administrative listing entry for a session.
type Summary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	CreatedBy        string `json:"createdBy"`
	CreatedAt        int64  `json:"createdAt"`
	ExpiresAt        int64  `json:"expiresAt"`
	TotalPoints      int    `json:"totalPoints"`
	ParticipantCount int    `json:"participantCount"`
}
