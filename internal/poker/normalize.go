package poker

import (
	"encoding/json"
	"fmt"
	"time"
)

// rawSession mirrors Session but keeps the collections undecoded so that a
// malformed field degrades to an empty value instead of failing the record.
type rawSession struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	CreatedBy        string          `json:"createdBy"`
	OwnerID          string          `json:"ownerId"`
	CreatedAt        int64           `json:"createdAt"`
	ExpiresAt        int64           `json:"expiresAt"`
	Participants     json.RawMessage `json:"participants"`
	UserStories      json.RawMessage `json:"userStories"`
	ActiveStoryIndex json.RawMessage `json:"activeStoryIndex"`
	ShowResults      bool            `json:"showResults"`
}

// Normalize decodes a stored session record and repairs it:
//   - a missing expiresAt is backfilled as createdAt+ttl
//   - participants and userStories that are missing or malformed become empty
//   - stories lose every field other than id and title
//   - activeStoryIndex is clamped into range, or -1 when there are no stories
//
// The returned flag reports whether any repair was applied, i.e. whether the
// stored bytes differ in meaning from the returned session.
func Normalize(data []byte, ttl time.Duration) (Session, bool, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}

	repaired := false
	s := Session{
		ID:          raw.ID,
		Name:        raw.Name,
		CreatedBy:   raw.CreatedBy,
		OwnerID:     raw.OwnerID,
		CreatedAt:   raw.CreatedAt,
		ExpiresAt:   raw.ExpiresAt,
		ShowResults: raw.ShowResults,
	}

	if s.ExpiresAt == 0 {
		s.ExpiresAt = s.CreatedAt + ttl.Milliseconds()
		repaired = true
	}

	participants, ok := decodeParticipants(raw.Participants)
	if !ok {
		repaired = true
	}
	s.Participants = participants

	stories, ok := decodeStories(raw.UserStories)
	if !ok {
		repaired = true
	}
	s.UserStories = stories

	index, ok := clampStoryIndex(raw.ActiveStoryIndex, len(stories))
	if !ok {
		repaired = true
	}
	s.ActiveStoryIndex = index

	return s, repaired, nil
}

func decodeParticipants(data json.RawMessage) ([]Participant, bool) {
	if isNull(data) {
		return []Participant{}, false
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return []Participant{}, false
	}

	// A bad entry costs only itself, never the rest of the roster.
	clean := true
	participants := make([]Participant, 0, len(entries))
	for _, entry := range entries {
		var p Participant
		if err := json.Unmarshal(entry, &p); err != nil || p.ID == "" {
			clean = false
			continue
		}
		participants = append(participants, p)
	}
	return participants, clean
}

func decodeStories(data json.RawMessage) ([]UserStory, bool) {
	if isNull(data) {
		return []UserStory{}, false
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return []UserStory{}, false
	}

	clean := true
	stories := make([]UserStory, 0, len(entries))
	for _, entry := range entries {
		var story UserStory
		for key, value := range entry {
			switch key {
			case "id":
				if err := json.Unmarshal(value, &story.ID); err != nil {
					clean = false
				}
			case "title":
				if err := json.Unmarshal(value, &story.Title); err != nil {
					clean = false
				}
			default:
				clean = false
			}
		}
		stories = append(stories, story)
	}
	return stories, clean
}

func clampStoryIndex(data json.RawMessage, storyCount int) (int, bool) {
	index := NoActiveStory
	valid := false
	if !isNull(data) {
		valid = json.Unmarshal(data, &index) == nil
	}

	switch {
	case storyCount == 0:
		return NoActiveStory, valid && index == NoActiveStory
	case !valid || index < 0 || index >= storyCount:
		return 0, false
	default:
		return index, true
	}
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
