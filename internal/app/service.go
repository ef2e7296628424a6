package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"planningpoker/internal/config"
	"planningpoker/internal/kv"
	"planningpoker/internal/poker"
	"planningpoker/internal/rbac"
	"planningpoker/internal/util"
)

const (
	activeSessionsKey = "active_sessions"
	sessionKeyPrefix  = "session:"

	defaultSessionName = "Planning Poker"
	defaultCreatorName = "Product Owner"
	sessionIDLength    = 10
)

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// CreateResult is returned to the creator of a session. OwnerID is the
// owner capability token: whoever presents it is treated as the owner.
type CreateResult struct {
	SessionID string `json:"sessionId"`
	OwnerID   string `json:"ownerId"`
}

type AddParticipantInput struct {
	Name          string `json:"name"`
	IsObserver    bool   `json:"isObserver"`
	ParticipantID string `json:"participantId,omitempty"`
	IsOwner       bool   `json:"isOwner,omitempty"`
}

// Service owns every transition on a session. Each mutation loads the whole
// record, applies the change in memory and writes the whole record back.
// There is no version check between the read and the write: concurrent
// writers to the same session race and the last write wins.
type Service struct {
	cfg        config.Config
	store      kv.Store
	now        func() time.Time
	ttl        time.Duration
	inactivity time.Duration
}

func New(cfg config.Config, store kv.Store) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = poker.DefaultTTL
	}
	inactivity := cfg.InactivityThreshold
	if inactivity <= 0 {
		inactivity = poker.DefaultInactivityThreshold
	}
	return &Service{
		cfg:        cfg,
		store:      store,
		now:        time.Now,
		ttl:        ttl,
		inactivity: inactivity,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) CreateSession(ctx context.Context, name, createdBy string) (CreateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultSessionName
	}
	createdBy = strings.TrimSpace(createdBy)
	if createdBy == "" {
		createdBy = defaultCreatorName
	}

	now := s.now()
	ownerID := util.NewToken("owner")
	session := &poker.Session{
		ID:        util.ShortID(sessionIDLength),
		Name:      name,
		CreatedBy: createdBy,
		OwnerID:   ownerID,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
		// The owner joins as an observer so they never count as a voter.
		Participants: []poker.Participant{{
			ID:         ownerID,
			Name:       createdBy,
			LastActive: now.UnixMilli(),
			IsObserver: true,
			IsOwner:    true,
		}},
		UserStories:      []poker.UserStory{},
		ActiveStoryIndex: poker.NoActiveStory,
	}

	if err := s.save(ctx, "create_session", session); err != nil {
		return CreateResult{}, err
	}
	if err := s.store.AddToSet(ctx, activeSessionsKey, session.ID); err != nil {
		return CreateResult{}, s.storageFailure("create_session", session.ID, err)
	}

	return CreateResult{SessionID: session.ID, OwnerID: session.OwnerID}, nil
}

// GetSession loads a session and repairs it. This is not a pure read:
// an expired session is deleted and deregistered, and a record that needed
// normalizing is written back in its normalized form.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*poker.Session, error) {
	return s.load(ctx, "get_session", sessionID)
}

// InitializeSession is what a client does on first visit: load the session
// and drop participants that stopped sending heartbeats.
func (s *Service) InitializeSession(ctx context.Context, sessionID string) (*poker.Session, error) {
	return s.CleanInactiveParticipants(ctx, sessionID)
}

// View loads the session and derives what viewerID should see.
func (s *Service) View(ctx context.Context, sessionID, viewerID string) (poker.View, *poker.Session, error) {
	session, err := s.load(ctx, "view", sessionID)
	if err != nil {
		return poker.View{}, nil, err
	}
	return poker.BuildView(session, viewerID, s.now()), session, nil
}

// AddParticipant joins a session, or updates the entry when ParticipantID is
// already on the roster. Only the holder of the owner token may join with
// IsOwner, which keeps the owner entry unique: its id is the token itself.
func (s *Service) AddParticipant(ctx context.Context, sessionID string, input AddParticipantInput) (poker.Participant, *poker.Session, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return poker.Participant{}, nil, invalidArgument("EMPTY_NAME", poker.ErrEmptyName)
	}

	var joined poker.Participant
	session, err := s.mutate(ctx, "add_participant", sessionID, func(session *poker.Session, now time.Time) error {
		if input.IsOwner && (input.ParticipantID == "" || input.ParticipantID != session.OwnerID) {
			return ruleError(http.StatusForbidden, "NOT_OWNER", poker.ErrNotOwner)
		}

		// The owner token always carries ownership, flag or not.
		isOwner := input.IsOwner || (input.ParticipantID != "" && input.ParticipantID == session.OwnerID)

		if idx := session.FindParticipant(input.ParticipantID); input.ParticipantID != "" && idx >= 0 {
			existing := &session.Participants[idx]
			existing.Name = name
			existing.LastActive = now.UnixMilli()
			existing.IsObserver = input.IsObserver
			existing.IsOwner = isOwner
			joined = *existing
		} else {
			id := input.ParticipantID
			if id == "" {
				id = util.NewID("user")
			}
			joined = poker.Participant{
				ID:         id,
				Name:       name,
				LastActive: now.UnixMilli(),
				IsObserver: input.IsObserver,
				IsOwner:    isOwner,
			}
			session.Participants = append(session.Participants, joined)
		}
		session.RefreshShowResults()
		return nil
	})
	if err != nil {
		return poker.Participant{}, nil, err
	}
	return joined, session, nil
}

// UpdateParticipantActivity records a heartbeat. Missing sessions and
// unknown participants are ignored.
func (s *Service) UpdateParticipantActivity(ctx context.Context, sessionID, participantID string) error {
	_, err := s.mutate(ctx, "heartbeat", sessionID, func(session *poker.Session, now time.Time) error {
		idx := session.FindParticipant(participantID)
		if idx < 0 {
			return errSkipWrite
		}
		session.Participants[idx].LastActive = now.UnixMilli()
		return nil
	})
	if errors.Is(err, poker.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *Service) RemoveParticipant(ctx context.Context, sessionID, participantID string) (*poker.Session, error) {
	return s.mutate(ctx, "remove_participant", sessionID, func(session *poker.Session, now time.Time) error {
		kept := session.Participants[:0]
		for _, p := range session.Participants {
			if p.ID != participantID {
				kept = append(kept, p)
			}
		}
		session.Participants = kept
		session.RefreshShowResults()
		return nil
	})
}

// CleanInactiveParticipants drops everyone whose last heartbeat is older
// than the inactivity threshold. The owner is always kept.
func (s *Service) CleanInactiveParticipants(ctx context.Context, sessionID string) (*poker.Session, error) {
	return s.mutate(ctx, "clean_inactive", sessionID, func(session *poker.Session, now time.Time) error {
		cutoff := now.Add(-s.inactivity).UnixMilli()
		kept := session.Participants[:0]
		for _, p := range session.Participants {
			if p.IsOwner || p.LastActive >= cutoff {
				kept = append(kept, p)
			}
		}
		session.Participants = kept
		session.RefreshShowResults()
		return nil
	})
}

// RegisterVote records a vote for a voter. Observers are refused here so a
// misbehaving client cannot vote on their behalf.
func (s *Service) RegisterVote(ctx context.Context, sessionID, participantID string, vote *poker.Vote) (*poker.Session, error) {
	if !vote.Valid() {
		return nil, invalidArgument("INVALID_VOTE", poker.ErrInvalidVote)
	}
	return s.mutate(ctx, "register_vote", sessionID, func(session *poker.Session, now time.Time) error {
		idx := session.FindParticipant(participantID)
		if idx < 0 {
			return ruleError(http.StatusNotFound, "PARTICIPANT_NOT_FOUND", poker.ErrParticipantNotFound)
		}
		participant := &session.Participants[idx]
		if !rbac.Can(rbac.For(participant.IsObserver, participant.IsOwner), rbac.ActionVote) {
			return ruleError(http.StatusForbidden, "OBSERVER_CANNOT_VOTE", poker.ErrObserverCannotVote)
		}
		cast := *vote
		participant.Vote = &cast
		participant.LastActive = now.UnixMilli()
		session.RefreshShowResults()
		return nil
	})
}

func (s *Service) ResetVotes(ctx context.Context, sessionID string) (*poker.Session, error) {
	return s.mutate(ctx, "reset_votes", sessionID, func(session *poker.Session, now time.Time) error {
		session.ResetVotes(now)
		return nil
	})
}

// AddUserStory appends a story and makes it the active one, which starts a
// new voting round.
func (s *Service) AddUserStory(ctx context.Context, sessionID, title string) (*poker.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidArgument("EMPTY_TITLE", poker.ErrEmptyTitle)
	}
	return s.mutate(ctx, "add_story", sessionID, func(session *poker.Session, now time.Time) error {
		session.UserStories = append(session.UserStories, poker.UserStory{
			ID:    util.NewID("story"),
			Title: title,
		})
		session.ActiveStoryIndex = len(session.UserStories) - 1
		session.ResetVotes(now)
		return nil
	})
}

// UpdateUserStory renames a story. The active story is locked once any
// voter has voted on it.
func (s *Service) UpdateUserStory(ctx context.Context, sessionID string, index int, title string) (*poker.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidArgument("EMPTY_TITLE", poker.ErrEmptyTitle)
	}
	return s.mutate(ctx, "update_story", sessionID, func(session *poker.Session, now time.Time) error {
		if index < 0 || index >= len(session.UserStories) {
			return invalidArgument("INVALID_STORY_INDEX", poker.ErrInvalidStoryIndex)
		}
		if index == session.ActiveStoryIndex && session.AnyVoterVoted() {
			return ruleError(http.StatusConflict, "STORY_LOCKED", poker.ErrStoryLocked)
		}
		session.UserStories[index].Title = title
		return nil
	})
}

// RemoveUserStory deletes a story but never the last one. The active index
// is left as is and only clamped when it falls off the end, so removing an
// earlier story moves the active slot onto the next story.
func (s *Service) RemoveUserStory(ctx context.Context, sessionID string, index int) (*poker.Session, error) {
	return s.mutate(ctx, "remove_story", sessionID, func(session *poker.Session, now time.Time) error {
		if index < 0 || index >= len(session.UserStories) {
			return invalidArgument("INVALID_STORY_INDEX", poker.ErrInvalidStoryIndex)
		}
		if len(session.UserStories) <= 1 {
			return invalidArgument("LAST_STORY", poker.ErrLastStory)
		}

		session.UserStories = append(session.UserStories[:index], session.UserStories[index+1:]...)
		if session.ActiveStoryIndex >= len(session.UserStories) {
			session.ActiveStoryIndex = len(session.UserStories) - 1
		}
		session.ResetVotes(now)
		return nil
	})
}

// RemoveAllUserStories collapses the backlog to its first story, or to a
// placeholder story when there is none.
func (s *Service) RemoveAllUserStories(ctx context.Context, sessionID string) (*poker.Session, error) {
	return s.mutate(ctx, "remove_all_stories", sessionID, func(session *poker.Session, now time.Time) error {
		if len(session.UserStories) > 0 {
			session.UserStories = session.UserStories[:1]
		} else {
			session.UserStories = []poker.UserStory{{
				ID:    util.NewID("story"),
				Title: poker.DefaultStoryName,
			}}
		}
		session.ActiveStoryIndex = 0
		session.ResetVotes(now)
		return nil
	})
}

// ChangeActiveStory switches the story under vote. Votes never carry over.
func (s *Service) ChangeActiveStory(ctx context.Context, sessionID string, index int) (*poker.Session, error) {
	return s.mutate(ctx, "change_story", sessionID, func(session *poker.Session, now time.Time) error {
		if index < 0 || index >= len(session.UserStories) {
			return invalidArgument("INVALID_STORY_INDEX", poker.ErrInvalidStoryIndex)
		}
		session.ActiveStoryIndex = index
		session.ResetVotes(now)
		return nil
	})
}

// DeleteSession removes a session unconditionally. Deleting twice is fine.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.evict(ctx, sessionID); err != nil {
		return s.storageFailure("delete_session", sessionID, err)
	}
	return nil
}

// SweepExpired evicts every indexed session that has expired or whose
// record is gone, and returns how many ids were dropped from the index.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	_, evicted, err := s.sweep(ctx)
	return evicted, err
}

// ListActiveSessions sweeps expired sessions and summarizes the rest,
// newest first.
func (s *Service) ListActiveSessions(ctx context.Context) ([]poker.Summary, error) {
	alive, _, err := s.sweep(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]poker.Summary, 0, len(alive))
	for i := range alive {
		summaries = append(summaries, alive[i].Summary())
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt > summaries[j].CreatedAt
	})
	return summaries, nil
}

func (s *Service) sweep(ctx context.Context) ([]poker.Session, int, error) {
	ids, err := s.store.ListSet(ctx, activeSessionsKey)
	if err != nil {
		return nil, 0, s.storageFailure("sweep", "*", err)
	}

	now := s.now()
	alive := make([]poker.Session, 0, len(ids))
	var expired []string
	for _, id := range ids {
		data, err := s.store.Get(ctx, sessionKey(id))
		if errors.Is(err, kv.ErrNotFound) {
			expired = append(expired, id)
			continue
		}
		if err != nil {
			return nil, 0, s.storageFailure("sweep", id, err)
		}
		session, _, err := poker.Normalize(data, s.ttl)
		if err != nil {
			log.Printf("app: sweep evicting unreadable session=%s: %v", id, err)
		}
		if err != nil || session.Expired(now) {
			if err := s.store.Del(ctx, sessionKey(id)); err != nil {
				return nil, 0, s.storageFailure("sweep", id, err)
			}
			expired = append(expired, id)
			continue
		}
		alive = append(alive, session)
	}

	if err := s.store.RemoveFromSet(ctx, activeSessionsKey, expired...); err != nil {
		return nil, 0, s.storageFailure("sweep", "*", err)
	}
	return alive, len(expired), nil
}

// errSkipWrite lets a mutation finish without persisting anything.
var errSkipWrite = errors.New("skip write")

// mutate is the read-modify-write cycle shared by every mutation. When fn
// returns an error nothing is written, so rejected operations leave the
// stored session unchanged.
func (s *Service) mutate(ctx context.Context, op, sessionID string, fn func(*poker.Session, time.Time) error) (*poker.Session, error) {
	session, err := s.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(session, s.now()); err != nil {
		if errors.Is(err, errSkipWrite) {
			return session, nil
		}
		return nil, err
	}
	if err := s.save(ctx, op, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) load(ctx context.Context, op, sessionID string) (*poker.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, sessionNotFound(sessionID)
	}
	data, err := s.store.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, sessionNotFound(sessionID)
	}
	if err != nil {
		return nil, s.storageFailure(op, sessionID, err)
	}

	session, repaired, err := poker.Normalize(data, s.ttl)
	if err != nil {
		return nil, s.storageFailure(op, sessionID, err)
	}

	if session.Expired(s.now()) {
		if err := s.evict(ctx, sessionID); err != nil {
			return nil, s.storageFailure(op, sessionID, err)
		}
		return nil, sessionNotFound(sessionID)
	}

	if repaired {
		if err := s.save(ctx, op, &session); err != nil {
			return nil, err
		}
	}
	return &session, nil
}

func (s *Service) save(ctx context.Context, op string, session *poker.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	if err := s.store.Set(ctx, sessionKey(session.ID), data); err != nil {
		return s.storageFailure(op, session.ID, err)
	}
	return nil
}

func (s *Service) evict(ctx context.Context, sessionID string) error {
	if err := s.store.Del(ctx, sessionKey(sessionID)); err != nil {
		return err
	}
	return s.store.RemoveFromSet(ctx, activeSessionsKey, sessionID)
}

func (s *Service) storageFailure(op, sessionID string, err error) error {
	log.Printf(`{"level":"error","op":"%s","session_id":"%s","error":%q}`, op, sessionID, err.Error())
	domainErr := domainError(http.StatusInternalServerError, "STORAGE_ERROR", "Session storage failed", nil)
	domainErr.Err = err
	return domainErr
}
