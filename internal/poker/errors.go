package poker

import "errors"

// Common errors
var (
	ErrSessionNotFound     = errors.New("session not found or expired")
	ErrParticipantNotFound = errors.New("participant not found in session")
	ErrEmptyName           = errors.New("name must not be empty")
	ErrEmptyTitle          = errors.New("story title must not be empty")
	ErrInvalidStoryIndex   = errors.New("story index out of range")
	ErrLastStory           = errors.New("the last remaining story cannot be removed")
	ErrStoryLocked         = errors.New("story title is locked once voting has started")
	ErrInvalidVote         = errors.New("vote is not on the estimation scale")
	ErrObserverCannotVote  = errors.New("observers cannot vote")
	ErrNotOwner            = errors.New("only the owner token can claim the owner role")
)
