package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"planningpoker/internal/poker"
)

const (
	DefaultClockInterval = time.Minute
	DefaultPollInterval  = 2 * time.Second
	defaultLeaveTimeout  = 3 * time.Second
)

var (
	// ErrSessionGone is returned once the session has expired or was deleted.
	ErrSessionGone = errors.New("session is gone")
	ErrNotJoined   = errors.New("not joined to the session")
)

type Options struct {
	ClockInterval time.Duration
	PollInterval  time.Duration
	// LeaveTimeout bounds the removal request sent when Run stops.
	LeaveTimeout time.Duration
	// OnCelebrate is called once per distinct consensus value when at least
	// two voters have voted and all numeric votes agree.
	OnCelebrate func(poker.Consensus)
	Logger      *log.Logger
}

// Poller mirrors one session. State is replaced wholesale on every fetch.
// Intent methods may be called from any goroutine while Run is active.
type Poller struct {
	api       API
	sessionID string
	opts      Options
	logger    *log.Logger

	mu         sync.Mutex
	profile    Profile
	session    *poker.Session
	now        time.Time
	isOwner    bool
	celebrated *int
}

func NewPoller(api API, sessionID string, profile Profile, opts Options) *Poller {
	if opts.ClockInterval <= 0 {
		opts.ClockInterval = DefaultClockInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.LeaveTimeout <= 0 {
		opts.LeaveTimeout = defaultLeaveTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		api:       api,
		sessionID: sessionID,
		opts:      opts,
		logger:    logger,
		profile:   profile,
		now:       time.Now(),
	}
}

// Start loads the session, dropping inactive participants, and auto-joins
// the owner as an observer when the profile holds the owner token. The
// owner joins under the token itself, so repeat visits reuse one entry.
func (p *Poller) Start(ctx context.Context) error {
	session, err := p.api.InitializeSession(ctx, p.sessionID)
	if err != nil {
		return p.fetchError(err)
	}

	p.mu.Lock()
	profile := p.profile
	p.mu.Unlock()

	if profile.OwnerToken == "" || profile.OwnerToken != session.OwnerID {
		p.apply(session)
		return nil
	}

	participant, joined, err := p.api.AddParticipant(ctx, p.sessionID, JoinInput{
		Name:          profile.creatorName(),
		IsObserver:    true,
		ParticipantID: profile.OwnerToken,
		IsOwner:       true,
	})
	if err != nil {
		return p.fetchError(err)
	}

	p.mu.Lock()
	p.isOwner = true
	p.profile.ParticipantID = participant.ID
	p.profile.Name = participant.Name
	p.profile.Observer = participant.IsObserver
	p.mu.Unlock()
	p.apply(joined)
	return nil
}

// Run drives the clock and poll tickers until ctx is done or the session
// disappears. On cancellation it asks the server to drop the local
// participant; that request may not complete and the inactivity sweep
// covers it when it does not.
func (p *Poller) Run(ctx context.Context) error {
	clock := time.NewTicker(p.opts.ClockInterval)
	defer clock.Stop()
	poll := time.NewTicker(p.opts.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			p.leave()
			return ctx.Err()
		case t := <-clock.C:
			p.mu.Lock()
			p.now = t
			p.mu.Unlock()
		case <-poll.C:
			err := p.Poll(ctx)
			if errors.Is(err, ErrSessionGone) {
				return err
			}
			if err != nil && ctx.Err() == nil {
				p.logger.Printf("client: poll session=%s: %v", p.sessionID, err)
			}
		}
	}
}

// Poll sends a heartbeat for the local participant, if any, and refetches
// the session.
func (p *Poller) Poll(ctx context.Context) error {
	participantID := p.ParticipantID()
	if participantID != "" {
		if err := p.api.Heartbeat(ctx, p.sessionID, participantID); err != nil {
			p.logger.Printf("client: heartbeat session=%s participant=%s: %v", p.sessionID, participantID, err)
		}
	}

	session, err := p.api.GetSession(ctx, p.sessionID)
	if err != nil {
		return p.fetchError(err)
	}
	p.apply(session)
	return nil
}

func (p *Poller) Session() *poker.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *Poller) Profile() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

func (p *Poller) ParticipantID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile.ParticipantID
}

func (p *Poller) IsOwner() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOwner
}

// Now is the display clock, advanced by the clock ticker only.
func (p *Poller) Now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

// View derives what the local participant should see.
func (p *Poller) View() (poker.View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return poker.View{}, false
	}
	return poker.BuildView(p.session, p.profile.ParticipantID, p.now), true
}

// Join adds the local user to the roster, or updates the entry it already
// has. An owner rejoining under the owner token keeps ownership.
func (p *Poller) Join(ctx context.Context, name string, observer bool) (poker.Participant, error) {
	p.mu.Lock()
	input := JoinInput{
		Name:          name,
		IsObserver:    observer,
		ParticipantID: p.profile.ParticipantID,
		IsOwner:       p.isOwner && p.profile.ParticipantID != "" && p.profile.ParticipantID == p.profile.OwnerToken,
	}
	p.mu.Unlock()

	participant, session, err := p.api.AddParticipant(ctx, p.sessionID, input)
	if err != nil {
		return poker.Participant{}, err
	}
	p.mu.Lock()
	p.profile.ParticipantID = participant.ID
	p.profile.Name = participant.Name
	p.profile.Observer = participant.IsObserver
	p.mu.Unlock()
	p.apply(session)
	return participant, nil
}

func (p *Poller) Vote(ctx context.Context, vote *poker.Vote) error {
	participantID := p.ParticipantID()
	if participantID == "" {
		return ErrNotJoined
	}
	return p.intent(p.api.RegisterVote(ctx, p.sessionID, participantID, vote))
}

func (p *Poller) ResetVotes(ctx context.Context) error {
	return p.roundIntent(p.api.ResetVotes(ctx, p.sessionID))
}

func (p *Poller) AddStory(ctx context.Context, title string) error {
	return p.roundIntent(p.api.AddUserStory(ctx, p.sessionID, title))
}

func (p *Poller) UpdateStory(ctx context.Context, index int, title string) error {
	return p.intent(p.api.UpdateUserStory(ctx, p.sessionID, index, title))
}

func (p *Poller) ChangeStory(ctx context.Context, index int) error {
	return p.roundIntent(p.api.ChangeActiveStory(ctx, p.sessionID, index))
}

func (p *Poller) RemoveStory(ctx context.Context, index int) error {
	return p.roundIntent(p.api.RemoveUserStory(ctx, p.sessionID, index))
}

func (p *Poller) RemoveAllStories(ctx context.Context) error {
	return p.roundIntent(p.api.RemoveAllUserStories(ctx, p.sessionID))
}

// RemoveParticipant drops someone from the roster. Removing the local
// participant clears the local identity.
func (p *Poller) RemoveParticipant(ctx context.Context, participantID string) error {
	return p.intent(p.api.RemoveParticipant(ctx, p.sessionID, participantID))
}

func (p *Poller) intent(session *poker.Session, err error) error {
	if err != nil {
		return p.fetchError(err)
	}
	p.apply(session)
	return nil
}

// roundIntent is intent for operations that start a new voting round, after
// which the same consensus value may be celebrated again.
func (p *Poller) roundIntent(session *poker.Session, err error) error {
	if err != nil {
		return p.fetchError(err)
	}
	p.mu.Lock()
	p.celebrated = nil
	p.mu.Unlock()
	p.apply(session)
	return nil
}

func (p *Poller) apply(session *poker.Session) {
	if session == nil {
		return
	}

	p.mu.Lock()
	p.session = session
	if p.profile.ParticipantID != "" && session.FindParticipant(p.profile.ParticipantID) < 0 {
		p.profile.ParticipantID = ""
	}
	consensus, celebrate := p.checkCelebration(session)
	p.mu.Unlock()

	if celebrate && p.opts.OnCelebrate != nil {
		p.opts.OnCelebrate(consensus)
	}
}

// checkCelebration must be called with mu held.
func (p *Poller) checkCelebration(session *poker.Session) (poker.Consensus, bool) {
	consensus, ok := poker.ComputeConsensus(session.Participants)
	if !ok || consensus.Percentage != 100 {
		return consensus, false
	}
	voted := 0
	for _, participant := range session.Participants {
		if !participant.IsObserver && participant.Vote != nil {
			voted++
		}
	}
	if voted < 2 {
		return consensus, false
	}
	if p.celebrated != nil && *p.celebrated == consensus.Value {
		return consensus, false
	}
	value := consensus.Value
	p.celebrated = &value
	return consensus, true
}

func (p *Poller) leave() {
	participantID := p.ParticipantID()
	if participantID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.LeaveTimeout)
	defer cancel()
	if _, err := p.api.RemoveParticipant(ctx, p.sessionID, participantID); err != nil {
		p.logger.Printf("client: leave session=%s participant=%s: %v", p.sessionID, participantID, err)
	}
}

func (p *Poller) fetchError(err error) error {
	if errors.Is(err, poker.ErrSessionNotFound) {
		return fmt.Errorf("%w: %s", ErrSessionGone, p.sessionID)
	}
	return err
}
