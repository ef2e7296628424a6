// Package client talks to the planning poker HTTP API and keeps a local,
// periodically refreshed mirror of one session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"planningpoker/internal/poker"
)

// API is the set of engine operations the poller relies on.
type API interface {
	CreateSession(ctx context.Context, name, createdBy string) (CreateResult, error)
	GetSession(ctx context.Context, sessionID string) (*poker.Session, error)
	InitializeSession(ctx context.Context, sessionID string) (*poker.Session, error)
	AddParticipant(ctx context.Context, sessionID string, input JoinInput) (poker.Participant, *poker.Session, error)
	Heartbeat(ctx context.Context, sessionID, participantID string) error
	RemoveParticipant(ctx context.Context, sessionID, participantID string) (*poker.Session, error)
	RegisterVote(ctx context.Context, sessionID, participantID string, vote *poker.Vote) (*poker.Session, error)
	ResetVotes(ctx context.Context, sessionID string) (*poker.Session, error)
	AddUserStory(ctx context.Context, sessionID, title string) (*poker.Session, error)
	UpdateUserStory(ctx context.Context, sessionID string, index int, title string) (*poker.Session, error)
	RemoveUserStory(ctx context.Context, sessionID string, index int) (*poker.Session, error)
	RemoveAllUserStories(ctx context.Context, sessionID string) (*poker.Session, error)
	ChangeActiveStory(ctx context.Context, sessionID string, index int) (*poker.Session, error)
}

type CreateResult struct {
	SessionID string `json:"sessionId"`
	OwnerID   string `json:"ownerId"`
}

type JoinInput struct {
	Name          string `json:"name"`
	IsObserver    bool   `json:"isObserver"`
	ParticipantID string `json:"participantId,omitempty"`
	IsOwner       bool   `json:"isOwner,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("poker api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets callers test for poker.ErrSessionNotFound on a 404 response.
func (e *APIError) Is(target error) bool {
	return target == poker.ErrSessionNotFound && e.Code == "SESSION_NOT_FOUND"
}

// Client is an API backed by HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the server at baseURL. A nil httpClient gets a
// client with a 10s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func sessionPath(sessionID string, rest ...string) string {
	parts := append([]string{"/api/sessions", url.PathEscape(sessionID)}, rest...)
	return strings.Join(parts, "/")
}

func (c *Client) CreateSession(ctx context.Context, name, createdBy string) (CreateResult, error) {
	var result CreateResult
	err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]string{"name": name, "createdBy": createdBy}, &result)
	return result, err
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*poker.Session, error) {
	return c.session(ctx, http.MethodGet, sessionPath(sessionID), nil)
}

func (c *Client) InitializeSession(ctx context.Context, sessionID string) (*poker.Session, error) {
	return c.session(ctx, http.MethodPost, sessionPath(sessionID, "init"), nil)
}

func (c *Client) AddParticipant(ctx context.Context, sessionID string, input JoinInput) (poker.Participant, *poker.Session, error) {
	var out struct {
		Participant poker.Participant `json:"participant"`
		Session     *poker.Session    `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "participants"), input, &out); err != nil {
		return poker.Participant{}, nil, err
	}
	return out.Participant, out.Session, nil
}

func (c *Client) Heartbeat(ctx context.Context, sessionID, participantID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "participants", url.PathEscape(participantID), "heartbeat"), nil, nil)
}

func (c *Client) RemoveParticipant(ctx context.Context, sessionID, participantID string) (*poker.Session, error) {
	return c.session(ctx, http.MethodDelete, sessionPath(sessionID, "participants", url.PathEscape(participantID)), nil)
}

func (c *Client) RegisterVote(ctx context.Context, sessionID, participantID string, vote *poker.Vote) (*poker.Session, error) {
	body := map[string]*poker.Vote{"vote": vote}
	return c.session(ctx, http.MethodPut, sessionPath(sessionID, "participants", url.PathEscape(participantID), "vote"), body)
}

func (c *Client) ResetVotes(ctx context.Context, sessionID string) (*poker.Session, error) {
	return c.session(ctx, http.MethodPost, sessionPath(sessionID, "votes", "reset"), nil)
}

func (c *Client) AddUserStory(ctx context.Context, sessionID, title string) (*poker.Session, error) {
	return c.session(ctx, http.MethodPost, sessionPath(sessionID, "stories"), map[string]string{"title": title})
}

func (c *Client) UpdateUserStory(ctx context.Context, sessionID string, index int, title string) (*poker.Session, error) {
	return c.session(ctx, http.MethodPut, sessionPath(sessionID, "stories", strconv.Itoa(index)), map[string]string{"title": title})
}

func (c *Client) RemoveUserStory(ctx context.Context, sessionID string, index int) (*poker.Session, error) {
	return c.session(ctx, http.MethodDelete, sessionPath(sessionID, "stories", strconv.Itoa(index)), nil)
}

func (c *Client) RemoveAllUserStories(ctx context.Context, sessionID string) (*poker.Session, error) {
	return c.session(ctx, http.MethodDelete, sessionPath(sessionID, "stories"), nil)
}

func (c *Client) ChangeActiveStory(ctx context.Context, sessionID string, index int) (*poker.Session, error) {
	return c.session(ctx, http.MethodPut, sessionPath(sessionID, "active-story"), map[string]int{"index": index})
}

func (c *Client) session(ctx context.Context, method, path string, body any) (*poker.Session, error) {
	var session poker.Session
	if err := c.do(ctx, method, path, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil && !errors.Is(err, io.EOF) {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
