package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"planningpoker/internal/adminauth"
	"planningpoker/internal/poker"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	admin      *adminauth.Gate
}

func NewHTTPServer(service *Service, corsOrigin string, admin *adminauth.Gate) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, admin: admin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "admin" && parts[2] == "sessions" {
		s.handleAdmin(w, r, parts[3:])
		return
	}
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "sessions" {
		s.handleSessions(w, r, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Name      string `json:"name"`
			CreatedBy string `json:"createdBy"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.CreateSession(r.Context(), body.Name, body.CreatedBy)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
		return
	}

	sessionID := parts[0]
	rest := parts[1:]

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		session, err := s.service.GetSession(r.Context(), sessionID)
		s.respondSession(w, session, err)

	case len(rest) == 1 && rest[0] == "init" && r.Method == http.MethodPost:
		session, err := s.service.InitializeSession(r.Context(), sessionID)
		s.respondSession(w, session, err)

	case len(rest) == 1 && rest[0] == "view" && r.Method == http.MethodGet:
		view, session, err := s.service.View(r.Context(), sessionID, r.URL.Query().Get("participantId"))
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": session, "view": view})

	case len(rest) == 1 && rest[0] == "participants" && r.Method == http.MethodPost:
		var body AddParticipantInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		participant, session, err := s.service.AddParticipant(r.Context(), sessionID, body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"participant": participant, "session": session})

	case len(rest) == 2 && rest[0] == "participants" && rest[1] == "clean" && r.Method == http.MethodPost:
		session, err := s.service.CleanInactiveParticipants(r.Context(), sessionID)
		s.respondSession(w, session, err)

	case len(rest) == 2 && rest[0] == "participants" && r.Method == http.MethodDelete:
		session, err := s.service.RemoveParticipant(r.Context(), sessionID, rest[1])
		s.respondSession(w, session, err)

	case len(rest) == 3 && rest[0] == "participants" && rest[2] == "heartbeat" && r.Method == http.MethodPost:
		if err := s.service.UpdateParticipantActivity(r.Context(), sessionID, rest[1]); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 3 && rest[0] == "participants" && rest[2] == "vote" && r.Method == http.MethodPut:
		var body struct {
			Vote *poker.Vote `json:"vote"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.RegisterVote(r.Context(), sessionID, rest[1], body.Vote)
		s.respondSession(w, session, err)

	case len(rest) == 2 && rest[0] == "votes" && rest[1] == "reset" && r.Method == http.MethodPost:
		session, err := s.service.ResetVotes(r.Context(), sessionID)
		s.respondSession(w, session, err)

	case len(rest) == 1 && rest[0] == "stories" && r.Method == http.MethodPost:
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.AddUserStory(r.Context(), sessionID, body.Title)
		s.respondSession(w, session, err)

	case len(rest) == 1 && rest[0] == "stories" && r.Method == http.MethodDelete:
		session, err := s.service.RemoveAllUserStories(r.Context(), sessionID)
		s.respondSession(w, session, err)

	case len(rest) == 2 && rest[0] == "stories" && (r.Method == http.MethodPut || r.Method == http.MethodDelete):
		index, err := strconv.Atoi(rest[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_STORY_INDEX", "story index must be an integer", nil)
			return
		}
		if r.Method == http.MethodDelete {
			session, err := s.service.RemoveUserStory(r.Context(), sessionID, index)
			s.respondSession(w, session, err)
			return
		}
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.UpdateUserStory(r.Context(), sessionID, index, body.Title)
		s.respondSession(w, session, err)

	case len(rest) == 1 && rest[0] == "active-story" && r.Method == http.MethodPut:
		var body struct {
			Index *int `json:"index"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Index == nil {
			writeError(w, http.StatusUnprocessableEntity, "INVALID_STORY_INDEX", "index is required", nil)
			return
		}
		session, err := s.service.ChangeActiveStory(r.Context(), sessionID, *body.Index)
		s.respondSession(w, session, err)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, parts []string) {
	if !s.admin.Allow(r.Header.Get(adminauth.HeaderName)) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		summaries, err := s.service.ListActiveSessions(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Error fetching sessions", nil)
			return
		}
		writeJSON(w, http.StatusOK, summaries)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteSession(r.Context(), parts[0]); err != nil {
			writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to delete session", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) respondSession(w http.ResponseWriter, session *poker.Session, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, "+adminauth.HeaderName)
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, poker.ErrSessionNotFound) {
		return http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
