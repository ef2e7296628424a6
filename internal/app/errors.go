package app

import (
	"fmt"
	"net/http"

	"planningpoker/internal/poker"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the poker sentinel so callers can use errors.Is.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func ruleError(status int, code string, err error) *DomainError {
	domainErr := domainError(status, code, err.Error(), nil)
	domainErr.Err = err
	return domainErr
}

func sessionNotFound(sessionID string) *DomainError {
	domainErr := domainError(http.StatusNotFound, "SESSION_NOT_FOUND", poker.ErrSessionNotFound.Error(), map[string]any{"sessionId": sessionID})
	domainErr.Err = poker.ErrSessionNotFound
	return domainErr
}

func invalidArgument(code string, err error) *DomainError {
	return ruleError(http.StatusUnprocessableEntity, code, err)
}
