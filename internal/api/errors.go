package api

import (
	"errors"
	"net/http"

	"careerforge/internal/quiz"
	"careerforge/internal/session"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

var (
	ErrMissingBearer  = errors.New("missing bearer credential")
	ErrInvalidRequest = errors.New("invalid request body")
	ErrAdminOnly      = errors.New("admin role required")
)

// apiError pairs an HTTP status and a stable code with the underlying error
type apiError struct {
	Status int
	Code   string
	Err    error
}

func (e *apiError) Error() string { return e.Err.Error() }
func (e *apiError) Unwrap() error { return e.Err }

// classify maps the error taxonomy onto HTTP
// ARCHITECTURAL DISCOVERY: Order matters; a wrapped chain may carry more than one sentinel
// and the most specific client-facing one wins
func classify(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, interfaces.ErrAuthentication), errors.Is(err, ErrMissingBearer):
		return &apiError{http.StatusUnauthorized, "authentication_error", err}
	case errors.Is(err, interfaces.ErrUnauthorized), errors.Is(err, ErrAdminOnly):
		return &apiError{http.StatusForbidden, "forbidden", err}
	case errors.Is(err, interfaces.ErrSessionNotFound):
		return &apiError{http.StatusNotFound, "session_not_found", err}
	case errors.Is(err, interfaces.ErrQuizNotFound):
		return &apiError{http.StatusNotFound, "quiz_not_found", err}
	case errors.Is(err, quiz.ErrUnknownIndustry):
		return &apiError{http.StatusNotFound, "unknown_industry", err}
	case errors.Is(err, interfaces.ErrOperationInProgress):
		return &apiError{http.StatusConflict, "operation_in_progress", err}
	case errors.Is(err, interfaces.ErrStageMismatch):
		return &apiError{http.StatusConflict, "stage_mismatch", err}
	case errors.Is(err, interfaces.ErrQuizCompleted):
		return &apiError{http.StatusConflict, "quiz_completed", err}
	case errors.Is(err, session.ErrSessionClosed):
		return &apiError{http.StatusConflict, "session_closed", err}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, session.ErrInvalidMessage),
		errors.Is(err, types.ErrEmptyAnswer),
		errors.Is(err, types.ErrContentTooLarge),
		errors.Is(err, types.ErrInvalidUserID):
		return &apiError{http.StatusBadRequest, "invalid_request", err}
	case errors.Is(err, interfaces.ErrPersistence):
		return &apiError{http.StatusInternalServerError, "persistence_error", err}
	default:
		return &apiError{http.StatusInternalServerError, "internal_error", err}
	}
}
