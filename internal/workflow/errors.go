package workflow

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/folio/pkg/threadlock"
)

// Domain errors for thread operations.
var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrThreadExists       = errors.New("thread already exists")
	ErrThreadTerminal     = errors.New("thread has ended")
	ErrNotSuspended       = errors.New("thread is not suspended")
	ErrEmptyContent       = errors.New("original content is empty")
	ErrInvalidThreadID    = errors.New("invalid thread id")
	ErrInvalidVerdict     = errors.New("invalid verdict")
	ErrInvalidUpdate      = errors.New("invalid state update")
	ErrUnknownNode        = errors.New("unknown node")
	ErrStageFailed        = errors.New("stage failed")
	ErrStepLimit          = errors.New("step limit reached")
)

// MapHTTPStatus maps workflow domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrThreadExists),
		errors.Is(err, ErrThreadTerminal),
		errors.Is(err, ErrNotSuspended),
		errors.Is(err, threadlock.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrInvalidThreadID),
		errors.Is(err, ErrInvalidVerdict),
		errors.Is(err, ErrInvalidUpdate):
		return http.StatusBadRequest
	case errors.Is(err, ErrStageFailed), errors.Is(err, ErrStepLimit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
