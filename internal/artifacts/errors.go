package artifacts

import (
	"errors"
	"net/http"
)

// Domain errors for artifact operations.
var (
	ErrNotFound      = errors.New("artifact not found")
	ErrEmptyContent  = errors.New("artifact content is empty")
	ErrEmptyQuery    = errors.New("search query is empty")
	ErrInvalidID     = errors.New("invalid artifact id")
	ErrReplicaSync   = errors.New("artifact stored locally but replica sync failed")
	ErrMissingHeader = errors.New("artifact missing front matter")
	ErrMalformed     = errors.New("artifact front matter malformed")
)

// MapHTTPStatus maps artifact domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrEmptyContent) || errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrInvalidID) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrReplicaSync) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
