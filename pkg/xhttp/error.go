package xhttp

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an operation failure. StatusOf is the single mapping
// from kinds to status codes; the dispatcher's HTTP handler applies it.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindRangeNotSatisfiable
	KindAuthDenied
	KindUpstream
	KindTimeout
	KindCacheIO
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindRangeNotSatisfiable:
		return "range_not_satisfiable"
	case KindAuthDenied:
		return "auth_denied"
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	case KindCacheIO:
		return "cache_io"
	}
	return "unknown"
}

// ErrForcedReconnect terminates a proxied response once it has streamed
// past the cache frontier; the player reconnects with a fresh range.
var ErrForcedReconnect = errors.New("forced client reconnect")

// Error is the discriminated failure type shared by every component.
type Error struct {
	Kind    Kind
	Message string
	// Size carries the file size for range_not_satisfiable.
	Size int64
	// Header carries response headers for the HTTP adapter, if any.
	Header http.Header
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

func RangeNotSatisfiable(size int64) *Error {
	return &Error{
		Kind:    KindRangeNotSatisfiable,
		Message: fmt.Sprintf("requested range beyond %d bytes", size),
		Size:    size,
	}
}

func AuthDenied(msg string) *Error {
	return &Error{Kind: KindAuthDenied, Message: msg}
}

func Upstream(where, msg string) *Error {
	return &Error{Kind: KindUpstream, Message: where + ": " + msg}
}

func Timeout(msg string) *Error {
	return &Error{Kind: KindTimeout, Message: msg}
}

func CacheIO(err error) *Error {
	return &Error{Kind: KindCacheIO, Message: err.Error()}
}

// StatusOf maps an error to the response status code.
func StatusOf(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}
