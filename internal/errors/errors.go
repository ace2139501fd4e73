// Package errors classifies channelscope failures into a few kinds and turns
// them into messages a user can act on.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind string

const (
	// KindAuthorization means a credential could not be obtained or refreshed.
	KindAuthorization Kind = "authorization"
	// KindNotFound means a channel id has no match.
	KindNotFound Kind = "not_found"
	// KindPaginationExhausted means the page safety limit was exceeded.
	KindPaginationExhausted Kind = "pagination_exhausted"
	// KindUpstream means a Google API answered with a non-success response.
	KindUpstream Kind = "upstream"
)

// Error is a classified failure. StatusCode is the upstream HTTP status when
// one is known.
type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	StatusCode int
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrAuthorization       = &Error{Kind: KindAuthorization}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrPaginationExhausted = &Error{Kind: KindPaginationExhausted}
	ErrUpstream            = &Error{Kind: KindUpstream}
)

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// HTTPStatus maps the kind to the status the JSON API answers with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindPaginationExhausted, KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Authorization(message string, cause error) *Error {
	return &Error{Kind: KindAuthorization, Message: message, Cause: cause}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func PaginationExhausted(message string, cause error) *Error {
	return &Error{Kind: KindPaginationExhausted, Message: message, Cause: cause}
}

// Upstream creates an upstream error carrying the HTTP status code (0 when
// the request never got an answer).
func Upstream(message string, statusCode int, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Cause: cause, StatusCode: statusCode}
}

// UserMessage renders err as one readable line for the terminal or the JSON
// API. Unclassified errors fall back to their own text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindAuthorization:
		return "YouTube Analytics authorization failed - please run 'channelscope auth' to re-authenticate"
	case KindNotFound:
		return e.Message
	case KindPaginationExhausted:
		return "YouTube API kept returning more pages than allowed - results were not loaded"
	}

	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "YouTube API authentication failed - check YOUTUBE_API_KEY or re-authenticate"
	case http.StatusForbidden:
		return "YouTube API access denied - check your API key restrictions and OAuth permissions"
	case http.StatusTooManyRequests:
		return "YouTube API rate limit exceeded - please try again later"
	case http.StatusServiceUnavailable:
		return "YouTube API temporarily unavailable - please try again in a few minutes"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "YouTube API server error - please try again later"
	case 0:
		return fmt.Sprintf("YouTube API request failed: %s", e.Message)
	default:
		return fmt.Sprintf("YouTube API error (status %d) - please try again", e.StatusCode)
	}
}

// IsTransient reports whether err is worth retrying: rate limits, server
// side failures and requests that never got an answer.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindUpstream {
		return false
	}
	switch e.StatusCode {
	case 0, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
