package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFile is returned when an uploaded file has zero size
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileTooLarge is returned when an uploaded file exceeds the size limit
	ErrFileTooLarge = errors.New("file is too large")

	// ErrEmptyResponse is returned when the completion service reply contains no text
	ErrEmptyResponse = errors.New("empty response from API")

	// ErrNoJSONFound is returned when no {...} span can be located in the reply text
	ErrNoJSONFound = errors.New("could not extract JSON from response")

	// ErrMalformedJSON is returned when the located span fails to parse
	ErrMalformedJSON = errors.New("malformed JSON in response")

	// ErrMissingField is returned when the parsed object lacks a required field
	ErrMissingField = errors.New("required field missing")

	// ErrInvalidShape is returned when a field has the wrong structural type
	ErrInvalidShape = errors.New("invalid data format")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when a record is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// UpstreamError is returned when the completion service answers with a
// non-success status. It carries the upstream status code and raw error
// body so the handler can surface both to the caller.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API error: %d", e.StatusCode)
}
