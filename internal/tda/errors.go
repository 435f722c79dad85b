package tda

import (
	"errors"
	"fmt"
)

// Error taxonomy. REST and streaming failures surface as one of these
// typed errors from the call that triggered them; field-level gaps in a
// response are absorbed by the parser and never become errors.

var (
	// ErrNotAuthenticated is returned when an authorized call is attempted
	// before a successful token exchange.
	ErrNotAuthenticated = errors.New("tda: no access token, call FetchAccessToken first")

	// ErrNoStreamerHost means the principals carried no streamer socket URL.
	ErrNoStreamerHost = errors.New("tda: principals carry no streamer socket url")

	// ErrNoSession means no streaming session is active.
	ErrNoSession = errors.New("tda: no active streaming session")
)

// AuthError reports a failed token exchange or a rejected authorized call.
type AuthError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tda: auth failed during %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("tda: auth failed during %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports a connection, send, or receive failure on either
// the REST or the streaming path.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tda: transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports malformed top-level JSON in a response body.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tda: malformed response in %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
