package rpc

import (
	"encoding/json"
	"fmt"
)

// StartupError reports that the server process could not be launched.
// It is fatal to the session; there is nothing to retry.
type StartupError struct {
	Command string
	Err     error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Command, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// ResponseTimeoutError reports that the read loop exhausted its attempt
// ceiling without seeing a parseable response line. The session itself
// remains usable; the caller may retry the call or stop the session.
type ResponseTimeoutError struct {
	Method   string
	Attempts int
}

func (e *ResponseTimeoutError) Error() string {
	return fmt.Sprintf("no parseable response to %q after %d read attempts", e.Method, e.Attempts)
}

// RemoteError carries an error payload reported by the server, verbatim.
// It is non-fatal to the session.
type RemoteError struct {
	Method  string
	Payload json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error for %q: %s", e.Method, string(e.Payload))
}
