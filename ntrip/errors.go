package ntrip

import (
	"errors"
	"fmt"
)

// ErrAuthentication is returned when the caster rejects the
// credentials (401 or 403).  It is fatal: the client does not retry,
// because retrying with the same credentials cannot succeed.
var ErrAuthentication = errors.New("ntrip: caster rejected the credentials")

// ErrMountpointNotFound is returned when the caster does not know the
// requested mountpoint (404).  Fatal, like an authentication failure.
var ErrMountpointNotFound = errors.New("ntrip: mountpoint not found")

// ErrIdleTimeout is the reason a stalled session reconnects: the
// caster stayed silent for longer than the configured idle window.
var ErrIdleTimeout = errors.New("ntrip: no data received within the idle window")

// InvalidResponseError reports a handshake response that is neither a
// success nor one of the recognised failures.  It triggers a
// reconnect, not a fatal stop, since casters restarting mid-handshake
// produce garbage that clears up on the next attempt.
type InvalidResponseError struct {
	// Line is the status line the caster sent.
	Line string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("ntrip: unexpected response from the caster: %q", e.Line)
}
