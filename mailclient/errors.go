package mailclient

import (
	"errors"
	"fmt"
)

// ErrNoCandidates is returned by OpenSession when given an empty candidate
// list. The resolver never produces one, so this only fires when a caller
// bypasses it.
var ErrNoCandidates = errors.New("mailclient: no server candidates")

// FailKind classifies a candidate failure by the connection step that
// produced it. Callers branch on the kind, never on server text.
type FailKind int

const (
	FailUnreachable FailKind = iota // dial failed or no usable greeting
	FailTLS                         // TLS handshake failed
	FailAuth                        // server rejected the credentials
	FailMailbox                     // mailbox selection failed after login
)

func (k FailKind) String() string {
	switch k {
	case FailUnreachable:
		return "unreachable"
	case FailTLS:
		return "tls"
	case FailAuth:
		return "auth"
	case FailMailbox:
		return "mailbox"
	}
	return "unknown"
}

// ConnectError reports that every candidate failed. Kind and LastCause
// describe the final attempt.
type ConnectError struct {
	Attempts  int
	Kind      FailKind
	LastCause error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("mailclient: all %d connection attempts failed (%s): %v",
		e.Attempts, e.Kind, e.LastCause)
}

func (e *ConnectError) Unwrap() error { return e.LastCause }

// StateError reports an operation issued against a client or session that is
// not in the required state.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("mailclient: %s not allowed in state %q", e.Op, e.State)
}

// ArgumentError reports a structurally invalid caller argument.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("mailclient: invalid %s: %s", e.Name, e.Reason)
}

// FetchError reports a fetch that failed at the operation level. Summaries
// retrieved before the failure ride alongside in the FetchResult.
type FetchError struct {
	Succeeded int
	Warnings  int
	Cause     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("mailclient: fetch failed after %d summaries (%d warnings): %v",
		e.Succeeded, e.Warnings, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// TimeoutError reports a deadline expiring at a network suspension point. It
// is distinct from ConnectError so "server said no" and "ran out of time"
// stay distinguishable.
type TimeoutError struct {
	Op    string
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mailclient: %s deadline exceeded: %v", e.Op, e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// stepError tags a connection-phase failure with the step that produced it,
// so classification reflects step position rather than server text.
type stepError struct {
	kind FailKind
	err  error
}

func (e *stepError) Error() string { return e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

// classify extracts the step tag from a candidate failure, falling back to
// the given kind for untagged errors.
func classify(err error, fallback FailKind) (FailKind, error) {
	var se *stepError
	if errors.As(err, &se) {
		return se.kind, se.err
	}
	return fallback, err
}
