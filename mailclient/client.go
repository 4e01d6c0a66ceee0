package mailclient

import (
	"context"
	"sync"
)

// State is the client lifecycle position. Transitions: Idle -> Connecting ->
// Connected <-> Fetching, Connecting -> Idle on total failure, any state ->
// Disconnected via Disconnect.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateFetching
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFetching:
		return "fetching"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Client is the facade over resolve, session, and fetch. One client owns at
// most one live session. Safe for concurrent use; fetches on the same
// client are serialized, never run in parallel on one session.
type Client struct {
	resolver *Resolver
	opts     Options

	mu      sync.Mutex // guards state and session
	fetchMu sync.Mutex // serializes Fetch calls
	state   State
	session *Session
}

// New returns an idle client.
func New(resolver *Resolver, opts Options) *Client {
	return &Client{resolver: resolver, opts: opts.withDefaults(), state: StateIdle}
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect validates the address, resolves candidates for its domain, and
// opens a session. Allowed from Idle and Disconnected. On total failure the
// client returns to Idle and the typed cause is returned.
func (c *Client) Connect(ctx context.Context, address, secret string) error {
	cred, err := NewCredential(address, secret)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateIdle && c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return &StateError{Op: "connect", State: state.String()}
	}
	c.state = StateConnecting
	c.mu.Unlock()

	candidates := c.resolver.Resolve(cred.Domain())
	sess, err := OpenSession(ctx, candidates, cred, c.opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.state == StateConnecting {
			c.state = StateIdle
		}
		return err
	}
	if c.state != StateConnecting {
		// a concurrent Disconnect won while we were dialing
		go sess.Close()
		return &StateError{Op: "connect", State: c.state.String()}
	}
	c.session = sess
	c.state = StateConnected
	return nil
}

// Fetch returns the most recent limit summaries from the live session.
// Allowed from Connected only. A deadline hitting mid-fetch returns
// *TimeoutError and leaves the session usable; an operation failure returns
// *FetchError with any partial results.
func (c *Client) Fetch(ctx context.Context, limit int) (*FetchResult, error) {
	if limit <= 0 {
		return nil, &ArgumentError{Name: "limit", Reason: "must be positive"}
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	c.mu.Lock()
	if c.state != StateConnected || c.session == nil {
		state := c.state
		c.mu.Unlock()
		return nil, &StateError{Op: "fetch", State: state.String()}
	}
	c.state = StateFetching
	sess := c.session
	c.mu.Unlock()

	result, err := fetchSummaries(ctx, sess, limit, c.opts.FetchConcurrency)

	c.mu.Lock()
	if c.state == StateFetching {
		c.state = StateConnected
	}
	c.mu.Unlock()
	return result, err
}

// Disconnect releases the session and moves to Disconnected. It is
// reachable from every state, never fails, and is a no-op on a client that
// never connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
}
