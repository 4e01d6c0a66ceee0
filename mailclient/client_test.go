package mailclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

func TestClientConnectFetchDisconnect(t *testing.T) {
	conn := &fakeConn{selectCount: 2}
	conn.fetchFn = streamMessages(
		envelopeMessage(1, 101, "older"),
		envelopeMessage(2, 102, "newer"),
	)
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}
	c := New(NewResolver(nil), Options{Dial: dialer.dial})

	if c.State() != StateIdle {
		t.Fatalf("fresh client state = %v, want idle", c.State())
	}

	if err := c.Connect(context.Background(), "user@gmail.com", "pw"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != StateConnected {
		t.Fatalf("state after connect = %v, want connected", c.State())
	}

	result, err := c.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(result.Summaries) != 2 || result.Summaries[0].ID != "102" {
		t.Fatalf("summaries = %+v, want newest (102) first", result.Summaries)
	}
	if c.State() != StateConnected {
		t.Errorf("state after fetch = %v, want connected", c.State())
	}

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Errorf("state after disconnect = %v, want disconnected", c.State())
	}
	if _, _, _, logout := conn.counts(); logout != 1 {
		t.Errorf("logout calls = %d, want 1", logout)
	}
}

func TestClientConnectInvalidAddressMakesNoNetworkCalls(t *testing.T) {
	dialer := &fakeDialer{}
	c := New(NewResolver(nil), Options{Dial: dialer.dial})

	err := c.Connect(context.Background(), "not-an-address", "pw")
	var ae *ArgumentError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want *ArgumentError", err)
	}
	if got := dialer.dialCalls(); got != 0 {
		t.Errorf("dial calls = %d, want 0", got)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestClientConnectTotalFailureReturnsToIdle(t *testing.T) {
	dialer := &fakeDialer{outcomes: []dialOutcome{
		{err: &stepError{kind: FailUnreachable, err: errors.New("no route")}},
		{err: &stepError{kind: FailUnreachable, err: errors.New("no route")}},
		{err: &stepError{kind: FailAuth, err: errors.New("rejected")}},
	}}
	c := New(NewResolver(nil), Options{Dial: dialer.dial})

	// unknown domain resolves to three candidates
	err := c.Connect(context.Background(), "user@unknown.example", "pw")
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
	if ce.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ce.Attempts)
	}
	if c.State() != StateIdle {
		t.Errorf("state after total failure = %v, want idle", c.State())
	}

	// the client is reusable after a failed connect
	good := &fakeConn{selectCount: 0}
	dialer.mu.Lock()
	dialer.outcomes = append(dialer.outcomes, dialOutcome{conn: good})
	dialer.mu.Unlock()
	if err := c.Connect(context.Background(), "user@gmail.com", "pw"); err != nil {
		t.Fatalf("reconnect after failure: %v", err)
	}
	c.Disconnect()
}

func TestClientFetchRequiresConnected(t *testing.T) {
	c := New(NewResolver(nil), Options{Dial: (&fakeDialer{}).dial})

	_, err := c.Fetch(context.Background(), 5)
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StateError", err)
	}
	if se.State != "idle" {
		t.Errorf("State = %q, want idle", se.State)
	}
}

func TestClientFetchInvalidLimit(t *testing.T) {
	conn := &fakeConn{selectCount: 5}
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}
	c := New(NewResolver(nil), Options{Dial: dialer.dial})
	if err := c.Connect(context.Background(), "user@gmail.com", "pw"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()
	_, selBefore, fetchBefore, _ := conn.counts()

	for _, limit := range []int{0, -1} {
		_, err := c.Fetch(context.Background(), limit)
		var ae *ArgumentError
		if !errors.As(err, &ae) {
			t.Fatalf("Fetch(%d) error = %v, want *ArgumentError", limit, err)
		}
	}

	_, selAfter, fetchAfter, _ := conn.counts()
	if selAfter != selBefore || fetchAfter != fetchBefore {
		t.Error("invalid limit reached the network")
	}
	if c.State() != StateConnected {
		t.Errorf("state = %v, want connected", c.State())
	}
}

func TestClientDisconnectIsAlwaysSafe(t *testing.T) {
	c := New(NewResolver(nil), Options{Dial: (&fakeDialer{}).dial})

	// never connected
	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", c.State())
	}
	// and again
	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("second disconnect changed state to %v", c.State())
	}

	_, err := c.Fetch(context.Background(), 5)
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("fetch after disconnect = %v, want *StateError", err)
	}
}

func TestClientReconnectAfterDisconnect(t *testing.T) {
	first := &fakeConn{selectCount: 0}
	second := &fakeConn{selectCount: 0}
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: first}, {conn: second}}}
	c := New(NewResolver(nil), Options{Dial: dialer.dial})

	if err := c.Connect(context.Background(), "user@gmail.com", "pw"); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	c.Disconnect()

	if err := c.Connect(context.Background(), "user@gmail.com", "pw"); err != nil {
		t.Fatalf("Connect after disconnect: %v", err)
	}
	if c.State() != StateConnected {
		t.Errorf("state = %v, want connected", c.State())
	}
	c.Disconnect()

	if _, _, _, logout := first.counts(); logout != 1 {
		t.Errorf("first conn logout calls = %d, want 1", logout)
	}
	if _, _, _, logout := second.counts(); logout != 1 {
		t.Errorf("second conn logout calls = %d, want 1", logout)
	}
}

func TestClientConnectWhileConnected(t *testing.T) {
	conn := &fakeConn{selectCount: 0}
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}
	c := New(NewResolver(nil), Options{Dial: dialer.dial})
	if err := c.Connect(context.Background(), "user@gmail.com", "pw"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	err := c.Connect(context.Background(), "user@gmail.com", "pw")
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("second connect = %v, want *StateError", err)
	}
}

func TestClientFetchTimeoutThenDisconnect(t *testing.T) {
	conn := &fakeConn{selectCount: 4}
	conn.fetchFn = func(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
		defer close(ch)
		time.Sleep(500 * time.Millisecond)
		return nil
	}
	dialer := &fakeDialer{outcomes: []dialOutcome{{conn: conn}}}
	c := New(NewResolver(nil), Options{Dial: dialer.dial})
	if err := c.Connect(context.Background(), "user@gmail.com", "pw"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, 4)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TimeoutError", err)
	}
	if c.State() != StateConnected {
		t.Errorf("state after timed-out fetch = %v, want connected", c.State())
	}

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Errorf("state after disconnect = %v, want disconnected", c.State())
	}
}
