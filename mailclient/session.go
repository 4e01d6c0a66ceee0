package mailclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"mailpeek/utils"
)

const (
	defaultMailbox          = "INBOX"
	defaultDialTimeout      = 10 * time.Second
	defaultCommandTimeout   = 30 * time.Second
	defaultFetchConcurrency = 4
)

// Conn is the protocol surface a session drives once the transport is up.
// *client.Client satisfies it; tests substitute fakes.
type Conn interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// DialFunc establishes the wire connection for one candidate. The returned
// error should be step-tagged so session open can classify it.
type DialFunc func(ctx context.Context, cand ServerCandidate, opts Options) (Conn, error)

// Options tunes session establishment and fetching. The zero value works;
// empty fields fall back to package defaults.
type Options struct {
	Mailbox          string
	DialTimeout      time.Duration
	CommandTimeout   time.Duration
	FetchConcurrency int

	// Dial overrides the transport dialer. Tests inject fakes here;
	// production leaves it nil for the TLS dialer.
	Dial DialFunc
}

func (o Options) withDefaults() Options {
	if o.Mailbox == "" {
		o.Mailbox = defaultMailbox
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	if o.FetchConcurrency < 1 {
		o.FetchConcurrency = defaultFetchConcurrency
	}
	if o.Dial == nil {
		o.Dial = dialCandidate
	}
	return o
}

// dialCandidate is the production dialer: TCP connect, TLS handshake when
// the candidate asks for it, then the protocol greeting. Each step tags its
// own failures.
func dialCandidate(ctx context.Context, cand ServerCandidate, opts Options) (Conn, error) {
	d := &net.Dialer{Timeout: opts.DialTimeout}
	raw, err := d.DialContext(ctx, "tcp", cand.Addr())
	if err != nil {
		return nil, &stepError{kind: FailUnreachable, err: err}
	}

	conn := raw
	if cand.UseTLS {
		tlsConn := tls.Client(raw, &tls.Config{ServerName: cand.Host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, &stepError{kind: FailTLS, err: err}
		}
		conn = tlsConn
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, &stepError{kind: FailUnreachable, err: err}
	}
	c.Timeout = opts.CommandTimeout
	return c, nil
}

// Session owns one authenticated connection with its mailbox selected. It is
// created by OpenSession only; a session is never handed out before login
// and selection both succeeded.
type Session struct {
	mu        sync.Mutex
	conn      Conn
	mailbox   string
	candidate ServerCandidate
	closed    bool
}

// OpenSession tries candidates in order and returns a session on the first
// one that dials, authenticates, and selects the mailbox. A candidate
// failing any step is abandoned with a fresh transport for the next one.
// Total failure yields a *ConnectError classified by the last failed step;
// ctx expiry yields a *TimeoutError instead.
func OpenSession(ctx context.Context, candidates []ServerCandidate, cred Credential, opts Options) (*Session, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	opts = opts.withDefaults()

	var (
		attempts  int
		lastKind  FailKind
		lastCause error
	)
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, &TimeoutError{Op: "connect", Cause: err}
		}
		attempts++

		sess, err := tryCandidate(ctx, cand, cred, opts)
		if err == nil {
			utils.Log.WithFields(logrus.Fields{
				"host":     cand.Host,
				"attempts": attempts,
			}).Info("mail session established")
			return sess, nil
		}
		var te *TimeoutError
		if errors.As(err, &te) {
			return nil, err
		}
		lastKind, lastCause = classify(err, FailUnreachable)
		utils.Log.WithFields(logrus.Fields{
			"host": cand.Host,
			"step": lastKind.String(),
		}).WithError(lastCause).Debug("candidate failed")
	}
	return nil, &ConnectError{Attempts: attempts, Kind: lastKind, LastCause: lastCause}
}

func tryCandidate(ctx context.Context, cand ServerCandidate, cred Credential, opts Options) (*Session, error) {
	conn, err := opts.Dial(ctx, cand, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &TimeoutError{Op: "connect", Cause: ctxErr}
		}
		return nil, err
	}

	err = runCommand(ctx, "login", func() error {
		return conn.Login(cred.Address, cred.Secret)
	}, func() { conn.Logout() })
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			return nil, err
		}
		conn.Logout()
		return nil, &stepError{kind: FailAuth, err: err}
	}

	err = runCommand(ctx, "select", func() error {
		_, err := conn.Select(opts.Mailbox, true)
		return err
	}, func() { conn.Logout() })
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			return nil, err
		}
		conn.Logout()
		return nil, &stepError{kind: FailMailbox, err: err}
	}

	return &Session{conn: conn, mailbox: opts.Mailbox, candidate: cand}, nil
}

// runCommand bounds one wire command with ctx. The protocol library has no
// per-command context, so an expired ctx abandons the command; the conn's
// wire timeout bounds its eventual return, after which abandoned runs.
func runCommand(ctx context.Context, op string, fn func() error, abandoned func()) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if abandoned != nil {
			go func() {
				<-done
				abandoned()
			}()
		}
		return &TimeoutError{Op: op, Cause: ctx.Err()}
	}
}

// Candidate reports which server the session authenticated against.
func (s *Session) Candidate() ServerCandidate { return s.candidate }

// Mailbox reports the selected mailbox name.
func (s *Session) Mailbox() string { return s.mailbox }

// Close logs out best-effort and marks the session unusable. Transport
// faults on the way out are logged, never returned; calling Close again is
// a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if err := conn.Logout(); err != nil {
		utils.Log.WithField("host", s.candidate.Host).WithError(err).Debug("logout failed")
	}
	return nil
}

func (s *Session) guard(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &StateError{Op: op, State: "closed"}
	}
	return nil
}

// reselect refreshes the mailbox view and returns the current message count.
// Read-only: no flags change server-side.
func (s *Session) reselect(ctx context.Context) (uint32, error) {
	if err := s.guard("select"); err != nil {
		return 0, err
	}
	var mbox *imap.MailboxStatus
	err := runCommand(ctx, "select", func() error {
		var err error
		mbox, err = s.conn.Select(s.mailbox, true)
		return err
	}, nil)
	if err != nil {
		return 0, err
	}
	return mbox.Messages, nil
}

// fetchWindow issues one FETCH over [from, to] and streams results into the
// returned channel. The done channel carries the wire error once the stream
// closes. Channels are buffered to the window size, so an abandoned stream
// never blocks the wire goroutine.
func (s *Session) fetchWindow(from, to uint32, section *imap.BodySectionName) (<-chan *imap.Message, <-chan error, error) {
	if err := s.guard("fetch"); err != nil {
		return nil, nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchBodyStructure,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, to-from+1)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.Fetch(seqset, items, messages)
	}()
	return messages, done, nil
}
