package web

import (
	"errors"
	"fmt"

	"mailpeek/config"
	"mailpeek/handlers/api"
	"mailpeek/mailclient"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// newMailClient builds a retrieval client for one request. Clients are never
// shared across requests; connect, fetch and disconnect happen inside a
// single handler call.
func newMailClient(cfg *config.Config, resolver *mailclient.Resolver) *mailclient.Client {
	return mailclient.New(resolver, mailclient.Options{
		Mailbox:          cfg.Mail.Mailbox,
		DialTimeout:      cfg.Mail.ConnectTimeout(),
		CommandTimeout:   cfg.Mail.CommandTimeout(),
		FetchConcurrency: cfg.Mail.FetchConcurrency,
	})
}

// sessionCredentials unseals the login pair stored by HandleLogin.
func sessionCredentials(c *fiber.Ctx, store *session.Store, key string) (*api.Credentials, error) {
	sess, err := store.Get(c)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}

	sealed, ok := sess.Get("credentials").(string)
	if !ok || sealed == "" {
		return nil, fmt.Errorf("no credentials found in session")
	}

	creds, err := api.DecryptCredentials(sealed, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %v", err)
	}
	return creds, nil
}

// mailErrorMessageID maps a retrieval error onto a translatable message ID.
// Handlers render these instead of raw protocol text.
func mailErrorMessageID(err error) string {
	var argErr *mailclient.ArgumentError
	if errors.As(err, &argErr) {
		return "error_invalid_address"
	}

	var connErr *mailclient.ConnectError
	if errors.As(err, &connErr) {
		switch connErr.Kind {
		case mailclient.FailAuth:
			return "error_auth_failed"
		case mailclient.FailMailbox:
			return "error_mailbox_unavailable"
		case mailclient.FailTLS:
			return "error_tls_failed"
		default:
			return "error_server_unreachable"
		}
	}

	var timeoutErr *mailclient.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "error_timeout"
	}

	var fetchErr *mailclient.FetchError
	if errors.As(err, &fetchErr) {
		return "error_fetch_failed"
	}

	return "error_generic"
}
