package web

import (
	"context"
	"errors"

	"mailpeek/config"
	"mailpeek/handlers/api"
	"mailpeek/mailclient"
	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
)

// InboxHandler serves the message list. Every request opens its own mail
// session and closes it before returning; nothing fetched is cached between
// requests.
type InboxHandler struct {
	store    *session.Store
	config   *config.Config
	resolver *mailclient.Resolver
	notifier *api.NotificationHandler
}

// NewInboxHandler creates a new instance of InboxHandler.
func NewInboxHandler(store *session.Store, config *config.Config, resolver *mailclient.Resolver, notifier *api.NotificationHandler) *InboxHandler {
	return &InboxHandler{
		store:    store,
		config:   config,
		resolver: resolver,
		notifier: notifier,
	}
}

// HandleInbox renders the full inbox page.
func (h *InboxHandler) HandleInbox(c *fiber.Ctx) error {
	return h.serveInbox(c, "inbox")
}

// HandleInboxPartial renders just the message list for HTMX refreshes.
func (h *InboxHandler) HandleInboxPartial(c *fiber.Ctx) error {
	return h.serveInbox(c, "partials/messages")
}

func (h *InboxHandler) serveInbox(c *fiber.Ctx, view string) error {
	limit := h.limit(c)
	localizer, _ := c.Locals("localizer").(*i18n.Localizer)

	creds, err := sessionCredentials(c, h.store, h.config.Encryption.Key)
	if err != nil {
		utils.Log.WithError(err).Warn("Inbox request without usable credentials")
		return h.redirectToLogin(c)
	}

	result, err := h.fetchInbox(c, creds, limit)
	warning := ""
	if err != nil {
		// Stale password: the stored credentials no longer work, so the
		// only way forward is a fresh login.
		var connErr *mailclient.ConnectError
		if errors.As(err, &connErr) && connErr.Kind == mailclient.FailAuth {
			utils.Log.WithField("email", creds.Email).Info("Stored credentials rejected, ending session")
			return h.redirectToLogin(c)
		}

		var fetchErr *mailclient.FetchError
		if errors.As(err, &fetchErr) && result != nil && len(result.Summaries) > 0 {
			// Partial batch: show what arrived plus a warning banner.
			warning = utils.T(localizer, "warning_partial_fetch")
		} else {
			utils.Log.WithError(err).Warn("Inbox fetch failed")
			return h.renderInbox(c, view, fiber.Map{
				"Email": creds.Email,
				"Error": utils.T(localizer, mailErrorMessageID(err)),
				"Limit": limit,
			})
		}
	}

	data := fiber.Map{
		"Email":    creds.Email,
		"Messages": result.Summaries,
		"Total":    result.Total,
		"Warnings": result.Warnings,
		"Warning":  warning,
		"Limit":    limit,
		"TraceID":  result.TraceID,
	}
	return h.renderInbox(c, view, data)
}

// fetchInbox runs one full connect-fetch-disconnect cycle.
func (h *InboxHandler) fetchInbox(c *fiber.Ctx, creds *api.Credentials, limit int) (*mailclient.FetchResult, error) {
	client := newMailClient(h.config, h.resolver)
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(c.Context(), h.config.Mail.FetchTimeout())
	defer cancel()

	if err := client.Connect(ctx, creds.Email, creds.Password); err != nil {
		return nil, err
	}

	result, err := client.Fetch(ctx, limit)
	if err == nil {
		utils.Log.WithFields(logrus.Fields{
			"email":    creds.Email,
			"count":    len(result.Summaries),
			"total":    result.Total,
			"trace_id": result.TraceID,
		}).Info("Inbox fetched")
		h.notifier.RecordFetch(creds.Email, result.Total, result.Warnings)
	}
	return result, err
}

// limit clamps ?limit to [1, max_limit], falling back to the default.
func (h *InboxHandler) limit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", h.config.Mail.DefaultLimit)
	if limit < 1 {
		limit = h.config.Mail.DefaultLimit
	}
	if limit > h.config.Mail.MaxLimit {
		limit = h.config.Mail.MaxLimit
	}
	return limit
}

func (h *InboxHandler) renderInbox(c *fiber.Ctx, view string, data fiber.Map) error {
	data["Lang"] = c.Locals("lang")
	data["CSRFToken"] = c.Locals("csrf")
	if view == "inbox" {
		return c.Render(view, data)
	}
	// Partial for HTMX: explicitly no layout.
	return c.Render(view, data, "")
}

func (h *InboxHandler) redirectToLogin(c *fiber.Ctx) error {
	if sess, err := h.store.Get(c); err == nil {
		if destroyErr := sess.Destroy(); destroyErr != nil {
			utils.Log.WithError(destroyErr).Warn("Failed to destroy session")
		}
	}
	if c.Get("HX-Request") != "" {
		c.Set("HX-Redirect", "/login")
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	return c.Redirect("/login")
}
