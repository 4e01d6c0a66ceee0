package web

import (
	"context"
	"errors"
	"strings"

	"mailpeek/config"
	"mailpeek/handlers/api"
	"mailpeek/mailclient"
	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// AuthHandler owns the login and logout flows. Login validates the address
// and password by opening a real mail session, then keeps only the sealed
// credentials and a signed token in the server-side session.
type AuthHandler struct {
	store    *session.Store
	config   *config.Config
	resolver *mailclient.Resolver
}

// NewAuthHandler creates a new instance of AuthHandler.
func NewAuthHandler(store *session.Store, config *config.Config, resolver *mailclient.Resolver) *AuthHandler {
	return &AuthHandler{
		store:    store,
		config:   config,
		resolver: resolver,
	}
}

// ShowLogin renders the login page.
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err == nil {
		if authenticated, _ := sess.Get("authenticated").(bool); authenticated {
			return c.Redirect("/inbox")
		}
	}
	return c.Render("login", fiber.Map{
		"CSRFToken": c.Locals("csrf"),
		"Lang":      c.Locals("lang"),
	})
}

// HandleLogin processes the login form.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return utils.InternalServerError("Session error", err)
	}

	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	if email == "" || password == "" {
		return h.renderLoginError(c, fiber.StatusBadRequest, email, "error_missing_fields")
	}

	// Validate the pair by opening a real session, then drop it. Inbox
	// requests reconnect with the sealed credentials.
	client := newMailClient(h.config, h.resolver)
	ctx, cancel := context.WithTimeout(c.Context(), h.config.Mail.FetchTimeout())
	defer cancel()

	err = client.Connect(ctx, email, password)
	client.Disconnect()
	if err != nil {
		utils.Log.WithError(err).Info("Login validation failed")
		status := fiber.StatusUnauthorized
		var argErr *mailclient.ArgumentError
		if errors.As(err, &argErr) {
			status = fiber.StatusBadRequest
		}
		return h.renderLoginError(c, status, email, mailErrorMessageID(err))
	}

	token, err := api.GenerateToken(email, h.config.JWT.Secret, h.config.Session.TTL())
	if err != nil {
		return h.renderLoginError(c, fiber.StatusInternalServerError, email, "error_token")
	}

	sealed, err := api.EncryptCredentials(email, password, h.config.Encryption.Key)
	if err != nil {
		return h.renderLoginError(c, fiber.StatusInternalServerError, email, "error_seal")
	}

	sess.Set("authenticated", true)
	sess.Set("email", email)
	sess.Set("token", token)
	sess.Set("credentials", sealed)
	sess.SetExpiry(h.config.Session.TTL())

	if err := sess.Save(); err != nil {
		return h.renderLoginError(c, fiber.StatusInternalServerError, email, "error_session")
	}

	utils.Log.WithField("email", email).Info("User logged in")
	return c.Redirect("/inbox")
}

// HandleLogout destroys the session and returns to the login page.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Redirect("/login")
	}

	email, _ := sess.Get("email").(string)
	if err := sess.Destroy(); err != nil {
		utils.Log.WithError(err).Error("Failed to destroy session on logout")
		return utils.InternalServerError("Error during logout", err)
	}

	if email != "" {
		utils.Log.WithField("email", email).Info("User logged out")
	}
	return c.Redirect("/login")
}

func (h *AuthHandler) renderLoginError(c *fiber.Ctx, status int, email, messageID string) error {
	localizer, _ := c.Locals("localizer").(*i18n.Localizer)
	return c.Status(status).Render("login", fiber.Map{
		"Error":     utils.T(localizer, messageID),
		"Email":     email,
		"CSRFToken": c.Locals("csrf"),
		"Lang":      c.Locals("lang"),
	})
}
