package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
)

// CSRFConfig holds CSRF protection configuration
type CSRFConfig struct {
	TokenLength  int
	CookieName   string
	HeaderName   string
	FormField    string
	ContextKey   string
	CookieMaxAge int
	Skipper      func(*fiber.Ctx) bool
}

// DefaultCSRFConfig returns default CSRF configuration
func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		TokenLength:  32,
		CookieName:   "csrf_token",
		HeaderName:   "X-CSRF-Token",
		FormField:    "csrf_token",
		ContextKey:   "csrf",
		CookieMaxAge: 3600, // 1 hour
	}
}

// CSRFProtection implements double-submit CSRF checking. Safe methods issue
// the token and expose it under Locals("csrf") for templates; state-changing
// requests must echo it in the X-CSRF-Token header or the csrf_token form
// field.
func CSRFProtection(config ...CSRFConfig) fiber.Handler {
	cfg := DefaultCSRFConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if cfg.Skipper != nil && cfg.Skipper(c) {
			return c.Next()
		}

		if c.Method() == fiber.MethodGet ||
			c.Method() == fiber.MethodHead ||
			c.Method() == fiber.MethodOptions {
			issueCSRFToken(c, cfg)
			return c.Next()
		}

		cookieToken := c.Cookies(cfg.CookieName)
		sentToken := c.Get(cfg.HeaderName)
		if sentToken == "" {
			sentToken = c.FormValue(cfg.FormField)
		}

		if cookieToken == "" || sentToken == "" {
			return utils.ForbiddenError("CSRF token missing", nil)
		}
		if !tokensEqual(cookieToken, sentToken) {
			return utils.ForbiddenError("CSRF token mismatch", nil)
		}

		// Keep the token available for the response render.
		c.Locals(cfg.ContextKey, cookieToken)
		return c.Next()
	}
}

// issueCSRFToken reuses the cookie token when present so open tabs stay
// valid, generating a fresh one otherwise.
func issueCSRFToken(c *fiber.Ctx, cfg CSRFConfig) {
	token := c.Cookies(cfg.CookieName)
	if token == "" {
		token = generateToken(cfg.TokenLength)
		c.Cookie(&fiber.Cookie{
			Name:     cfg.CookieName,
			Value:    token,
			MaxAge:   cfg.CookieMaxAge,
			HTTPOnly: true,
			SameSite: "Strict",
			Secure:   false, // Set to true in production with HTTPS
		})
	}
	c.Locals(cfg.ContextKey, token)
}

// generateToken generates a random token
func generateToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(b)
}

// tokensEqual performs constant-time comparison of tokens
func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
