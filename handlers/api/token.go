package api

import (
	"errors"
	"strings"
	"time"

	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the authenticated mailbox address inside the session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed token for one login session.
func GenerateToken(email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken verifies a token's signature and expiry and returns its claims.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GetSessionToken reads the login token out of the fiber session.
func GetSessionToken(c *fiber.Ctx, store *session.Store) (string, error) {
	sess, err := store.Get(c)
	if err != nil {
		return "", err
	}

	token, ok := sess.Get("token").(string)
	if !ok || token == "" {
		return "", errors.New("no token in session")
	}
	return token, nil
}

// SessionMiddleware guards routes behind an authenticated session. Browser
// requests bounce to the login page; API, HTMX and WebSocket requests get
// a plain 401 instead.
func SessionMiddleware(store *session.Store, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return denyUnauthenticated(c)
		}

		authenticated, _ := sess.Get("authenticated").(bool)
		token, _ := sess.Get("token").(string)
		if !authenticated || token == "" {
			return denyUnauthenticated(c)
		}

		claims, err := ValidateToken(token, secret)
		if err != nil {
			// Expired or tampered token: drop the whole session.
			if destroyErr := sess.Destroy(); destroyErr != nil {
				utils.Log.WithError(destroyErr).Warn("Failed to destroy stale session")
			}
			return denyUnauthenticated(c)
		}

		c.Locals("email", claims.Email)
		return c.Next()
	}
}

func denyUnauthenticated(c *fiber.Ctx) error {
	if c.Get("HX-Request") != "" ||
		strings.HasPrefix(c.Path(), "/api") ||
		strings.HasPrefix(c.Path(), "/ws") {
		return utils.UnauthorizedError("Authentication required", nil)
	}
	return c.Redirect("/login")
}
