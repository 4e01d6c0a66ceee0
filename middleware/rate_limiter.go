package middleware

import (
	"fmt"
	"sync"
	"time"

	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter throttles each client IP to requests per duration. Mail
// servers lock accounts after repeated failed logins, so the app refuses
// hammering before it reaches them.
func RateLimiter(requests int, duration time.Duration) fiber.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		clients = make(map[string]*client)
		mu      sync.Mutex
	)

	// Cleanup old clients every 5 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.lastSeen) > 10*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *fiber.Ctx) error {
		ip := c.IP()

		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			limiter := rate.NewLimiter(rate.Every(duration/time.Duration(requests)), requests)
			cl = &client{limiter: limiter}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			utils.Log.WithField("ip", ip).Warn("Rate limit exceeded")
			c.Set("Retry-After", fmt.Sprintf("%d", int(duration.Seconds())))
			return utils.NewAppError(fiber.StatusTooManyRequests,
				"Rate limit exceeded. Please try again later.", nil)
		}

		return c.Next()
	}
}
