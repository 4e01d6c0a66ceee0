package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mailpeek/config"
	"mailpeek/handlers/api"
	"mailpeek/handlers/web"
	"mailpeek/mailclient"
	"mailpeek/middleware"
	"mailpeek/storage"
	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// isAPIRequest reports whether the response should be JSON rather than a
// rendered page.
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	if c.Get("HX-Request") != "" {
		return true
	}
	path := c.Path()
	return strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/ws")
}

func main() {
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Fatalf("Failed to load config: %v", err)
	}
	utils.ConfigureLogger(cfg.Log.Level, cfg.Log.File)

	if err := utils.InitI18n(); err != nil {
		utils.Log.Errorf("Failed to initialize i18n: %v", err)
	}

	sessionStorage, err := storage.NewSessionStorage(cfg.Session.Path)
	if err != nil {
		utils.Log.Fatalf("Failed to initialize session storage: %v", err)
	}
	defer sessionStorage.Close()

	store := session.New(session.Config{
		Storage:        sessionStorage,
		Expiration:     cfg.Session.TTL(),
		CookieSecure:   false, // Set to true in production with HTTPS
		CookieHTTPOnly: true,
	})

	resolver := mailclient.NewResolver(cfg.Resolver.Servers)

	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")
	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("upper", strings.ToUpper)
	engine.AddFunc("trim", strings.TrimSpace)
	engine.AddFunc("hasPrefix", strings.HasPrefix)
	engine.AddFunc("t", func(lang interface{}, messageID string) string {
		// lang comes straight from the render binding; tolerate it missing.
		langStr, _ := lang.(string)
		return utils.T(utils.GetLocalizer(langStr), messageID)
	})
	engine.AddFunc("formatDate", func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 02, 2006 15:04")
	})

	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"

			var appErr *utils.AppError
			var fiberErr *fiber.Error
			if errors.As(err, &appErr) {
				code = appErr.Code
				message = appErr.Message
				utils.Log.WithError(err).Error("Application error")
			} else if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			} else {
				utils.Log.WithError(err).Error("Unhandled error")
			}

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": message,
				})
			}

			return c.Status(code).Render("error", fiber.Map{
				"Error": message,
				"Code":  code,
				"Lang":  c.Locals("lang"),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline';",
	}))
	app.Use(middleware.LocaleMiddleware())
	app.Use(middleware.RateLimiter(100, time.Minute))
	app.Use(middleware.CSRFProtection())

	// Serve static files
	app.Static("/assets", "./assets", fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Handlers
	notificationHandler := api.NewNotificationHandler(store)
	authHandler := web.NewAuthHandler(store, cfg, resolver)
	inboxHandler := web.NewInboxHandler(store, cfg, resolver, notificationHandler)

	// Public routes
	app.Get("/login", authHandler.ShowLogin)
	app.Post("/login", authHandler.HandleLogin)
	app.Get("/logout", authHandler.HandleLogout)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Protected routes group
	protected := app.Group("", api.SessionMiddleware(store, cfg.JWT.Secret))

	protected.Get("/", inboxHandler.HandleInbox)
	protected.Get("/inbox", inboxHandler.HandleInbox)

	// HTMX routes (partial template renders)
	htmx := protected.Group("/htmx")
	htmx.Get("/inbox", inboxHandler.HandleInboxPartial)

	// API routes
	apiRoutes := protected.Group("/api")
	apiRoutes.Get("/events", notificationHandler.HandleSSE)

	// WebSocket notifications
	protected.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	protected.Get("/ws/notifications", websocket.New(notificationHandler.HandleWebSocket))

	// 404 handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		localizer, _ := c.Locals("localizer").(*i18n.Localizer)

		if isAPIRequest(c) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": utils.T(localizer, "error_404"),
			})
		}
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"Error": utils.T(localizer, "error_404"),
			"Code":  fiber.StatusNotFound,
			"Lang":  c.Locals("lang"),
		})
	})

	utils.Log.WithField("port", cfg.Server.Port).Info("Starting mailpeek")
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Fatalf("Error starting server: %v", err)
	}
}
