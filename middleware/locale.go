package middleware

import (
	"strings"

	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// LocaleMiddleware detects the user's language and stores a matching
// localizer in the request context. Order: ?lang query, lang cookie,
// Accept-Language header. An explicit ?lang choice is persisted in the
// cookie so it survives navigation.
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		fromQuery := lang != ""

		if lang == "" {
			lang = c.Cookies("lang")
		}

		if lang == "" {
			acceptLang := c.Get("Accept-Language")
			if strings.HasPrefix(acceptLang, "ru") {
				lang = "ru"
			} else {
				lang = "en"
			}
		}

		// Only allow supported languages
		if lang != "en" && lang != "ru" {
			lang = "en"
		}

		if fromQuery {
			c.Cookie(&fiber.Cookie{
				Name:     "lang",
				Value:    lang,
				MaxAge:   365 * 24 * 3600,
				HTTPOnly: true,
				SameSite: "Lax",
			})
		}

		localizer := utils.GetLocalizer(lang)

		c.Locals("localizer", localizer)
		c.Locals("lang", lang)

		utils.Log.WithFields(logrus.Fields{
			"lang": lang,
			"path": c.Path(),
		}).Debug("Locale detected")

		return c.Next()
	}
}
