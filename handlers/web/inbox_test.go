package web

import (
	"testing"

	"mailpeek/config"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

func inboxHandlerForLimits(defaultLimit, maxLimit int) *InboxHandler {
	return &InboxHandler{
		config: &config.Config{
			Mail: config.MailConfig{DefaultLimit: defaultLimit, MaxLimit: maxLimit},
		},
	}
}

func TestInboxLimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "absent uses default", query: "/inbox", want: 20},
		{name: "explicit value kept", query: "/inbox?limit=5", want: 5},
		{name: "zero falls back to default", query: "/inbox?limit=0", want: 20},
		{name: "negative falls back to default", query: "/inbox?limit=-3", want: 20},
		{name: "not a number falls back to default", query: "/inbox?limit=lots", want: 20},
		{name: "above maximum is clamped", query: "/inbox?limit=5000", want: 100},
		{name: "maximum itself passes", query: "/inbox?limit=100", want: 100},
	}

	app := fiber.New()
	h := inboxHandlerForLimits(20, 100)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fctx := &fasthttp.RequestCtx{}
			fctx.Request.SetRequestURI(tt.query)
			c := app.AcquireCtx(fctx)
			defer app.ReleaseCtx(c)

			if got := h.limit(c); got != tt.want {
				t.Errorf("limit(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}
