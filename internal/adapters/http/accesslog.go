package http

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
)

// maxLoggedQuery caps the search text copied into access logs.
const maxLoggedQuery = 64

// quietPaths are polled by probes and scrapers; they log at debug.
var quietPaths = map[string]bool{
	"/v1/health": true,
	"/v1/ready":  true,
	"/metrics":   true,
}

// AccessLogMiddleware logs one structured line per request through the
// request-scoped logger. Search requests carry their (truncated) query;
// websocket upgrades are logged when the session ends.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		if q := c.Query("q"); q != "" {
			attrs = append(attrs, slog.String("q", truncateRunes(q, maxLoggedQuery)))
		}
		if rid := RequestIDFromCtx(c.UserContext()); rid == "" {
			attrs = append(attrs, slog.String("request_id", c.Get(fiber.HeaderXRequestID, "unknown")))
		}

		level := slog.LevelInfo
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case quietPaths[path]:
			level = slog.LevelDebug
		}

		LoggerFromCtx(c.UserContext()).LogAttrs(c.UserContext(), level, method+" "+path, attrs...)
		return err
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
