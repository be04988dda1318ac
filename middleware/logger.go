package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"xandpulse/logger"
)

func LoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			path := req.URL.Path
			if req.URL.RawQuery != "" {
				path += "?" + req.URL.RawQuery
			}

			var event *zerolog.Event
			switch {
			case res.Status >= 500:
				event = logger.Error()
			case res.Status >= 400:
				event = logger.Warn()
			default:
				event = logger.Info()
			}

			event.
				Str("method", req.Method).
				Str("path", path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Msg("request")

			return nil
		}
	}
}
