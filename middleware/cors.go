package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// CORSMiddleware allows the given origins, or any origin when none are set.
func CORSMiddleware(origins []string) echo.MiddlewareFunc {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowed,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
		},
		ExposeHeaders: []string{"X-Data-Stale"},
	})
}
