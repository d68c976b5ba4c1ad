package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are stripped from inbound requests before they reach a handler.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that adds security headers
// and strips hop-by-hop headers from requests.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			// Set before next: headers are frozen once the handler writes.
			rh := c.Response().Header()
			rh.Set("X-Content-Type-Options", "nosniff")
			rh.Set("X-Frame-Options", "DENY")
			rh.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
