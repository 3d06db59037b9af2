package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const ctxClientKey = "client_key"

// ClientKeyFromCtx returns the API key accepted by APIKeyMiddleware, if any.
func ClientKeyFromCtx(c echo.Context) (string, bool) {
	v, ok := c.Get(ctxClientKey).(string)
	return v, ok && v != ""
}

// APIKeyMiddleware authenticates requests using the X-API-Key header against a
// static key list. With no keys configured every request passes.
func APIKeyMiddleware(keys []string) echo.MiddlewareFunc {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(allowed) == 0 {
				return next(c)
			}
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "missing api key"})
			}
			for _, a := range allowed {
				if subtle.ConstantTimeCompare(a, []byte(key)) == 1 {
					c.Set(ctxClientKey, key)
					return next(c)
				}
			}
			return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid api key"})
		}
	}
}
