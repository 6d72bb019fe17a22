package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// CSRFContextKey is where the CSRF middleware stores the token for templates.
const CSRFContextKey = "csrf"

// CSRF returns echo's CSRF middleware reading the token from the _csrf form
// field or the X-CSRF-Token header.
func CSRF(logger *zap.Logger, secure bool) echo.MiddlewareFunc {
	return echomw.CSRFWithConfig(echomw.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   secure,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   3600,
		ContextKey:     CSRFContextKey,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/static/") ||
				path == "/metrics" ||
				path == "/healthz"
		},
		ErrorHandler: func(err error, c echo.Context) error {
			logger.Warn("csrf token rejected",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err))
			return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
		},
	})
}

// CSRFToken returns the token set by CSRF, or "" when the middleware is not installed.
func CSRFToken(c echo.Context) string {
	token, _ := c.Get(CSRFContextKey).(string)
	return token
}
