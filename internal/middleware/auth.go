package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"clinic-schedule-ingest/internal/auth"
)

// UserIDKey is the echo context key carrying the authenticated user id.
const UserIDKey = "uid"

// skip auth for these
var open = map[string]bool{
	"/healthz":       true,
	"/v1/auth/token": true,
}

// Auth validates the bearer token and stashes the user id on the context.
func Auth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if open[c.Path()] {
				return next(c)
			}

			// token from Authorization: Bearer <jwt>
			raw := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token")
			}

			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "bad token")
			}

			c.Set(UserIDKey, claims.UserID)
			return next(c)
		}
	}
}

// UserID reads the authenticated user id off the context.
func UserID(c echo.Context) string {
	uid, _ := c.Get(UserIDKey).(string)
	return uid
}
