package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-rating-service/internal/token"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's payload into the request context. Handlers can
// read the authenticated identity via c.Get("user_id"), c.Get("role") and
// c.Get("nickname"). Verification failures reject the request before any
// business logic runs.
func JWTAuth(tokens *token.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			payload, err := tokens.DecodeAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set("user_id", payload.ID)
			c.Set("role", payload.Role)
			c.Set("nickname", payload.Nickname)
			return next(c)
		}
	}
}
