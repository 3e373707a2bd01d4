// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/peer-rating-service/internal/config"
	"github.com/iliyamo/peer-rating-service/internal/handler"
	"github.com/iliyamo/peer-rating-service/internal/middleware"
	"github.com/iliyamo/peer-rating-service/internal/token"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Signup, login,
// logout, refresh and the verification-link landing route live under
// /v1/auth and need no session; the send-verification route requires a
// valid access token. The whole group is rate limited when Redis is
// available.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens *token.Service, rateCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/auth")
	g.Use(middleware.NewTokenBucket(rateCfg, rdb))
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.POST("/refresh", a.Refresh)
	// The landing route is hit from a mail client, so it takes no token.
	g.GET("/verify-email/:token", a.VerifyEmail)
	g.POST("/verify-email", a.SendVerifyEmail, middleware.JWTAuth(tokens))
}

// RegisterUsers registers the profile and rating endpoints. Reads are
// public; every mutation requires a valid access token and an accepted
// role.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, tokens *token.Service) {
	e.GET("/v1/users", u.List)
	e.GET("/v1/users/:nickname", u.GetByNickname)

	g := e.Group("/v1/users")
	g.Use(middleware.JWTAuth(tokens))
	g.Use(middleware.RequireRole("user", "moderator", "admin"))
	g.PATCH("/:id", u.Edit)
	g.DELETE("/:id", u.Delete)
	g.POST("/:id/rating", u.Vote)
	g.POST("/:id/avatar", u.UploadAvatar)
}
