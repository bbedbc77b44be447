package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/chenwt/key-reservation/internal/config"
	"github.com/chenwt/key-reservation/internal/handler"
	"github.com/chenwt/key-reservation/internal/middleware"
)

// Register wires every route of the service onto the provided Echo
// instance.  Public booking endpoints are rate limited per caller; the
// read-only catalog endpoints additionally sit behind the Redis response
// cache; admin endpoints require a valid ADMIN JWT.
func Register(e *echo.Echo, cfg config.Config, rdb *redis.Client,
	rent *handler.RentHandler, catalog *handler.CatalogHandler,
	admin *handler.AdminHandler, auth *handler.AuthHandler) {

	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Member-facing endpoints.  Members carry no session; the rent form
	// includes the shared password and returns are matched by phone.
	pub := e.Group("/v1", limiter)
	pub.GET("/keys", catalog.ListKeys, cache)
	pub.GET("/schedule", catalog.GetSchedule, cache)
	pub.POST("/rents", rent.SubmitRent)
	pub.POST("/returns", rent.SubmitReturn)
	pub.POST("/auth/login", auth.Login)

	// Administrator endpoints.
	adm := e.Group("/v1/admin")
	adm.Use(middleware.JWTAuth(cfg.JWTSecret))
	adm.Use(middleware.RequireRole("ADMIN"))
	adm.GET("/me", auth.Me)
	adm.GET("/leases", admin.ListLeases)
	adm.PATCH("/leases/status", admin.UpdateLeaseStatus)
	adm.PUT("/keys", admin.ReplaceKeys)
}
