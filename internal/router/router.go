// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// Deps is everything the routes need.  Redis may be nil; rate limiting and
// caching are then disabled.
type Deps struct {
	Reservations handler.ReservationService
	Payments     handler.PaymentService
	DB           handler.Pinger
	Redis        *redis.Client
	JWTSecret    string
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	Log          *zap.Logger
}

var anyRole = []string{model.RoleDriver, model.RoleStaff, model.RoleAdmin}

// New builds the Echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())

	Register(e, d)
	return e
}

// Register maps the routes onto e.
func Register(e *echo.Echo, d Deps) {
	rh := handler.NewReservationHandler(d.Reservations, d.Log)
	ph := handler.NewPaymentHandler(d.Payments, d.Reservations, d.Log)
	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

	// public
	e.GET("/healthz", handler.Health(d.DB))
	e.GET("/v1/parking-areas/:id/availability", rh.Availability, limiter, middleware.NewRedisCache(d.Cache, d.Redis))
	// gateway callback; authenticated by its digest
	e.POST("/v1/payments/notify", ph.Notify)

	auth := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(anyRole...), limiter)
	registerReservations(auth, rh, ph)
	registerPayments(auth, ph)
}

func registerReservations(g *echo.Group, rh *handler.ReservationHandler, ph *handler.PaymentHandler) {
	staff := middleware.RequireRole(model.RoleStaff, model.RoleAdmin)
	admin := middleware.RequireRole(model.RoleAdmin)

	g.POST("/reservations", rh.Create)
	g.POST("/reservations/on-spot", rh.CreateOnSpot, staff)
	g.GET("/reservations", rh.List)
	g.GET("/reservations/active", rh.Active, staff)
	g.GET("/reservations/:id", rh.Get)
	g.PATCH("/reservations/:id", rh.Update)
	g.DELETE("/reservations/:id", rh.Delete, admin)
	g.POST("/reservations/:id/cancel", rh.Cancel)
	g.POST("/reservations/:id/complete", rh.Complete, staff)
	g.POST("/reservations/:id/change-slot", rh.ChangeSlot, staff)
	g.PATCH("/reservations/:id/payment-status", rh.UpdatePaymentStatus, admin)
	g.GET("/reservations/:id/amount", rh.Amount)
	g.GET("/reservations/:id/payments", ph.List)
	g.POST("/reservations/:id/payments", ph.Record, staff)
}

func registerPayments(g *echo.Group, ph *handler.PaymentHandler) {
	g.POST("/payments/token", ph.Token)
	g.POST("/payments/:id/refund", ph.Refund, middleware.RequireRole(model.RoleAdmin))
}
