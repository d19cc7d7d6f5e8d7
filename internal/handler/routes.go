package handler

import (
	"github.com/labstack/echo/v4"

	"thesis-service/pkg/metrics"
)

// Routes bundles the handlers and middleware mounted by RegisterRoutes.
type Routes struct {
	Health       *HealthHandler
	Applications *ThesisApplicationHandler
	Theses       *ThesisHandler
	Auth         echo.MiddlewareFunc
	SubmitLimit  echo.MiddlewareFunc
}

// RegisterRoutes mounts the public and the authenticated API routes on e.
func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/health", r.Health.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))

	api := e.Group("/api", r.Auth)

	apps := api.Group("/thesis-applications")
	apps.GET("", r.Applications.List)
	apps.GET("/last", r.Applications.Last)
	apps.GET("/eligibility", r.Applications.Eligibility)
	apps.GET("/:id", r.Applications.Get)
	apps.GET("/:id/status-history", r.Applications.History)
	if r.SubmitLimit != nil {
		apps.POST("", r.Applications.Create, r.SubmitLimit)
	} else {
		apps.POST("", r.Applications.Create)
	}
	apps.PATCH("/:id/status", r.Applications.UpdateStatus)
	apps.POST("/:id/cancel", r.Applications.Cancel)
	apps.DELETE("", r.Applications.DeleteLast)

	api.GET("/thesis", r.Theses.Get)
}
