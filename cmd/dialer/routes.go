package main

import (
	"context"
	"net/http"

	"dialer-platform/internal/auth"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h *httpapi.Handlers, authMW gin.HandlerFunc, metricsHandler http.Handler, ping func(context.Context) error) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsHandler))

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			id, _ := auth.FromContext(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role})
		})

		// All dialer actions share one endpoint keyed by ?action=.
		// Admin-only actions are enforced per action in the engine and handlers.
		d := v1.Group("/dialer")
		d.Use(rbac.RequireAnyRole(rbac.RoleWorker, rbac.RoleAdmin))
		{
			d.GET("", h.Dialer)
			d.POST("", h.Dialer)
		}
	}
}
