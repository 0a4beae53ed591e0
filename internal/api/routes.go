package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers all HTTP routes
func SetupRoutes(r *gin.Engine, h *Handlers, corsOrigins []string) {
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", h.Health)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/v1")

	// Consumed by the reverse proxy; no end-user identity involved
	v1.GET("/routes/:subdomain", h.LookupRoute)
	v1.GET("/system", h.System)

	authed := v1.Group("")
	authed.Use(RequireUser())
	{
		authed.POST("/projects", h.CreateProject)
		authed.GET("/projects", h.ListProjects)
		authed.GET("/projects/:id", h.GetProject)
		authed.DELETE("/projects/:id", h.DeleteProject)
		authed.POST("/projects/:id/deploy", h.Deploy)
		authed.POST("/projects/:id/terminal", h.Terminal)
		authed.GET("/deployments/:id", h.GetDeployment)
	}
}
