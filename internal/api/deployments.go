package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dropdeploy/dropdeploy/internal/store"
)

// Deploy queues a new deployment for a project
func (h *Handlers) Deploy(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	deployment, err := h.orch.CreateDeployment(ctx, c.Param("id"), currentUser(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"deployment_id": deployment.ID,
		"message":       "deployment queued",
	})
}

// GetDeployment returns a single deployment for status polling
func (h *Handlers) GetDeployment(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deployment, err := h.store.GetDeployment(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	// Ownership travels through the project
	project, err := h.store.GetProject(ctx, deployment.ProjectID)
	if err != nil || project.UserID != currentUser(c) {
		handleError(c, store.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, deployment)
}

// LookupRoute resolves a subdomain for the reverse proxy
func (h *Handlers) LookupRoute(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	route, err := h.store.LookupRoute(ctx, c.Param("subdomain"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, route)
}
