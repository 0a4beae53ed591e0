package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dropdeploy/dropdeploy/internal/dockerx"
	"github.com/dropdeploy/dropdeploy/internal/store"
	"github.com/dropdeploy/dropdeploy/internal/terminal"
)

// TerminalRequest carries an operator command for a project's container
type TerminalRequest struct {
	Command string `json:"command" binding:"required,min=1,max=1000"`
}

// Terminal executes a command or shortcut inside a project's running
// container. Only DEPLOYED projects have a container to talk to.
func (h *Handlers) Terminal(c *gin.Context) {
	var req TerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 35*time.Second)
	defer cancel()

	project, err := h.ownedProject(ctx, c)
	if err != nil {
		handleError(c, err)
		return
	}

	deployed, err := h.projectIsDeployed(ctx, project.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	if !deployed {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "project is not deployed"})
		return
	}

	containerName := dockerx.ContainerName(h.prefix, project.Slug)

	var result terminal.Result
	if strings.HasPrefix(req.Command, "/") {
		result, err = h.gateway.ExecuteShortcut(ctx, containerName, req.Command)
	} else {
		result, err = h.gateway.Execute(ctx, containerName, req.Command)
	}
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// projectIsDeployed reports whether any of the project's 10 most recent
// deployments is DEPLOYED; older deployments are not checked.
func (h *Handlers) projectIsDeployed(ctx context.Context, projectID string) (bool, error) {
	deployments, err := h.store.ListDeploymentsForProject(ctx, projectID, 10)
	if err != nil {
		return false, err
	}
	for _, d := range deployments {
		if d.Status == store.StatusDeployed {
			return true, nil
		}
	}
	return false, nil
}
