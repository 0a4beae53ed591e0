package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dropdeploy/dropdeploy/internal/store"
	"github.com/dropdeploy/dropdeploy/internal/util"
)

// CreateProjectRequest represents a project registration request
type CreateProjectRequest struct {
	Name      string `json:"name" binding:"required"`
	RepoURL   string `json:"repo_url" binding:"required"`
	Framework string `json:"framework" binding:"required"`
	Branch    string `json:"branch"`
}

// CreateProject registers a repository as a deployable project
func (h *Handlers) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	framework := store.Framework(req.Framework)
	if !store.IsFrameworkValid(framework) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "framework must be one of STATIC, NODEJS, NEXTJS, DJANGO"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	// The random suffix makes collisions rare; one retry covers the rest
	var project store.Project
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		project, err = h.store.CreateProject(ctx, store.ProjectSpec{
			UserID:    currentUser(c),
			Name:      req.Name,
			Slug:      util.GenerateSlug(req.Name),
			RepoURL:   req.RepoURL,
			Framework: framework,
			Branch:    req.Branch,
		})
		if !errors.Is(err, store.ErrSlugTaken) {
			break
		}
	}
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// ListProjects returns the caller's projects
func (h *Handlers) ListProjects(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	projects, err := h.store.ListProjectsByUser(ctx, currentUser(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// ProjectResponse is a project with its recent deployments for progress UIs
type ProjectResponse struct {
	store.Project
	Deployments []store.Deployment `json:"deployments"`
}

// GetProject returns a project with its latest deployments
func (h *Handlers) GetProject(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	project, err := h.ownedProject(ctx, c)
	if err != nil {
		handleError(c, err)
		return
	}

	deployments, err := h.store.ListDeploymentsForProject(ctx, project.ID, 5)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProjectResponse{Project: project, Deployments: deployments})
}

// DeleteProject removes a project after its container is stopped and removed
func (h *Handlers) DeleteProject(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.orch.DeleteProject(ctx, c.Param("id"), currentUser(c)); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

// ownedProject loads the path project and enforces ownership; a foreign
// project reads as not found.
func (h *Handlers) ownedProject(ctx context.Context, c *gin.Context) (store.Project, error) {
	project, err := h.store.GetProject(ctx, c.Param("id"))
	if err != nil {
		return store.Project{}, err
	}
	if project.UserID != currentUser(c) {
		return store.Project{}, store.ErrNotFound
	}
	return project, nil
}
