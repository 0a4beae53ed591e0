package store

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound  = errors.New("resource not found")
	ErrSlugTaken = errors.New("slug already in use")
)

// Framework identifies the build recipe used for a project
type Framework string

const (
	FrameworkStatic Framework = "STATIC"
	FrameworkNodeJS Framework = "NODEJS"
	FrameworkNextJS Framework = "NEXTJS"
	FrameworkDjango Framework = "DJANGO"
)

// IsFrameworkValid checks if the given framework is supported
func IsFrameworkValid(f Framework) bool {
	switch f {
	case FrameworkStatic, FrameworkNodeJS, FrameworkNextJS, FrameworkDjango:
		return true
	}
	return false
}

// DeploymentStatus is the lifecycle state of a deployment
type DeploymentStatus string

const (
	StatusQueued   DeploymentStatus = "QUEUED"
	StatusBuilding DeploymentStatus = "BUILDING"
	StatusDeployed DeploymentStatus = "DEPLOYED"
	StatusFailed   DeploymentStatus = "FAILED"
)

// IsTerminal reports whether the status is a terminal state
func (s DeploymentStatus) IsTerminal() bool {
	return s == StatusDeployed || s == StatusFailed
}

// BuildStep marks pipeline progress while a deployment is BUILDING
type BuildStep string

const (
	StepCloning       BuildStep = "CLONING"
	StepBuildingImage BuildStep = "BUILDING_IMAGE"
	StepStarting      BuildStep = "STARTING"
)

// Project represents a registered source repository
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	RepoURL   string    `json:"repo_url"`
	Framework Framework `json:"framework"`
	Branch    string    `json:"branch"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deployment is a single attempt to build and run a project
type Deployment struct {
	ID            string           `json:"id"`
	ProjectID     string           `json:"project_id"`
	Status        DeploymentStatus `json:"status"`
	BuildStep     *BuildStep       `json:"build_step,omitempty"`
	ContainerPort *int             `json:"container_port,omitempty"`
	Subdomain     *string          `json:"subdomain,omitempty"`
	Logs          string           `json:"logs,omitempty"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Route is the reverse-proxy view of a deployed project
type Route struct {
	Subdomain string `json:"subdomain"`
	HostPort  int    `json:"host_port"`
	Target    string `json:"target"`
}
