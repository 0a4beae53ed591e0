package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProjectSpec holds the fields required to register a project
type ProjectSpec struct {
	UserID    string
	Name      string
	Slug      string
	RepoURL   string
	Framework Framework
	Branch    string
}

// CreateProject registers a new project. The slug must be globally unique;
// a constraint violation surfaces as ErrSlugTaken.
func (s *Store) CreateProject(ctx context.Context, spec ProjectSpec) (Project, error) {
	if spec.Name == "" || len(spec.Name) > 64 {
		return Project{}, fmt.Errorf("invalid project name: must be 1-64 characters")
	}
	if !IsFrameworkValid(spec.Framework) {
		return Project{}, fmt.Errorf("invalid framework: %s", spec.Framework)
	}
	if spec.Branch == "" {
		spec.Branch = "main"
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, slug, repo_url, framework, branch)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, spec.UserID, spec.Name, spec.Slug, spec.RepoURL, string(spec.Framework), spec.Branch)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: projects.slug") {
			return Project{}, ErrSlugTaken
		}
		return Project{}, fmt.Errorf("failed to create project: %w", err)
	}

	return s.GetProject(ctx, id)
}

// GetProject retrieves a project by ID
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	return s.scanProject(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, slug, repo_url, framework, branch, created_at, updated_at
		 FROM projects WHERE id = ?`, id))
}

// GetProjectBySlug retrieves a project by its slug
func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (Project, error) {
	return s.scanProject(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, slug, repo_url, framework, branch, created_at, updated_at
		 FROM projects WHERE slug = ?`, slug))
}

// ListProjectsByUser returns all projects owned by a user, newest first
func (s *Store) ListProjectsByUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, slug, repo_url, framework, branch, created_at, updated_at
		 FROM projects WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := s.scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProjectBranch switches the branch used for future deployments
func (s *Store) UpdateProjectBranch(ctx context.Context, id, branch string) error {
	if branch == "" {
		return fmt.Errorf("branch cannot be empty")
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE projects SET branch = ?, updated_at = ? WHERE id = ?", branch, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update project branch: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteProject removes a project and, via cascade, its deployments.
// Stopping the project's container is the caller's responsibility.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRowAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProject(row rowScanner) (Project, error) {
	var p Project
	var framework string
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Slug, &p.RepoURL, &framework, &p.Branch, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("failed to scan project: %w", err)
	}
	p.Framework = Framework(framework)
	return p, nil
}

func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
