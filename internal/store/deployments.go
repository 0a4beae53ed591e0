package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateDeployment persists a new QUEUED deployment for a project
func (s *Store) CreateDeployment(ctx context.Context, projectID string) (Deployment, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO deployments (id, project_id, status) VALUES (?, ?, ?)",
		id, projectID, string(StatusQueued))
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to create deployment: %w", err)
	}
	return s.GetDeployment(ctx, id)
}

// GetDeployment retrieves a deployment by ID
func (s *Store) GetDeployment(ctx context.Context, id string) (Deployment, error) {
	return s.scanDeployment(s.db.QueryRowContext(ctx, deploymentColumns+" WHERE id = ?", id))
}

// ListDeploymentsForProject returns the most recent deployments of a project
func (s *Store) ListDeploymentsForProject(ctx context.Context, projectID string, limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		deploymentColumns+" WHERE project_id = ? ORDER BY created_at DESC LIMIT ?", projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		d, err := s.scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// MarkDeploymentBuilding moves a deployment into BUILDING at the CLONING step
// and stamps started_at.
func (s *Store) MarkDeploymentBuilding(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ?, build_step = ?, started_at = ?, updated_at = ? WHERE id = ?`,
		string(StatusBuilding), string(StepCloning), now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark deployment building: %w", err)
	}
	return requireRowAffected(result)
}

// SetDeploymentStep advances the build step of a BUILDING deployment
func (s *Store) SetDeploymentStep(ctx context.Context, id string, step BuildStep) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET build_step = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(step), time.Now().UTC(), id, string(StatusBuilding))
	if err != nil {
		return fmt.Errorf("failed to set build step: %w", err)
	}
	return requireRowAffected(result)
}

// MarkDeploymentDeployed finalizes a successful deployment: terminal status,
// cleared step, host port, subdomain and completion time in one write.
func (s *Store) MarkDeploymentDeployed(ctx context.Context, id string, hostPort int, subdomain string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments
		 SET status = ?, build_step = NULL, container_port = ?, subdomain = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(StatusDeployed), hostPort, subdomain, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark deployment deployed: %w", err)
	}
	return requireRowAffected(result)
}

// MarkDeploymentFailed finalizes a failed deployment with the failure log tail
func (s *Store) MarkDeploymentFailed(ctx context.Context, id string, logs string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments
		 SET status = ?, build_step = NULL, logs = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(StatusFailed), logs, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark deployment failed: %w", err)
	}
	return requireRowAffected(result)
}

// AppendDeploymentLogs replaces the stored log tail for a deployment
func (s *Store) AppendDeploymentLogs(ctx context.Context, id string, logs string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE deployments SET logs = ?, updated_at = ? WHERE id = ?", logs, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update deployment logs: %w", err)
	}
	return requireRowAffected(result)
}

// ClearSubdomainOnOtherDeployments releases the subdomain from every other
// deployment of the project, keeping the unique-subdomain invariant while
// ownership transfers to the deployment being finalized.
func (s *Store) ClearSubdomainOnOtherDeployments(ctx context.Context, projectID, subdomain, excludeID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET subdomain = NULL, updated_at = ?
		 WHERE project_id = ? AND subdomain = ? AND id != ?`,
		time.Now().UTC(), projectID, subdomain, excludeID)
	if err != nil {
		return fmt.Errorf("failed to clear subdomain on other deployments: %w", err)
	}
	return nil
}

// LookupRoute resolves a subdomain to the host port of its DEPLOYED
// deployment. This is the read side of the reverse-proxy contract.
func (s *Store) LookupRoute(ctx context.Context, subdomain string) (Route, error) {
	var port int
	err := s.db.QueryRowContext(ctx,
		`SELECT container_port FROM deployments
		 WHERE subdomain = ? AND status = ? AND container_port IS NOT NULL`,
		subdomain, string(StatusDeployed)).Scan(&port)
	if err == sql.ErrNoRows {
		return Route{}, ErrNotFound
	}
	if err != nil {
		return Route{}, fmt.Errorf("failed to lookup route: %w", err)
	}
	return Route{
		Subdomain: subdomain,
		HostPort:  port,
		Target:    fmt.Sprintf("127.0.0.1:%d", port),
	}, nil
}

// FailOrphanedBuilding marks BUILDING deployments older than the cutoff as
// FAILED. Run at worker startup to recover rows orphaned by a crash.
func (s *Store) FailOrphanedBuilding(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments
		 SET status = ?, build_step = NULL, logs = ?, completed_at = ?, updated_at = ?
		 WHERE status = ? AND updated_at < ?`,
		string(StatusFailed), reason, now, now, string(StatusBuilding), olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep orphaned deployments: %w", err)
	}
	return result.RowsAffected()
}

const deploymentColumns = `SELECT id, project_id, status, build_step, container_port, subdomain, logs,
	started_at, completed_at, created_at, updated_at FROM deployments`

func (s *Store) scanDeployment(row rowScanner) (Deployment, error) {
	var d Deployment
	var status string
	var step sql.NullString
	var port sql.NullInt64
	var subdomain sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&d.ID, &d.ProjectID, &status, &step, &port, &subdomain, &d.Logs,
		&startedAt, &completedAt, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return Deployment{}, ErrNotFound
	}
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to scan deployment: %w", err)
	}

	d.Status = DeploymentStatus(status)
	if step.Valid {
		bs := BuildStep(step.String)
		d.BuildStep = &bs
	}
	if port.Valid {
		p := int(port.Int64)
		d.ContainerPort = &p
	}
	if subdomain.Valid {
		d.Subdomain = &subdomain.String
	}
	if startedAt.Valid {
		d.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		d.CompletedAt = &completedAt.Time
	}
	return d, nil
}
