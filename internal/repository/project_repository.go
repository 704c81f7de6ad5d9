package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// PostgresProjectRepository implements domain.ProjectRepository using PostgreSQL.
// The roster lives in project_members, ordered by position.
type PostgresProjectRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresProjectRepository creates a new project repository
func NewPostgresProjectRepository(db *sql.DB, logger *slog.Logger) *PostgresProjectRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProjectRepository{db: db, logger: logger}
}

const projectColumns = `id, name, description, owner_id, status, cache_version, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*domain.Project, error) {
	p := &domain.Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.Status, &p.CacheVersion, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts the project and its initial roster in one transaction
func (r *PostgresProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO projects (id, name, description, owner_id, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query,
			project.ID, project.Name, project.Description, project.OwnerID, project.Status,
		).Scan(&project.CreatedAt, &project.UpdatedAt)
		if err != nil {
			r.logger.Error("failed to create project",
				slog.String("project_id", project.ID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("failed to create project: %w", err)
		}
		return insertMembers(ctx, tx, project)
	})
}

// GetByID retrieves a project with its roster
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if err := r.loadMembers(ctx, []*domain.Project{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns one page of projects matching filter plus the total match count
func (r *PostgresProjectRepository) List(ctx context.Context, filter domain.ProjectFilter, page domain.Page) ([]*domain.Project, int, error) {
	where := `
		WHERE ($1 = '' OR p.status = $1)
		  AND ($2 = '' OR p.owner_id = $2 OR EXISTS (
			SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $2
		  ))
	`
	args := []any{string(filter.Status), filter.VisibleTo}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `SELECT p.id, p.name, p.description, p.owner_id, p.status, p.cache_version, p.created_at, p.updated_at
		FROM projects p` + where + `
		ORDER BY p.created_at DESC, p.id
		LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		r.logger.Error("failed to list projects", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadMembers(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update writes the mutable project fields
func (r *PostgresProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	query := `
		UPDATE projects
		SET name = $1, description = $2, status = $3,
			cache_version = cache_version + 1, updated_at = now()
		WHERE id = $4
		RETURNING cache_version, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, project.Name, project.Description, project.Status, project.ID).
		Scan(&project.CacheVersion, &project.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// SaveMembers replaces the stored roster with project.Members
func (r *PostgresProjectRepository) SaveMembers(ctx context.Context, project *domain.Project) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE projects SET cache_version = cache_version + 1, updated_at = now()
			WHERE id = $1
			RETURNING cache_version, updated_at
		`, project.ID).Scan(&project.CacheVersion, &project.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to touch project: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = $1`, project.ID); err != nil {
			return fmt.Errorf("failed to clear members: %w", err)
		}
		return insertMembers(ctx, tx, project)
	})
}

// Delete removes the project's tasks and then the project in one transaction.
// tasks.project_id has no ON DELETE action, so a surviving task aborts the delete.
func (r *PostgresProjectRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete project tasks: %w", err)
		}
		removed, _ := res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrNotFound
		}

		r.logger.Debug("project deleted",
			slog.String("project_id", id),
			slog.Int64("tasks_removed", removed),
		)
		return nil
	})
}

func insertMembers(ctx context.Context, tx *sql.Tx, project *domain.Project) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role, joined_at, position)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare member insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range project.Members {
		if _, err := stmt.ExecContext(ctx, project.ID, m.UserID, m.Role, m.JoinedAt, i); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicate
			}
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}
	return nil
}

func (r *PostgresProjectRepository) loadMembers(ctx context.Context, projects []*domain.Project) error {
	if len(projects) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Project, len(projects))
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, user_id, role, joined_at
		FROM project_members
		WHERE project_id = ANY($1)
		ORDER BY project_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID string
		var m domain.Member
		if err := rows.Scan(&projectID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		if p, ok := byID[projectID]; ok {
			p.Members = append(p.Members, m)
		}
	}
	return rows.Err()
}
