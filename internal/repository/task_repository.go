package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// PostgresTaskRepository implements domain.TaskRepository using PostgreSQL
type PostgresTaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTaskRepository creates a new task repository
func NewPostgresTaskRepository(db *sql.DB, logger *slog.Logger) *PostgresTaskRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskRepository{db: db, logger: logger}
}

const taskColumns = `id, title, description, status, priority, project_id, assignee_id,
	creator_id, due_date, completed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	t := &domain.Task{}
	var assignee sql.NullString
	var due, completed sql.NullTime
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID,
		&assignee, &t.CreatorID, &due, &completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	if due.Valid {
		t.DueDate = &due.Time
	}
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// bumpProjectVersion moves the project owning taskID to a new cache version
// inside tx, so the bump commits or rolls back with the task write.
func bumpProjectVersion(ctx context.Context, tx *sql.Tx, taskID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projects SET cache_version = cache_version + 1
		WHERE id = (SELECT project_id FROM tasks WHERE id = $1)
	`, taskID)
	if err != nil {
		return fmt.Errorf("failed to bump project cache version: %w", err)
	}
	return nil
}

// Create inserts a new task
func (r *PostgresTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO tasks (id, title, description, status, priority, project_id,
				assignee_id, creator_id, due_date, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query,
			task.ID, task.Title, task.Description, task.Status, task.Priority, task.ProjectID,
			nullString(task.AssigneeID), task.CreatorID, nullTime(task.DueDate), nullTime(task.CompletedAt),
		).Scan(&task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			r.logger.Error("failed to create task",
				slog.String("task_id", task.ID),
				slog.String("project_id", task.ProjectID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("failed to create task: %w", err)
		}
		return bumpProjectVersion(ctx, tx, task.ID)
	})
}

// GetByID retrieves a task with its comments
func (r *PostgresTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if err := r.loadComments(ctx, []*domain.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// taskOrderBy builds a whitelisted ORDER BY clause. Ties break on created_at then id.
func taskOrderBy(sort domain.TaskSort) string {
	dir := "DESC"
	if sort.Order == domain.SortAsc {
		dir = "ASC"
	}

	var primary string
	switch sort.Field {
	case domain.SortByDueDate:
		primary = "due_date " + dir + " NULLS LAST, "
	case domain.SortByPriority:
		primary = "CASE priority WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END " + dir + ", "
	}
	return " ORDER BY " + primary + "created_at " + dir + ", id " + dir
}

// List returns one page of tasks matching filter plus the total match count
func (r *PostgresTaskRepository) List(ctx context.Context, filter domain.TaskFilter, sort domain.TaskSort, page domain.Page) ([]*domain.Task, int, error) {
	conds := []string{"project_id = $1"}
	args := []any{filter.ProjectID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Priority != "" {
		add("priority = $%d", filter.Priority)
	}
	if filter.AssigneeID != "" {
		add("assignee_id = $%d", filter.AssigneeID)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + taskOrderBy(sort) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		r.logger.Error("failed to list tasks",
			slog.String("project_id", filter.ProjectID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadComments(ctx, tasks); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Update persists every mutable field in a single statement
func (r *PostgresTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4,
			assignee_id = $5, due_date = $6, completed_at = $7, updated_at = now()
		WHERE id = $8
		RETURNING updated_at
	`
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			task.Title, task.Description, task.Status, task.Priority,
			nullString(task.AssigneeID), nullTime(task.DueDate), nullTime(task.CompletedAt), task.ID,
		).Scan(&task.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			r.logger.Error("failed to update task",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("failed to update task: %w", err)
		}
		return bumpProjectVersion(ctx, tx, task.ID)
	})
}

// Delete removes a task; comments go with it via ON DELETE CASCADE
func (r *PostgresTaskRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := bumpProjectVersion(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// AddComment appends a comment to a task
func (r *PostgresTaskRepository) AddComment(ctx context.Context, taskID string, comment *domain.Comment) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = now() WHERE id = $1`, taskID)
		if err != nil {
			return fmt.Errorf("failed to touch task: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_comments (id, task_id, author_id, text, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, comment.ID, taskID, comment.AuthorID, comment.Text, comment.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to add comment: %w", err)
		}
		return bumpProjectVersion(ctx, tx, taskID)
	})
}

// Stats aggregates a project's tasks in one grouped query
func (r *PostgresTaskRepository) Stats(ctx context.Context, projectID string, now time.Time) (domain.TaskStats, error) {
	stats := domain.NewTaskStats()
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, priority, COUNT(*),
			COUNT(*) FILTER (WHERE due_date < $2 AND status <> 'DONE')
		FROM tasks
		WHERE project_id = $1
		GROUP BY status, priority
	`, projectID, now)
	if err != nil {
		return stats, fmt.Errorf("failed to compute task stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.TaskStatus
		var priority domain.TaskPriority
		var count, overdue int
		if err := rows.Scan(&status, &priority, &count, &overdue); err != nil {
			return stats, fmt.Errorf("failed to scan task stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
		stats.Overdue += overdue
	}
	return stats, rows.Err()
}

// ListOverdue returns one keyset page of assigned, unfinished tasks whose due
// date has passed
func (r *PostgresTaskRepository) ListOverdue(ctx context.Context, now time.Time, after *domain.OverdueCursor, limit int) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE due_date < $1 AND status <> 'DONE' AND assignee_id IS NOT NULL`
	args := []any{now, limit}
	if after != nil {
		query += ` AND (due_date, id) > ($3, $4)`
		args = append(args, after.DueDate, after.ID)
	}
	query += `
		ORDER BY due_date ASC, id
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresTaskRepository) loadComments(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Task, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT task_id, id, author_id, text, created_at
		FROM task_comments
		WHERE task_id = ANY($1)
		ORDER BY task_id, seq
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID string
		var c domain.Comment
		if err := rows.Scan(&taskID, &c.ID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Comments = append(t.Comments, c)
		}
	}
	return rows.Err()
}
