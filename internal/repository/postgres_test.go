package repository

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/pkg/config"
	"github.com/aryan0dhankhar/teamtasks/pkg/database"
)

func TestTaskOrderBy(t *testing.T) {
	tests := []struct {
		name string
		sort domain.TaskSort
		want string
	}{
		{"created desc", domain.TaskSort{Field: domain.SortByCreatedAt, Order: domain.SortDesc}, " ORDER BY created_at DESC, id DESC"},
		{"due asc", domain.TaskSort{Field: domain.SortByDueDate, Order: domain.SortAsc}, " ORDER BY due_date ASC NULLS LAST, created_at ASC, id ASC"},
		{"priority desc", domain.TaskSort{Field: domain.SortByPriority, Order: domain.SortDesc}, "CASE priority"},
		{"unknown field", domain.TaskSort{Field: "title; DROP TABLE tasks", Order: "sideways"}, " ORDER BY created_at DESC, id DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := taskOrderBy(tt.sort)
			if !strings.Contains(got, tt.want) {
				t.Fatalf("taskOrderBy() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

// openTestDB connects to the Postgres named by TEAMTASKS_TEST_DB_HOST and
// migrates it. Tests are skipped when it is unset.
func openTestDB(t *testing.T) *database.Pool {
	t.Helper()
	host := os.Getenv("TEAMTASKS_TEST_DB_HOST")
	if host == "" {
		t.Skip("TEAMTASKS_TEST_DB_HOST not set")
	}

	cfg := config.DatabaseConfig{
		Host:         host,
		Port:         5432,
		User:         "teamtasks",
		Password:     os.Getenv("TEAMTASKS_TEST_DB_PASSWORD"),
		Name:         "teamtasks",
		SSLMode:      "disable",
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		AutoMigrate:  true,
	}
	if port, err := strconv.Atoi(os.Getenv("TEAMTASKS_TEST_DB_PORT")); err == nil {
		cfg.Port = port
	}

	ctx := context.Background()
	pool, err := database.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if _, err := pool.DB().ExecContext(ctx,
		`TRUNCATE task_comments, tasks, project_members, projects, users`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func TestPostgresProjectLifecycle(t *testing.T) {
	pool := openTestDB(t)
	db := pool.DB()
	ctx := context.Background()

	users := NewPostgresUserRepository(db, nil)
	projects := NewPostgresProjectRepository(db, nil)
	tasks := NewPostgresTaskRepository(db, nil)

	owner := &domain.User{ID: "11111111-1111-1111-1111-111111111111", Name: "Owner", Email: "owner@example.com", PasswordHash: "x", Role: domain.GlobalRoleManager}
	if err := users.Create(ctx, owner); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := *owner
	dup.ID = "22222222-2222-2222-2222-222222222222"
	if err := users.Create(ctx, &dup); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	now := time.Now().UTC()
	project := &domain.Project{
		ID:      "33333333-3333-3333-3333-333333333333",
		Name:    "Launch",
		OwnerID: owner.ID,
		Status:  domain.ProjectStatusActive,
		Members: []domain.Member{{UserID: owner.ID, Role: domain.ProjectRoleOwner, JoinedAt: now}},
	}
	if err := projects.Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	past := now.Add(-time.Hour)
	assignee := owner.ID
	task := &domain.Task{
		ID:         "44444444-4444-4444-4444-444444444444",
		Title:      "Late task",
		Status:     domain.TaskStatusTodo,
		Priority:   domain.TaskPriorityHigh,
		ProjectID:  project.ID,
		AssigneeID: &assignee,
		CreatorID:  owner.ID,
		DueDate:    &past,
	}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := tasks.AddComment(ctx, task.ID, &domain.Comment{ID: "55555555-5555-5555-5555-555555555555", AuthorID: owner.ID, Text: "hi", CreatedAt: now}); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if stored, err := projects.GetByID(ctx, project.ID); err != nil || stored.CacheVersion != 2 {
		t.Fatalf("task create and comment should bump cache version to 2, got %+v err %v", stored, err)
	}

	overdue, err := tasks.ListOverdue(ctx, now, domain.CursorAfter(task), 10)
	if err != nil || len(overdue) != 0 {
		t.Fatalf("ListOverdue after the last task = %d tasks, err %v", len(overdue), err)
	}

	stats, err := tasks.Stats(ctx, project.ID, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 || stats.Overdue != 1 || stats.ByPriority[domain.TaskPriorityHigh] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	overdue, err = tasks.ListOverdue(ctx, now, nil, 10)
	if err != nil || len(overdue) != 1 {
		t.Fatalf("ListOverdue = %d tasks, err %v", len(overdue), err)
	}

	got, err := tasks.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if len(got.Comments) != 1 || got.Comments[0].Text != "hi" {
		t.Fatalf("unexpected comments %+v", got.Comments)
	}

	if err := projects.Delete(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := tasks.GetByID(ctx, task.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected task to be removed with its project, got %v", err)
	}
	if err := projects.Delete(ctx, project.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
