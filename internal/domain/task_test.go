package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusTodo, TaskStatusTodo, false},
		{TaskStatusTodo, TaskStatusInProgress, true},
		{TaskStatusTodo, TaskStatusDone, false},
		{TaskStatusInProgress, TaskStatusTodo, true},
		{TaskStatusInProgress, TaskStatusInProgress, false},
		{TaskStatusInProgress, TaskStatusDone, true},
		{TaskStatusDone, TaskStatusTodo, true},
		{TaskStatusDone, TaskStatusInProgress, true},
		{TaskStatusDone, TaskStatusDone, false},
		{"BLOCKED", TaskStatusTodo, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSetStatusKeepsCompletedAt(t *testing.T) {
	now := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	task := &Task{Status: TaskStatusInProgress}

	task.SetStatus(TaskStatusDone, now)
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("expected completedAt %v, got %v", now, task.CompletedAt)
	}

	task.SetStatus(TaskStatusTodo, now.Add(time.Hour))
	if task.CompletedAt != nil {
		t.Fatalf("expected completedAt cleared, got %v", task.CompletedAt)
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"no due date", Task{Status: TaskStatusTodo}, false},
		{"past due", Task{Status: TaskStatusTodo, DueDate: &past}, true},
		{"due exactly now", Task{Status: TaskStatusTodo, DueDate: &now}, false},
		{"done", Task{Status: TaskStatusDone, DueDate: &past}, false},
	}
	for _, tt := range tests {
		if got := tt.task.IsOverdue(now); got != tt.want {
			t.Errorf("%s: IsOverdue = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(Page{Page: 2, Limit: 10}, 21)
	if p.Pages != 3 || p.Total != 21 || p.Page != 2 {
		t.Fatalf("unexpected pagination %+v", p)
	}
	if empty := NewPagination(Page{Page: 1, Limit: 10}, 0); empty.Pages != 0 {
		t.Fatalf("expected 0 pages, got %d", empty.Pages)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NotFoundf("project %s not found", "p1")
	if KindOf(err) != KindNotFound {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
	if !errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Fatal("expected errors.Is to match on kind")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("untyped errors are internal")
	}
	wrapped := Internal("failed to load", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatal("Internal should unwrap to its cause")
	}
}
