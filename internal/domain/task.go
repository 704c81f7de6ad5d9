package domain

import (
	"context"
	"time"
)

// TaskStatus is a state in the task workflow
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// transitions is the complete workflow. TODO cannot jump straight to DONE.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusTodo:       {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusTodo, TaskStatusDone},
	TaskStatusDone:       {TaskStatusTodo, TaskStatusInProgress},
}

func (s TaskStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether s -> next is in the workflow table.
// Self-transitions are never allowed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TaskPriority is the urgency of a task
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Weight returns a numeric rank for semantic priority ordering
func (p TaskPriority) Weight() int {
	switch p {
	case TaskPriorityHigh:
		return 3
	case TaskPriorityMedium:
		return 2
	case TaskPriorityLow:
		return 1
	default:
		return 0
	}
}

// Field limits enforced on task input
const (
	TaskTitleMin       = 3
	TaskTitleMax       = 200
	TaskDescriptionMax = 1000
	CommentTextMax     = 1000
)

// Comment is an entry in a task's discussion
type Comment struct {
	ID        string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// Task is a unit of work inside a project
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	ProjectID   string  // immutable after creation
	AssigneeID  *string // nil when unassigned
	CreatorID   string  // immutable
	DueDate     *time.Time
	CompletedAt *time.Time // set exactly while Status is DONE
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAssignedTo reports whether userID is the current assignee
func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// IsOverdue reports a due date strictly before now on a task that is not DONE
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskStatusDone {
		return false
	}
	return t.DueDate.Before(now)
}

// SetStatus moves the task to next and keeps CompletedAt consistent with it
func (t *Task) SetStatus(next TaskStatus, now time.Time) {
	t.Status = next
	if next == TaskStatusDone {
		completed := now
		t.CompletedAt = &completed
		return
	}
	t.CompletedAt = nil
}

// TaskSortField selects list ordering
type TaskSortField string

const (
	SortByCreatedAt TaskSortField = "createdAt"
	SortByDueDate   TaskSortField = "dueDate"
	SortByPriority  TaskSortField = "priority"
)

func (f TaskSortField) IsValid() bool {
	switch f {
	case SortByCreatedAt, SortByDueDate, SortByPriority:
		return true
	}
	return false
}

// SortOrder is asc or desc
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) IsValid() bool {
	return o == SortAsc || o == SortDesc
}

// TaskSort is the resolved ordering handed to the repository
type TaskSort struct {
	Field TaskSortField
	Order SortOrder
}

// TaskFilter holds equality filters for task listings
type TaskFilter struct {
	ProjectID  string
	Status     TaskStatus
	Priority   TaskPriority
	AssigneeID string
}

// TaskStats aggregates a project's tasks
type TaskStats struct {
	Total      int                  `json:"total"`
	ByStatus   map[TaskStatus]int   `json:"byStatus"`
	ByPriority map[TaskPriority]int `json:"byPriority"`
	Overdue    int                  `json:"overdue"`
}

// NewTaskStats returns stats with every bucket present and zeroed
func NewTaskStats() TaskStats {
	return TaskStats{
		ByStatus: map[TaskStatus]int{
			TaskStatusTodo: 0, TaskStatusInProgress: 0, TaskStatusDone: 0,
		},
		ByPriority: map[TaskPriority]int{
			TaskPriorityLow: 0, TaskPriorityMedium: 0, TaskPriorityHigh: 0,
		},
	}
}

// Add counts one task into the stats
func (s *TaskStats) Add(t *Task, now time.Time) {
	s.Total++
	s.ByStatus[t.Status]++
	s.ByPriority[t.Priority]++
	if t.IsOverdue(now) {
		s.Overdue++
	}
}

// TaskRepository defines data access for tasks
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, filter TaskFilter, sort TaskSort, page Page) ([]*Task, int, error)
	// Update persists every mutable field of task in a single write.
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, id string) error
	AddComment(ctx context.Context, taskID string, comment *Comment) error
	Stats(ctx context.Context, projectID string, now time.Time) (TaskStats, error)
	// ListOverdue returns up to limit assigned tasks with a due date before now
	// that are not DONE, ordered by (due date, id) and starting after the cursor.
	ListOverdue(ctx context.Context, now time.Time, after *OverdueCursor, limit int) ([]*Task, error)
}

// OverdueCursor is the (due date, id) position of the last task in a page
type OverdueCursor struct {
	DueDate time.Time
	ID      string
}

// CursorAfter returns the position that follows t in overdue order
func CursorAfter(t *Task) *OverdueCursor {
	return &OverdueCursor{DueDate: *t.DueDate, ID: t.ID}
}

// Before reports whether t sorts at or before c in overdue order
func (c *OverdueCursor) Before(t *Task) bool {
	if c == nil {
		return false
	}
	if !t.DueDate.Equal(c.DueDate) {
		return t.DueDate.Before(c.DueDate)
	}
	return t.ID <= c.ID
}
