package memory

import (
	"context"
	"sort"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// TaskRepository implements domain.TaskRepository on a Store
type TaskRepository struct {
	s *Store
}

func (r *TaskRepository) Create(_ context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[task.ID]; ok {
		return domain.ErrDuplicate
	}
	if _, ok := r.s.projects[task.ProjectID]; !ok {
		return domain.ErrNotFound
	}
	task.CreatedAt = r.s.stamp()
	task.UpdatedAt = task.CreatedAt
	r.s.tasks[task.ID] = copyTask(task)
	r.bumpProject(task.ProjectID)
	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyTask(t), nil
}

func (r *TaskRepository) List(_ context.Context, filter domain.TaskFilter, ts domain.TaskSort, page domain.Page) ([]*domain.Task, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Task
	for _, t := range r.s.tasks {
		if t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.AssigneeID != "" && !t.IsAssignedTo(filter.AssigneeID) {
			continue
		}
		matched = append(matched, t)
	}
	sortTasks(matched, ts)

	start, end := window(len(matched), page)
	out := make([]*domain.Task, 0, end-start)
	for _, t := range matched[start:end] {
		out = append(out, copyTask(t))
	}
	return out, len(matched), nil
}

func (r *TaskRepository) Update(_ context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.tasks[task.ID]
	if !ok {
		return domain.ErrNotFound
	}
	next := copyTask(task)
	next.ProjectID = stored.ProjectID
	next.CreatorID = stored.CreatorID
	next.CreatedAt = stored.CreatedAt
	next.Comments = stored.Comments
	next.UpdatedAt = r.s.stamp()
	task.UpdatedAt = next.UpdatedAt
	r.s.tasks[task.ID] = next
	r.bumpProject(stored.ProjectID)
	return nil
}

func (r *TaskRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.s.tasks, id)
	r.bumpProject(t.ProjectID)
	return nil
}

func (r *TaskRepository) AddComment(_ context.Context, taskID string, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Comments = append(t.Comments, *comment)
	t.UpdatedAt = r.s.stamp()
	r.bumpProject(t.ProjectID)
	return nil
}

// bumpProject moves the owning project to a new cache version. Caller holds mu.
func (r *TaskRepository) bumpProject(projectID string) {
	if p, ok := r.s.projects[projectID]; ok {
		p.CacheVersion++
	}
}

func (r *TaskRepository) Stats(_ context.Context, projectID string, now time.Time) (domain.TaskStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := domain.NewTaskStats()
	for _, t := range r.s.tasks {
		if t.ProjectID == projectID {
			stats.Add(t, now)
		}
	}
	return stats, nil
}

func (r *TaskRepository) ListOverdue(_ context.Context, now time.Time, after *domain.OverdueCursor, limit int) ([]*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Task
	for _, t := range r.s.tasks {
		if t.AssigneeID != nil && t.IsOverdue(now) && !after.Before(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(*out[j].DueDate) {
			return out[i].DueDate.Before(*out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i, t := range out {
		out[i] = copyTask(t)
	}
	return out, nil
}
