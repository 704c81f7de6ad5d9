// Package memory provides map-backed repositories for STORE=memory
// deployments and for service tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// Store holds every collection behind one lock so that a project delete and
// its task cascade are applied together.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	projects map[string]*domain.Project
	tasks    map[string]*domain.Task

	now  func() time.Time
	last time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:    map[string]*domain.User{},
		projects: map[string]*domain.Project{},
		tasks:    map[string]*domain.Task{},
		now:      time.Now,
	}
}

// SetClock replaces the clock used for created/updated timestamps
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users returns the user repository view of the store
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Projects returns the project repository view of the store
func (s *Store) Projects() *ProjectRepository { return &ProjectRepository{s: s} }

// Tasks returns the task repository view of the store
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s: s} }

// stamp returns a strictly increasing timestamp so insertion order is
// preserved even when the clock does not move. Caller holds mu.
func (s *Store) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func copyProject(p *domain.Project) *domain.Project {
	c := *p
	c.Members = append([]domain.Member(nil), p.Members...)
	return &c
}

func copyTask(t *domain.Task) *domain.Task {
	c := *t
	if t.AssigneeID != nil {
		a := *t.AssigneeID
		c.AssigneeID = &a
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	c.Comments = append([]domain.Comment(nil), t.Comments...)
	return &c
}

// window applies offset/limit to n items
func window(n int, page domain.Page) (int, int) {
	start := page.Offset()
	if start > n {
		start = n
	}
	end := start + page.Limit
	if end > n {
		end = n
	}
	return start, end
}

// sortTasks orders tasks the same way the Postgres repository does
func sortTasks(tasks []*domain.Task, ts domain.TaskSort) {
	desc := ts.Order != domain.SortAsc
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch ts.Field {
		case domain.SortByDueDate:
			// nulls last in both directions
			if (a.DueDate == nil) != (b.DueDate == nil) {
				return a.DueDate != nil
			}
			if a.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
				if desc {
					return a.DueDate.After(*b.DueDate)
				}
				return a.DueDate.Before(*b.DueDate)
			}
		case domain.SortByPriority:
			if wa, wb := a.Priority.Weight(), b.Priority.Weight(); wa != wb {
				if desc {
					return wa > wb
				}
				return wa < wb
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if desc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}
