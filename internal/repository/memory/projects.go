package memory

import (
	"context"
	"sort"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// ProjectRepository implements domain.ProjectRepository on a Store
type ProjectRepository struct {
	s *Store
}

func (r *ProjectRepository) Create(_ context.Context, project *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[project.ID]; ok {
		return domain.ErrDuplicate
	}
	project.CreatedAt = r.s.stamp()
	project.UpdatedAt = project.CreatedAt
	r.s.projects[project.ID] = copyProject(project)
	return nil
}

func (r *ProjectRepository) GetByID(_ context.Context, id string) (*domain.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyProject(p), nil
}

func (r *ProjectRepository) List(_ context.Context, filter domain.ProjectFilter, page domain.Page) ([]*domain.Project, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Project
	for _, p := range r.s.projects {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.VisibleTo != "" && p.OwnerID != filter.VisibleTo && !p.IsMember(filter.VisibleTo) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	start, end := window(len(matched), page)
	out := make([]*domain.Project, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, copyProject(p))
	}
	return out, len(matched), nil
}

func (r *ProjectRepository) Update(_ context.Context, project *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.projects[project.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Name = project.Name
	stored.Description = project.Description
	stored.Status = project.Status
	stored.CacheVersion++
	stored.UpdatedAt = r.s.stamp()
	project.UpdatedAt = stored.UpdatedAt
	project.CacheVersion = stored.CacheVersion
	return nil
}

func (r *ProjectRepository) SaveMembers(_ context.Context, project *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.projects[project.ID]
	if !ok {
		return domain.ErrNotFound
	}
	seen := make(map[string]struct{}, len(project.Members))
	for _, m := range project.Members {
		if _, dup := seen[m.UserID]; dup {
			return domain.ErrDuplicate
		}
		seen[m.UserID] = struct{}{}
	}
	stored.Members = append([]domain.Member(nil), project.Members...)
	stored.CacheVersion++
	stored.UpdatedAt = r.s.stamp()
	project.UpdatedAt = stored.UpdatedAt
	project.CacheVersion = stored.CacheVersion
	return nil
}

// Delete removes the project and its tasks under a single lock
func (r *ProjectRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[id]; !ok {
		return domain.ErrNotFound
	}
	for taskID, t := range r.s.tasks {
		if t.ProjectID == id {
			delete(r.s.tasks, taskID)
		}
	}
	delete(r.s.projects, id)
	return nil
}
