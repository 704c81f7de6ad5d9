package domain

import (
	"context"
	"time"
)

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "ACTIVE"
	ProjectStatusArchived ProjectStatus = "ARCHIVED"
)

func (s ProjectStatus) IsValid() bool {
	return s == ProjectStatusActive || s == ProjectStatusArchived
}

// ProjectRole is a per-project membership level, distinct from GlobalRole
type ProjectRole string

const (
	ProjectRoleOwner   ProjectRole = "OWNER"
	ProjectRoleManager ProjectRole = "MANAGER"
	ProjectRoleMember  ProjectRole = "MEMBER"
)

func (r ProjectRole) IsValid() bool {
	switch r {
	case ProjectRoleOwner, ProjectRoleManager, ProjectRoleMember:
		return true
	}
	return false
}

// Field limits enforced on project input
const (
	ProjectNameMin        = 3
	ProjectNameMax        = 100
	ProjectDescriptionMax = 500
)

// Member is one roster entry
type Member struct {
	UserID   string
	Role     ProjectRole
	JoinedAt time.Time
}

// Project groups tasks and owns a membership roster
type Project struct {
	ID          string
	Name        string
	Description string
	OwnerID     string // set at creation, never reassigned
	Status      ProjectStatus
	Members     []Member
	// CacheVersion is bumped by the store on every write to the project or its tasks.
	CacheVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MemberIndex returns the roster position of userID, or -1
func (p *Project) MemberIndex(userID string) int {
	for i, m := range p.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// RoleOf derives the requester's project role from the roster
func (p *Project) RoleOf(userID string) (ProjectRole, bool) {
	if i := p.MemberIndex(userID); i >= 0 {
		return p.Members[i].Role, true
	}
	return "", false
}

// IsMember reports whether userID has a roster entry
func (p *Project) IsMember(userID string) bool {
	return p.MemberIndex(userID) >= 0
}

// ProjectFilter narrows project listings
type ProjectFilter struct {
	// VisibleTo restricts to projects owned by or including this user; empty means all.
	VisibleTo string
	Status    ProjectStatus
}

// Page is a 1-based page request
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes the returned window
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes pages = ceil(total/limit)
func NewPagination(page Page, total int) Pagination {
	pages := 0
	if page.Limit > 0 {
		pages = (total + page.Limit - 1) / page.Limit
	}
	return Pagination{Page: page.Page, Limit: page.Limit, Total: total, Pages: pages}
}

// ProjectRepository defines data access for projects and their rosters
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context, filter ProjectFilter, page Page) ([]*Project, int, error)
	Update(ctx context.Context, project *Project) error
	// SaveMembers replaces the stored roster with project.Members in one write.
	SaveMembers(ctx context.Context, project *Project) error
	// Delete removes the project and every task referencing it, or nothing.
	Delete(ctx context.Context, id string) error
}
