package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/tracing"
	"github.com/aryan0dhankhar/teamtasks/internal/security"
	"github.com/aryan0dhankhar/teamtasks/internal/security/audit"
)

// CreateProjectInput holds the fields for a new project
type CreateProjectInput struct {
	Name        string
	Description string
}

// UpdateProjectInput is a partial update; nil fields are left unchanged
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *domain.ProjectStatus
}

// ListProjectsInput selects a page of visible projects
type ListProjectsInput struct {
	Page   int
	Limit  int
	Status domain.ProjectStatus
}

// ProjectPage is one page of projects
type ProjectPage struct {
	Data       []*domain.Project
	Pagination domain.Pagination
}

// AddMemberInput names the user to add and their project role
type AddMemberInput struct {
	UserID string
	Role   domain.ProjectRole
}

// MemberView is a roster entry joined with its user
type MemberView struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Role     domain.ProjectRole `json:"role"`
	JoinedAt time.Time          `json:"joinedAt"`
}

// ProjectService manages projects and their membership rosters
type ProjectService struct {
	projects domain.ProjectRepository
	users    domain.UserRepository
	authz    *security.AuthorizationService
	side     *SideChannel
	audit    *audit.Logger
	logger   *slog.Logger
	now      func() time.Time
}

// NewProjectService creates a new project service
func NewProjectService(
	projects domain.ProjectRepository,
	users domain.UserRepository,
	authz *security.AuthorizationService,
	side *SideChannel,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &ProjectService{
		projects: projects,
		users:    users,
		authz:    authz,
		side:     side,
		audit:    auditLog,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *ProjectService) SetClock(now func() time.Time) {
	s.now = now
}

// load fetches a project and authorizes action against it
func (s *ProjectService) load(ctx context.Context, req domain.Requester, projectID string, action security.Action) (*domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "project", projectID)
	}
	if err := s.authz.Authorize(req, action, security.Relate(req.UserID, project, nil)); err != nil {
		return nil, err
	}
	return project, nil
}

// Create makes a project owned by the requester, who becomes its first OWNER member
func (s *ProjectService) Create(ctx context.Context, req domain.Requester, in CreateProjectInput) (project *domain.Project, err error) {
	ctx, end := tracing.StartSpan(ctx, "ProjectService.Create", attribute.String("user.id", req.UserID))
	defer func() { end(err); observe("project", "create", err) }()

	if err := s.authz.Authorize(req, security.ActionProjectCreate, security.Relationship{}); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if err := checkLength("name", name, domain.ProjectNameMin, domain.ProjectNameMax); err != nil {
		return nil, err
	}
	if err := checkLength("description", description, 0, domain.ProjectDescriptionMax); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	project = &domain.Project{
		ID:          newID(),
		Name:        name,
		Description: description,
		OwnerID:     req.UserID,
		Status:      domain.ProjectStatusActive,
		Members: []domain.Member{
			{UserID: req.UserID, Role: domain.ProjectRoleOwner, JoinedAt: now},
		},
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, domain.Internal("failed to create project", err)
	}

	s.audit.LogProject(ctx, req.UserID, "create", project.ID, project.Name)
	s.logger.Info("project created",
		slog.String("project_id", project.ID),
		slog.String("owner_id", req.UserID),
	)
	return project, nil
}

// Get returns a project the requester can view
func (s *ProjectService) Get(ctx context.Context, req domain.Requester, projectID string) (project *domain.Project, err error) {
	defer func() { observe("project", "get", err) }()
	return s.load(ctx, req, projectID, security.ActionProjectView)
}

// List returns the projects visible to the requester. ADMIN sees every project.
func (s *ProjectService) List(ctx context.Context, req domain.Requester, in ListProjectsInput) (out *ProjectPage, err error) {
	ctx, end := tracing.StartSpan(ctx, "ProjectService.List", attribute.String("user.id", req.UserID))
	defer func() { end(err); observe("project", "list", err) }()

	page, err := resolvePage(in.Page, in.Limit)
	if err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.IsValid() {
		return nil, domain.Validationf("invalid status %q", in.Status)
	}

	filter := domain.ProjectFilter{Status: in.Status}
	if !req.IsAdmin() {
		filter.VisibleTo = req.UserID
	}

	projects, total, err := s.projects.List(ctx, filter, page)
	if err != nil {
		return nil, domain.Internal("failed to list projects", err)
	}
	if projects == nil {
		projects = []*domain.Project{}
	}
	return &ProjectPage{Data: projects, Pagination: domain.NewPagination(page, total)}, nil
}

// Update applies the provided fields. Only the owner or an ADMIN may edit.
func (s *ProjectService) Update(ctx context.Context, req domain.Requester, projectID string, in UpdateProjectInput) (project *domain.Project, err error) {
	ctx, end := tracing.StartSpan(ctx, "ProjectService.Update", attribute.String("project.id", projectID))
	defer func() { end(err); observe("project", "update", err) }()

	project, err = s.load(ctx, req, projectID, security.ActionProjectEdit)
	if err != nil {
		return nil, err
	}

	if name := trimmed(in.Name); name != nil {
		if err := checkLength("name", *name, domain.ProjectNameMin, domain.ProjectNameMax); err != nil {
			return nil, err
		}
		project.Name = *name
	}
	if desc := trimmed(in.Description); desc != nil {
		if err := checkLength("description", *desc, 0, domain.ProjectDescriptionMax); err != nil {
			return nil, err
		}
		project.Description = *desc
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, domain.Validationf("invalid status %q", *in.Status)
		}
		project.Status = *in.Status
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, storeErr(err, "project", projectID)
	}

	s.side.InvalidateProject(ctx, projectID)
	s.audit.LogProject(ctx, req.UserID, "update", projectID, "")
	return project, nil
}

// Delete removes the project and every task in it
func (s *ProjectService) Delete(ctx context.Context, req domain.Requester, projectID string) (err error) {
	ctx, end := tracing.StartSpan(ctx, "ProjectService.Delete", attribute.String("project.id", projectID))
	defer func() { end(err); observe("project", "delete", err) }()

	if _, err := s.load(ctx, req, projectID, security.ActionProjectDelete); err != nil {
		return err
	}

	if err := s.projects.Delete(ctx, projectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFoundf("project %s not found", projectID)
		}
		s.logger.Error("project cascade delete failed",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		return domain.Internal("failed to delete project", err)
	}

	s.side.InvalidateProject(ctx, projectID)
	s.audit.LogProject(ctx, req.UserID, "delete", projectID, "")
	s.logger.Info("project deleted", slog.String("project_id", projectID))
	return nil
}

// AddMember puts an existing user on the roster. Adding a current member is a conflict.
func (s *ProjectService) AddMember(ctx context.Context, req domain.Requester, projectID string, in AddMemberInput) (project *domain.Project, err error) {
	ctx, end := tracing.StartSpan(ctx, "ProjectService.AddMember",
		attribute.String("project.id", projectID),
		attribute.String("member.id", in.UserID),
	)
	defer func() { end(err); observe("project", "add_member", err) }()

	project, err = s.load(ctx, req, projectID, security.ActionManageMembers)
	if err != nil {
		return nil, err
	}
	if in.UserID == "" {
		return nil, domain.Validationf("userId is required")
	}
	if !in.Role.IsValid() {
		return nil, domain.Validationf("invalid project role %q", in.Role)
	}

	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return nil, storeErr(err, "user", in.UserID)
	}
	if project.IsMember(in.UserID) {
		return nil, domain.Conflictf("user %s is already a member of this project", in.UserID)
	}

	project.Members = append(project.Members, domain.Member{
		UserID:   in.UserID,
		Role:     in.Role,
		JoinedAt: s.now().UTC(),
	})
	if err := s.projects.SaveMembers(ctx, project); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Conflictf("user %s is already a member of this project", in.UserID)
		}
		return nil, storeErr(err, "project", projectID)
	}

	s.side.InvalidateProject(ctx, projectID)
	s.side.Notify(ctx, domain.Notification{
		Kind:      domain.NotifyMemberAdded,
		UserID:    in.UserID,
		ProjectID: projectID,
		Message:   fmt.Sprintf("You were added to project %q as %s", project.Name, in.Role),
	})
	s.audit.LogProject(ctx, req.UserID, "add_member", projectID, in.UserID)
	return project, nil
}

// RemoveMember takes a user off the roster. The owner can never be removed.
func (s *ProjectService) RemoveMember(ctx context.Context, req domain.Requester, projectID, memberID string) (project *domain.Project, err error) {
	ctx, end := tracing.StartSpan(ctx, "ProjectService.RemoveMember",
		attribute.String("project.id", projectID),
		attribute.String("member.id", memberID),
	)
	defer func() { end(err); observe("project", "remove_member", err) }()

	project, err = s.load(ctx, req, projectID, security.ActionManageMembers)
	if err != nil {
		return nil, err
	}
	if memberID == project.OwnerID {
		return nil, domain.BadRequestf("the project owner cannot be removed")
	}
	i := project.MemberIndex(memberID)
	if i < 0 {
		return nil, domain.NotFoundf("user %s is not a member of this project", memberID)
	}

	project.Members = append(project.Members[:i], project.Members[i+1:]...)
	if err := s.projects.SaveMembers(ctx, project); err != nil {
		return nil, storeErr(err, "project", projectID)
	}

	s.side.InvalidateProject(ctx, projectID)
	s.audit.LogProject(ctx, req.UserID, "remove_member", projectID, memberID)
	return project, nil
}

// UpdateMemberRole changes a member's project role. The owner's entry is immutable.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, req domain.Requester, projectID, memberID string, role domain.ProjectRole) (project *domain.Project, err error) {
	ctx, end := tracing.StartSpan(ctx, "ProjectService.UpdateMemberRole",
		attribute.String("project.id", projectID),
		attribute.String("member.id", memberID),
	)
	defer func() { end(err); observe("project", "update_member_role", err) }()

	project, err = s.load(ctx, req, projectID, security.ActionManageMembers)
	if err != nil {
		return nil, err
	}
	if memberID == project.OwnerID {
		return nil, domain.BadRequestf("the project owner's role cannot be changed")
	}
	if !role.IsValid() {
		return nil, domain.Validationf("invalid project role %q", role)
	}
	i := project.MemberIndex(memberID)
	if i < 0 {
		return nil, domain.NotFoundf("user %s is not a member of this project", memberID)
	}

	project.Members[i].Role = role
	if err := s.projects.SaveMembers(ctx, project); err != nil {
		return nil, storeErr(err, "project", projectID)
	}

	s.side.InvalidateProject(ctx, projectID)
	s.audit.LogProject(ctx, req.UserID, "update_member_role", projectID, memberID+"="+string(role))
	return project, nil
}

// GetMembers returns the roster in order, joined with user name and email
func (s *ProjectService) GetMembers(ctx context.Context, req domain.Requester, projectID string) (members []MemberView, err error) {
	defer func() { observe("project", "get_members", err) }()

	project, err := s.load(ctx, req, projectID, security.ActionProjectView)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(project.Members))
	for i, m := range project.Members {
		ids[i] = m.UserID
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.Internal("failed to load members", err)
	}
	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members = make([]MemberView, 0, len(project.Members))
	for _, m := range project.Members {
		view := MemberView{ID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
		if u, ok := byID[m.UserID]; ok {
			view.Name = u.Name
			view.Email = u.Email
		}
		members = append(members, view)
	}
	return members, nil
}
