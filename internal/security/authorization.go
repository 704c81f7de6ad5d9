package security

import (
	"log/slog"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/metrics"
)

// Action identifies an operation gated by the policy table
type Action string

const (
	ActionProjectCreate    Action = "project.create"
	ActionProjectView      Action = "project.view"
	ActionProjectEdit      Action = "project.edit"
	ActionProjectDelete    Action = "project.delete"
	ActionManageMembers    Action = "project.manage_members"
	ActionTaskCreate       Action = "task.create"
	ActionTaskView         Action = "task.view"
	ActionTaskEdit         Action = "task.edit"
	ActionTaskChangeStatus Action = "task.change_status"
	ActionTaskAssign       Action = "task.assign"
	ActionTaskDelete       Action = "task.delete"
	ActionTaskComment      Action = "task.comment"
)

// Relationship is how a requester relates to the project (and task) being acted on
type Relationship struct {
	IsOwner     bool
	ProjectRole domain.ProjectRole // empty when not on the roster
	IsAssignee  bool
	IsCreator   bool
}

// Grant lists the relationships that allow an action.
// Global ADMIN is allowed everything and is not listed.
type Grant struct {
	GlobalRoles  []domain.GlobalRole
	Owner        bool
	ProjectRoles []domain.ProjectRole
	Assignee     bool
	Creator      bool
}

var anyProjectRole = []domain.ProjectRole{
	domain.ProjectRoleOwner,
	domain.ProjectRoleManager,
	domain.ProjectRoleMember,
}

// Policy maps every action to the relationships allowed to perform it.
// A plain MANAGER may change any task's status
// but may only delete tasks it created, while a roster OWNER may delete any.
var Policy = map[Action]Grant{
	ActionProjectCreate: {
		GlobalRoles: []domain.GlobalRole{domain.GlobalRoleManager},
	},
	ActionProjectView: {
		Owner:        true,
		ProjectRoles: anyProjectRole,
	},
	ActionProjectEdit: {
		Owner: true,
	},
	ActionProjectDelete: {
		Owner: true,
	},
	ActionManageMembers: {
		Owner:        true,
		ProjectRoles: []domain.ProjectRole{domain.ProjectRoleManager},
	},
	ActionTaskCreate: {
		Owner:        true,
		ProjectRoles: []domain.ProjectRole{domain.ProjectRoleOwner, domain.ProjectRoleManager},
	},
	ActionTaskView: {
		Owner:        true,
		ProjectRoles: anyProjectRole,
		Assignee:     true,
	},
	ActionTaskEdit: {
		Owner:        true,
		ProjectRoles: []domain.ProjectRole{domain.ProjectRoleOwner, domain.ProjectRoleManager},
		Assignee:     true,
		Creator:      true,
	},
	ActionTaskChangeStatus: {
		Owner:        true,
		ProjectRoles: []domain.ProjectRole{domain.ProjectRoleOwner, domain.ProjectRoleManager},
		Assignee:     true,
	},
	ActionTaskAssign: {
		Owner:        true,
		ProjectRoles: []domain.ProjectRole{domain.ProjectRoleOwner, domain.ProjectRoleManager},
	},
	ActionTaskDelete: {
		Owner:        true,
		ProjectRoles: []domain.ProjectRole{domain.ProjectRoleOwner},
		Creator:      true,
	},
	ActionTaskComment: {
		Owner:        true,
		ProjectRoles: anyProjectRole,
		Assignee:     true,
	},
}

// Relate derives the requester's relationship to a project and, optionally, a task
func Relate(userID string, project *domain.Project, task *domain.Task) Relationship {
	var rel Relationship
	if project != nil {
		rel.IsOwner = project.OwnerID == userID
		if role, ok := project.RoleOf(userID); ok {
			rel.ProjectRole = role
		}
	}
	if task != nil {
		rel.IsAssignee = task.IsAssignedTo(userID)
		rel.IsCreator = task.CreatorID == userID
	}
	return rel
}

// AuthorizationService evaluates the policy table
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// Allowed reports whether the requester may perform action given rel.
// Precedence: global ADMIN, then global role gates, owner, roster role, assignee, creator.
func (as *AuthorizationService) Allowed(req domain.Requester, action Action, rel Relationship) bool {
	if req.IsAdmin() {
		return true
	}
	grant, ok := Policy[action]
	if !ok {
		return false
	}
	for _, r := range grant.GlobalRoles {
		if req.Role == r {
			return true
		}
	}
	if grant.Owner && rel.IsOwner {
		return true
	}
	if rel.ProjectRole != "" {
		for _, r := range grant.ProjectRoles {
			if rel.ProjectRole == r {
				return true
			}
		}
	}
	if grant.Assignee && rel.IsAssignee {
		return true
	}
	if grant.Creator && rel.IsCreator {
		return true
	}
	return false
}

// Authorize returns a Forbidden error when the requester may not perform action
func (as *AuthorizationService) Authorize(req domain.Requester, action Action, rel Relationship) error {
	if as.Allowed(req, action, rel) {
		return nil
	}
	as.logger.Warn("permission denied",
		slog.String("user_id", req.UserID),
		slog.String("global_role", string(req.Role)),
		slog.String("project_role", string(rel.ProjectRole)),
		slog.String("action", string(action)),
	)
	metrics.ObserveAuthzDenied(string(action))
	return domain.Forbiddenf("you are not allowed to perform %s", action)
}
