package security

import (
	"testing"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

func TestAllowed(t *testing.T) {
	as := NewAuthorizationService(nil)
	member := domain.Requester{UserID: "u", Role: domain.GlobalRoleMember}
	manager := domain.Requester{UserID: "u", Role: domain.GlobalRoleManager}
	admin := domain.Requester{UserID: "u", Role: domain.GlobalRoleAdmin}

	tests := []struct {
		name   string
		req    domain.Requester
		action Action
		rel    Relationship
		want   bool
	}{
		{"admin bypasses everything", admin, ActionProjectDelete, Relationship{}, true},
		{"member cannot create projects", member, ActionProjectCreate, Relationship{}, false},
		{"manager can create projects", manager, ActionProjectCreate, Relationship{}, true},
		{"stranger cannot view", member, ActionProjectView, Relationship{}, false},
		{"roster member can view", member, ActionProjectView, Relationship{ProjectRole: domain.ProjectRoleMember}, true},
		{"roster manager cannot edit project", member, ActionProjectEdit, Relationship{ProjectRole: domain.ProjectRoleManager}, false},
		{"owner edits project", member, ActionProjectEdit, Relationship{IsOwner: true}, true},
		{"roster manager manages members", member, ActionManageMembers, Relationship{ProjectRole: domain.ProjectRoleManager}, true},
		{"roster member cannot manage members", member, ActionManageMembers, Relationship{ProjectRole: domain.ProjectRoleMember}, false},
		{"roster member cannot create tasks", member, ActionTaskCreate, Relationship{ProjectRole: domain.ProjectRoleMember}, false},
		{"assignee outside roster views task", member, ActionTaskView, Relationship{IsAssignee: true}, true},
		{"assignee changes status", member, ActionTaskChangeStatus, Relationship{ProjectRole: domain.ProjectRoleMember, IsAssignee: true}, true},
		{"creator cannot change status", member, ActionTaskChangeStatus, Relationship{ProjectRole: domain.ProjectRoleMember, IsCreator: true}, false},
		{"creator edits task", member, ActionTaskEdit, Relationship{IsCreator: true}, true},
		{"assignee cannot reassign", member, ActionTaskAssign, Relationship{ProjectRole: domain.ProjectRoleMember, IsAssignee: true}, false},
		{"roster manager cannot delete others' tasks", member, ActionTaskDelete, Relationship{ProjectRole: domain.ProjectRoleManager}, false},
		{"roster owner deletes any task", member, ActionTaskDelete, Relationship{ProjectRole: domain.ProjectRoleOwner}, true},
		{"creator deletes own task", member, ActionTaskDelete, Relationship{ProjectRole: domain.ProjectRoleMember, IsCreator: true}, true},
		{"unknown action denied", manager, Action("project.explode"), Relationship{IsOwner: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := as.Allowed(tt.req, tt.action, tt.rel); got != tt.want {
				t.Fatalf("Allowed(%s) = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestAuthorizeReturnsForbidden(t *testing.T) {
	as := NewAuthorizationService(nil)
	err := as.Authorize(domain.Requester{UserID: "u", Role: domain.GlobalRoleMember}, ActionProjectDelete, Relationship{})
	if !domain.IsKind(err, domain.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRelate(t *testing.T) {
	assignee := "bob"
	project := &domain.Project{
		OwnerID: "alice",
		Members: []domain.Member{
			{UserID: "alice", Role: domain.ProjectRoleOwner},
			{UserID: "bob", Role: domain.ProjectRoleMember},
		},
	}
	task := &domain.Task{CreatorID: "alice", AssigneeID: &assignee}

	rel := Relate("bob", project, task)
	if rel.IsOwner || rel.ProjectRole != domain.ProjectRoleMember || !rel.IsAssignee || rel.IsCreator {
		t.Fatalf("unexpected relationship for bob: %+v", rel)
	}

	rel = Relate("alice", project, task)
	if !rel.IsOwner || rel.ProjectRole != domain.ProjectRoleOwner || rel.IsAssignee || !rel.IsCreator {
		t.Fatalf("unexpected relationship for alice: %+v", rel)
	}

	if rel := Relate("carol", project, nil); rel != (Relationship{}) {
		t.Fatalf("expected empty relationship, got %+v", rel)
	}
}
