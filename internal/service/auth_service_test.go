package service

import (
	"context"
	"testing"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/repository/memory"
	"github.com/aryan0dhankhar/teamtasks/internal/security/auth"
)

func newAuthService() (*AuthService, *memory.Store, *auth.TokenManager) {
	store := memory.NewStore()
	tm := auth.NewTokenManager("secret", "")
	return NewAuthService(store.Users(), tm, time.Hour, nil, nil), store, tm
}

func TestRegisterAndLogin(t *testing.T) {
	s, _, tm := newAuthService()
	ctx := context.Background()

	r, err := s.Register(ctx, "Alice", "Alice@Example.com", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if r.UserID == "" || r.Token == "" {
		t.Fatalf("expected user id and token")
	}
	if r.Role != domain.GlobalRoleMember || r.Email != "alice@example.com" {
		t.Fatalf("expected MEMBER with normalized email, got %s %s", r.Role, r.Email)
	}

	claims, err := tm.ValidateToken(r.Token)
	if err != nil || claims.UserID != r.UserID || claims.Role != domain.GlobalRoleMember {
		t.Fatalf("token must carry identity, got %+v (%v)", claims, err)
	}

	// Duplicate email
	_, err = s.Register(ctx, "Alice Two", "alice@example.com", "Password123")
	expectKind(t, err, domain.KindConflict)

	lr, err := s.Login(ctx, "alice@example.com", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if lr.Token == "" || lr.ExpiresIn != 3600 {
		t.Fatalf("expected token valid for an hour, got %+v", lr)
	}

	_, err = s.Login(ctx, "alice@example.com", "Wrong")
	expectKind(t, err, domain.KindBadRequest)

	_, err = s.Login(ctx, "nobody@example.com", "Password123")
	expectKind(t, err, domain.KindBadRequest)
}

func TestRegisterValidation(t *testing.T) {
	s, _, _ := newAuthService()
	ctx := context.Background()

	cases := []struct{ name, email, password string }{
		{"", "a@example.com", "Password123"},
		{"A", "not-an-email", "Password123"},
		{"A", "a@example.com", "short"},
	}
	for _, c := range cases {
		_, err := s.Register(ctx, c.name, c.email, c.password)
		if domain.KindOf(err) != domain.KindValidation {
			t.Errorf("%+v: expected validation error, got %v", c, err)
		}
	}
}

func TestChangePassword(t *testing.T) {
	s, _, _ := newAuthService()
	ctx := context.Background()
	reg, err := s.Register(ctx, "Bob", "bob@example.com", "OldPass123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	req := domain.Requester{UserID: reg.UserID, Role: reg.Role}

	err = s.ChangePassword(ctx, req, "bad", "NewPass123")
	expectKind(t, err, domain.KindBadRequest)

	if err := s.ChangePassword(ctx, req, "OldPass123", "NewPass123"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := s.Login(ctx, "bob@example.com", "OldPass123"); err == nil {
		t.Fatalf("expected old password to fail after change")
	}
	if _, err := s.Login(ctx, "bob@example.com", "NewPass123"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestUpdateRoleAdminOnly(t *testing.T) {
	s, _, _ := newAuthService()
	ctx := context.Background()
	reg, _ := s.Register(ctx, "Carol", "carol@example.com", "Password123")

	member := domain.Requester{UserID: reg.UserID, Role: domain.GlobalRoleMember}
	_, err := s.UpdateRole(ctx, member, reg.UserID, domain.GlobalRoleAdmin)
	expectKind(t, err, domain.KindForbidden)

	admin := domain.Requester{UserID: "root", Role: domain.GlobalRoleAdmin}
	user, err := s.UpdateRole(ctx, admin, reg.UserID, domain.GlobalRoleManager)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if user.Role != domain.GlobalRoleManager {
		t.Fatalf("expected MANAGER, got %s", user.Role)
	}

	_, err = s.UpdateRole(ctx, admin, "missing", domain.GlobalRoleManager)
	expectKind(t, err, domain.KindNotFound)

	_, err = s.UpdateRole(ctx, admin, reg.UserID, "ROOT")
	expectKind(t, err, domain.KindValidation)
}

func TestEnsureAdmin(t *testing.T) {
	s, store, _ := newAuthService()
	ctx := context.Background()

	if err := s.EnsureAdmin(ctx, "", "root@example.com", "Password123"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	u, err := store.Users().GetByEmail(ctx, "root@example.com")
	if err != nil || u.Role != domain.GlobalRoleAdmin || u.Name != "Administrator" {
		t.Fatalf("expected bootstrap admin, got %+v (%v)", u, err)
	}

	// idempotent
	if err := s.EnsureAdmin(ctx, "", "root@example.com", "Password123"); err != nil {
		t.Fatalf("second ensure admin: %v", err)
	}

	reg, _ := s.Register(ctx, "Dana", "dana@example.com", "Password123")
	if err := s.EnsureAdmin(ctx, "Dana", "dana@example.com", "ignored"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	promoted, _ := store.Users().GetByID(ctx, reg.UserID)
	if promoted.Role != domain.GlobalRoleAdmin {
		t.Fatalf("existing user should be promoted, got %s", promoted.Role)
	}

	// no credentials configured is a no-op
	if err := s.EnsureAdmin(ctx, "", "", ""); err != nil {
		t.Fatalf("empty bootstrap: %v", err)
	}
}
