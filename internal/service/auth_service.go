package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/security/audit"
	"github.com/aryan0dhankhar/teamtasks/internal/security/auth"
)

const minPasswordLength = 8

// AuthService handles registration, login and account administration
type AuthService struct {
	userRepo domain.UserRepository
	tokens   *auth.TokenManager
	tokenTTL time.Duration
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo domain.UserRepository,
	tokens *auth.TokenManager,
	tokenTTL time.Duration,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		audit:    auditLog,
		logger:   logger,
	}
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	UserID    string            `json:"userId"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Role      domain.GlobalRole `json:"role"`
	Token     string            `json:"token"`
	ExpiresIn int               `json:"expiresIn"` // seconds
	TokenType string            `json:"tokenType"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a MEMBER account and returns a token for it
func (s *AuthService) Register(ctx context.Context, name, email, password string) (result *AuthResult, err error) {
	defer func() { observe("user", "register", err) }()

	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, domain.Validationf("name, email, and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.Validationf("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, domain.Validationf("password must be at least %d characters", minPasswordLength)
	}

	user, err := s.createUser(ctx, name, email, password, domain.GlobalRoleMember)
	if err != nil {
		return nil, err
	}

	s.audit.LogAction(ctx, user.ID, "register", "user", user.ID, audit.StatusSuccess, "")
	return s.issue(user)
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role domain.GlobalRole) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, domain.Internal("failed to register user", err)
	}

	user := &domain.User{
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Conflictf("email already registered")
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, domain.Internal("failed to register user", err)
	}
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	defer func() { observe("user", "login", err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Validationf("email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Internal("failed to load user", err)
		}
		s.logger.Info("login attempt with non-existent email", slog.String("email", email))
		return nil, domain.BadRequestf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("user_id", user.ID))
		s.audit.LogAction(ctx, user.ID, "login", "user", user.ID, audit.StatusFailed, "wrong password")
		return nil, domain.BadRequestf("invalid credentials")
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role, s.tokenTTL)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, domain.Internal("failed to generate token", err)
	}
	return &AuthResult{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Token:     token,
		ExpiresIn: int(s.tokenTTL.Seconds()),
		TokenType: "Bearer",
	}, nil
}

// Me returns the requester's own account
func (s *AuthService) Me(ctx context.Context, req domain.Requester) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, storeErr(err, "user", req.UserID)
	}
	return user, nil
}

// ChangePassword changes the requester's password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, req domain.Requester, oldPassword, newPassword string) (err error) {
	defer func() { observe("user", "change_password", err) }()

	if len(newPassword) < minPasswordLength {
		return domain.Validationf("new password must be at least %d characters", minPasswordLength)
	}

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return storeErr(err, "user", req.UserID)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.BadRequestf("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return domain.Internal("failed to change password", err)
	}

	user.PasswordHash = string(hash)
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update user password", slog.String("error", err.Error()))
		return storeErr(err, "user", req.UserID)
	}

	s.audit.LogAction(ctx, req.UserID, "change_password", "user", req.UserID, audit.StatusSuccess, "")
	s.logger.Info("user changed password", slog.String("user_id", req.UserID))
	return nil
}

// UpdateRole changes a user's global role. Only an ADMIN may do this.
func (s *AuthService) UpdateRole(ctx context.Context, req domain.Requester, userID string, role domain.GlobalRole) (user *domain.User, err error) {
	defer func() { observe("user", "update_role", err) }()

	if !req.IsAdmin() {
		return nil, domain.Forbiddenf("only an administrator can change global roles")
	}
	if !role.IsValid() {
		return nil, domain.Validationf("invalid global role %q", role)
	}

	user, err = s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "user", userID)
	}
	user.Role = role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, storeErr(err, "user", userID)
	}

	s.audit.LogAction(ctx, req.UserID, "update_role", "user", userID, audit.StatusSuccess, string(role))
	return user, nil
}

// EnsureAdmin creates the bootstrap ADMIN account when no user has its email.
// An existing account is promoted to ADMIN.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == domain.GlobalRoleAdmin {
			return nil
		}
		existing.Role = domain.GlobalRoleAdmin
		if err := s.userRepo.Update(ctx, existing); err != nil {
			return domain.Internal("failed to promote bootstrap admin", err)
		}
		s.logger.Info("bootstrap admin promoted", slog.String("user_id", existing.ID))
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Internal("failed to look up bootstrap admin", err)
	}

	if name == "" {
		name = "Administrator"
	}
	user, err := s.createUser(ctx, name, email, password, domain.GlobalRoleAdmin)
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", slog.String("user_id", user.ID))
	return nil
}
