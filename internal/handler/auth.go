package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/service"
)

// AuthHandler handles authentication and account endpoints
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// RoleRequest is the body of PATCH /api/users/{id}/role
type RoleRequest struct {
	Role domain.GlobalRole `json:"role"`
}

// UserResponse is the public view of an account
type UserResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Role      domain.GlobalRole `json:"role"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	result, err := h.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.logger.Info("registration failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		writeError(w, h.logger, r, err)
		return
	}

	h.logger.Info("user registered successfully",
		slog.String("user_id", result.UserID),
	)
	writeJSON(w, http.StatusCreated, result)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if domain.IsKind(err, domain.KindBadRequest) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		writeError(w, h.logger, r, err)
		return
	}

	h.logger.Info("user logged in successfully",
		slog.String("user_id", result.UserID),
	)
	writeJSON(w, http.StatusOK, result)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	user, err := h.authService.Me(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}

	var body ChangePasswordRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), req, body.OldPassword, body.NewPassword); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	h.logger.Info("user changed password", slog.String("user_id", req.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed successfully"})
}

// UpdateRole handles PATCH /api/users/{id}/role
func (h *AuthHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}

	var body RoleRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	user, err := h.authService.UpdateRole(r.Context(), req, r.PathValue("id"), body.Role)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
