package handler

import "net/http"

// Handlers groups every HTTP handler mounted by the server
type Handlers struct {
	Auth          *AuthHandler
	Projects      *ProjectHandler
	Tasks         *TaskHandler
	Health        *HealthHandler
	Notifications *NotificationsHandler
}

// Register mounts all routes on mux using method-qualified patterns
func (h Handlers) Register(mux *http.ServeMux) {
	if h.Health != nil {
		mux.HandleFunc("GET /healthz", h.Health.Health)
		mux.HandleFunc("GET /readyz", h.Health.Ready)
	}

	if h.Auth != nil {
		mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
		mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
		mux.HandleFunc("GET /api/auth/me", h.Auth.Me)
		mux.HandleFunc("POST /api/auth/change-password", h.Auth.ChangePassword)
		mux.HandleFunc("PATCH /api/users/{id}/role", h.Auth.UpdateRole)
	}

	if h.Projects != nil {
		mux.HandleFunc("POST /api/projects", h.Projects.Create)
		mux.HandleFunc("GET /api/projects", h.Projects.List)
		mux.HandleFunc("GET /api/projects/{id}", h.Projects.Get)
		mux.HandleFunc("PATCH /api/projects/{id}", h.Projects.Update)
		mux.HandleFunc("DELETE /api/projects/{id}", h.Projects.Delete)
		mux.HandleFunc("GET /api/projects/{id}/members", h.Projects.Members)
		mux.HandleFunc("POST /api/projects/{id}/members", h.Projects.AddMember)
		mux.HandleFunc("PATCH /api/projects/{id}/members/{userId}", h.Projects.UpdateMemberRole)
		mux.HandleFunc("DELETE /api/projects/{id}/members/{userId}", h.Projects.RemoveMember)
	}

	if h.Tasks != nil {
		mux.HandleFunc("POST /api/projects/{id}/tasks", h.Tasks.Create)
		mux.HandleFunc("GET /api/projects/{id}/tasks", h.Tasks.List)
		mux.HandleFunc("GET /api/projects/{id}/stats", h.Tasks.Stats)
		mux.HandleFunc("GET /api/tasks/{id}", h.Tasks.Get)
		mux.HandleFunc("PATCH /api/tasks/{id}", h.Tasks.Update)
		mux.HandleFunc("DELETE /api/tasks/{id}", h.Tasks.Delete)
		mux.HandleFunc("POST /api/tasks/{id}/assign", h.Tasks.Assign)
		mux.HandleFunc("POST /api/tasks/{id}/comments", h.Tasks.AddComment)
	}

	if h.Notifications != nil {
		mux.Handle("GET /ws/notifications", h.Notifications)
	}
}
