package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/service"
)

// ProjectHandler handles project and membership endpoints
type ProjectHandler struct {
	projects *service.ProjectService
	logger   *slog.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects *service.ProjectService, logger *slog.Logger) *ProjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectHandler{projects: projects, logger: logger}
}

// CreateProjectRequest is the body of POST /api/projects
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateProjectRequest is the body of PATCH /api/projects/{id}
type UpdateProjectRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *domain.ProjectStatus `json:"status"`
}

// AddMemberRequest is the body of POST /api/projects/{id}/members
type AddMemberRequest struct {
	UserID string             `json:"userId"`
	Role   domain.ProjectRole `json:"role"`
}

// MemberRoleRequest is the body of PATCH /api/projects/{id}/members/{userId}
type MemberRoleRequest struct {
	Role domain.ProjectRole `json:"role"`
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body CreateProjectRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	project, err := h.projects.Create(r.Context(), req, service.CreateProjectInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

// List handles GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	out, err := h.projects.List(r.Context(), req, service.ListProjectsInput{
		Page:   page,
		Limit:  limit,
		Status: domain.ProjectStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := PageResponse[ProjectResponse]{Data: make([]ProjectResponse, 0, len(out.Data)), Pagination: out.Pagination}
	for _, p := range out.Data {
		resp.Data = append(resp.Data, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	project, err := h.projects.Get(r.Context(), req, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

// Update handles PATCH /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body UpdateProjectRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	project, err := h.projects.Update(r.Context(), req, r.PathValue("id"), service.UpdateProjectInput{
		Name:        body.Name,
		Description: body.Description,
		Status:      body.Status,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

// Delete handles DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), req, r.PathValue("id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Members handles GET /api/projects/{id}/members
func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	members, err := h.projects.GetMembers(r.Context(), req, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if members == nil {
		members = []service.MemberView{}
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember handles POST /api/projects/{id}/members
func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body AddMemberRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	project, err := h.projects.AddMember(r.Context(), req, r.PathValue("id"), service.AddMemberInput{
		UserID: body.UserID,
		Role:   body.Role,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

// UpdateMemberRole handles PATCH /api/projects/{id}/members/{userId}
func (h *ProjectHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body MemberRoleRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	project, err := h.projects.UpdateMemberRole(r.Context(), req, r.PathValue("id"), r.PathValue("userId"), body.Role)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

// RemoveMember handles DELETE /api/projects/{id}/members/{userId}
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	project, err := h.projects.RemoveMember(r.Context(), req, r.PathValue("id"), r.PathValue("userId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}
