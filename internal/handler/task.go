package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/service"
)

// TaskHandler handles task, comment and stats endpoints
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{tasks: tasks, logger: logger}
}

// CreateTaskRequest is the body of POST /api/projects/{id}/tasks
type CreateTaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    domain.TaskPriority `json:"priority"`
	AssignedTo  *string             `json:"assignedTo"`
	DueDate     *string             `json:"dueDate"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{id}. Omitted or null
// fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *domain.TaskStatus   `json:"status"`
	Priority    *domain.TaskPriority `json:"priority"`
	AssignedTo  *string              `json:"assignedTo"`
	DueDate     *string              `json:"dueDate"`
}

// AssignRequest is the body of POST /api/tasks/{id}/assign
type AssignRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// CommentRequest is the body of POST /api/tasks/{id}/comments
type CommentRequest struct {
	Text string `json:"text"`
}

// Create handles POST /api/projects/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body CreateTaskRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	task, err := h.tasks.Create(r.Context(), req, r.PathValue("id"), service.CreateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		AssignedTo:  body.AssignedTo,
		DueDate:     body.DueDate,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

// List handles GET /api/projects/{id}/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	out, err := h.tasks.List(r.Context(), req, r.PathValue("id"), service.ListTasksInput{
		Status:     domain.TaskStatus(q.Get("status")),
		Priority:   domain.TaskPriority(q.Get("priority")),
		AssignedTo: q.Get("assignedTo"),
		Page:       page,
		Limit:      limit,
		SortBy:     domain.TaskSortField(q.Get("sortBy")),
		Order:      domain.SortOrder(q.Get("order")),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	resp := PageResponse[TaskResponse]{Data: make([]TaskResponse, 0, len(out.Data)), Pagination: out.Pagination}
	for _, t := range out.Data {
		resp.Data = append(resp.Data, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/projects/{id}/stats
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	stats, err := h.tasks.Stats(r.Context(), req, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.Get(r.Context(), req, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// Update handles PATCH /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body UpdateTaskRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), req, r.PathValue("id"), service.UpdateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		Priority:    body.Priority,
		AssignedTo:  body.AssignedTo,
		DueDate:     body.DueDate,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// Assign handles POST /api/tasks/{id}/assign
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body AssignRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	task, err := h.tasks.AssignTask(r.Context(), req, r.PathValue("id"), body.AssignedTo)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// Delete handles DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), req, r.PathValue("id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddComment handles POST /api/tasks/{id}/comments
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body CommentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	comment, err := h.tasks.AddComment(r.Context(), req, r.PathValue("id"), body.Text)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(*comment))
}
