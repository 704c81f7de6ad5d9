package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/featureflags"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/tracing"
	"github.com/aryan0dhankhar/teamtasks/internal/security"
	"github.com/aryan0dhankhar/teamtasks/internal/security/audit"
)

// CreateTaskInput holds the fields for a new task. Status is not accepted: new tasks start in TODO.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	AssignedTo  *string
	DueDate     *string // RFC 3339 or YYYY-MM-DD
}

// UpdateTaskInput is a partial update. An empty AssignedTo unassigns and an
// empty DueDate clears the due date.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	AssignedTo  *string
	DueDate     *string
}

// ListTasksInput holds filters, paging and ordering for a project's tasks
type ListTasksInput struct {
	Status     domain.TaskStatus
	Priority   domain.TaskPriority
	AssignedTo string
	Page       int
	Limit      int
	SortBy     domain.TaskSortField
	Order      domain.SortOrder
}

// TaskPage is one page of tasks
type TaskPage struct {
	Data       []*domain.Task
	Pagination domain.Pagination
}

// TaskService manages tasks: creation, the status workflow, assignment and comments
type TaskService struct {
	tasks    domain.TaskRepository
	projects domain.ProjectRepository
	users    domain.UserRepository
	authz    *security.AuthorizationService
	side     *SideChannel
	audit    *audit.Logger
	flags    *featureflags.Flags
	logger   *slog.Logger
	now      func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(
	tasks domain.TaskRepository,
	projects domain.ProjectRepository,
	users domain.UserRepository,
	authz *security.AuthorizationService,
	side *SideChannel,
	auditLog *audit.Logger,
	flags *featureflags.Flags,
	logger *slog.Logger,
) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	return &TaskService{
		tasks:    tasks,
		projects: projects,
		users:    users,
		authz:    authz,
		side:     side,
		audit:    auditLog,
		flags:    flags,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for completedAt and overdue checks
func (s *TaskService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TaskService) loadProject(ctx context.Context, projectID string) (*domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "project", projectID)
	}
	return project, nil
}

// loadTask fetches a task with its project and authorizes action
func (s *TaskService) loadTask(ctx context.Context, req domain.Requester, taskID string, action security.Action) (*domain.Task, *domain.Project, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, storeErr(err, "task", taskID)
	}
	project, err := s.loadProject(ctx, task.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authz.Authorize(req, action, security.Relate(req.UserID, project, task)); err != nil {
		return nil, nil, err
	}
	return task, project, nil
}

// requireMember checks that userID exists and is on the project roster
func (s *TaskService) requireMember(ctx context.Context, project *domain.Project, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if domain.IsKind(storeErr(err, "user", userID), domain.KindNotFound) {
			return domain.BadRequestf("assignee %s does not exist", userID)
		}
		return storeErr(err, "user", userID)
	}
	if !project.IsMember(userID) {
		return domain.BadRequestf("assignee %s is not a member of this project", userID)
	}
	return nil
}

// parseDueDate accepts RFC 3339 timestamps and plain dates
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.Validationf("invalid dueDate %q: use RFC 3339 or YYYY-MM-DD", raw)
}

func validateTaskText(title, description *string) error {
	if title != nil {
		if err := checkLength("title", *title, domain.TaskTitleMin, domain.TaskTitleMax); err != nil {
			return err
		}
	}
	if description != nil {
		if err := checkLength("description", *description, 0, domain.TaskDescriptionMax); err != nil {
			return err
		}
	}
	return nil
}

// Create adds a task to a project. The requester becomes its creator.
func (s *TaskService) Create(ctx context.Context, req domain.Requester, projectID string, in CreateTaskInput) (task *domain.Task, err error) {
	ctx, end := tracing.StartSpan(ctx, "TaskService.Create", attribute.String("project.id", projectID))
	defer func() { end(err); observe("task", "create", err) }()

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(req, security.ActionTaskCreate, security.Relate(req.UserID, project, nil)); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if err := validateTaskText(&title, &description); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !priority.IsValid() {
		return nil, domain.Validationf("invalid priority %q", priority)
	}
	var due *time.Time
	if in.DueDate != nil {
		if due, err = parseDueDate(*in.DueDate); err != nil {
			return nil, err
		}
	}

	var assignee *string
	if in.AssignedTo != nil && *in.AssignedTo != "" {
		if err := s.requireMember(ctx, project, *in.AssignedTo); err != nil {
			return nil, err
		}
		a := *in.AssignedTo
		assignee = &a
	}

	task = &domain.Task{
		ID:          newID(),
		Title:       title,
		Description: description,
		Status:      domain.TaskStatusTodo,
		Priority:    priority,
		ProjectID:   projectID,
		AssigneeID:  assignee,
		CreatorID:   req.UserID,
		DueDate:     due,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, storeErr(err, "project", projectID)
	}

	s.side.InvalidateProject(ctx, projectID)
	if assignee != nil && *assignee != req.UserID {
		s.notifyAssigned(ctx, task)
	}
	s.audit.LogTask(ctx, req.UserID, "create", task.ID, projectID)
	return task, nil
}

// List returns a filtered, sorted page of a project's tasks
func (s *TaskService) List(ctx context.Context, req domain.Requester, projectID string, in ListTasksInput) (out *TaskPage, err error) {
	ctx, end := tracing.StartSpan(ctx, "TaskService.List", attribute.String("project.id", projectID))
	defer func() { end(err); observe("task", "list", err) }()

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(req, security.ActionProjectView, security.Relate(req.UserID, project, nil)); err != nil {
		return nil, err
	}

	page, err := resolvePage(in.Page, in.Limit)
	if err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.IsValid() {
		return nil, domain.Validationf("invalid status filter %q", in.Status)
	}
	if in.Priority != "" && !in.Priority.IsValid() {
		return nil, domain.Validationf("invalid priority filter %q", in.Priority)
	}
	sort, err := s.resolveSort(in.SortBy, in.Order)
	if err != nil {
		return nil, err
	}

	filter := domain.TaskFilter{
		ProjectID:  projectID,
		Status:     in.Status,
		Priority:   in.Priority,
		AssigneeID: in.AssignedTo,
	}
	// project was read before the tasks, so a write racing this call can only
	// land under a version that later reads no longer ask for
	key := domain.ProjectCacheKey(project, fmt.Sprintf("tasks:%s|%s|%s|%d|%d|%s|%s",
		filter.Status, filter.Priority, filter.AssigneeID, page.Page, page.Limit, sort.Field, sort.Order))

	if data, ok := s.side.Lookup(ctx, "task_list", key); ok {
		var cached TaskPage
		if json.Unmarshal(data, &cached) == nil {
			return &cached, nil
		}
	}

	tasks, total, err := s.tasks.List(ctx, filter, sort, page)
	if err != nil {
		return nil, domain.Internal("failed to list tasks", err)
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	out = &TaskPage{Data: tasks, Pagination: domain.NewPagination(page, total)}

	if data, err := json.Marshal(out); err == nil {
		s.side.Store(ctx, key, data)
	}
	return out, nil
}

// resolveSort applies defaults. Priority ordering falls back to creation time
// unless the semantic priority flag is on.
func (s *TaskService) resolveSort(field domain.TaskSortField, order domain.SortOrder) (domain.TaskSort, error) {
	if field == "" {
		field = domain.SortByCreatedAt
	}
	if order == "" {
		order = domain.SortDesc
	}
	if !field.IsValid() {
		return domain.TaskSort{}, domain.Validationf("invalid sortBy %q", field)
	}
	if !order.IsValid() {
		return domain.TaskSort{}, domain.Validationf("invalid order %q", order)
	}
	if field == domain.SortByPriority && !s.flags.Enabled(featureflags.SemanticPrioritySort) {
		field = domain.SortByCreatedAt
	}
	return domain.TaskSort{Field: field, Order: order}, nil
}

// Get returns a task the requester can view
func (s *TaskService) Get(ctx context.Context, req domain.Requester, taskID string) (task *domain.Task, err error) {
	defer func() { observe("task", "get", err) }()
	task, _, err = s.loadTask(ctx, req, taskID, security.ActionTaskView)
	return task, err
}

// Update applies a partial edit. A status change is authorized and validated
// on its own; any failure leaves the stored task untouched.
func (s *TaskService) Update(ctx context.Context, req domain.Requester, taskID string, in UpdateTaskInput) (task *domain.Task, err error) {
	ctx, end := tracing.StartSpan(ctx, "TaskService.Update", attribute.String("task.id", taskID))
	defer func() { end(err); observe("task", "update", err) }()

	task, project, err := s.loadTask(ctx, req, taskID, security.ActionTaskEdit)
	if err != nil {
		return nil, err
	}
	rel := security.Relate(req.UserID, project, task)
	previousStatus := task.Status
	previousAssignee := task.AssigneeID

	if in.Status != nil {
		if err := s.authz.Authorize(req, security.ActionTaskChangeStatus, rel); err != nil {
			return nil, err
		}
		if !in.Status.IsValid() {
			return nil, domain.Validationf("invalid status %q", *in.Status)
		}
		if !task.Status.CanTransitionTo(*in.Status) {
			return nil, domain.BadRequestf("invalid transition from %s to %s", task.Status, *in.Status)
		}
	}

	title, description := trimmed(in.Title), trimmed(in.Description)
	if err := validateTaskText(title, description); err != nil {
		return nil, err
	}
	if in.Priority != nil && !in.Priority.IsValid() {
		return nil, domain.Validationf("invalid priority %q", *in.Priority)
	}
	var due *time.Time
	if in.DueDate != nil {
		if due, err = parseDueDate(*in.DueDate); err != nil {
			return nil, err
		}
	}
	assigneeChanged := false
	if in.AssignedTo != nil {
		next := *in.AssignedTo
		current := ""
		if task.AssigneeID != nil {
			current = *task.AssigneeID
		}
		if next != current {
			if next != "" {
				if err := s.requireMember(ctx, project, next); err != nil {
					return nil, err
				}
			}
			assigneeChanged = true
		}
	}

	// every check passed; apply the whole patch
	if title != nil {
		task.Title = *title
	}
	if description != nil {
		task.Description = *description
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		task.DueDate = due
	}
	if assigneeChanged {
		if *in.AssignedTo == "" {
			task.AssigneeID = nil
		} else {
			a := *in.AssignedTo
			task.AssigneeID = &a
		}
	}
	if in.Status != nil {
		task.SetStatus(*in.Status, s.now().UTC())
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, storeErr(err, "task", taskID)
	}

	s.side.InvalidateProject(ctx, task.ProjectID)
	if task.Status != previousStatus {
		s.notifyStatusChanged(ctx, req, task, previousStatus)
	}
	if assigneeChanged && task.AssigneeID != nil && *task.AssigneeID != req.UserID {
		s.notifyAssigned(ctx, task)
	}
	s.audit.LogTask(ctx, req.UserID, "update", taskID,
		updateDetails(task, previousStatus, previousAssignee, assigneeChanged))
	return task, nil
}

// updateDetails records what an update changed, e.g. "status=TODO->IN_PROGRESS assignee=alice->-"
func updateDetails(task *domain.Task, fromStatus domain.TaskStatus, fromAssignee *string, reassigned bool) string {
	var parts []string
	if task.Status != fromStatus {
		parts = append(parts, fmt.Sprintf("status=%s->%s", fromStatus, task.Status))
	}
	if reassigned {
		parts = append(parts, fmt.Sprintf("assignee=%s->%s", orDash(fromAssignee), orDash(task.AssigneeID)))
	}
	return strings.Join(parts, " ")
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// AssignTask sets the assignee. Unlike Update, the current assignee may not reassign.
func (s *TaskService) AssignTask(ctx context.Context, req domain.Requester, taskID, assignedTo string) (task *domain.Task, err error) {
	ctx, end := tracing.StartSpan(ctx, "TaskService.AssignTask",
		attribute.String("task.id", taskID),
		attribute.String("assignee.id", assignedTo),
	)
	defer func() { end(err); observe("task", "assign", err) }()

	task, project, err := s.loadTask(ctx, req, taskID, security.ActionTaskAssign)
	if err != nil {
		return nil, err
	}
	if assignedTo == "" {
		return nil, domain.Validationf("assignedTo is required")
	}
	if err := s.requireMember(ctx, project, assignedTo); err != nil {
		return nil, err
	}

	a := assignedTo
	task.AssigneeID = &a
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, storeErr(err, "task", taskID)
	}

	s.side.InvalidateProject(ctx, task.ProjectID)
	if assignedTo != req.UserID {
		s.notifyAssigned(ctx, task)
	}
	s.audit.LogTask(ctx, req.UserID, "assign", taskID, assignedTo)
	return task, nil
}

// Delete removes a task
func (s *TaskService) Delete(ctx context.Context, req domain.Requester, taskID string) (err error) {
	ctx, end := tracing.StartSpan(ctx, "TaskService.Delete", attribute.String("task.id", taskID))
	defer func() { end(err); observe("task", "delete", err) }()

	task, _, err := s.loadTask(ctx, req, taskID, security.ActionTaskDelete)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return storeErr(err, "task", taskID)
	}

	s.side.InvalidateProject(ctx, task.ProjectID)
	s.audit.LogTask(ctx, req.UserID, "delete", taskID, task.ProjectID)
	return nil
}

// AddComment appends a comment. Anyone who can view the task may comment.
func (s *TaskService) AddComment(ctx context.Context, req domain.Requester, taskID, text string) (comment *domain.Comment, err error) {
	ctx, end := tracing.StartSpan(ctx, "TaskService.AddComment", attribute.String("task.id", taskID))
	defer func() { end(err); observe("task", "comment", err) }()

	task, _, err := s.loadTask(ctx, req, taskID, security.ActionTaskComment)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if err := checkLength("text", text, 1, domain.CommentTextMax); err != nil {
		return nil, err
	}

	comment = &domain.Comment{
		ID:        newID(),
		AuthorID:  req.UserID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.tasks.AddComment(ctx, taskID, comment); err != nil {
		return nil, storeErr(err, "task", taskID)
	}

	s.side.InvalidateProject(ctx, task.ProjectID)
	s.audit.LogTask(ctx, req.UserID, "comment", taskID, comment.ID)
	return comment, nil
}

// Stats counts a project's tasks by status and priority, plus overdue ones
func (s *TaskService) Stats(ctx context.Context, req domain.Requester, projectID string) (stats domain.TaskStats, err error) {
	ctx, end := tracing.StartSpan(ctx, "TaskService.Stats", attribute.String("project.id", projectID))
	defer func() { end(err); observe("task", "stats", err) }()

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return stats, err
	}
	if err := s.authz.Authorize(req, security.ActionProjectView, security.Relate(req.UserID, project, nil)); err != nil {
		return stats, err
	}

	key := domain.ProjectCacheKey(project, "stats")
	if data, ok := s.side.Lookup(ctx, "task_stats", key); ok {
		if json.Unmarshal(data, &stats) == nil {
			return stats, nil
		}
	}

	stats, err = s.tasks.Stats(ctx, projectID, s.now().UTC())
	if err != nil {
		return stats, domain.Internal("failed to compute task stats", err)
	}
	if data, err := json.Marshal(stats); err == nil {
		s.side.Store(ctx, key, data)
	}
	return stats, nil
}

func (s *TaskService) notifyAssigned(ctx context.Context, task *domain.Task) {
	s.side.Notify(ctx, domain.Notification{
		Kind:      domain.NotifyTaskAssigned,
		UserID:    *task.AssigneeID,
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		Message:   fmt.Sprintf("You were assigned %q", task.Title),
	})
}

// notifyStatusChanged tells the assignee and the creator, skipping whoever made the change
func (s *TaskService) notifyStatusChanged(ctx context.Context, req domain.Requester, task *domain.Task, from domain.TaskStatus) {
	recipients := map[string]struct{}{task.CreatorID: {}}
	if task.AssigneeID != nil {
		recipients[*task.AssigneeID] = struct{}{}
	}
	delete(recipients, req.UserID)

	for userID := range recipients {
		s.side.Notify(ctx, domain.Notification{
			Kind:      domain.NotifyTaskStatusChanged,
			UserID:    userID,
			ProjectID: task.ProjectID,
			TaskID:    task.ID,
			Message:   fmt.Sprintf("%q moved from %s to %s", task.Title, from, task.Status),
		})
	}
}
