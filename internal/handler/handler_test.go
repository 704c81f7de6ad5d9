package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/repository/memory"
	"github.com/aryan0dhankhar/teamtasks/internal/security/auth"
	"github.com/aryan0dhankhar/teamtasks/internal/security/middleware"
	"github.com/aryan0dhankhar/teamtasks/internal/service"
)

type testEnv struct {
	handler http.Handler
	tokens  *auth.TokenManager
	auth    *service.AuthService
}

func newTestEnv(t *testing.T, source NotificationSource) *testEnv {
	t.Helper()
	store := memory.NewStore()
	tokens := auth.NewTokenManager("test-secret", "")
	authSvc := service.NewAuthService(store.Users(), tokens, time.Hour, nil, nil)
	projects := service.NewProjectService(store.Projects(), store.Users(), nil, nil, nil, nil)
	tasks := service.NewTaskService(store.Tasks(), store.Projects(), store.Users(), nil, nil, nil, nil, nil)

	if err := authSvc.EnsureAdmin(context.Background(), "Admin", "admin@example.com", "admin-password"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	mux := http.NewServeMux()
	Handlers{
		Auth:          NewAuthHandler(authSvc, nil),
		Projects:      NewProjectHandler(projects, nil),
		Tasks:         NewTaskHandler(tasks, nil),
		Health:        NewHealthHandler(nil, Check{Name: "postgres"}),
		Notifications: NewNotificationsHandler(source, nil, nil),
	}.Register(mux)

	return &testEnv{
		handler: middleware.JWTMiddleware(tokens, slogDiscard())(mux),
		tokens:  tokens,
		auth:    authSvc,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (e *testEnv) login(t *testing.T, email, password string) service.AuthResult {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password})
	expectStatus(t, rec, http.StatusOK)
	return decode[service.AuthResult](t, rec)
}

func (e *testEnv) register(t *testing.T, name, email string) service.AuthResult {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Name: name, Email: email, Password: "password123"})
	expectStatus(t, rec, http.StatusCreated)
	return decode[service.AuthResult](t, rec)
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	alice := env.register(t, "Alice", "alice@example.com")
	if alice.Token == "" || alice.Role != domain.GlobalRoleMember {
		t.Fatalf("unexpected register result %+v", alice)
	}

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{Name: "Again", Email: "ALICE@example.com", Password: "password123"})
	expectStatus(t, rec, http.StatusConflict)
	if got := decode[ErrorResponse](t, rec); got.Kind != string(domain.KindConflict) {
		t.Fatalf("expected conflict kind, got %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	expectStatus(t, rec, http.StatusUnauthorized)

	logged := env.login(t, "alice@example.com", "password123")
	rec = env.do(t, http.MethodGet, "/api/auth/me", logged.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if me := decode[UserResponse](t, rec); me.ID != alice.UserID || me.Email != "alice@example.com" {
		t.Fatalf("unexpected me %+v", me)
	}

	rec = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(t, http.MethodPatch, "/api/users/"+alice.UserID+"/role", logged.Token, RoleRequest{Role: domain.GlobalRoleAdmin})
	expectStatus(t, rec, http.StatusForbidden)

	admin := env.login(t, "admin@example.com", "admin-password")
	rec = env.do(t, http.MethodPatch, "/api/users/"+alice.UserID+"/role", admin.Token, RoleRequest{Role: domain.GlobalRoleManager})
	expectStatus(t, rec, http.StatusOK)
	if u := decode[UserResponse](t, rec); u.Role != domain.GlobalRoleManager {
		t.Fatalf("expected MANAGER, got %s", u.Role)
	}
}

func TestProjectAndTaskEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.login(t, "admin@example.com", "admin-password")
	alice := env.register(t, "Alice", "alice@example.com")

	rec := env.do(t, http.MethodPost, "/api/projects", alice.Token, CreateProjectRequest{Name: "Nope"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(t, http.MethodPost, "/api/projects", admin.Token, CreateProjectRequest{Name: "ab"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = env.do(t, http.MethodPost, "/api/projects", admin.Token, CreateProjectRequest{Name: "Launch", Description: "Q3 launch"})
	expectStatus(t, rec, http.StatusCreated)
	project := decode[ProjectResponse](t, rec)
	if project.Status != domain.ProjectStatusActive || project.OwnerID != admin.UserID {
		t.Fatalf("unexpected project %+v", project)
	}

	rec = env.do(t, http.MethodGet, "/api/projects/"+project.ID, alice.Token, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/members", admin.Token,
		AddMemberRequest{UserID: alice.UserID, Role: domain.ProjectRoleMember})
	expectStatus(t, rec, http.StatusCreated)

	rec = env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/members", admin.Token,
		AddMemberRequest{UserID: alice.UserID, Role: domain.ProjectRoleMember})
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/members", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	members := decode[[]service.MemberView](t, rec)
	if len(members) != 2 || members[0].Role != domain.ProjectRoleOwner || members[1].Email != "alice@example.com" {
		t.Fatalf("unexpected members %+v", members)
	}

	rec = env.do(t, http.MethodGet, "/api/projects", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decode[PageResponse[ProjectResponse]](t, rec); page.Pagination.Total != 1 || page.Pagination.Page != 1 {
		t.Fatalf("unexpected project page %+v", page.Pagination)
	}

	rec = env.do(t, http.MethodGet, "/api/projects?page=x", alice.Token, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	assignee := alice.UserID
	due := "2020-01-01"
	rec = env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/tasks", admin.Token, CreateTaskRequest{
		Title:      "Write docs",
		Priority:   domain.TaskPriorityHigh,
		AssignedTo: &assignee,
		DueDate:    &due,
	})
	expectStatus(t, rec, http.StatusCreated)
	task := decode[TaskResponse](t, rec)
	if task.Status != domain.TaskStatusTodo || task.AssignedTo == nil || *task.AssignedTo != alice.UserID {
		t.Fatalf("unexpected task %+v", task)
	}

	rec = env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/tasks", alice.Token, CreateTaskRequest{Title: "Sneaky"})
	expectStatus(t, rec, http.StatusForbidden)

	done := domain.TaskStatusDone
	rec = env.do(t, http.MethodPatch, "/api/tasks/"+task.ID, alice.Token, UpdateTaskRequest{Status: &done})
	expectStatus(t, rec, http.StatusBadRequest)

	inProgress := domain.TaskStatusInProgress
	rec = env.do(t, http.MethodPatch, "/api/tasks/"+task.ID, alice.Token, UpdateTaskRequest{Status: &inProgress})
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPatch, "/api/tasks/"+task.ID, alice.Token, UpdateTaskRequest{Status: &done})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[TaskResponse](t, rec); got.CompletedAt == nil || got.Status != domain.TaskStatusDone {
		t.Fatalf("expected completed task, got %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/comments", alice.Token, CommentRequest{Text: "shipped"})
	expectStatus(t, rec, http.StatusCreated)
	if c := decode[CommentResponse](t, rec); c.UserID != alice.UserID || c.Text != "shipped" {
		t.Fatalf("unexpected comment %+v", c)
	}

	rec = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/tasks?status=DONE&sortBy=dueDate&order=asc", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decode[PageResponse[TaskResponse]](t, rec); len(page.Data) != 1 || len(page.Data[0].Comments) != 1 {
		t.Fatalf("unexpected task page %+v", page)
	}

	rec = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/stats", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if stats := decode[domain.TaskStats](t, rec); stats.Total != 1 || stats.ByStatus[domain.TaskStatusDone] != 1 || stats.Overdue != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rec = env.do(t, http.MethodDelete, "/api/tasks/"+task.ID, alice.Token, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(t, http.MethodDelete, "/api/projects/"+project.ID, admin.Token, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = env.do(t, http.MethodGet, "/api/tasks/"+task.ID, admin.Token, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.login(t, "admin@example.com", "admin-password")

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeError(rec, slogDiscard(), req, domain.Internal("failed to load", errors.New("pq: connection refused")))

	expectStatus(t, rec, http.StatusInternalServerError)
	if got := decode[ErrorResponse](t, rec); got.Error != "internal error" || got.Kind != "internal" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	expectStatus(t, rec, http.StatusOK)

	failing := NewHealthHandler(nil, Check{Name: "redis", Ping: func(context.Context) error { return errors.New("down") }})
	rec = httptest.NewRecorder()
	failing.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	expectStatus(t, rec, http.StatusServiceUnavailable)
	if got := decode[ReadinessResponse](t, rec); got.Checks["redis"] != "error: down" {
		t.Fatalf("unexpected checks %+v", got.Checks)
	}
}

// sliceSource hands out queued notifications then reports empty polls
type sliceSource struct {
	pending chan domain.Notification
}

func (s *sliceSource) Next(ctx context.Context, _ string, timeout time.Duration) (*domain.Notification, error) {
	select {
	case n := <-s.pending:
		return &n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func TestNotificationStream(t *testing.T) {
	source := &sliceSource{pending: make(chan domain.Notification, 1)}
	source.pending <- domain.Notification{Kind: domain.NotifyTaskAssigned, UserID: "u1", TaskID: "t1", Message: "assigned"}

	env := newTestEnv(t, source)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	admin := env.login(t, "admin@example.com", "admin-password")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications?token=" + admin.Token

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Notification
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != domain.NotifyTaskAssigned || got.TaskID != "t1" {
		t.Fatalf("unexpected notification %+v", got)
	}
}

func TestNotificationStreamUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.login(t, "admin@example.com", "admin-password")

	rec := env.do(t, http.MethodGet, "/ws/notifications", admin.Token, nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
}
