package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--api", srv.URL + "/api"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "alice@example.com" {
			t.Errorf("unexpected body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"userId":"u1","email":"alice@example.com","role":"MEMBER","token":"tok-123"}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, srv, "login", "--email", "alice@example.com", "--password", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in as alice@example.com") {
		t.Fatalf("unexpected output %q", out)
	}
	if got := loadToken(); got != "tok-123" {
		t.Fatalf("expected stored token, got %q", got)
	}
}

func TestAPIErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"not allowed to delete this task","kind":"forbidden"}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, srv, "tasks", "delete", "t1")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Kind != "forbidden" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestTaskListSendsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/p1/tasks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "TODO" || q.Get("sortBy") != "dueDate" || q.Has("priority") {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"t1","title":"Write docs","status":"TODO","priority":"HIGH"}],"pagination":{"page":1,"limit":10,"total":1,"pages":1}}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, srv, "tasks", "list", "p1", "--status", "TODO", "--sort", "dueDate")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Write docs") || !strings.Contains(out, "page 1/1, 1 total") {
		t.Fatalf("unexpected output %q", out)
	}
}
