package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/security/audit"
	"github.com/aryan0dhankhar/teamtasks/internal/security/auth"
	"github.com/aryan0dhankhar/teamtasks/internal/security/ratelimit"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// whoami echoes the requester's user id
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	req, ok := RequesterFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(req.UserID))
})

func TestJWTMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("secret", "")
	token, err := tm.GenerateToken("u1", "u1@example.com", domain.GlobalRoleMember, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	h := JWTMiddleware(tm, discard())(whoami)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"public path", "/healthz", "", http.StatusTeapot},
		{"missing token", "/api/projects", "", http.StatusUnauthorized},
		{"malformed header", "/api/projects", "Token " + token, http.StatusUnauthorized},
		{"bad token", "/api/projects", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/api/projects", "Bearer " + token, http.StatusOK},
		{"websocket query token", "/ws/notifications?token=" + token, "", http.StatusOK},
		{"query token ignored outside ws", "/api/projects?token=" + token, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusOK && rec.Body.String() != "u1" {
				t.Fatalf("expected requester u1, got %q", rec.Body.String())
			}
		})
	}
}

func TestRateLimitPerUser(t *testing.T) {
	limiter := ratelimit.NewLimiter(2, time.Minute)
	defer limiter.Stop()
	h := RateLimitMiddleware(limiter, discard())(whoami)

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		req = req.WithContext(WithClaims(req.Context(), &auth.Claims{UserID: userID, Role: domain.GlobalRoleMember}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("u1"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("u1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("u2"); code != http.StatusOK {
		t.Fatalf("other users keep their own budget, got %d", code)
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = audit.RequestID(r.Context())
	})
	h := RequestIDMiddleware(discard())(CORSMiddleware([]string{"http://app.local"})(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("Origin", "http://app.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-1" || rec.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("request id not propagated: ctx %q header %q", seen, rec.Header().Get("X-Request-ID"))
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.local" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestValidateJSONBody(t *testing.T) {
	var read int64
	h := ValidateJSONBody(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := io.Copy(io.Discard, r.Body)
		read = n
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"form body", http.MethodPost, "application/x-www-form-urlencoded", "name=x", http.StatusUnsupportedMediaType},
		{"json lookalike", http.MethodPatch, "application/jsonp", "{}", http.StatusUnsupportedMediaType},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", "{}", http.StatusOK},
		{"empty post", http.MethodPost, "", "", http.StatusOK},
		{"get ignores type", http.MethodGet, "text/plain", "", http.StatusOK},
		{"oversized", http.MethodPut, "application/json", strings.Repeat("a", MaxBodyBytes+1), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/projects", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want != http.StatusOK && rec.Header().Get("Content-Type") != "application/json" {
				t.Fatalf("rejections must be JSON, got %q", rec.Header().Get("Content-Type"))
			}
		})
	}

	// a body that lies about its length is still cut at the cap
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(strings.Repeat("a", MaxBodyBytes+10)))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if read > MaxBodyBytes || rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected body capped at %d, read %d (status %d)", MaxBodyBytes, read, rec.Code)
	}
}

func TestSanitizeQuery(t *testing.T) {
	h := SanitizeQuery(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"filters", "/api/projects/p1/tasks?status=TODO&page=2&assignedTo=u-1", http.StatusOK},
		{"markup", "/api/projects/p1/tasks?assignedTo=%3Cscript%3E", http.StatusBadRequest},
		{"control char", "/api/projects/p1/tasks?status=TODO%00", http.StatusBadRequest},
		{"oversized", "/api/projects?status=" + strings.Repeat("A", maxQueryValueLen+1), http.StatusBadRequest},
		{"traversal", "/api/projects/../users", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path, req.URL.RawQuery, _ = strings.Cut(tt.target, "?")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusBadRequest {
				var body ErrorResponse
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Kind != string(domain.KindBadRequest) {
					t.Fatalf("expected bad_request body, got %+v (%v)", body, err)
				}
			}
		})
	}
}
