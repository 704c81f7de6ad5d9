package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/security/middleware"
)

// ErrorResponse is shared with the middleware so every failure has one shape
type ErrorResponse = middleware.ErrorResponse

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error","kind"}. Internal details never reach the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	kind := domain.KindOf(err)
	msg := err.Error()
	var typed *domain.Error
	if errors.As(err, &typed) {
		msg = typed.Message
	}
	if kind == domain.KindInternal {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg = "internal error"
	}
	writeJSON(w, statusFor(kind), ErrorResponse{Error: msg, Kind: string(kind)})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: msg, Kind: "unauthorized"})
}

// decodeJSON reads the request body into dst
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, middleware.MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.BadRequestf("request body is required")
		}
		return domain.BadRequestf("invalid request body")
	}
	return nil
}

// requester returns the authenticated identity or writes a 401
func requester(w http.ResponseWriter, r *http.Request) (domain.Requester, bool) {
	req, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return domain.Requester{}, false
	}
	return req, true
}

// queryInt parses an optional integer query parameter; absent means 0
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("%s must be an integer", name)
	}
	return n, nil
}
