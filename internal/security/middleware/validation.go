package middleware

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// MaxBodyBytes caps every request body the API accepts
const MaxBodyBytes = 1 << 20

// maxQueryValueLen bounds a single query value; filters are ids and enum names
const maxQueryValueLen = 256

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// WriteError renders an ErrorResponse with the given status
func WriteError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Kind: kind})
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

// ValidateJSONBody requires a JSON media type on write requests that carry a
// body and caps the body at MaxBodyBytes.
func ValidateJSONBody(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasBody(r) {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				log.Warn("rejected request body",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
				)
				WriteError(w, http.StatusUnsupportedMediaType, string(domain.KindBadRequest),
					"Content-Type must be application/json")
				return
			}
			if r.ContentLength > MaxBodyBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, string(domain.KindBadRequest),
					"request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// SanitizeQuery rejects traversal in the path and query values that could
// not be an id, enum name or page number: control characters, markup or
// oversized values.
func SanitizeQuery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.Warn("suspicious path", slog.String("path", r.URL.Path))
				WriteError(w, http.StatusBadRequest, string(domain.KindBadRequest), "invalid path")
				return
			}

			for key, values := range r.URL.Query() {
				for _, v := range values {
					if len(v) <= maxQueryValueLen && !strings.ContainsAny(v, "<>\"'") &&
						strings.IndexFunc(v, unicode.IsControl) < 0 {
						continue
					}
					log.Warn("suspicious query value",
						slog.String("path", r.URL.Path),
						slog.String("param", key),
						slog.Int("length", len(v)),
					)
					WriteError(w, http.StatusBadRequest, string(domain.KindBadRequest),
						"invalid value for query parameter "+key)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
