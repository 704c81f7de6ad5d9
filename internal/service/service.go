package service

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/metrics"
)

// Pagination defaults applied when a caller leaves page or limit at zero
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

func newID() string {
	return uuid.NewString()
}

// observe counts an operation outcome by error kind
func observe(entity, operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	metrics.ObserveOperation(entity, operation, result)
}

// storeErr translates a repository error into a typed service error
func storeErr(err error, what, id string) error {
	if err == nil {
		return nil
	}
	var typed *domain.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFoundf("%s %s not found", what, id)
	}
	return domain.Internal("failed to access "+what, err)
}

// resolvePage fills defaults and rejects negative values
func resolvePage(page, limit int) (domain.Page, error) {
	if page < 0 || limit < 0 {
		return domain.Page{}, domain.Validationf("page and limit must be positive integers")
	}
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	return domain.Page{Page: page, Limit: limit}, nil
}

// checkLength enforces a rune-count range on a trimmed field
func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		if min == 0 {
			return domain.Validationf("%s must be at most %d characters", field, max)
		}
		return domain.Validationf("%s must be between %d and %d characters", field, min, max)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
