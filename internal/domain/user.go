package domain

import (
	"context"
	"time"
)

// GlobalRole is the account-wide permission level, independent of any project
type GlobalRole string

const (
	GlobalRoleAdmin   GlobalRole = "ADMIN"
	GlobalRoleManager GlobalRole = "MANAGER"
	GlobalRoleMember  GlobalRole = "MEMBER"
)

// IsValid reports whether r is a known global role
func (r GlobalRole) IsValid() bool {
	switch r {
	case GlobalRoleAdmin, GlobalRoleManager, GlobalRoleMember:
		return true
	}
	return false
}

// User represents a registered account
type User struct {
	ID           string // UUID
	Name         string
	Email        string // Unique email address
	PasswordHash string // Bcrypt hash (never serialized)
	Role         GlobalRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Requester is the verified identity attached to every service call.
// It is trusted verbatim; authentication happens before the core is reached.
type Requester struct {
	UserID string
	Role   GlobalRole
}

// IsAdmin reports whether the requester holds the global ADMIN role
func (r Requester) IsAdmin() bool {
	return r.Role == GlobalRoleAdmin
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*User, error)
	Update(ctx context.Context, user *User) error
}
