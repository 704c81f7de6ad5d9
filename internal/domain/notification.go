package domain

import (
	"context"
	"fmt"
	"time"
)

// NotificationKind identifies the event a user is notified about
type NotificationKind string

const (
	NotifyTaskAssigned      NotificationKind = "task_assigned"
	NotifyTaskStatusChanged NotificationKind = "task_status_changed"
	NotifyMemberAdded       NotificationKind = "member_added"
	NotifyTaskOverdue       NotificationKind = "task_overdue"
)

// Notification is a message queued for one user
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	UserID    string           `json:"userId"`
	Message   string           `json:"message"`
	ProjectID string           `json:"projectId,omitempty"`
	TaskID    string           `json:"taskId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Cache stores derived project read models. All failures are tolerated by callers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Notifier enqueues notifications for later delivery
type Notifier interface {
	Enqueue(ctx context.Context, n Notification) error
}

// ProjectCachePrefix is the key prefix for every cached view of a project
func ProjectCachePrefix(projectID string) string {
	return "project:" + projectID + ":"
}

// ProjectCacheKey names a cached view of p at its current version. A write
// moves the project to a new version, so views cached before it are never read.
func ProjectCacheKey(p *Project, view string) string {
	return fmt.Sprintf("%sv%d:%s", ProjectCachePrefix(p.ID), p.CacheVersion, view)
}
