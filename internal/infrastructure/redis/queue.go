package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
)

// maxQueued bounds each user's pending notifications
const maxQueued = 500

func queueKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// NotificationQueue stores notifications in a per-user Redis list
type NotificationQueue struct {
	client *Client
}

// NewNotificationQueue creates a Redis-backed notifier
func NewNotificationQueue(client *Client) *NotificationQueue {
	return &NotificationQueue{client: client}
}

// Enqueue implements domain.Notifier
func (q *NotificationQueue) Enqueue(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := q.client.Push(ctx, queueKey(n.UserID), data, maxQueued); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	q.client.logger.Debug("notification enqueued",
		slog.String("user_id", n.UserID),
		slog.String("kind", string(n.Kind)),
	)
	return nil
}

// Next waits up to timeout for the user's oldest pending notification.
// It returns nil with no error when nothing arrived.
func (q *NotificationQueue) Next(ctx context.Context, userID string, timeout time.Duration) (*domain.Notification, error) {
	data, found, err := q.client.PopWait(ctx, queueKey(userID), timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification: %w", err)
	}
	if !found {
		return nil, nil
	}
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &n, nil
}
