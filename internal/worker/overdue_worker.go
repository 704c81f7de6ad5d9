package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/metrics"
)

const (
	overdueBatchSize = 200
	// reminders are deduplicated per task per UTC day
	reminderTTL = 25 * time.Hour
)

// Notifier is the subset of the side channel the worker needs
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// OverdueWorker periodically reminds assignees about tasks past their due date
type OverdueWorker struct {
	tasks    domain.TaskRepository
	dedupe   domain.Cache
	notifier Notifier
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewOverdueWorker creates a new overdue reminder worker. dedupe may be nil,
// in which case every scan reminds again.
func NewOverdueWorker(
	tasks domain.TaskRepository,
	dedupe domain.Cache,
	notifier Notifier,
	logger *slog.Logger,
	interval time.Duration,
) *OverdueWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueWorker{
		tasks:    tasks,
		dedupe:   dedupe,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "overdue_worker")),
		interval: interval,
		now:      time.Now,
	}
}

// Start runs a scan immediately and then on every tick until ctx is done
func (w *OverdueWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("overdue worker disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("overdue worker started", slog.Duration("interval", w.interval))
	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overdue worker stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *OverdueWorker) scan(ctx context.Context) {
	sent, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error("overdue scan failed", slog.String("error", err.Error()))
		return
	}
	if sent > 0 {
		w.logger.Info("overdue reminders sent", slog.Int("count", sent))
	}
}

// RunOnce walks every overdue task in keyset pages and returns the number of
// reminders sent. Reminders sent before a failing page are still counted.
func (w *OverdueWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.now().UTC()
	day := now.Format("2006-01-02")
	sent, skipped := 0, 0
	defer func() {
		metrics.ObserveOverdueReminder("sent", sent)
		metrics.ObserveOverdueReminder("skipped", skipped)
	}()

	var cursor *domain.OverdueCursor
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		tasks, err := w.tasks.ListOverdue(ctx, now, cursor, overdueBatchSize)
		if err != nil {
			metrics.ObserveOverdueReminder("error", 1)
			return sent, fmt.Errorf("list overdue tasks: %w", err)
		}

		for _, task := range tasks {
			if task.AssigneeID == nil {
				continue
			}
			if !w.claim(ctx, task.ID, day) {
				skipped++
				continue
			}

			w.notifier.Notify(ctx, domain.Notification{
				Kind:      domain.NotifyTaskOverdue,
				UserID:    *task.AssigneeID,
				ProjectID: task.ProjectID,
				TaskID:    task.ID,
				Message:   fmt.Sprintf("%q was due %s", task.Title, task.DueDate.UTC().Format(time.RFC3339)),
				CreatedAt: now,
			})
			sent++
		}

		if len(tasks) < overdueBatchSize {
			return sent, nil
		}
		cursor = domain.CursorAfter(tasks[len(tasks)-1])
	}
}

// claim marks today's reminder for taskID, reporting false when already sent.
// A failing dedupe store lets the reminder through.
func (w *OverdueWorker) claim(ctx context.Context, taskID, day string) bool {
	if w.dedupe == nil {
		return true
	}
	ok, err := w.dedupe.SetNX(ctx, "reminder:"+taskID+":"+day, []byte("1"), reminderTTL)
	if err != nil {
		w.logger.Warn("reminder dedupe unavailable",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		return true
	}
	return ok
}
