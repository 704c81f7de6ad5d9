package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/repository/memory"
	"github.com/aryan0dhankhar/teamtasks/pkg/cache"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
}

func seed(t *testing.T, now time.Time) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	p := &domain.Project{ID: "p1", Name: "Launch", OwnerID: "owner", Status: domain.ProjectStatusActive}
	if err := store.Projects().Create(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}

	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)
	alice := "alice"
	for _, task := range []*domain.Task{
		{ID: "late", Title: "Late", ProjectID: "p1", Status: domain.TaskStatusInProgress, AssigneeID: &alice, DueDate: &past},
		{ID: "fine", Title: "Fine", ProjectID: "p1", Status: domain.TaskStatusTodo, AssigneeID: &alice, DueDate: &future},
		{ID: "nobody", Title: "Nobody", ProjectID: "p1", Status: domain.TaskStatusTodo, DueDate: &past},
	} {
		if err := store.Tasks().Create(ctx, task); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
	return store
}

func TestRunOnceRemindsOncePerDay(t *testing.T) {
	now := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	store := seed(t, now)
	notifier := &captureNotifier{}

	w := NewOverdueWorker(store.Tasks(), cache.New(), notifier, nil, time.Minute)
	w.now = func() time.Time { return now }

	sent, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 1 || len(notifier.sent) != 1 {
		t.Fatalf("expected one reminder, got %d", sent)
	}
	n := notifier.sent[0]
	if n.Kind != domain.NotifyTaskOverdue || n.UserID != "alice" || n.TaskID != "late" {
		t.Fatalf("unexpected notification %+v", n)
	}

	sent, _ = w.RunOnce(context.Background())
	if sent != 0 {
		t.Fatalf("second scan on the same day must not remind again, sent %d", sent)
	}
}

func TestRunOnceWithoutDedupe(t *testing.T) {
	now := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	store := seed(t, now)
	notifier := &captureNotifier{}

	w := NewOverdueWorker(store.Tasks(), nil, notifier, nil, time.Minute)
	w.now = func() time.Time { return now }

	_, _ = w.RunOnce(context.Background())
	_, _ = w.RunOnce(context.Background())
	if len(notifier.sent) != 2 {
		t.Fatalf("without a dedupe store every scan reminds, got %d", len(notifier.sent))
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	w := NewOverdueWorker(store.Tasks(), nil, &captureNotifier{}, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunOnceReachesPastFirstBatch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	if err := store.Projects().Create(ctx, &domain.Project{ID: "p1", Name: "Launch", OwnerID: "owner", Status: domain.ProjectStatusActive}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	total := overdueBatchSize*2 + 7
	alice := "alice"
	for i := 0; i < total; i++ {
		// several tasks share a due date so the cursor has to break ties on id
		due := now.Add(-time.Duration(i/3+1) * time.Minute)
		task := &domain.Task{
			ID:         fmt.Sprintf("t%04d", i),
			Title:      "Late",
			ProjectID:  "p1",
			Status:     domain.TaskStatusTodo,
			AssigneeID: &alice,
			DueDate:    &due,
		}
		if err := store.Tasks().Create(ctx, task); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	notifier := &captureNotifier{}
	w := NewOverdueWorker(store.Tasks(), cache.New(), notifier, nil, time.Minute)
	w.now = func() time.Time { return now }

	sent, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != total {
		t.Fatalf("expected %d reminders, got %d", total, sent)
	}
	seen := map[string]bool{}
	for _, n := range notifier.sent {
		if seen[n.TaskID] {
			t.Fatalf("task %s reminded twice in one scan", n.TaskID)
		}
		seen[n.TaskID] = true
	}

	sent, err = w.RunOnce(ctx)
	if err != nil || sent != 0 {
		t.Fatalf("second scan: sent %d, err %v", sent, err)
	}
}
