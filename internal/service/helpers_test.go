package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/repository/memory"
	"github.com/aryan0dhankhar/teamtasks/pkg/cache"
)

// recordingNotifier keeps every enqueued notification
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Enqueue(_ context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) byKind(kind domain.NotificationKind) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, note := range n.sent {
		if note.Kind == kind {
			out = append(out, note)
		}
	}
	return out
}

// failingCache and failingNotifier simulate an unavailable side channel
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("cache down")
}
func (failingCache) InvalidatePrefix(context.Context, string) error {
	return errors.New("cache down")
}

type failingNotifier struct{}

func (failingNotifier) Enqueue(context.Context, domain.Notification) error {
	return errors.New("queue down")
}

type fixture struct {
	store    *memory.Store
	cache    *cache.Cache
	notifier *recordingNotifier
	side     *SideChannel
	projects *ProjectService
	tasks    *TaskService
	now      time.Time

	admin, manager, alice, bob, carol domain.Requester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, nil)
}

// newFixtureWith builds services over a fresh store. Nil cache or notifier
// selects the in-memory cache and a recording notifier.
func newFixtureWith(t *testing.T, c domain.Cache, n domain.Notifier) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		cache:    cache.New(),
		notifier: &recordingNotifier{},
		now:      time.Date(2030, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	if c == nil {
		c = f.cache
	}
	if n == nil {
		n = f.notifier
	}
	f.side = NewSideChannel(c, n, time.Minute, nil)
	f.projects = NewProjectService(f.store.Projects(), f.store.Users(), nil, f.side, nil, nil)
	f.tasks = NewTaskService(f.store.Tasks(), f.store.Projects(), f.store.Users(), nil, f.side, nil, nil, nil)
	clock := func() time.Time { return f.now }
	f.projects.SetClock(clock)
	f.tasks.SetClock(clock)

	f.admin = f.addUser(t, "admin", domain.GlobalRoleAdmin)
	f.manager = f.addUser(t, "manager", domain.GlobalRoleManager)
	f.alice = f.addUser(t, "alice", domain.GlobalRoleMember)
	f.bob = f.addUser(t, "bob", domain.GlobalRoleMember)
	f.carol = f.addUser(t, "carol", domain.GlobalRoleMember)
	return f
}

func (f *fixture) addUser(t *testing.T, id string, role domain.GlobalRole) domain.Requester {
	t.Helper()
	u := &domain.User{ID: id, Name: id, Email: id + "@example.com", Role: role}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return domain.Requester{UserID: id, Role: role}
}

// project creates a project owned by owner with the given extra members
func (f *fixture) project(t *testing.T, owner domain.Requester, members map[string]domain.ProjectRole) *domain.Project {
	t.Helper()
	ctx := context.Background()
	p, err := f.projects.Create(ctx, owner, CreateProjectInput{Name: "Launch", Description: "v1"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	for id, role := range members {
		if p, err = f.projects.AddMember(ctx, owner, p.ID, AddMemberInput{UserID: id, Role: role}); err != nil {
			t.Fatalf("add member %s: %v", id, err)
		}
	}
	return p
}

func (f *fixture) task(t *testing.T, req domain.Requester, projectID string, assignee string) *domain.Task {
	t.Helper()
	in := CreateTaskInput{Title: "Write docs"}
	if assignee != "" {
		in.AssignedTo = &assignee
	}
	task, err := f.tasks.Create(context.Background(), req, projectID, in)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func expectKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func ptr[T any](v T) *T {
	return &v
}

// slowInvalidationCache delays prefix invalidation, like a remote cache
// under load
type slowInvalidationCache struct {
	*cache.Cache
	delay time.Duration
}

func (c slowInvalidationCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	time.Sleep(c.delay)
	return c.Cache.InvalidatePrefix(ctx, prefix)
}

// lossyInvalidationCache reads and writes normally but never invalidates
type lossyInvalidationCache struct {
	*cache.Cache
}

func (lossyInvalidationCache) InvalidatePrefix(context.Context, string) error {
	return errors.New("invalidate dropped")
}
