package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aryan0dhankhar/teamtasks/internal/domain"
	"github.com/aryan0dhankhar/teamtasks/internal/observability/metrics"
	"github.com/aryan0dhankhar/teamtasks/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/teamtasks/internal/reliability/retry"
)

const (
	channelCache  = "cache"
	channelNotify = "notify"

	sideChannelTimeout = 2 * time.Second
	cacheReadTimeout   = 250 * time.Millisecond
)

// SideChannel performs best-effort cache and notification work for the
// lifecycle managers. No method returns an error: failures are logged,
// counted and dropped.
type SideChannel struct {
	cache    domain.Cache
	notifier domain.Notifier
	cacheTTL time.Duration
	logger   *slog.Logger

	cacheBreaker  *circuitbreaker.CircuitBreaker
	notifyBreaker *circuitbreaker.CircuitBreaker
	retryCfg      *retry.Config

	wg sync.WaitGroup
}

// NewSideChannel wires the cache and notifier. Either may be nil, which
// turns the corresponding calls into no-ops.
func NewSideChannel(cache domain.Cache, notifier domain.Notifier, cacheTTL time.Duration, logger *slog.Logger) *SideChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	sc := &SideChannel{
		cache:         cache,
		notifier:      notifier,
		cacheTTL:      cacheTTL,
		logger:        logger.With(slog.String("component", "side_channel")),
		cacheBreaker:  circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second),
		notifyBreaker: circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second),
		retryCfg:      retry.SideChannelConfig(),
	}
	for channel, cb := range map[string]*circuitbreaker.CircuitBreaker{
		channelCache:  sc.cacheBreaker,
		channelNotify: sc.notifyBreaker,
	} {
		channel := channel
		cb.SetStateChangeCallback(func(from, to circuitbreaker.State) {
			metrics.SetCircuitState(channel, int(to))
			sc.logger.Warn("side channel circuit changed",
				slog.String("channel", channel),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
	}
	return sc
}

// InvalidateProject drops every cached view of a project in the background.
// Views are keyed by project version, so this only reclaims space early.
func (s *SideChannel) InvalidateProject(ctx context.Context, projectID string) {
	if s == nil || s.cache == nil {
		return
	}
	prefix := domain.ProjectCachePrefix(projectID)
	s.run(ctx, channelCache, s.cacheBreaker, func(ctx context.Context) error {
		return s.cache.InvalidatePrefix(ctx, prefix)
	}, slog.String("project_id", projectID))
}

// Notify enqueues n in the background. The timestamp is filled when unset.
func (s *SideChannel) Notify(ctx context.Context, n domain.Notification) {
	if s == nil || s.notifier == nil || n.UserID == "" {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.run(ctx, channelNotify, s.notifyBreaker, func(ctx context.Context) error {
		return s.notifier.Enqueue(ctx, n)
	}, slog.String("user_id", n.UserID), slog.String("kind", string(n.Kind)))
}

// Lookup reads a cached view synchronously with a short deadline.
// Any failure is reported as a miss.
func (s *SideChannel) Lookup(ctx context.Context, view, key string) ([]byte, bool) {
	if s == nil || s.cache == nil || !s.cacheBreaker.AllowRequest() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheReadTimeout)
	defer cancel()

	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.cacheBreaker.RecordFailure()
		metrics.ObserveSideChannel(channelCache, "error")
		s.logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	s.cacheBreaker.RecordSuccess()
	metrics.ObserveCacheLookup(view, found)
	return data, found
}

// Store writes a cached view in the background
func (s *SideChannel) Store(ctx context.Context, key string, value []byte) {
	if s == nil || s.cache == nil {
		return
	}
	s.run(ctx, channelCache, s.cacheBreaker, func(ctx context.Context) error {
		return s.cache.Set(ctx, key, value, s.cacheTTL)
	}, slog.String("key", key))
}

// Wait blocks until every background call has finished
func (s *SideChannel) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// run executes fn in a goroutine detached from the caller's cancellation
func (s *SideChannel) run(parent context.Context, channel string, cb *circuitbreaker.CircuitBreaker, fn func(context.Context) error, attrs ...any) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), sideChannelTimeout)
		defer cancel()

		err := cb.Execute(func() error {
			_, err := retry.Do(ctx, s.retryCfg, s.logger, channel, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, fn(ctx)
			})
			return err
		})
		if err != nil {
			metrics.ObserveSideChannel(channel, "error")
			s.logger.Warn("side channel call failed",
				append(attrs, slog.String("channel", channel), slog.String("error", err.Error()))...,
			)
			return
		}
		metrics.ObserveSideChannel(channel, "ok")
	}()
}

// LogNotifier is the notifier used when no queue backend is configured
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Enqueue(_ context.Context, note domain.Notification) error {
	n.logger.Info("notification",
		slog.String("user_id", note.UserID),
		slog.String("kind", string(note.Kind)),
		slog.String("message", note.Message),
	)
	return nil
}
