package intent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	intentmodel "github.com/frahmantamala/document-request/internal/core/datamodel/intent"
)

var ErrMissingSessionID = errors.New("payment intent has no session id")

type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MemoryStore keeps intents in process memory. Entries older than ttl are
// invisible to readers and removed by the sweeper.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]intentmodel.PaymentIntent
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		entries: make(map[string]intentmodel.PaymentIntent),
		ttl:     ttl,
		now:     o.now,
		logger:  o.logger,
		stop:    make(chan struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*intentmodel.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[sessionID]
	if !ok || s.expired(entry) {
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Put(ctx context.Context, p *intentmodel.PaymentIntent) error {
	if p == nil || p.SessionID == "" {
		return ErrMissingSessionID
	}
	entry := *p
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.entries[entry.SessionID] = entry
	s.mu.Unlock()
	return nil
}

// Delete is a no-op for unknown ids.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FindMostRecentUnexpired(ctx context.Context, maxAge time.Duration) (*intentmodel.PaymentIntent, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *intentmodel.PaymentIntent
	for _, entry := range s.entries {
		if s.expired(entry) || entry.Age(now) >= maxAge {
			continue
		}
		if newest == nil || entry.CreatedAt.After(newest.CreatedAt) {
			e := entry
			newest = &e
		}
	}
	return newest, nil
}

// Sweep drops expired entries and reports how many were removed.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// StartSweeper runs Sweep every interval until ctx is done or Close is called.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n, _ := s.Sweep(ctx); n > 0 {
					s.logger.Debug("swept expired payment intents", "removed", n)
				}
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(entry intentmodel.PaymentIntent) bool {
	return s.ttl > 0 && entry.Age(s.now()) >= s.ttl
}
