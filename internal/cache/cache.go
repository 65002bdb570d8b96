// Package cache implements the persistent (subject, key) cache that sits in
// front of expensive summary, recommendation and translation computations.
//
// Reads evict expired entries lazily. GetOrCompute is cache-aside without
// single-flight: concurrent misses on one key may all compute, and the last
// write wins. Writes issued by GetOrCompute are fire-and-forget and may be
// lost if the process exits before they land; call Wait to drain them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/metrics"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const (
	TTLWeek            = 60 * time.Minute
	TTLMonth           = 6 * time.Hour
	TTLLongRange       = 24 * time.Hour
	TTLRecommendations = 24 * time.Hour
	TTLProfileSummary  = 12 * time.Hour
	TTLTranslations    = 7 * 24 * time.Hour
)

// Backend persists cache entries. GetEntry returns models.ErrNotFound when
// no entry exists; expiry is enforced by Store, not by the backend.
type Backend interface {
	GetEntry(ctx context.Context, subject, key string) (*models.CacheEntry, error)
	PutEntry(ctx context.Context, e *models.CacheEntry) error
	DeleteEntry(ctx context.Context, subject, key string) error
	DeleteSubject(ctx context.Context, subject string) error
	DeleteByPrefix(ctx context.Context, subject, prefix string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Store struct {
	backend      Backend
	now          func() time.Time
	writeTimeout time.Duration
	log          *zap.Logger

	pending sync.WaitGroup
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:      backend,
		now:          time.Now,
		writeTimeout: 5 * time.Second,
		log:          logger.Named("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get decodes the live entry for (subject, key) into dest and reports
// whether it was found. Backend and decode failures count as a miss.
func (s *Store) Get(ctx context.Context, subject, key string, dest any) bool {
	family := metrics.KeyFamily(key)

	entry, err := s.backend.GetEntry(ctx, subject, key)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.log.Warn("Cache read failed",
				zap.String("subject", subject),
				zap.String("cache_key", key),
				zap.Error(err),
			)
			metrics.CacheErrors.WithLabelValues(family, "get").Inc()
		}
		metrics.CacheMisses.WithLabelValues(family).Inc()
		return false
	}

	if s.now().After(entry.ExpiresAt) {
		if err := s.backend.DeleteEntry(ctx, subject, key); err != nil {
			s.log.Warn("Failed to evict expired cache entry",
				zap.String("subject", subject),
				zap.String("cache_key", key),
				zap.Error(err),
			)
		} else {
			metrics.CacheEvictions.Inc()
		}
		metrics.CacheMisses.WithLabelValues(family).Inc()
		return false
	}

	if err := json.Unmarshal([]byte(entry.Payload), dest); err != nil {
		s.log.Warn("Failed to decode cache entry",
			zap.String("subject", subject),
			zap.String("cache_key", key),
			zap.Error(err),
		)
		metrics.CacheErrors.WithLabelValues(family, "decode").Inc()
		metrics.CacheMisses.WithLabelValues(family).Inc()
		return false
	}

	metrics.CacheHits.WithLabelValues(family).Inc()
	s.log.Debug("Cache hit", zap.String("subject", subject), zap.String("cache_key", key))
	return true
}

// Set stores value under (subject, key) for ttl, overwriting any entry.
func (s *Store) Set(ctx context.Context, subject, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	now := s.now()
	err = s.backend.PutEntry(ctx, &models.CacheEntry{
		SubjectID: subject,
		CacheKey:  key,
		Payload:   string(data),
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	s.log.Debug("Cache entry stored",
		zap.String("subject", subject),
		zap.String("cache_key", key),
		zap.Duration("ttl", ttl),
	)
	return nil
}

func (s *Store) Delete(ctx context.Context, subject, key string) error {
	return s.backend.DeleteEntry(ctx, subject, key)
}

// DeleteAll clears every entry of subject.
func (s *Store) DeleteAll(ctx context.Context, subject string) error {
	return s.backend.DeleteSubject(ctx, subject)
}

func (s *Store) DeleteByPrefix(ctx context.Context, subject, prefix string) error {
	if err := s.backend.DeleteByPrefix(ctx, subject, prefix); err != nil {
		return err
	}
	s.log.Debug("Cache prefix invalidated", zap.String("subject", subject), zap.String("prefix", prefix))
	return nil
}

// setAsync writes in the background, detached from the caller's
// cancellation. Failures are logged and dropped.
func (s *Store) setAsync(ctx context.Context, subject, key string, value any, ttl time.Duration) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()

		if err := s.Set(writeCtx, subject, key, value, ttl); err != nil {
			s.log.Warn("Cache write dropped",
				zap.String("subject", subject),
				zap.String("cache_key", key),
				zap.Error(err),
			)
			metrics.CacheErrors.WithLabelValues(metrics.KeyFamily(key), "set").Inc()
		}
	}()
}

// Wait blocks until every background write started so far has finished.
func (s *Store) Wait() {
	s.pending.Wait()
}

// GetOrCompute returns the cached value for (subject, key) or computes,
// returns and asynchronously stores a fresh one. Errors from compute are
// returned unchanged and nothing is stored.
func GetOrCompute[T any](ctx context.Context, s *Store, subject, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if s.Get(ctx, subject, key, &cached) {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	s.setAsync(ctx, subject, key, value, ttl)
	return value, nil
}

// Sweep removes every expired entry.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	n, err := s.backend.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cache: %w", err)
	}
	if n > 0 {
		metrics.CacheEvictions.Add(float64(n))
		s.log.Info("Expired cache entries swept", zap.Int64("count", n))
	}
	return n, nil
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.log.Warn("Cache sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
