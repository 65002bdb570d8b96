package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const keyPrefix = "cache:"

// Client is a cache.Backend on redis. Entries carry their own expiry in a
// JSON envelope and also get a redis TTL so abandoned keys disappear.
type Client struct {
	client *redis.Client
	now    func() time.Time
}

type envelope struct {
	Payload   string `json:"payload"`
	ExpiresAt int64  `json:"expires_at"`
	UpdatedAt int64  `json:"updated_at"`
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// subjectKey is the key prefix shared by a subject's entries. The subject
// is length-prefixed, so subjects containing ':' cannot run into the key
// or into another subject's namespace.
func subjectKey(subject string) string {
	return keyPrefix + strconv.Itoa(len(subject)) + ":" + subject + ":"
}

func entryKey(subject, key string) string {
	return subjectKey(subject) + key
}

func subjectPattern(subject string) string {
	return escapeGlob(subjectKey(subject)) + "*"
}

func prefixPattern(subject, prefix string) string {
	return escapeGlob(entryKey(subject, prefix)) + "*"
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Client) GetEntry(ctx context.Context, subject, key string) (*models.CacheEntry, error) {
	data, err := c.client.Get(ctx, entryKey(subject, key)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("get cache entry: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache envelope: %w", err)
	}

	return &models.CacheEntry{
		SubjectID: subject,
		CacheKey:  key,
		Payload:   env.Payload,
		ExpiresAt: time.UnixMilli(env.ExpiresAt).UTC(),
		UpdatedAt: time.UnixMilli(env.UpdatedAt).UTC(),
	}, nil
}

func (c *Client) PutEntry(ctx context.Context, e *models.CacheEntry) error {
	data, err := json.Marshal(envelope{
		Payload:   e.Payload,
		ExpiresAt: e.ExpiresAt.UnixMilli(),
		UpdatedAt: e.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}

	ttl := e.ExpiresAt.Sub(c.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := c.client.Set(ctx, entryKey(e.SubjectID, e.CacheKey), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	logger.Debug("Cache entry written to redis", zap.String("subject", e.SubjectID), zap.String("cache_key", e.CacheKey))
	return nil
}

func (c *Client) DeleteEntry(ctx context.Context, subject, key string) error {
	if err := c.client.Del(ctx, entryKey(subject, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (c *Client) DeleteSubject(ctx context.Context, subject string) error {
	return c.deleteMatching(ctx, subjectPattern(subject))
}

func (c *Client) DeleteByPrefix(ctx context.Context, subject, prefix string) error {
	return c.deleteMatching(ctx, prefixPattern(subject, prefix))
}

// DeleteExpired is a no-op: redis expires keys on its own.
func (c *Client) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (c *Client) deleteMatching(ctx context.Context, pattern string) error {
	var errs []error

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to delete %d cache keys: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
