package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/coachly/backend/internal/storage/models"
)

// The methods below make *Client a cache.Backend backed by the
// cache_entries table.

func (c *Client) GetEntry(ctx context.Context, subject, key string) (*models.CacheEntry, error) {
	var e models.CacheEntry
	var expiresAt, updatedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT subject_id, cache_key, payload, expires_at, updated_at FROM cache_entries WHERE subject_id = ? AND cache_key = ?`,
		subject, key,
	).Scan(&e.SubjectID, &e.CacheKey, &e.Payload, &expiresAt, &updatedAt)
	if err != nil {
		return nil, mapError(err, "get cache entry")
	}

	e.ExpiresAt = fromMillis(expiresAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return &e, nil
}

func (c *Client) PutEntry(ctx context.Context, e *models.CacheEntry) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (subject_id, cache_key, payload, expires_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, cache_key) DO UPDATE SET
			payload = excluded.payload,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		e.SubjectID,
		e.CacheKey,
		e.Payload,
		toMillis(e.ExpiresAt),
		toMillis(e.UpdatedAt),
	)
	return mapError(err, "put cache entry")
}

func (c *Client) DeleteEntry(ctx context.Context, subject, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE subject_id = ? AND cache_key = ?`, subject, key)
	return mapError(err, "delete cache entry")
}

func (c *Client) DeleteSubject(ctx context.Context, subject string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE subject_id = ?`, subject)
	return mapError(err, "delete cache subject")
}

// DeleteByPrefix compares with substr rather than LIKE so that '_' and '%'
// in keys match literally.
func (c *Client) DeleteByPrefix(ctx context.Context, subject, prefix string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE subject_id = ? AND substr(cache_key, 1, length(?)) = ?`,
		subject, prefix, prefix,
	)
	return mapError(err, "delete cache prefix")
}

func (c *Client) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return res.RowsAffected()
}
