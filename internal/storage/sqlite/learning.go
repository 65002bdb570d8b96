package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coachly/backend/internal/storage/models"
)

func (c *Client) CreatePackage(ctx context.Context, p *models.LearningPackage) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO learning_packages (id, title, description, category, duration_days, units_per_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Title,
		p.Description,
		p.Category,
		p.DurationDays,
		p.UnitsPerDay,
		toMillis(p.CreatedAt),
	)
	return mapError(err, "insert learning package")
}

const packageColumns = `id, title, description, category, duration_days, units_per_day, created_at`

func scanPackage(row interface{ Scan(...any) error }) (*models.LearningPackage, error) {
	var p models.LearningPackage
	var createdAt int64
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.DurationDays, &p.UnitsPerDay, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func (c *Client) GetPackage(ctx context.Context, id string) (*models.LearningPackage, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM learning_packages WHERE id = ?`, id)
	p, err := scanPackage(row)
	if err != nil {
		return nil, mapError(err, "get learning package")
	}
	return p, nil
}

func (c *Client) ListPackages(ctx context.Context) ([]models.LearningPackage, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+packageColumns+` FROM learning_packages ORDER BY category, title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list learning packages: %w", err)
	}
	defer rows.Close()

	var packages []models.LearningPackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		packages = append(packages, *p)
	}
	return packages, rows.Err()
}

func (c *Client) CreateUnit(ctx context.Context, u *models.LearningUnit) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO learning_units (id, package_id, day_index, unit_index, title, body, reflection_prompt, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.PackageID,
		u.DayIndex,
		u.UnitIndex,
		u.Title,
		u.Body,
		u.ReflectionPrompt,
		u.SortOrder,
	)
	return mapError(err, "insert learning unit")
}

func (c *Client) GetUnit(ctx context.Context, packageID string, day, unit int) (*models.LearningUnit, error) {
	var u models.LearningUnit
	err := c.db.QueryRowContext(ctx,
		`SELECT id, package_id, day_index, unit_index, title, body, reflection_prompt, sort_order
		FROM learning_units WHERE package_id = ? AND day_index = ? AND unit_index = ?`,
		packageID, day, unit,
	).Scan(&u.ID, &u.PackageID, &u.DayIndex, &u.UnitIndex, &u.Title, &u.Body, &u.ReflectionPrompt, &u.SortOrder)
	if err != nil {
		return nil, mapError(err, "get learning unit")
	}
	return &u, nil
}

const progressColumns = `id, user_id, package_id, status, current_day, current_unit,
	started_at, last_accessed_at, completed_at, chat_session_id`

func scanProgress(dest *models.ProgressRecord, extra ...any) []any {
	return append([]any{
		&dest.ID, &dest.UserID, &dest.PackageID, (*string)(&dest.Status), &dest.CurrentDay, &dest.CurrentUnit,
	}, extra...)
}

type progressNulls struct {
	startedAt, lastAccessedAt, completedAt sql.NullInt64
	chatSessionID                          sql.NullString
}

func (n *progressNulls) targets() []any {
	return []any{&n.startedAt, &n.lastAccessedAt, &n.completedAt, &n.chatSessionID}
}

func (n *progressNulls) apply(p *models.ProgressRecord) {
	p.StartedAt = timePtr(n.startedAt)
	p.LastAccessedAt = timePtr(n.lastAccessedAt)
	p.CompletedAt = timePtr(n.completedAt)
	p.ChatSessionID = stringPtr(n.chatSessionID)
}

// CreateProgress inserts a progress record. A second record for the same
// (user, package) pair fails with models.ErrConflict.
func (c *Client) CreateProgress(ctx context.Context, p *models.ProgressRecord) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO progress_records (`+progressColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		p.PackageID,
		string(p.Status),
		p.CurrentDay,
		p.CurrentUnit,
		nullableMillis(p.StartedAt),
		nullableMillis(p.LastAccessedAt),
		nullableMillis(p.CompletedAt),
		nullableString(p.ChatSessionID),
	)
	return mapError(err, "insert progress record")
}

func (c *Client) GetProgress(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error) {
	var p models.ProgressRecord
	var nulls progressNulls

	err := c.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM progress_records WHERE user_id = ? AND package_id = ?`,
		userID, packageID,
	).Scan(scanProgress(&p, nulls.targets()...)...)
	if err != nil {
		return nil, mapError(err, "get progress record")
	}
	nulls.apply(&p)
	return &p, nil
}

func (c *Client) UpdateProgress(ctx context.Context, p *models.ProgressRecord) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE progress_records SET status = ?, current_day = ?, current_unit = ?, started_at = ?,
			last_accessed_at = ?, completed_at = ?, chat_session_id = ?
		WHERE id = ?`,
		string(p.Status),
		p.CurrentDay,
		p.CurrentUnit,
		nullableMillis(p.StartedAt),
		nullableMillis(p.LastAccessedAt),
		nullableMillis(p.CompletedAt),
		nullableString(p.ChatSessionID),
		p.ID,
	)
	if err != nil {
		return mapError(err, "update progress record")
	}
	return expectOneRow(res, "update progress record")
}

// ListProgressWithPackages returns every progress record of the user joined
// with its package.
func (c *Client) ListProgressWithPackages(ctx context.Context, userID string) ([]models.ProgressWithPackage, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.package_id, p.status, p.current_day, p.current_unit,
			p.started_at, p.last_accessed_at, p.completed_at, p.chat_session_id,
			lp.title, lp.category, lp.duration_days, lp.units_per_day
		FROM progress_records p JOIN learning_packages lp ON lp.id = p.package_id
		WHERE p.user_id = ?
		ORDER BY lp.title`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var out []models.ProgressWithPackage
	for rows.Next() {
		var r models.ProgressWithPackage
		var nulls progressNulls
		targets := scanProgress(&r.ProgressRecord, nulls.targets()...)
		targets = append(targets, &r.PackageTitle, &r.PackageCategory, &r.DurationDays, &r.UnitsPerDay)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		nulls.apply(&r.ProgressRecord)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *Client) CompanyPackageActivitySince(ctx context.Context, companyID string, since time.Time) ([]models.PackageActivity, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT p.user_id, p.package_id, lp.title
		FROM progress_records p
		JOIN learning_packages lp ON lp.id = p.package_id
		JOIN users u ON u.id = p.user_id
		WHERE u.company_id = ? AND p.last_accessed_at >= ?`,
		companyID, toMillis(since),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list package activity: %w", err)
	}
	defer rows.Close()

	var out []models.PackageActivity
	for rows.Next() {
		var a models.PackageActivity
		if err := rows.Scan(&a.UserID, &a.PackageID, &a.PackageTitle); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
