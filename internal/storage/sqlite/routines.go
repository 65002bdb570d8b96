package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coachly/backend/internal/storage/models"
)

const dateLayout = "2006-01-02"

const routineColumns = `id, user_id, title, description, frequency, target, status, created_at, updated_at`

func scanRoutine(row interface{ Scan(...any) error }) (*models.Routine, error) {
	var r models.Routine
	var frequency, status string
	var target sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &frequency, &target, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Frequency = models.RoutineFrequency(frequency)
	r.Target = intPtr(target)
	r.Status = models.RoutineStatus(status)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return &r, nil
}

func (c *Client) CreateRoutine(ctx context.Context, r *models.Routine) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO routines (`+routineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.UserID,
		r.Title,
		r.Description,
		string(r.Frequency),
		nullableInt(r.Target),
		string(r.Status),
		toMillis(r.CreatedAt),
		toMillis(r.UpdatedAt),
	)
	return mapError(err, "insert routine")
}

func (c *Client) GetRoutine(ctx context.Context, id string) (*models.Routine, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+routineColumns+` FROM routines WHERE id = ?`, id)
	r, err := scanRoutine(row)
	if err != nil {
		return nil, mapError(err, "get routine")
	}
	return r, nil
}

func (c *Client) ListRoutines(ctx context.Context, userID string) ([]models.Routine, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+routineColumns+` FROM routines WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	defer rows.Close()

	var routines []models.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		routines = append(routines, *r)
	}
	return routines, rows.Err()
}

func (c *Client) UpdateRoutine(ctx context.Context, r *models.Routine) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE routines SET title = ?, description = ?, frequency = ?, target = ?, status = ?, updated_at = ? WHERE id = ?`,
		r.Title,
		r.Description,
		string(r.Frequency),
		nullableInt(r.Target),
		string(r.Status),
		toMillis(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return mapError(err, "update routine")
	}
	return expectOneRow(res, "update routine")
}

// UpsertRoutineEntry writes the single entry of a routine for a calendar day.
func (c *Client) UpsertRoutineEntry(ctx context.Context, e *models.RoutineEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO routine_entries (id, routine_id, entry_date, completed, note) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(routine_id, entry_date) DO UPDATE SET
			completed = excluded.completed,
			note = excluded.note`,
		e.ID,
		e.RoutineID,
		e.Date.Format(dateLayout),
		boolToInt(e.Completed),
		nullableString(e.Note),
	)
	return mapError(err, "upsert routine entry")
}

// ListRoutineEntries returns entries on or after since, oldest first.
func (c *Client) ListRoutineEntries(ctx context.Context, routineID string, since time.Time) ([]models.RoutineEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, routine_id, entry_date, completed, note FROM routine_entries
		WHERE routine_id = ? AND entry_date >= ? ORDER BY entry_date`,
		routineID, since.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list routine entries: %w", err)
	}
	defer rows.Close()

	var entries []models.RoutineEntry
	for rows.Next() {
		var e models.RoutineEntry
		var date string
		var completed int
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.RoutineID, &date, &completed, &note); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse entry date %q: %w", date, err)
		}
		e.Completed = completed == 1
		e.Note = stringPtr(note)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *Client) CountCompletedEntriesSince(ctx context.Context, routineID string, since time.Time) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM routine_entries WHERE routine_id = ? AND completed = 1 AND entry_date >= ?`,
		routineID, since.Format(dateLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count routine entries: %w", err)
	}
	return n, nil
}

func (c *Client) CompanyRoutineActivitySince(ctx context.Context, companyID string, since time.Time) ([]models.RoutineActivity, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT r.user_id, r.title, COUNT(*)
		FROM routine_entries e
		JOIN routines r ON r.id = e.routine_id
		JOIN users u ON u.id = r.user_id
		WHERE u.company_id = ? AND e.completed = 1 AND e.entry_date >= ?
		GROUP BY r.user_id, r.title`,
		companyID, since.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list routine activity: %w", err)
	}
	defer rows.Close()

	var out []models.RoutineActivity
	for rows.Next() {
		var a models.RoutineActivity
		if err := rows.Scan(&a.UserID, &a.Title, &a.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
