package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

// CreateUser inserts the user and its empty profile in one transaction.
func (c *Client) CreateUser(ctx context.Context, user *models.User, preferredLanguage string) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, company_id, auth_provider, is_admin, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		nullableString(user.CompanyID),
		user.AuthProvider,
		boolToInt(user.IsAdmin),
		toMillis(user.CreatedAt),
	)
	if err != nil {
		return mapError(err, "insert user")
	}

	if preferredLanguage == "" {
		preferredLanguage = "de"
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, goals, preferred_language, updated_at) VALUES (?, '[]', ?, ?)`,
		user.ID,
		preferredLanguage,
		toMillis(user.CreatedAt),
	)
	if err != nil {
		return mapError(err, "insert profile")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}

	logger.Debug("User created", zap.String("user_id", user.ID))
	return nil
}

const userColumns = `id, email, company_id, auth_provider, is_admin, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var companyID sql.NullString
	var isAdmin int
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Email, &companyID, &u.AuthProvider, &isAdmin, &createdAt); err != nil {
		return nil, err
	}
	u.CompanyID = stringPtr(companyID)
	u.IsAdmin = isAdmin == 1
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return u, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "get user by email")
	}
	return u, nil
}

func (c *Client) ListCompanyUsers(ctx context.Context, companyID string) ([]models.User, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = ? ORDER BY email`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list company users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, first_name, age, gender, role, industry, team_size, leadership_years,
			goals, preferred_language, individual_prompt, onboarding_complete, updated_at
		FROM profiles WHERE user_id = ?
	`

	var p models.Profile
	var firstName, gender, role, industry, individualPrompt sql.NullString
	var age, teamSize, leadershipYears sql.NullInt64
	var onboarding int
	var updatedAt int64

	err := c.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&firstName,
		&age,
		&gender,
		&role,
		&industry,
		&teamSize,
		&leadershipYears,
		&p.Goals,
		&p.PreferredLanguage,
		&individualPrompt,
		&onboarding,
		&updatedAt,
	)
	if err != nil {
		return nil, mapError(err, "get profile")
	}

	p.FirstName = stringPtr(firstName)
	p.Age = intPtr(age)
	p.Gender = stringPtr(gender)
	p.Role = stringPtr(role)
	p.Industry = stringPtr(industry)
	p.TeamSize = intPtr(teamSize)
	p.LeadershipYears = intPtr(leadershipYears)
	p.IndividualPrompt = stringPtr(individualPrompt)
	p.OnboardingComplete = onboarding == 1
	p.UpdatedAt = fromMillis(updatedAt)

	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE profiles SET
			first_name = ?, age = ?, gender = ?, role = ?, industry = ?, team_size = ?,
			leadership_years = ?, goals = ?, preferred_language = ?, individual_prompt = ?,
			onboarding_complete = ?, updated_at = ?
		WHERE user_id = ?
	`

	res, err := c.db.ExecContext(ctx, query,
		nullableString(p.FirstName),
		nullableInt(p.Age),
		nullableString(p.Gender),
		nullableString(p.Role),
		nullableString(p.Industry),
		nullableInt(p.TeamSize),
		nullableInt(p.LeadershipYears),
		p.Goals,
		p.PreferredLanguage,
		nullableString(p.IndividualPrompt),
		boolToInt(p.OnboardingComplete),
		toMillis(p.UpdatedAt),
		p.UserID,
	)
	if err != nil {
		return mapError(err, "update profile")
	}
	return expectOneRow(res, "update profile")
}

func (c *Client) CreateCompany(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, logo_url, accent_color, corporate_prompt, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		nullableString(company.LogoURL),
		nullableString(company.AccentColor),
		nullableString(company.CorporatePrompt),
		toMillis(company.CreatedAt),
	)
	return mapError(err, "insert company")
}

func (c *Client) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var co models.Company
	var logo, accent, prompt sql.NullString
	var createdAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, logo_url, accent_color, corporate_prompt, created_at FROM companies WHERE id = ?`, id,
	).Scan(&co.ID, &co.Name, &logo, &accent, &prompt, &createdAt)
	if err != nil {
		return nil, mapError(err, "get company")
	}

	co.LogoURL = stringPtr(logo)
	co.AccentColor = stringPtr(accent)
	co.CorporatePrompt = stringPtr(prompt)
	co.CreatedAt = fromMillis(createdAt)
	return &co, nil
}

func (c *Client) UpdateCompany(ctx context.Context, company *models.Company) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE companies SET name = ?, logo_url = ?, accent_color = ?, corporate_prompt = ? WHERE id = ?`,
		company.Name,
		nullableString(company.LogoURL),
		nullableString(company.AccentColor),
		nullableString(company.CorporatePrompt),
		company.ID,
	)
	if err != nil {
		return mapError(err, "update company")
	}
	return expectOneRow(res, "update company")
}

// ActiveChatUsersSince returns the company's users with a chat session
// updated at or after since.
func (c *Client) ActiveChatUsersSince(ctx context.Context, companyID string, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT s.user_id
		FROM chat_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE u.company_id = ? AND s.updated_at >= ?
	`
	return c.queryStrings(ctx, query, "list active chat users", companyID, toMillis(since))
}

func (c *Client) queryStrings(ctx context.Context, query, op string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
