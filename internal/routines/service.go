// Package routines manages user habits and their daily check-ins.
package routines

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

type Store interface {
	CreateRoutine(ctx context.Context, r *models.Routine) error
	GetRoutine(ctx context.Context, id string) (*models.Routine, error)
	ListRoutines(ctx context.Context, userID string) ([]models.Routine, error)
	UpdateRoutine(ctx context.Context, r *models.Routine) error
	UpsertRoutineEntry(ctx context.Context, e *models.RoutineEntry) error
	ListRoutineEntries(ctx context.Context, routineID string, since time.Time) ([]models.RoutineEntry, error)
}

type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

type Service struct {
	store       Store
	invalidator Invalidator
	now         func() time.Time
	log         *zap.Logger
}

func NewService(store Store, invalidator Invalidator) *Service {
	return &Service{
		store:       store,
		invalidator: invalidator,
		now:         time.Now,
		log:         logger.Named("routines"),
	}
}

type Input struct {
	Title       string
	Description string
	Frequency   models.RoutineFrequency
	Target      *int
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required: %w", models.ErrInvalidArgument)
	}
	if !in.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q: %w", in.Frequency, models.ErrInvalidArgument)
	}
	if in.Target != nil && *in.Target <= 0 {
		return fmt.Errorf("target must be positive: %w", models.ErrInvalidArgument)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*models.Routine, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	r := &models.Routine{
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Frequency:   in.Frequency,
		Target:      in.Target,
		Status:      models.RoutineActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateRoutine(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create routine: %w", err)
	}

	s.log.Info("Routine created", zap.String("user_id", userID), zap.String("routine_id", r.ID))
	s.invalidator.InvalidateUser(ctx, userID)
	return r, nil
}

// CreateFromSuggestion turns a chat suggestion into a routine.
func (s *Service) CreateFromSuggestion(ctx context.Context, userID string, sg Suggestion) (*models.Routine, error) {
	return s.Create(ctx, userID, Input{Title: sg.Title, Frequency: sg.Frequency, Target: sg.Target})
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Routine, error) {
	return s.store.ListRoutines(ctx, userID)
}

// Get returns the routine if userID owns it. Other users' routines are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, routineID string) (*models.Routine, error) {
	r, err := s.store.GetRoutine(ctx, routineID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, fmt.Errorf("routine %s: %w", routineID, models.ErrNotFound)
	}
	return r, nil
}

// SetStatus pauses, resumes or completes a routine. Completed is terminal.
func (s *Service) SetStatus(ctx context.Context, userID, routineID string, status models.RoutineStatus) (*models.Routine, error) {
	r, err := s.Get(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}

	switch status {
	case models.RoutineActive, models.RoutinePaused, models.RoutineCompleted:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", status, models.ErrInvalidArgument)
	}
	if r.Status == models.RoutineCompleted {
		return nil, fmt.Errorf("routine is completed: %w", models.ErrInvalidTransition)
	}
	if r.Status == status {
		return r, nil
	}

	r.Status = status
	r.UpdatedAt = s.now()
	if err := s.store.UpdateRoutine(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update routine: %w", err)
	}

	s.invalidator.InvalidateUser(ctx, userID)
	return r, nil
}

// LogEntry records the check-in of one calendar day; a second check-in for
// the same day replaces the first. A zero date means today.
func (s *Service) LogEntry(ctx context.Context, userID, routineID string, date time.Time, completed bool, note string) (*models.RoutineEntry, error) {
	r, err := s.Get(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RoutineActive {
		return nil, fmt.Errorf("routine is %s: %w", r.Status, models.ErrInvalidTransition)
	}

	today := truncateDay(s.now())
	if date.IsZero() {
		date = today
	}
	date = truncateDay(date)
	if date.After(today) {
		return nil, fmt.Errorf("entry date is in the future: %w", models.ErrInvalidArgument)
	}

	e := &models.RoutineEntry{RoutineID: r.ID, Date: date, Completed: completed}
	if n := strings.TrimSpace(note); n != "" {
		e.Note = &n
	}
	if err := s.store.UpsertRoutineEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to log routine entry: %w", err)
	}
	return e, nil
}

func (s *Service) Entries(ctx context.Context, userID, routineID string, since time.Time) ([]models.RoutineEntry, error) {
	if _, err := s.Get(ctx, userID, routineID); err != nil {
		return nil, err
	}
	return s.store.ListRoutineEntries(ctx, routineID, since)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
