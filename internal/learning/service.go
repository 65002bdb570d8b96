// Package learning tracks a user's progress through multi-day learning
// packages.
package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

type Store interface {
	GetPackage(ctx context.Context, id string) (*models.LearningPackage, error)
	ListPackages(ctx context.Context) ([]models.LearningPackage, error)
	GetUnit(ctx context.Context, packageID string, day, unit int) (*models.LearningUnit, error)
	CreateProgress(ctx context.Context, p *models.ProgressRecord) error
	GetProgress(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error)
	UpdateProgress(ctx context.Context, p *models.ProgressRecord) error
	ListProgressWithPackages(ctx context.Context, userID string) ([]models.ProgressWithPackage, error)
}

// Invalidator drops cached data derived from a user's progress.
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
		log:         logger.Named("learning"),
	}
}

var transitions = map[models.ProgressStatus][]models.ProgressStatus{
	models.ProgressNotStarted: {models.ProgressActive},
	models.ProgressActive:     {models.ProgressPaused, models.ProgressCompleted},
	models.ProgressPaused:     {models.ProgressActive},
}

// CanTransition reports whether from may move to to. Completed is terminal.
func CanTransition(from, to models.ProgressStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *Service) Packages(ctx context.Context) ([]models.LearningPackage, error) {
	return s.store.ListPackages(ctx)
}

func (s *Service) Package(ctx context.Context, id string) (*models.LearningPackage, error) {
	return s.store.GetPackage(ctx, id)
}

func (s *Service) Progress(ctx context.Context, userID string) ([]models.ProgressWithPackage, error) {
	return s.store.ListProgressWithPackages(ctx, userID)
}

// Start creates the user's progress record for the package at day 1, unit
// 1. Starting a package twice fails with models.ErrConflict.
func (s *Service) Start(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error) {
	if _, err := s.store.GetPackage(ctx, packageID); err != nil {
		return nil, fmt.Errorf("failed to load package: %w", err)
	}

	now := s.now()
	p := &models.ProgressRecord{
		UserID:         userID,
		PackageID:      packageID,
		Status:         models.ProgressActive,
		CurrentDay:     1,
		CurrentUnit:    1,
		StartedAt:      &now,
		LastAccessedAt: &now,
	}
	if err := s.store.CreateProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to start package: %w", err)
	}

	s.log.Info("Package started", zap.String("user_id", userID), zap.String("package_id", packageID))
	s.invalidator.InvalidateUser(ctx, userID)
	return p, nil
}

// Advance moves to the next unit, rolling over to the next day after the
// day's last unit. Advancing past the last unit of the last day completes
// the package; the day never exceeds the package duration.
func (s *Service) Advance(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error) {
	pkg, p, err := s.load(ctx, userID, packageID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProgressActive {
		return nil, fmt.Errorf("cannot advance %s package: %w", p.Status, models.ErrInvalidTransition)
	}

	now := s.now()
	p.LastAccessedAt = &now

	finished := false
	p.CurrentUnit++
	if p.CurrentUnit > max(pkg.UnitsPerDay, 1) {
		p.CurrentUnit = 1
		p.CurrentDay++
	}
	if p.CurrentDay > pkg.DurationDays {
		p.CurrentDay = pkg.DurationDays
		p.CurrentUnit = max(pkg.UnitsPerDay, 1)
		p.Status = models.ProgressCompleted
		p.CompletedAt = &now
		finished = true
	}

	if err := s.store.UpdateProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	if finished {
		s.log.Info("Package completed", zap.String("user_id", userID), zap.String("package_id", packageID))
		s.invalidator.InvalidateUser(ctx, userID)
	}
	return p, nil
}

func (s *Service) Pause(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error) {
	return s.transition(ctx, userID, packageID, models.ProgressPaused)
}

func (s *Service) Resume(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error) {
	return s.transition(ctx, userID, packageID, models.ProgressActive)
}

func (s *Service) Complete(ctx context.Context, userID, packageID string) (*models.ProgressRecord, error) {
	return s.transition(ctx, userID, packageID, models.ProgressCompleted)
}

func (s *Service) transition(ctx context.Context, userID, packageID string, to models.ProgressStatus) (*models.ProgressRecord, error) {
	_, p, err := s.load(ctx, userID, packageID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(p.Status, to) {
		return nil, fmt.Errorf("%s -> %s: %w", p.Status, to, models.ErrInvalidTransition)
	}

	now := s.now()
	p.Status = to
	p.LastAccessedAt = &now
	if to == models.ProgressCompleted {
		p.CompletedAt = &now
	}

	if err := s.store.UpdateProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	if to == models.ProgressCompleted {
		s.invalidator.InvalidateUser(ctx, userID)
	}
	return p, nil
}

// CurrentUnit returns the unit at the user's position and records the
// access.
func (s *Service) CurrentUnit(ctx context.Context, userID, packageID string) (*models.LearningUnit, *models.ProgressRecord, error) {
	_, p, err := s.load(ctx, userID, packageID)
	if err != nil {
		return nil, nil, err
	}

	unit, err := s.store.GetUnit(ctx, packageID, p.CurrentDay, p.CurrentUnit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load unit: %w", err)
	}

	if p.Status != models.ProgressCompleted {
		now := s.now()
		p.LastAccessedAt = &now
		if err := s.store.UpdateProgress(ctx, p); err != nil {
			return nil, nil, fmt.Errorf("failed to save progress: %w", err)
		}
	}
	return unit, p, nil
}

// LinkSession records the package chat session on the progress record.
func (s *Service) LinkSession(ctx context.Context, userID, packageID, sessionID string) error {
	p, err := s.store.GetProgress(ctx, userID, packageID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p.ChatSessionID = &sessionID
	return s.store.UpdateProgress(ctx, p)
}

func (s *Service) load(ctx context.Context, userID, packageID string) (*models.LearningPackage, *models.ProgressRecord, error) {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load package: %w", err)
	}
	p, err := s.store.GetProgress(ctx, userID, packageID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return pkg, p, nil
}
