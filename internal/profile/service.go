package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/metrics"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
	"github.com/coachly/backend/pkg/utils"
)

type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
}

type Extractor interface {
	ExtractProfileFields(ctx context.Context, userMsg, assistantMsg string, current *models.Profile) llm.Extraction
}

// Invalidator drops derived data that depends on the profile.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

type Service struct {
	store       Store
	extractor   Extractor
	invalidator Invalidator
	now         func() time.Time
	log         *zap.Logger
}

func NewService(store Store, extractor Extractor, invalidator Invalidator) *Service {
	return &Service{
		store:       store,
		extractor:   extractor,
		invalidator: invalidator,
		now:         time.Now,
		log:         logger.Named("profile"),
	}
}

func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// ApplyExchange extracts new facts from one user/assistant exchange and
// persists the merged profile. It reports whether anything changed.
func (s *Service) ApplyExchange(ctx context.Context, userID, userMsg, assistantMsg string) (*models.Profile, bool, error) {
	current, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load profile: %w", err)
	}

	ext := s.extractor.ExtractProfileFields(ctx, userMsg, assistantMsg, current)
	if !ext.HasNewInfo {
		return current, false, nil
	}

	merged := Merge(*current, ext)
	if !Changed(*current, merged) {
		return current, false, nil
	}
	if IsComplete(merged) {
		merged.OnboardingComplete = true
	}
	merged.UpdatedAt = s.now()

	if err := s.store.UpdateProfile(ctx, &merged); err != nil {
		return nil, false, fmt.Errorf("failed to save profile: %w", err)
	}

	s.log.Info("Profile updated from conversation",
		zap.String("user_id", userID),
		zap.Bool("onboarding_complete", merged.OnboardingComplete),
		zap.Int("goals", len(merged.Goals)),
	)
	metrics.ProfileUpdates.WithLabelValues("extraction").Inc()

	s.invalidator.InvalidateUser(ctx, userID)
	return &merged, true, nil
}

// Patch is a manual profile edit. Nil fields are left alone; an empty
// string clears a text field. The validate tags are the only rules applied
// to a patch.
type Patch struct {
	FirstName         *string   `json:"firstName" validate:"omitempty,max=100"`
	Age               *int      `json:"age" validate:"omitempty,gte=0,lte=120"`
	Gender            *string   `json:"gender" validate:"omitempty,max=50"`
	Role              *string   `json:"role" validate:"omitempty,max=200"`
	Industry          *string   `json:"industry" validate:"omitempty,max=200"`
	TeamSize          *int      `json:"teamSize" validate:"omitempty,gte=0"`
	LeadershipYears   *int      `json:"leadershipYears" validate:"omitempty,gte=0"`
	Goals             *[]string `json:"goals" validate:"omitempty,max=20"`
	PreferredLanguage *string   `json:"preferredLanguage" validate:"omitnil,notblank,max=35"`
	IndividualPrompt  *string   `json:"individualPrompt" validate:"omitempty,max=4000"`
}

func (s *Service) Update(ctx context.Context, userID string, patch Patch) (*models.Profile, error) {
	if err := utils.Validator.Struct(patch); err != nil {
		return nil, fmt.Errorf("invalid profile patch: %v: %w", err, models.ErrInvalidArgument)
	}

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	setText(&p.FirstName, patch.FirstName)
	setText(&p.Gender, patch.Gender)
	setText(&p.Role, patch.Role)
	setText(&p.Industry, patch.Industry)
	setText(&p.IndividualPrompt, patch.IndividualPrompt)
	if patch.Age != nil {
		p.Age = patch.Age
	}
	if patch.TeamSize != nil {
		p.TeamSize = patch.TeamSize
	}
	if patch.LeadershipYears != nil {
		p.LeadershipYears = patch.LeadershipYears
	}
	if patch.Goals != nil {
		p.Goals = dedupe(*patch.Goals)
	}
	if patch.PreferredLanguage != nil {
		p.PreferredLanguage = strings.TrimSpace(*patch.PreferredLanguage)
	}
	if IsComplete(*p) {
		p.OnboardingComplete = true
	}
	p.UpdatedAt = s.now()

	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	metrics.ProfileUpdates.WithLabelValues("manual").Inc()
	s.invalidator.InvalidateUser(ctx, userID)
	return p, nil
}

func setText(dst **string, v *string) {
	if v == nil {
		return
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		*dst = nil
		return
	}
	*dst = &t
}

func dedupe(in []string) models.StringList {
	out := models.StringList{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !out.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}
