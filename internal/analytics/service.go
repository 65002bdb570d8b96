// Package analytics produces the cached prose summaries shown on the user
// dashboard, the profile page and the company admin dashboard.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/cache"
	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/metrics"
	"github.com/coachly/backend/internal/personalization"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const (
	activityWords = 40
	profileWords  = 100
	companyWords  = 80
)

// errNoSummary marks an empty generation. It keeps the empty text out of
// the cache.
var errNoSummary = errors.New("no summary generated")

type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	ChatActivitySince(ctx context.Context, userID string, since time.Time) (*models.ChatActivity, error)
	ListProgressWithPackages(ctx context.Context, userID string) ([]models.ProgressWithPackage, error)
	ListRoutines(ctx context.Context, userID string) ([]models.Routine, error)
	CountCompletedEntriesSince(ctx context.Context, routineID string, since time.Time) (int, error)

	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanyUsers(ctx context.Context, companyID string) ([]models.User, error)
	ActiveChatUsersSince(ctx context.Context, companyID string, since time.Time) ([]string, error)
	CompanyPackageActivitySince(ctx context.Context, companyID string, since time.Time) ([]models.PackageActivity, error)
	CompanyRoutineActivitySince(ctx context.Context, companyID string, since time.Time) ([]models.RoutineActivity, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, req llm.SummaryRequest) string
}

type Service struct {
	store      Store
	summarizer Summarizer
	cache      *cache.Store
	now        func() time.Time
	log        *zap.Logger
}

func NewService(store Store, summarizer Summarizer, cacheStore *cache.Store) *Service {
	return &Service{
		store:      store,
		summarizer: summarizer,
		cache:      cacheStore,
		now:        time.Now,
		log:        logger.Named("analytics"),
	}
}

type ActivitySummary struct {
	Period      Period    `json:"period"`
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type ProfileSummary struct {
	Summary     string    `json:"summary"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type CompanySummary struct {
	Period      Period        `json:"period"`
	Rollup      CompanyRollup `json:"rollup"`
	Summary     string        `json:"summary"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// GenerateActivitySummary returns the dashboard summary of the user's
// activity within period. A failed generation yields an empty summary that
// is not cached.
func (s *Service) GenerateActivitySummary(ctx context.Context, userID string, period Period) (*ActivitySummary, error) {
	out, err := cache.GetOrCompute(ctx, s.cache, userID, dashboardKey(period), period.TTL(),
		func(ctx context.Context) (ActivitySummary, error) {
			defer observe("activity", time.Now())

			now := s.now()
			facts, lang, err := s.userFacts(ctx, userID, period.Cutoff(now), period.label())
			if err != nil {
				return ActivitySummary{}, err
			}

			text := s.summarizer.Summarize(ctx, llm.SummaryRequest{
				Facts:    facts,
				MaxWords: activityWords,
				Language: lang,
				Style:    "Address the user directly and mention one concrete next step.",
			})
			if text == "" {
				return ActivitySummary{}, errNoSummary
			}
			return ActivitySummary{Period: period, Summary: text, GeneratedAt: now}, nil
		})
	if errors.Is(err, errNoSummary) {
		return &ActivitySummary{Period: period, GeneratedAt: s.now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateProfileSummary describes who the user is and how they use the app.
func (s *Service) GenerateProfileSummary(ctx context.Context, userID string) (*ProfileSummary, error) {
	out, err := cache.GetOrCompute(ctx, s.cache, userID, profileSummaryKey, cache.TTLProfileSummary,
		func(ctx context.Context) (ProfileSummary, error) {
			defer observe("profile", time.Now())

			now := s.now()
			facts, lang, err := s.userFacts(ctx, userID, PeriodAll.Cutoff(now), PeriodAll.label())
			if err != nil {
				return ProfileSummary{}, err
			}

			text := s.summarizer.Summarize(ctx, llm.SummaryRequest{
				Facts:    facts,
				MaxWords: profileWords,
				Language: lang,
				Style:    "Describe the user's role, goals and development focus in the second person.",
			})
			if text == "" {
				return ProfileSummary{}, errNoSummary
			}
			return ProfileSummary{Summary: text, GeneratedAt: now}, nil
		})
	if errors.Is(err, errNoSummary) {
		return &ProfileSummary{GeneratedAt: s.now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateCompanyAnalyticsSummary returns the rollup of the company's
// activity within period and a short prose summary of it.
func (s *Service) GenerateCompanyAnalyticsSummary(ctx context.Context, companyID string, period Period) (*CompanySummary, error) {
	var rollup CompanyRollup
	out, err := cache.GetOrCompute(ctx, s.cache, companyID, companyKey(period), period.TTL(),
		func(ctx context.Context) (CompanySummary, error) {
			defer observe("company", time.Now())

			now := s.now()
			var err error
			rollup, err = s.companyRollup(ctx, companyID, period.Cutoff(now))
			if err != nil {
				return CompanySummary{}, err
			}

			text := s.summarizer.Summarize(ctx, llm.SummaryRequest{
				Facts:    companyFacts(rollup, period.label()),
				MaxWords: companyWords,
				Style:    "The readers are the company's HR team. Do not name individual employees.",
			})
			if text == "" {
				return CompanySummary{}, errNoSummary
			}
			return CompanySummary{Period: period, Rollup: rollup, Summary: text, GeneratedAt: now}, nil
		})
	if errors.Is(err, errNoSummary) {
		return &CompanySummary{Period: period, Rollup: rollup, GeneratedAt: s.now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InvalidateUser drops the user's dashboard and profile summaries. Failures
// are logged; the entries then expire by TTL.
func (s *Service) InvalidateUser(ctx context.Context, userID string) {
	if err := s.cache.DeleteByPrefix(ctx, userID, dashboardPrefix); err != nil {
		s.log.Warn("Failed to invalidate dashboard summaries", zap.String("user_id", userID), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, userID, profileSummaryKey); err != nil {
		s.log.Warn("Failed to invalidate profile summary", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) InvalidateCompany(ctx context.Context, companyID string) {
	if err := s.cache.DeleteByPrefix(ctx, companyID, companyPrefix); err != nil {
		s.log.Warn("Failed to invalidate company summaries", zap.String("company_id", companyID), zap.Error(err))
	}
}

func (s *Service) userFacts(ctx context.Context, userID string, since time.Time, label string) (string, string, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load profile: %w", err)
	}
	chat, err := s.store.ChatActivitySince(ctx, userID, since)
	if err != nil {
		return "", "", err
	}
	progress, err := s.store.ListProgressWithPackages(ctx, userID)
	if err != nil {
		return "", "", err
	}
	routines, err := s.store.ListRoutines(ctx, userID)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s\n", label)

	if facts := personalization.ProfileFacts(profile); len(facts) > 0 {
		b.WriteString("Profile:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s: %s\n", f.Key, f.Value)
		}
	}

	fmt.Fprintf(&b, "Coaching chats used: %d\n", chat.Sessions)
	fmt.Fprintf(&b, "Messages written by the user: %d\n", chat.UserMessages)

	var packages []string
	for _, p := range progress {
		switch p.Status {
		case models.ProgressActive, models.ProgressPaused:
			packages = append(packages, fmt.Sprintf("- %s: day %d of %d (%s)", p.PackageTitle, p.CurrentDay, p.DurationDays, p.Status))
		case models.ProgressCompleted:
			if p.CompletedAt != nil && !p.CompletedAt.Before(since) {
				packages = append(packages, fmt.Sprintf("- %s: completed", p.PackageTitle))
			}
		}
	}
	if len(packages) > 0 {
		b.WriteString("Learning packages:\n" + strings.Join(packages, "\n") + "\n")
	} else {
		b.WriteString("Learning packages: none\n")
	}

	var lines []string
	for _, r := range routines {
		if r.Status == models.RoutineCompleted {
			continue
		}
		n, err := s.store.CountCompletedEntriesSince(ctx, r.ID, since)
		if err != nil {
			return "", "", err
		}
		line := fmt.Sprintf("- %s (%s): %d completed entries", r.Title, r.Frequency, n)
		if r.Status == models.RoutinePaused {
			line += ", paused"
		}
		lines = append(lines, line)
	}
	if len(lines) > 0 {
		b.WriteString("Routines:\n" + strings.Join(lines, "\n") + "\n")
	} else {
		b.WriteString("Routines: none\n")
	}

	return strings.TrimRight(b.String(), "\n"), LanguageName(profile.PreferredLanguage), nil
}

func (s *Service) companyRollup(ctx context.Context, companyID string, since time.Time) (CompanyRollup, error) {
	if _, err := s.store.GetCompany(ctx, companyID); err != nil {
		return CompanyRollup{}, fmt.Errorf("failed to load company: %w", err)
	}
	users, err := s.store.ListCompanyUsers(ctx, companyID)
	if err != nil {
		return CompanyRollup{}, err
	}
	chatUsers, err := s.store.ActiveChatUsersSince(ctx, companyID, since)
	if err != nil {
		return CompanyRollup{}, err
	}
	packages, err := s.store.CompanyPackageActivitySince(ctx, companyID, since)
	if err != nil {
		return CompanyRollup{}, err
	}
	routines, err := s.store.CompanyRoutineActivitySince(ctx, companyID, since)
	if err != nil {
		return CompanyRollup{}, err
	}
	return Rollup(len(users), chatUsers, packages, routines), nil
}

func companyFacts(r CompanyRollup, label string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s\n", label)
	fmt.Fprintf(&b, "Employees with access: %d\n", r.TotalUsers)
	fmt.Fprintf(&b, "Active employees: %d (chat: %d, learning packages: %d)\n", r.ActiveUsers, r.ChatUsers, r.LearningUsers)
	writePopularity(&b, "Most used learning packages", r.PopularPackages)
	writePopularity(&b, "Most practised routines", r.PopularRoutines)
	return strings.TrimRight(b.String(), "\n")
}

func writePopularity(b *strings.Builder, heading string, items []Popularity) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", heading)
		return
	}
	fmt.Fprintf(b, "%s:\n", heading)
	for _, p := range items {
		fmt.Fprintf(b, "- %s: %d users\n", p.Title, p.Users)
	}
}

// LanguageName maps a stored language code to the name used in model
// instructions. Unknown codes pass through.
func LanguageName(code string) string {
	switch strings.ToLower(code) {
	case "de":
		return "German"
	case "en":
		return "English"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	case "it":
		return "Italian"
	}
	return code
}

func observe(kind string, start time.Time) {
	metrics.SummaryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
