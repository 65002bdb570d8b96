// Package recommendation picks the learning packages suggested to a user.
package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/cache"
	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/personalization"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const (
	// Count is the number of packages returned whenever the catalog is
	// large enough.
	Count        = 5
	messageLimit = 50
	cacheKey     = "recommendations"
)

var errUnranked = errors.New("model returned no usable ranking")

type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	ListPackages(ctx context.Context) ([]models.LearningPackage, error)
	ListProgressWithPackages(ctx context.Context, userID string) ([]models.ProgressWithPackage, error)
	RecentUserMessagesForUser(ctx context.Context, userID string, limit int) ([]models.Message, error)
}

type Ranker interface {
	MineTopics(ctx context.Context, messages []string) []string
	RankPackages(ctx context.Context, in llm.RankingInput) []string
}

type Service struct {
	store  Store
	ranker Ranker
	cache  *cache.Store
	log    *zap.Logger
}

func NewService(store Store, ranker Ranker, cacheStore *cache.Store) *Service {
	return &Service{
		store:  store,
		ranker: ranker,
		cache:  cacheStore,
		log:    logger.Named("recommendation"),
	}
}

// Recommend returns Count distinct package ids, or every package when the
// catalog holds fewer. Titles the model returns are resolved to ids and
// unresolved slots are backfilled, so model output never shortens the
// result. Results backed by a model ranking are cached for a day.
func (s *Service) Recommend(ctx context.Context, userID string) ([]string, error) {
	var fallback []string
	ids, err := cache.GetOrCompute(ctx, s.cache, userID, cacheKey, cache.TTLRecommendations,
		func(ctx context.Context) ([]string, error) {
			ids, ranked, err := s.compute(ctx, userID)
			if err != nil {
				return nil, err
			}
			if !ranked {
				fallback = ids
				return nil, errUnranked
			}
			return ids, nil
		})
	if errors.Is(err, errUnranked) {
		return fallback, nil
	}
	return ids, err
}

func (s *Service) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, userID, cacheKey); err != nil {
		s.log.Warn("Failed to invalidate recommendations", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) compute(ctx context.Context, userID string) ([]string, bool, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load profile: %w", err)
	}
	catalog, err := s.store.ListPackages(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(catalog) == 0 {
		return []string{}, true, nil
	}
	progress, err := s.store.ListProgressWithPackages(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	messages, err := s.store.RecentUserMessagesForUser(ctx, userID, messageLimit)
	if err != nil {
		return nil, false, err
	}

	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Content)
	}
	topics := s.ranker.MineTopics(ctx, texts)

	in := llm.RankingInput{
		ProfileFacts: renderFacts(personalization.ProfileFacts(profile)),
		Topics:       topics,
		Count:        min(Count, len(catalog)),
	}
	for _, p := range progress {
		switch p.Status {
		case models.ProgressActive, models.ProgressPaused:
			in.ActiveTitles = append(in.ActiveTitles, p.PackageTitle)
		case models.ProgressCompleted:
			in.CompletedTitles = append(in.CompletedTitles, p.PackageTitle)
		}
	}
	for _, p := range catalog {
		in.Candidates = append(in.Candidates, llm.PackageCandidate{Title: p.Title, Category: p.Category, Description: p.Description})
	}

	lines := s.ranker.RankPackages(ctx, in)
	ids, resolved := Resolve(lines, catalog, started(progress), Count)

	s.log.Debug("Recommendations computed",
		zap.String("user_id", userID),
		zap.Int("topics", len(topics)),
		zap.Int("lines", len(lines)),
		zap.Int("resolved", resolved),
	)
	return ids, resolved > 0, nil
}

// Resolve maps model title lines to distinct package ids: a case-insensitive
// exact title match first, then substring containment in either direction.
// Remaining slots are filled with unstarted packages, then any others, in
// catalog order. It returns min(count, len(catalog)) ids and how many came
// from lines.
func Resolve(lines []string, catalog []models.LearningPackage, started map[string]bool, count int) ([]string, int) {
	want := min(count, len(catalog))
	ids := make([]string, 0, want)
	used := make(map[string]bool, want)

	take := func(p models.LearningPackage) {
		used[p.ID] = true
		ids = append(ids, p.ID)
	}

	for _, line := range lines {
		if len(ids) == want {
			break
		}
		needle := strings.ToLower(strings.TrimSpace(line))
		if needle == "" {
			continue
		}
		if p, ok := match(needle, catalog, used); ok {
			take(p)
		}
	}
	resolved := len(ids)

	for _, unstartedOnly := range []bool{true, false} {
		for _, p := range catalog {
			if len(ids) == want {
				return ids, resolved
			}
			if used[p.ID] || (unstartedOnly && started[p.ID]) {
				continue
			}
			take(p)
		}
	}
	return ids, resolved
}

func match(needle string, catalog []models.LearningPackage, used map[string]bool) (models.LearningPackage, bool) {
	for _, p := range catalog {
		if !used[p.ID] && strings.ToLower(p.Title) == needle {
			return p, true
		}
	}
	for _, p := range catalog {
		if used[p.ID] {
			continue
		}
		title := strings.ToLower(p.Title)
		if title != "" && (strings.Contains(title, needle) || strings.Contains(needle, title)) {
			return p, true
		}
	}
	return models.LearningPackage{}, false
}

func started(progress []models.ProgressWithPackage) map[string]bool {
	out := make(map[string]bool, len(progress))
	for _, p := range progress {
		if p.Status != models.ProgressNotStarted {
			out[p.PackageID] = true
		}
	}
	return out
}

func renderFacts(facts []personalization.Fact) string {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, f.Key+": "+f.Value)
	}
	return strings.Join(lines, "\n")
}
