package analytics

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachly/backend/internal/cache"
	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/internal/storage/sqlite"
)

type fakeSummarizer struct {
	mu       sync.Mutex
	reply    string
	requests []llm.SummaryRequest
}

func (f *fakeSummarizer) Summarize(_ context.Context, req llm.SummaryRequest) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply
}

func (f *fakeSummarizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fixture struct {
	store      *sqlite.Client
	cache      *cache.Store
	summarizer *fakeSummarizer
	svc        *Service
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cs := cache.New(store, cache.WithClock(clock))
	sum := &fakeSummarizer{reply: "Great week."}

	svc := NewService(store, sum, cs)
	svc.now = clock
	return &fixture{store: store, cache: cs, summarizer: sum, svc: svc, now: now}
}

func (f *fixture) user(t *testing.T, companyID *string) *models.User {
	t.Helper()
	u := &models.User{Email: fmt.Sprintf("u%d@example.com", time.Now().UnixNano()), CompanyID: companyID, AuthProvider: "local", CreatedAt: f.now}
	require.NoError(t, f.store.CreateUser(context.Background(), u, "en"))
	return u
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"week", "month", "3months", "6months", "all"} {
		p, err := ParsePeriod(s)
		require.NoError(t, err)
		assert.Equal(t, Period(s), p)
	}

	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	_, err = ParsePeriod("year")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestPeriodTTL(t *testing.T) {
	assert.Equal(t, 60.0, PeriodWeek.TTL().Minutes())
	assert.Equal(t, 360.0, PeriodMonth.TTL().Minutes())
	assert.Equal(t, 1440.0, Period3Months.TTL().Minutes())
	assert.Equal(t, 1440.0, Period6Months.TTL().Minutes())
	assert.Equal(t, 1440.0, PeriodAll.TTL().Minutes())
}

func TestPeriodCutoff(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 27, 9, 0, 0, 0, time.UTC), PeriodWeek.Cutoff(now))
	assert.Equal(t, time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC), PeriodMonth.Cutoff(now))
	assert.Equal(t, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), Period3Months.Cutoff(now))
	assert.Equal(t, time.Date(2023, 12, 3, 9, 0, 0, 0, time.UTC), Period6Months.Cutoff(now))
	assert.Equal(t, int64(0), PeriodAll.Cutoff(now).Unix())
}

func TestRollup(t *testing.T) {
	packages := []models.PackageActivity{
		{UserID: "a", PackageID: "p1", PackageTitle: "Resilienz"},
		{UserID: "b", PackageID: "p1", PackageTitle: "Resilienz"},
		{UserID: "c", PackageID: "p2", PackageTitle: "Feedback"},
	}
	routines := []models.RoutineActivity{
		{UserID: "a", Title: "Journaling", Completed: 3},
		{UserID: "a", Title: "Journaling", Completed: 1},
		{UserID: "d", Title: "Laufen", Completed: 2},
		{UserID: "b", Title: "Laufen", Completed: 1},
	}

	r := Rollup(10, []string{"a", "d", "d"}, packages, routines)
	assert.Equal(t, 10, r.TotalUsers)
	assert.Equal(t, 4, r.ActiveUsers)
	assert.Equal(t, 2, r.ChatUsers)
	assert.Equal(t, 3, r.LearningUsers)
	assert.Equal(t, []Popularity{{Title: "Resilienz", Users: 2}, {Title: "Feedback", Users: 1}}, r.PopularPackages)
	assert.Equal(t, []Popularity{{Title: "Laufen", Users: 2}, {Title: "Journaling", Users: 1}}, r.PopularRoutines)
}

func TestRollup_KeepsTopTen(t *testing.T) {
	var packages []models.PackageActivity
	for i := 0; i < 15; i++ {
		for u := 0; u <= i; u++ {
			packages = append(packages, models.PackageActivity{
				UserID:       fmt.Sprintf("u%d", u),
				PackageID:    fmt.Sprintf("p%d", i),
				PackageTitle: fmt.Sprintf("Package %02d", i),
			})
		}
	}

	r := Rollup(15, nil, packages, nil)
	require.Len(t, r.PopularPackages, 10)
	assert.Equal(t, Popularity{Title: "Package 14", Users: 15}, r.PopularPackages[0])
	assert.Equal(t, Popularity{Title: "Package 05", Users: 6}, r.PopularPackages[9])
	assert.Empty(t, r.PopularRoutines)
}

func TestGenerateActivitySummary_CachesAndInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, nil)

	first, err := f.svc.GenerateActivitySummary(ctx, u.ID, PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, "Great week.", first.Summary)
	f.cache.Wait()

	req := f.summarizer.requests[0]
	assert.Equal(t, activityWords, req.MaxWords)
	assert.Equal(t, "English", req.Language)
	assert.Contains(t, req.Facts, "Period: the last 7 days")

	second, err := f.svc.GenerateActivitySummary(ctx, u.ID, PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, 1, f.summarizer.calls())

	_, err = f.svc.GenerateActivitySummary(ctx, u.ID, PeriodMonth)
	require.NoError(t, err)
	f.cache.Wait()
	assert.Equal(t, 2, f.summarizer.calls())

	f.svc.InvalidateUser(ctx, u.ID)
	var cached ActivitySummary
	assert.False(t, f.cache.Get(ctx, u.ID, "dashboard_summary_week", &cached))
	assert.False(t, f.cache.Get(ctx, u.ID, "dashboard_summary_month", &cached))

	_, err = f.svc.GenerateActivitySummary(ctx, u.ID, PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 3, f.summarizer.calls())
}

func TestGenerateActivitySummary_EmptyIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, nil)
	f.summarizer.reply = ""

	got, err := f.svc.GenerateActivitySummary(ctx, u.ID, PeriodWeek)
	require.NoError(t, err)
	assert.Empty(t, got.Summary)
	f.cache.Wait()

	var cached ActivitySummary
	assert.False(t, f.cache.Get(ctx, u.ID, "dashboard_summary_week", &cached))
}

func TestGenerateActivitySummary_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GenerateActivitySummary(context.Background(), "missing", PeriodWeek)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, f.summarizer.calls())
}

func TestUserFacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, nil)

	pkg := &models.LearningPackage{Title: "Resilienz", DurationDays: 14, UnitsPerDay: 1, CreatedAt: f.now}
	require.NoError(t, f.store.CreatePackage(ctx, pkg))
	require.NoError(t, f.store.CreateProgress(ctx, &models.ProgressRecord{UserID: u.ID, PackageID: pkg.ID, Status: models.ProgressActive, CurrentDay: 4, CurrentUnit: 1}))

	r := &models.Routine{UserID: u.ID, Title: "Journaling", Frequency: models.FrequencyDaily, Status: models.RoutineActive, CreatedAt: f.now, UpdatedAt: f.now}
	require.NoError(t, f.store.CreateRoutine(ctx, r))
	require.NoError(t, f.store.UpsertRoutineEntry(ctx, &models.RoutineEntry{RoutineID: r.ID, Date: f.now, Completed: true}))
	require.NoError(t, f.store.UpsertRoutineEntry(ctx, &models.RoutineEntry{RoutineID: r.ID, Date: f.now.AddDate(0, 0, -30), Completed: true}))

	facts, lang, err := f.svc.userFacts(ctx, u.ID, PeriodWeek.Cutoff(f.now), PeriodWeek.label())
	require.NoError(t, err)
	assert.Equal(t, "English", lang)
	assert.Contains(t, facts, "- Resilienz: day 4 of 14 (active)")
	assert.Contains(t, facts, "- Journaling (daily): 1 completed entries")
	assert.Contains(t, facts, "Messages written by the user: 0")
}

func TestGenerateCompanyAnalyticsSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	company := &models.Company{Name: "Acme", CreatedAt: f.now}
	require.NoError(t, f.store.CreateCompany(ctx, company))
	a := f.user(t, &company.ID)
	b := f.user(t, &company.ID)
	f.user(t, &company.ID)

	require.NoError(t, f.store.CreateChatSession(ctx, &models.ChatSession{UserID: a.ID, ChatType: models.ChatTypeGeneral, CreatedAt: f.now, UpdatedAt: f.now}))

	pkg := &models.LearningPackage{Title: "Resilienz", DurationDays: 7, UnitsPerDay: 1, CreatedAt: f.now}
	require.NoError(t, f.store.CreatePackage(ctx, pkg))
	accessed := f.now.Add(-time.Hour)
	for _, u := range []*models.User{a, b} {
		require.NoError(t, f.store.CreateProgress(ctx, &models.ProgressRecord{
			UserID: u.ID, PackageID: pkg.ID, Status: models.ProgressActive,
			CurrentDay: 1, CurrentUnit: 1, StartedAt: &accessed, LastAccessedAt: &accessed,
		}))
	}

	f.summarizer.reply = "Two of three employees were active."
	got, err := f.svc.GenerateCompanyAnalyticsSummary(ctx, company.ID, PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, "Two of three employees were active.", got.Summary)
	assert.Equal(t, 3, got.Rollup.TotalUsers)
	assert.Equal(t, 2, got.Rollup.ActiveUsers)
	assert.Equal(t, []Popularity{{Title: "Resilienz", Users: 2}}, got.Rollup.PopularPackages)
	assert.Equal(t, companyWords, f.summarizer.requests[0].MaxWords)
	f.cache.Wait()

	cached, err := f.svc.GenerateCompanyAnalyticsSummary(ctx, company.ID, PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, got.Rollup, cached.Rollup)
	assert.Equal(t, 1, f.summarizer.calls())

	f.svc.InvalidateCompany(ctx, company.ID)
	_, err = f.svc.GenerateCompanyAnalyticsSummary(ctx, company.ID, PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, f.summarizer.calls())

	_, err = f.svc.GenerateCompanyAnalyticsSummary(ctx, "missing", PeriodWeek)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "German", LanguageName("de"))
	assert.Equal(t, "English", LanguageName("EN"))
	assert.Equal(t, "pt", LanguageName("pt"))
}
