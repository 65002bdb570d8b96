package learning

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/internal/storage/sqlite"
)

type recordingInvalidator struct {
	users []string
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

type fixture struct {
	svc   *Service
	store *sqlite.Client
	inv   *recordingInvalidator
	user  *models.User
	pkg   *models.LearningPackage
}

func newFixture(t *testing.T, days, unitsPerDay int) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	u := &models.User{Email: "jo@example.com", AuthProvider: "local", CreatedAt: now}
	require.NoError(t, store.CreateUser(ctx, u, "de"))

	pkg := &models.LearningPackage{Title: "Resilienz", DurationDays: days, UnitsPerDay: unitsPerDay, CreatedAt: now}
	require.NoError(t, store.CreatePackage(ctx, pkg))
	for d := 1; d <= days; d++ {
		for i := 1; i <= unitsPerDay; i++ {
			require.NoError(t, store.CreateUnit(ctx, &models.LearningUnit{PackageID: pkg.ID, DayIndex: d, UnitIndex: i, Title: "Unit", SortOrder: d*10 + i}))
		}
	}

	inv := &recordingInvalidator{}
	svc := NewService(store, inv)
	svc.now = func() time.Time { return now }
	return &fixture{svc: svc, store: store, inv: inv, user: u, pkg: pkg}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.ProgressNotStarted, models.ProgressActive))
	assert.True(t, CanTransition(models.ProgressActive, models.ProgressPaused))
	assert.True(t, CanTransition(models.ProgressPaused, models.ProgressActive))
	assert.True(t, CanTransition(models.ProgressActive, models.ProgressCompleted))

	for _, to := range []models.ProgressStatus{models.ProgressNotStarted, models.ProgressActive, models.ProgressPaused, models.ProgressCompleted} {
		assert.False(t, CanTransition(models.ProgressCompleted, to), "completed -> %s", to)
	}
	assert.False(t, CanTransition(models.ProgressPaused, models.ProgressCompleted))
}

func TestStart(t *testing.T) {
	f := newFixture(t, 3, 2)
	ctx := context.Background()

	p, err := f.svc.Start(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressActive, p.Status)
	assert.Equal(t, 1, p.CurrentDay)
	assert.Equal(t, 1, p.CurrentUnit)
	assert.NotNil(t, p.StartedAt)
	assert.Equal(t, []string{f.user.ID}, f.inv.users)

	_, err = f.svc.Start(ctx, f.user.ID, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = f.svc.Start(ctx, f.user.ID, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAdvance_RollsOverAndCompletes(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)

	positions := [][2]int{{1, 2}, {2, 1}, {2, 2}}
	for _, want := range positions {
		p, err := f.svc.Advance(ctx, f.user.ID, f.pkg.ID)
		require.NoError(t, err)
		assert.Equal(t, want[0], p.CurrentDay)
		assert.Equal(t, want[1], p.CurrentUnit)
		assert.Equal(t, models.ProgressActive, p.Status)
	}

	p, err := f.svc.Advance(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressCompleted, p.Status)
	assert.Equal(t, 2, p.CurrentDay)
	assert.NotNil(t, p.CompletedAt)
	assert.Len(t, f.inv.users, 2)

	stored, err := f.store.GetProgress(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, stored.CurrentDay, f.pkg.DurationDays)
	assert.NotNil(t, stored.CompletedAt)

	_, err = f.svc.Advance(ctx, f.user.ID, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = f.svc.Resume(ctx, f.user.ID, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestPauseResumeComplete(t *testing.T) {
	f := newFixture(t, 5, 1)
	ctx := context.Background()

	_, err := f.svc.Pause(ctx, f.user.ID, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.Start(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)

	p, err := f.svc.Pause(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressPaused, p.Status)

	_, err = f.svc.Advance(ctx, f.user.ID, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = f.svc.Complete(ctx, f.user.ID, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	p, err = f.svc.Resume(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressActive, p.Status)

	p, err = f.svc.Complete(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressCompleted, p.Status)
	assert.NotNil(t, p.CompletedAt)
	assert.Len(t, f.inv.users, 2)

	_, err = f.svc.Pause(ctx, f.user.ID, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestCurrentUnit(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)

	unit, p, err := f.svc.CurrentUnit(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unit.DayIndex)
	assert.Equal(t, 2, unit.UnitIndex)
	assert.NotNil(t, p.LastAccessedAt)
}

func TestLinkSession(t *testing.T) {
	f := newFixture(t, 1, 1)
	ctx := context.Background()

	require.NoError(t, f.svc.LinkSession(ctx, f.user.ID, f.pkg.ID, "s1"))

	_, err := f.svc.Start(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	s := &models.ChatSession{UserID: f.user.ID, ChatType: models.ChatTypePackage, PackageID: &f.pkg.ID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, f.store.CreateChatSession(ctx, s))
	require.NoError(t, f.svc.LinkSession(ctx, f.user.ID, f.pkg.ID, s.ID))

	p, err := f.store.GetProgress(ctx, f.user.ID, f.pkg.ID)
	require.NoError(t, err)
	require.NotNil(t, p.ChatSessionID)
	assert.Equal(t, s.ID, *p.ChatSessionID)
}
