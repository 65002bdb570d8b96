package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/personalization"
	"github.com/coachly/backend/internal/prompt"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/internal/storage/sqlite"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, conv llm.Conversation) string {
	return m.Called(ctx, conv).String(0)
}

func (m *mockCompleter) TitleFor(ctx context.Context, userMsg, assistantMsg string) string {
	return m.Called(ctx, userMsg, assistantMsg).String(0)
}

type stubContexts struct {
	ctx *personalization.Context
	err error
}

func (s stubContexts) BuildContext(context.Context, string, string) (*personalization.Context, error) {
	return s.ctx, s.err
}

type recordingProfiles struct {
	exchanges [][2]string
}

func (r *recordingProfiles) ApplyExchange(_ context.Context, _ string, userMsg, assistantMsg string) (*models.Profile, bool, error) {
	r.exchanges = append(r.exchanges, [2]string{userMsg, assistantMsg})
	return &models.Profile{}, true, nil
}

type fixture struct {
	svc       *Service
	store     *sqlite.Client
	completer *mockCompleter
	profiles  *recordingProfiles
	user      *models.User
}

func newFixture(t *testing.T, contexts ContextBuilder) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	corporate := "Always mention our feedback culture."
	company := &models.Company{Name: "Acme", CorporatePrompt: &corporate, CreatedAt: time.Now()}
	require.NoError(t, store.CreateCompany(ctx, company))

	u := &models.User{Email: "max@example.com", CompanyID: &company.ID, AuthProvider: "local", CreatedAt: time.Now()}
	require.NoError(t, store.CreateUser(ctx, u, "de"))

	completer := &mockCompleter{}
	profiles := &recordingProfiles{}
	if contexts == nil {
		contexts = stubContexts{ctx: &personalization.Context{Profile: []personalization.Fact{{Key: "role", Value: "CTO"}}}}
	}
	svc := NewService(Config{}, store, contexts, completer, profiles, nil)
	return &fixture{svc: svc, store: store, completer: completer, profiles: profiles, user: u}
}

func TestCreateSession_Singletons(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, err := f.svc.CreateSession(ctx, f.user.ID, models.ChatTypeOnboarding, nil)
	require.NoError(t, err)
	b, err := f.svc.CreateSession(ctx, f.user.ID, models.ChatTypeOnboarding, nil)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	g1, err := f.svc.CreateSession(ctx, f.user.ID, "", nil)
	require.NoError(t, err)
	g2, err := f.svc.CreateSession(ctx, f.user.ID, models.ChatTypeGeneral, nil)
	require.NoError(t, err)
	assert.NotEqual(t, g1.ID, g2.ID)
	assert.Equal(t, models.ChatTypeGeneral, g1.ChatType)

	_, err = f.svc.CreateSession(ctx, f.user.ID, "smalltalk", nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = f.svc.CreateSession(ctx, f.user.ID, models.ChatTypePackage, nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	missing := "missing"
	_, err = f.svc.CreateSession(ctx, f.user.ID, models.ChatTypePackage, &missing)
	assert.ErrorIs(t, err, models.ErrNotFound)

	sessions, err := f.svc.ListSessions(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)

	briefing, err := f.svc.SingletonSession(ctx, f.user.ID, models.ChatTypeKIBriefing)
	require.NoError(t, err)
	again, err := f.svc.SingletonSession(ctx, f.user.ID, models.ChatTypeKIBriefing)
	require.NoError(t, err)
	assert.Equal(t, briefing.ID, again.ID)
	_, err = f.svc.SingletonSession(ctx, f.user.ID, models.ChatTypeGeneral)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

// slowFinder widens the window between the singleton lookup and the insert.
type slowFinder struct {
	*sqlite.Client
}

func (s slowFinder) FindChatSessionByType(ctx context.Context, userID string, chatType models.ChatType) (*models.ChatSession, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Client.FindChatSessionByType(ctx, userID, chatType)
}

func TestSingletonSession_ConcurrentFirstUse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	svc := NewService(Config{}, slowFinder{f.store}, stubContexts{ctx: &personalization.Context{}}, f.completer, f.profiles, nil)

	const callers = 4
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.SingletonSession(ctx, f.user.ID, models.ChatTypeOnboarding)
			errs[i] = err
			if err == nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	sessions, err := f.store.ListChatSessions(ctx, f.user.ID)
	require.NoError(t, err)
	onboarding := 0
	for _, s := range sessions {
		if s.ChatType == models.ChatTypeOnboarding {
			onboarding++
		}
	}
	assert.Equal(t, 1, onboarding)
}

func TestPostMessage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, f.user.ID, models.ChatTypeOnboarding, nil)
	require.NoError(t, err)

	reply := "Schön, dich kennenzulernen!\nRoutine: Abendreflexion (daily)"
	f.completer.On("Complete", mock.Anything, mock.MatchedBy(func(c llm.Conversation) bool {
		return strings.HasPrefix(c.Instructions, prompt.DefaultBasePrompt) &&
			strings.Contains(c.Instructions, "Always mention our feedback culture.") &&
			strings.Contains(c.Instructions, "## Onboarding conversation") &&
			strings.Contains(c.Context, "- role: CTO") &&
			c.Turn == "Ich leite ein Team von 12 Leuten." &&
			len(c.History) == 0
	})).Return(reply).Once()
	f.completer.On("TitleFor", mock.Anything, "Ich leite ein Team von 12 Leuten.", reply).Return("Teamführung").Once()

	got, err := f.svc.PostMessage(ctx, f.user.ID, session.ID, "  Ich leite ein Team von 12 Leuten. ")
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, reply, got.AssistantMessage.Content)
	assert.True(t, got.ProfileUpdated)
	require.Len(t, got.Suggestions, 1)
	assert.Equal(t, "Abendreflexion", got.Suggestions[0].Title)
	assert.Equal(t, [][2]string{{"Ich leite ein Team von 12 Leuten.", reply}}, f.profiles.exchanges)

	history, err := f.svc.History(ctx, f.user.ID, session.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Contains(t, history[1].Metadata, "routineSuggestions")

	stored, err := f.store.GetChatSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Title)
	assert.Equal(t, "Teamführung", *stored.Title)

	f.completer.On("Complete", mock.Anything, mock.MatchedBy(func(c llm.Conversation) bool {
		return len(c.History) == 2 && c.History[1].Role == models.RoleAssistant
	})).Return("Weiter so.").Once()

	_, err = f.svc.PostMessage(ctx, f.user.ID, session.ID, "Danke")
	require.NoError(t, err)
	f.svc.Wait()
	f.completer.AssertExpectations(t)
	f.completer.AssertNumberOfCalls(t, "TitleFor", 1)
}

func TestPostMessage_CompletionFailure(t *testing.T) {
	f := newFixture(t, stubContexts{err: errors.New("db down")})
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, f.user.ID, models.ChatTypeGeneral, nil)
	require.NoError(t, err)

	f.completer.On("Complete", mock.Anything, mock.MatchedBy(func(c llm.Conversation) bool {
		return c.Context == ""
	})).Return("")

	got, err := f.svc.PostMessage(ctx, f.user.ID, session.ID, "Hallo")
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, apology("de"), got.AssistantMessage.Content)
	assert.Equal(t, true, got.AssistantMessage.Metadata["fallback"])
	assert.False(t, got.ProfileUpdated)
	assert.Empty(t, f.profiles.exchanges)
	f.completer.AssertNotCalled(t, "TitleFor", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessage_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, f.user.ID, models.ChatTypeGeneral, nil)
	require.NoError(t, err)

	_, err = f.svc.PostMessage(ctx, f.user.ID, session.ID, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = f.svc.PostMessage(ctx, f.user.ID, session.ID, strings.Repeat("a", maxMessageLength+1))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = f.svc.PostMessage(ctx, "intruder", session.ID, "Hallo")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.History(ctx, "intruder", session.ID, 10)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExtractsProfile(t *testing.T) {
	assert.True(t, extractsProfile(models.ChatTypeGeneral))
	assert.True(t, extractsProfile(models.ChatTypeOnboarding))
	assert.True(t, extractsProfile(models.ChatTypeProfileReflection))
	assert.False(t, extractsProfile(models.ChatTypeKIBriefing))
	assert.False(t, extractsProfile(models.ChatTypePackage))
}
