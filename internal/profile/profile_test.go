package profile

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/storage/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestIsComplete(t *testing.T) {
	assert.True(t, IsComplete(models.Profile{TeamSize: intPtr(5)}))
	assert.True(t, IsComplete(models.Profile{Role: strPtr("Abteilungsleiter")}))
	assert.False(t, IsComplete(models.Profile{}))
	assert.False(t, IsComplete(models.Profile{Age: intPtr(40), Industry: strPtr("Pharma")}))
}

func TestMerge_NoNewInfoIsIdentity(t *testing.T) {
	profiles := []models.Profile{
		{},
		{UserID: "u1", Goals: models.StringList{}},
		{UserID: "u2", Role: strPtr("CTO"), TeamSize: intPtr(40), Goals: models.StringList{"Delegieren", "Feedback"}},
	}
	ext := llm.Extraction{Age: intPtr(99), Role: strPtr("Praktikant"), Goals: []string{"Neu"}, HasNewInfo: false}

	for i, p := range profiles {
		assert.Equal(t, p, Merge(p, ext), fmt.Sprintf("profile %d", i))
	}
}

func TestMerge_ScalarsOverwriteAndNullsKeep(t *testing.T) {
	current := models.Profile{Role: strPtr("Teamleiter"), TeamSize: intPtr(5), Age: intPtr(30)}
	ext := llm.Extraction{Role: strPtr("Bereichsleiter"), Industry: strPtr("Logistik"), HasNewInfo: true}

	got := Merge(current, ext)
	assert.Equal(t, "Bereichsleiter", *got.Role)
	assert.Equal(t, "Logistik", *got.Industry)
	assert.Equal(t, 5, *got.TeamSize)
	assert.Equal(t, 30, *got.Age)

	assert.Equal(t, "Teamleiter", *current.Role, "input must not be mutated")
}

func TestMerge_GoalsUnionPreservesOrder(t *testing.T) {
	current := models.Profile{Goals: models.StringList{"Delegieren", "Feedback geben"}}
	ext := llm.Extraction{Goals: []string{"Feedback geben", "Zeitmanagement", "Zeitmanagement", "feedback geben"}, HasNewInfo: true}

	got := Merge(current, ext)
	assert.Equal(t, models.StringList{"Delegieren", "Feedback geben", "Zeitmanagement", "feedback geben"}, got.Goals)
	assert.Equal(t, models.StringList{"Delegieren", "Feedback geben"}, current.Goals)

	for _, g := range current.Goals {
		assert.True(t, got.Goals.Contains(g))
	}
}

type memStore struct {
	profiles map[string]*models.Profile
	updates  int
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateProfile(_ context.Context, p *models.Profile) error {
	m.updates++
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

type stubExtractor struct {
	ext llm.Extraction
}

func (s stubExtractor) ExtractProfileFields(context.Context, string, string, *models.Profile) llm.Extraction {
	return s.ext
}

type recordingInvalidator struct {
	users []string
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

func TestApplyExchange_CompletesOnboarding(t *testing.T) {
	store := &memStore{profiles: map[string]*models.Profile{"u1": {UserID: "u1"}}}
	inv := &recordingInvalidator{}
	svc := NewService(store, stubExtractor{llm.Extraction{TeamSize: intPtr(5), HasNewInfo: true}}, inv)

	p, changed, err := svc.ApplyExchange(context.Background(), "u1", "Ich führe 5 Leute.", "Danke!")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, p.OnboardingComplete)
	assert.Equal(t, 5, *store.profiles["u1"].TeamSize)
	assert.Equal(t, []string{"u1"}, inv.users)
}

func TestApplyExchange_NoNewInfoSkipsWrite(t *testing.T) {
	store := &memStore{profiles: map[string]*models.Profile{"u1": {UserID: "u1", Role: strPtr("CEO")}}}
	inv := &recordingInvalidator{}
	svc := NewService(store, stubExtractor{llm.Extraction{Role: strPtr("ignored")}}, inv)

	p, changed, err := svc.ApplyExchange(context.Background(), "u1", "Hallo", "Hi")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "CEO", *p.Role)
	assert.Zero(t, store.updates)
	assert.Empty(t, inv.users)
}

func TestApplyExchange_RepeatedFactIsNoChange(t *testing.T) {
	store := &memStore{profiles: map[string]*models.Profile{"u1": {UserID: "u1", Age: intPtr(34)}}}
	svc := NewService(store, stubExtractor{llm.Extraction{Age: intPtr(34), HasNewInfo: true}}, &recordingInvalidator{})

	_, changed, err := svc.ApplyExchange(context.Background(), "u1", "Ich bin 34", "ok")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, store.updates)
}

func TestApplyExchange_MissingProfile(t *testing.T) {
	svc := NewService(&memStore{profiles: map[string]*models.Profile{}}, stubExtractor{}, &recordingInvalidator{})
	_, _, err := svc.ApplyExchange(context.Background(), "nobody", "a", "b")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	store := &memStore{profiles: map[string]*models.Profile{"u1": {UserID: "u1", FirstName: strPtr("Kim"), PreferredLanguage: "de"}}}
	inv := &recordingInvalidator{}
	svc := NewService(store, stubExtractor{}, inv)

	goals := []string{" Delegieren ", "Delegieren", ""}
	p, err := svc.Update(context.Background(), "u1", Patch{
		FirstName:         strPtr(""),
		Role:              strPtr("Teamleitung"),
		Goals:             &goals,
		PreferredLanguage: strPtr("en"),
	})
	require.NoError(t, err)
	assert.Nil(t, p.FirstName)
	assert.Equal(t, "Teamleitung", *p.Role)
	assert.Equal(t, models.StringList{"Delegieren"}, p.Goals)
	assert.Equal(t, "en", p.PreferredLanguage)
	assert.True(t, p.OnboardingComplete)
	assert.Equal(t, []string{"u1"}, inv.users)

	_, err = svc.Update(context.Background(), "u1", Patch{Age: intPtr(-1)})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestUpdate_RejectsTaggedViolations(t *testing.T) {
	store := &memStore{profiles: map[string]*models.Profile{"u1": {UserID: "u1", PreferredLanguage: "de"}}}
	inv := &recordingInvalidator{}
	svc := NewService(store, stubExtractor{}, inv)
	tooMany := make([]string, 21)

	for name, patch := range map[string]Patch{
		"age above range":     {Age: intPtr(300)},
		"negative team size":  {TeamSize: intPtr(-3)},
		"negative years":      {LeadershipYears: intPtr(-1)},
		"blank language":      {PreferredLanguage: strPtr("  ")},
		"too many goals":      {Goals: &tooMany},
		"first name too long": {FirstName: strPtr(strings.Repeat("x", 101))},
	} {
		_, err := svc.Update(context.Background(), "u1", patch)
		assert.ErrorIs(t, err, models.ErrInvalidArgument, name)
	}
	assert.Empty(t, inv.users)
	assert.Equal(t, "de", store.profiles["u1"].PreferredLanguage)

	_, err := svc.Update(context.Background(), "u1", Patch{Age: intPtr(120), TeamSize: intPtr(0)})
	assert.NoError(t, err)
}
