package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coachly/backend/internal/storage/models"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*CompletionResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func replying(content string) *mockProvider {
	p := &mockProvider{}
	p.On("Complete", mock.Anything, mock.Anything).Return(&CompletionResponse{Content: content}, nil)
	return p
}

func failing() *mockProvider {
	p := &mockProvider{}
	p.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
	return p
}

func TestComplete_MessageOrder(t *testing.T) {
	p := replying("Wie geht es Ihrem Team?")
	g := NewGateway(p)

	got := g.Complete(context.Background(), Conversation{
		Instructions: "BASE",
		Context:      "CONTEXT",
		History: []Message{
			{Role: models.RoleUser, Content: "hallo"},
			{Role: models.RoleAssistant, Content: "hi"},
		},
		Turn: "neu",
	})
	assert.Equal(t, "Wie geht es Ihrem Team?", got)

	req := p.Calls[0].Arguments.Get(1).(CompletionRequest)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, models.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "BASE\n\nCONTEXT", req.Messages[0].Content)
	assert.Equal(t, "hallo", req.Messages[1].Content)
	assert.Equal(t, "hi", req.Messages[2].Content)
	assert.Equal(t, Message{Role: models.RoleUser, Content: "neu"}, req.Messages[3])
}

func TestComplete_FailureIsEmpty(t *testing.T) {
	g := NewGateway(failing())
	assert.Equal(t, "", g.Complete(context.Background(), Conversation{Instructions: "x", Turn: "y"}))
}

func TestExtractProfileFields_ToleratesProse(t *testing.T) {
	g := NewGateway(replying(`Here you go: {"age":34,"hasNewInfo":true}`))

	ext := g.ExtractProfileFields(context.Background(), "Ich bin 34.", "Danke!", &models.Profile{})

	require.NotNil(t, ext.Age)
	assert.Equal(t, 34, *ext.Age)
	assert.True(t, ext.HasNewInfo)
	assert.Nil(t, ext.Role)
	assert.Empty(t, ext.Goals)
}

func TestExtractProfileFields_NullsAndLooseTypes(t *testing.T) {
	g := NewGateway(replying("```json\n{\"firstName\": \"Anna\", \"role\": null, \"teamSize\": \"12\", \"leadershipYears\": 3.0, \"goals\": \"Besser delegieren\", \"hasNewInfo\": \"true\"}\n```"))

	ext := g.ExtractProfileFields(context.Background(), "u", "a", nil)

	require.NotNil(t, ext.FirstName)
	assert.Equal(t, "Anna", *ext.FirstName)
	assert.Nil(t, ext.Role)
	require.NotNil(t, ext.TeamSize)
	assert.Equal(t, 12, *ext.TeamSize)
	require.NotNil(t, ext.LeadershipYears)
	assert.Equal(t, 3, *ext.LeadershipYears)
	assert.Equal(t, []string{"Besser delegieren"}, ext.Goals)
	assert.True(t, ext.HasNewInfo)
}

func TestExtractProfileFields_ParseFailureMeansNoNewInfo(t *testing.T) {
	for _, content := range []string{"I could not find anything.", `{"age": 34,`, "{not json}"} {
		g := NewGateway(replying(content))
		ext := g.ExtractProfileFields(context.Background(), "u", "a", nil)
		assert.False(t, ext.HasNewInfo, content)
		assert.Nil(t, ext.Age, content)
	}

	g := NewGateway(failing())
	assert.Equal(t, Extraction{}, g.ExtractProfileFields(context.Background(), "u", "a", nil))
}

func TestFirstJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: `Here you go: {"age":34,"hasNewInfo":true}`, want: `{"age":34,"hasNewInfo":true}`},
		{in: `{"note":"a } inside","x":{"y":1}} trailing`, want: `{"note":"a } inside","x":{"y":1}}`},
		{in: `{broken} then {"ok":true}`, want: `{"ok":true}`},
		{in: `no object here`, want: ``},
		{in: `{"escaped":"quote \" and brace {"} done`, want: `{"escaped":"quote \" and brace {"}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, firstJSONObject(tc.in), tc.in)
	}
}

func TestTranslate_FallsBackPerKey(t *testing.T) {
	source := map[string]string{"greeting": "Hallo", "bye": "Tschüss", "cta": "Los geht's"}

	g := NewGateway(replying(`{"greeting":"Hello","bye":"","extra":"ignored"}`))
	got := g.Translate(context.Background(), "English", source)
	assert.Equal(t, map[string]string{"greeting": "Hello", "bye": "Tschüss", "cta": "Los geht's"}, got)

	g = NewGateway(failing())
	assert.Equal(t, source, g.Translate(context.Background(), "English", source))

	g = NewGateway(replying("Sorry, I cannot do that."))
	assert.Equal(t, source, g.Translate(context.Background(), "English", source))
}

func TestTitleFor_Cleans(t *testing.T) {
	g := NewGateway(replying("\"Feedback im Team.\"\nExtra line"))
	assert.Equal(t, "Feedback im Team", g.TitleFor(context.Background(), "u", "a"))

	g = NewGateway(failing())
	assert.Equal(t, "", g.TitleFor(context.Background(), "u", "a"))
}

func TestMineTopics(t *testing.T) {
	g := NewGateway(replying("1. Delegation, Feedback,  feedback, \"Zeitmanagement\"\n- Konflikte"))
	topics := g.MineTopics(context.Background(), []string{"Mein Team…"})
	assert.Equal(t, []string{"Delegation", "Feedback", "Zeitmanagement", "Konflikte"}, topics)

	p := &mockProvider{}
	g = NewGateway(p)
	assert.Nil(t, g.MineTopics(context.Background(), nil))
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRankPackages_StripsMarkers(t *testing.T) {
	g := NewGateway(replying("1. Resilienz stärken\n2) \"Feedback geben\"\n\n- **Delegieren**\n"))
	lines := g.RankPackages(context.Background(), RankingInput{Count: 5})
	assert.Equal(t, []string{"Resilienz stärken", "Feedback geben", "Delegieren"}, lines)

	g = NewGateway(failing())
	assert.Nil(t, g.RankPackages(context.Background(), RankingInput{Count: 5}))
}

func TestSummarize_Fallback(t *testing.T) {
	g := NewGateway(failing())
	assert.Equal(t, "", g.Summarize(context.Background(), SummaryRequest{Facts: "x", MaxWords: 40}))

	p := replying("Eine starke Woche.")
	g = NewGateway(p)
	assert.Equal(t, "Eine starke Woche.", g.Summarize(context.Background(), SummaryRequest{Facts: "x", MaxWords: 40, Language: "German"}))
	req := p.Calls[0].Arguments.Get(1).(CompletionRequest)
	assert.Contains(t, req.Messages[0].Content, "at most 40 words")
	assert.Contains(t, req.Messages[0].Content, "Write in German.")
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(ErrEmptyCompletion))
	assert.True(t, isTransient(errors.New("connection reset")))
}
