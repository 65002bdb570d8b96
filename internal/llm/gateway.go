package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/metrics"
	"github.com/coachly/backend/internal/storage/models"
	"github.com/coachly/backend/pkg/logger"
)

const (
	TaskChat      = "chat"
	TaskTitle     = "title"
	TaskExtract   = "extract_profile"
	TaskTranslate = "translate"
	TaskSummarize = "summarize"
	TaskTopics    = "topics"
	TaskRank      = "rank_packages"
)

// Gateway runs every completion task against a Provider. No method returns
// an error: failures are logged, counted and replaced by the task's
// fallback value.
type Gateway struct {
	provider Provider
	log      *zap.Logger
}

func NewGateway(provider Provider) *Gateway {
	return &Gateway{
		provider: provider,
		log:      logger.Named("llm"),
	}
}

func (g *Gateway) call(ctx context.Context, task string, req CompletionRequest) (string, bool) {
	resp, err := g.provider.Complete(ctx, req)
	if err != nil {
		g.log.Warn("LLM call failed", zap.String("task", task), zap.Error(err))
		metrics.LLMCalls.WithLabelValues(task, "error").Inc()
		return "", false
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		g.log.Warn("LLM returned empty content", zap.String("task", task))
		metrics.LLMCalls.WithLabelValues(task, "empty").Inc()
		return "", false
	}

	metrics.LLMCalls.WithLabelValues(task, "ok").Inc()
	return content, true
}

func (g *Gateway) fallback(task string, fields ...zap.Field) {
	metrics.LLMFallbacks.WithLabelValues(task).Inc()
	g.log.Info("Using LLM fallback", append([]zap.Field{zap.String("task", task)}, fields...)...)
}

// Conversation is one chat turn. Instructions is the prompt hierarchy,
// Context the rendered personalization block.
type Conversation struct {
	Instructions string
	Context      string
	History      []Message
	Turn         string
}

// Complete sends system instructions and context first, then the history,
// then the new turn. It returns "" when the provider fails.
func (g *Gateway) Complete(ctx context.Context, conv Conversation) string {
	system := conv.Instructions
	if conv.Context != "" {
		system += "\n\n" + conv.Context
	}

	messages := make([]Message, 0, len(conv.History)+2)
	messages = append(messages, Message{Role: models.RoleSystem, Content: system})
	messages = append(messages, conv.History...)
	if conv.Turn != "" {
		messages = append(messages, Message{Role: models.RoleUser, Content: conv.Turn})
	}

	content, ok := g.call(ctx, TaskChat, CompletionRequest{Messages: messages})
	if !ok {
		g.fallback(TaskChat)
		return ""
	}
	return content
}

const titleSystemPrompt = `You name coaching conversations. Reply with a short title of at most six words in the language of the conversation. No quotes, no trailing punctuation, nothing else.`

// TitleFor returns a short session title for the first exchange, or "".
func (g *Gateway) TitleFor(ctx context.Context, userMsg, assistantMsg string) string {
	content, ok := g.call(ctx, TaskTitle, CompletionRequest{
		Messages: []Message{
			{Role: models.RoleSystem, Content: titleSystemPrompt},
			{Role: models.RoleUser, Content: fmt.Sprintf("User: %s\nCoach: %s", truncate(userMsg, 500), truncate(assistantMsg, 500))},
		},
		Temperature: 0.3,
		MaxTokens:   30,
	})
	if !ok {
		g.fallback(TaskTitle)
		return ""
	}
	return cleanTitle(content)
}

func cleanTitle(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "Title:")
	s = strings.Trim(strings.TrimSpace(s), "\"'`*#„“”‚‘’.")
	return truncate(strings.TrimSpace(s), 60)
}

// Extraction is the structured patch the model reports for one exchange.
// Nil fields were not mentioned.
type Extraction struct {
	FirstName       *string
	Age             *int
	Gender          *string
	Role            *string
	Industry        *string
	TeamSize        *int
	LeadershipYears *int
	Goals           []string
	HasNewInfo      bool
}

const extractSystemPrompt = `You extract profile facts a user discloses about themselves in a coaching chat.
Reply with exactly one JSON object and nothing else, using these keys:
{"firstName": string|null, "age": number|null, "gender": string|null, "role": string|null, "industry": string|null, "teamSize": number|null, "leadershipYears": number|null, "goals": [string], "hasNewInfo": boolean}
Rules:
- Only report facts the USER states about themselves in this exchange.
- Use null for anything not mentioned. Do not re-report facts that are already known.
- goals lists only new development goals, as short phrases.
- hasNewInfo is true only if at least one field carries a new fact.`

// ExtractProfileFields asks the model which profile facts the exchange
// disclosed. Any failure yields an Extraction with HasNewInfo false.
func (g *Gateway) ExtractProfileFields(ctx context.Context, userMsg, assistantMsg string, current *models.Profile) Extraction {
	user := fmt.Sprintf("Already known:\n%s\n\nExchange:\nUser: %s\nCoach: %s",
		knownFacts(current), truncate(userMsg, 2000), truncate(assistantMsg, 1000))

	content, ok := g.call(ctx, TaskExtract, CompletionRequest{
		Messages: []Message{
			{Role: models.RoleSystem, Content: extractSystemPrompt},
			{Role: models.RoleUser, Content: user},
		},
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if !ok {
		g.fallback(TaskExtract)
		return Extraction{}
	}

	ext, ok := parseExtraction(content)
	if !ok {
		g.fallback(TaskExtract, zap.String("reason", "unparseable"))
		return Extraction{}
	}
	return ext
}

func knownFacts(p *models.Profile) string {
	if p == nil {
		return "(nothing)"
	}
	var lines []string
	add := func(label string, v any) {
		lines = append(lines, fmt.Sprintf("- %s: %v", label, v))
	}
	if p.FirstName != nil {
		add("firstName", *p.FirstName)
	}
	if p.Age != nil {
		add("age", *p.Age)
	}
	if p.Gender != nil {
		add("gender", *p.Gender)
	}
	if p.Role != nil {
		add("role", *p.Role)
	}
	if p.Industry != nil {
		add("industry", *p.Industry)
	}
	if p.TeamSize != nil {
		add("teamSize", *p.TeamSize)
	}
	if p.LeadershipYears != nil {
		add("leadershipYears", *p.LeadershipYears)
	}
	if len(p.Goals) > 0 {
		add("goals", strings.Join(p.Goals, "; "))
	}
	if len(lines) == 0 {
		return "(nothing)"
	}
	return strings.Join(lines, "\n")
}

// parseExtraction tolerates prose around the object, nulls, numbers sent
// as strings and a single goal sent as a string.
func parseExtraction(content string) (Extraction, bool) {
	raw := firstJSONObject(content)
	if raw == "" {
		return Extraction{}, false
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Extraction{}, false
	}

	ext := Extraction{
		FirstName:       stringField(fields["firstName"]),
		Age:             intField(fields["age"]),
		Gender:          stringField(fields["gender"]),
		Role:            stringField(fields["role"]),
		Industry:        stringField(fields["industry"]),
		TeamSize:        intField(fields["teamSize"]),
		LeadershipYears: intField(fields["leadershipYears"]),
		Goals:           stringsField(fields["goals"]),
		HasNewInfo:      boolField(fields["hasNewInfo"]),
	}
	return ext, true
}

func stringField(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func intField(v any) *int {
	var n int
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n = int(i)
		} else if f, err := t.Float64(); err == nil {
			n = int(f)
		} else {
			return nil
		}
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err != nil {
			return nil
		}
	default:
		return nil
	}
	if n < 0 {
		return nil
	}
	return &n
}

func stringsField(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := stringField(item); s != nil {
				out = append(out, *s)
			}
		}
	case string:
		if s := stringField(t); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func boolField(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	}
	return false
}

// Translate returns source translated into language. Keys the model drops
// or garbles keep their source text.
func (g *Gateway) Translate(ctx context.Context, language string, source map[string]string) map[string]string {
	out := make(map[string]string, len(source))
	for k, v := range source {
		out[k] = v
	}
	if len(source) == 0 {
		return out
	}

	payload, err := json.Marshal(source)
	if err != nil {
		g.fallback(TaskTranslate, zap.Error(err))
		return out
	}

	content, ok := g.call(ctx, TaskTranslate, CompletionRequest{
		Messages: []Message{
			{Role: models.RoleSystem, Content: fmt.Sprintf(
				"Translate the values of the JSON object into %s. Keep every key unchanged and keep placeholders in curly braces unchanged. Reply with the JSON object only.", language)},
			{Role: models.RoleUser, Content: string(payload)},
		},
		Temperature: 0.2,
	})
	if !ok {
		g.fallback(TaskTranslate, zap.String("language", language))
		return out
	}

	var translated map[string]any
	raw := firstJSONObject(content)
	if raw == "" || json.Unmarshal([]byte(raw), &translated) != nil {
		g.fallback(TaskTranslate, zap.String("language", language), zap.String("reason", "unparseable"))
		return out
	}

	for k := range source {
		if s, ok := translated[k].(string); ok && strings.TrimSpace(s) != "" {
			out[k] = s
		}
	}
	return out
}

type SummaryRequest struct {
	Facts    string
	MaxWords int
	Language string
	// Style is an extra instruction, e.g. the audience of the summary.
	Style string
}

// Summarize writes a short prose summary of the fact sheet, or "".
func (g *Gateway) Summarize(ctx context.Context, req SummaryRequest) string {
	system := fmt.Sprintf(
		"You write brief, encouraging summaries for a coaching app. Use at most %d words. Use only the facts given and do not invent numbers.",
		req.MaxWords)
	if req.Language != "" {
		system += " Write in " + req.Language + "."
	}
	if req.Style != "" {
		system += " " + req.Style
	}

	content, ok := g.call(ctx, TaskSummarize, CompletionRequest{
		Messages: []Message{
			{Role: models.RoleSystem, Content: system},
			{Role: models.RoleUser, Content: req.Facts},
		},
		Temperature: 0.5,
		MaxTokens:   req.MaxWords * 3,
	})
	if !ok {
		g.fallback(TaskSummarize)
		return ""
	}
	return content
}

// MineTopics names 5 to 7 recurring topics of the messages, or nil.
func (g *Gateway) MineTopics(ctx context.Context, messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	var b strings.Builder
	for _, m := range messages {
		b.WriteString("- ")
		b.WriteString(truncate(strings.ReplaceAll(m, "\n", " "), 300))
		b.WriteString("\n")
	}

	content, ok := g.call(ctx, TaskTopics, CompletionRequest{
		Messages: []Message{
			{Role: models.RoleSystem, Content: "Identify the 5 to 7 main coaching topics in these user messages. Reply with a comma-separated list of short topic names only."},
			{Role: models.RoleUser, Content: b.String()},
		},
		Temperature: 0.2,
		MaxTokens:   100,
	})
	if !ok {
		g.fallback(TaskTopics)
		return nil
	}

	seen := map[string]bool{}
	var topics []string
	for _, part := range strings.FieldsFunc(content, func(r rune) bool { return r == ',' || r == '\n' || r == ';' }) {
		t := cleanListItem(part)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, t)
		if len(topics) == 7 {
			break
		}
	}
	return topics
}

type PackageCandidate struct {
	Title       string
	Category    string
	Description string
}

type RankingInput struct {
	ProfileFacts    string
	Topics          []string
	ActiveTitles    []string
	CompletedTitles []string
	Candidates      []PackageCandidate
	Count           int
}

const rankSystemPrompt = `You recommend learning packages to a coaching client.
Rules:
- Prefer packages the client has not started or completed.
- Favor packages that match the client's topics and profile.
- Cover different categories where possible.
- Reply with exactly %d package titles, copied exactly from the catalog, one per line, nothing else.`

// RankPackages returns the model's picks as raw title lines, or nil.
func (g *Gateway) RankPackages(ctx context.Context, in RankingInput) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile:\n%s\n\n", orNone(in.ProfileFacts))
	fmt.Fprintf(&b, "Topics from recent messages: %s\n", orNone(strings.Join(in.Topics, ", ")))
	fmt.Fprintf(&b, "Active packages: %s\n", orNone(strings.Join(in.ActiveTitles, "; ")))
	fmt.Fprintf(&b, "Completed packages: %s\n\nCatalog:\n", orNone(strings.Join(in.CompletedTitles, "; ")))
	for _, c := range in.Candidates {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", c.Title, c.Category, truncate(c.Description, 200))
	}

	content, ok := g.call(ctx, TaskRank, CompletionRequest{
		Messages: []Message{
			{Role: models.RoleSystem, Content: fmt.Sprintf(rankSystemPrompt, in.Count)},
			{Role: models.RoleUser, Content: b.String()},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if !ok {
		g.fallback(TaskRank)
		return nil
	}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if t := cleanListItem(line); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

func cleanListItem(s string) string {
	s = listMarker.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`*„“”")
	return strings.TrimSpace(s)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
