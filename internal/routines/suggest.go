package routines

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coachly/backend/internal/storage/models"
)

// Suggestion is a routine proposed by the coach in a chat reply.
type Suggestion struct {
	Title     string                  `json:"title"`
	Frequency models.RoutineFrequency `json:"frequency"`
	Target    *int                    `json:"target,omitempty"`
}

var suggestionLine = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?\**\s*routine\s*\**\s*:\s*\**\s*(.+?)\s*\**\s*\(\s*(daily|weekly|monthly|täglich|wöchentlich|monatlich)\s*(?:[,;]\s*(\d+)\s*(?:x|×|mal)?[^)]*)?\)\s*\.?\s*$`)

var frequencyWords = map[string]models.RoutineFrequency{
	"daily":       models.FrequencyDaily,
	"täglich":     models.FrequencyDaily,
	"weekly":      models.FrequencyWeekly,
	"wöchentlich": models.FrequencyWeekly,
	"monthly":     models.FrequencyMonthly,
	"monatlich":   models.FrequencyMonthly,
}

// ParseSuggestions finds lines of the form
// "Routine: <title> (<daily|weekly|monthly>[, <n>x])" in an assistant
// reply. Titles are deduplicated case-insensitively.
func ParseSuggestions(text string) []Suggestion {
	var out []Suggestion
	seen := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		m := suggestionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		title := strings.Trim(strings.TrimSpace(m[1]), `"„“”'`)
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true

		s := Suggestion{Title: title, Frequency: frequencyWords[strings.ToLower(m[2])]}
		if m[3] != "" {
			if n, err := strconv.Atoi(m[3]); err == nil && n > 0 {
				s.Target = &n
			}
		}
		out = append(out, s)
	}
	return out
}
