package personalization

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

type Formality string

const (
	FormalityFormal   Formality = "formal"
	FormalityInformal Formality = "informal"
	FormalityNeutral  Formality = "neutral"
)

type Verbosity string

const (
	VerbosityShort  Verbosity = "short"
	VerbosityMedium Verbosity = "medium"
	VerbosityLong   Verbosity = "long"
)

// LanguageStyle describes how the user writes. The zero value means no
// messages were analyzed.
type LanguageStyle struct {
	SampleSize        int
	Formality         Formality
	AvgSentenceLength float64
	AvgMessageWords   float64
	Verbosity         Verbosity
	UsesEmoji         bool
}

// German pronouns of address. Formal forms are capitalized.
var (
	formalMarkers   = map[string]bool{"Sie": true, "Ihnen": true, "Ihr": true, "Ihre": true, "Ihrem": true, "Ihren": true, "Ihrer": true, "Ihres": true}
	informalMarkers = map[string]bool{"du": true, "dich": true, "dir": true, "dein": true, "deine": true, "deinem": true, "deinen": true, "deiner": true, "deines": true}
)

// AnalyzeStyle segments messages into sentences and tokens and derives the
// writing style. Messages that fail to parse are skipped.
func AnalyzeStyle(messages []string) LanguageStyle {
	var style LanguageStyle
	var sentences, words, formal, informal int

	for _, msg := range messages {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			continue
		}

		doc, err := prose.NewDocument(msg,
			prose.WithTagging(false),
			prose.WithExtraction(false),
		)
		if err != nil {
			continue
		}
		style.SampleSize++

		sentences += max(len(doc.Sentences()), 1)

		for i, tok := range doc.Tokens() {
			if !isWord(tok.Text) {
				continue
			}
			words++
			switch {
			case informalMarkers[strings.ToLower(tok.Text)]:
				informal++
			case formalMarkers[tok.Text] && i > 0:
				// "Sie" opening a sentence is usually "she/they".
				formal++
			}
		}

		if !style.UsesEmoji && containsEmoji(msg) {
			style.UsesEmoji = true
		}
	}

	if style.SampleSize == 0 {
		return style
	}

	style.AvgSentenceLength = round1(float64(words) / float64(sentences))
	style.AvgMessageWords = round1(float64(words) / float64(style.SampleSize))

	switch {
	case formal > informal:
		style.Formality = FormalityFormal
	case informal > formal:
		style.Formality = FormalityInformal
	default:
		style.Formality = FormalityNeutral
	}

	switch {
	case style.AvgMessageWords < 15:
		style.Verbosity = VerbosityShort
	case style.AvgMessageWords < 60:
		style.Verbosity = VerbosityMedium
	default:
		style.Verbosity = VerbosityLong
	}

	return style
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func containsEmoji(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF,
			r >= 0x2600 && r <= 0x27BF,
			r >= 0x1F000 && r <= 0x1F2FF:
			return true
		}
	}
	return false
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}

// Describe renders the style as one instruction-friendly line.
func (s LanguageStyle) Describe() string {
	if s.SampleSize == 0 {
		return ""
	}

	var parts []string
	switch s.Formality {
	case FormalityFormal:
		parts = append(parts, `addresses you formally ("Sie")`)
	case FormalityInformal:
		parts = append(parts, `addresses you informally ("du")`)
	}
	parts = append(parts, fmt.Sprintf("writes %s messages (about %.0f words, %.1f words per sentence)",
		s.Verbosity, s.AvgMessageWords, s.AvgSentenceLength))
	if s.UsesEmoji {
		parts = append(parts, "uses emoji")
	}
	return "The user " + strings.Join(parts, ", ") + "."
}
