// Package personalization assembles the per-turn user context fed into chat
// completions. It only reads, and nothing is cached.
package personalization

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coachly/backend/internal/storage/models"
)

const (
	styleSampleSize = 5
	routineWindow   = 7 * 24 * time.Hour
)

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	ListProgressWithPackages(ctx context.Context, userID string) ([]models.ProgressWithPackage, error)
	ListRoutines(ctx context.Context, userID string) ([]models.Routine, error)
	CountCompletedEntriesSince(ctx context.Context, routineID string, since time.Time) (int, error)
	ListUserDocuments(ctx context.Context, userID string, category models.DocumentCategory) ([]models.Document, error)
	ListCompanyDocuments(ctx context.Context, companyID string) ([]models.Document, error)
	RecentUserMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}

type Fact struct {
	Key   string
	Value string
}

type ActivePackage struct {
	Title        string
	CurrentDay   int
	DurationDays int
}

type ActiveRoutine struct {
	Title              string
	Frequency          models.RoutineFrequency
	CompletedLast7Days int
	Target             *int
}

type Context struct {
	Profile        []Fact
	ActivePackages []ActivePackage
	ActiveRoutines []ActiveRoutine
	DocumentsText  string
	LanguageStyle  LanguageStyle
}

type Aggregator struct {
	store Store
	now   func() time.Time
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// BuildContext gathers the user's profile facts, active packages, active
// routines, documents and, when sessionID is set, the language style of the
// session's latest user messages. The parts are loaded concurrently and each
// writes only its own field.
func (a *Aggregator) BuildContext(ctx context.Context, userID, sessionID string) (*Context, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	out := &Context{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := a.store.GetProfile(gctx, userID)
		switch {
		case err == nil:
			out.Profile = ProfileFacts(profile)
		case !errors.Is(err, models.ErrNotFound):
			return fmt.Errorf("failed to load profile: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		progress, err := a.store.ListProgressWithPackages(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		for _, p := range progress {
			if p.Status != models.ProgressActive {
				continue
			}
			out.ActivePackages = append(out.ActivePackages, ActivePackage{
				Title:        p.PackageTitle,
				CurrentDay:   p.CurrentDay,
				DurationDays: p.DurationDays,
			})
		}
		return nil
	})

	g.Go(func() error {
		routines, err := a.activeRoutines(gctx, userID)
		if err != nil {
			return err
		}
		out.ActiveRoutines = routines
		return nil
	})

	g.Go(func() error {
		personal, err := a.store.ListUserDocuments(gctx, userID, models.DocumentPersonal)
		if err != nil {
			return fmt.Errorf("failed to load documents: %w", err)
		}
		var company []models.Document
		if user.CompanyID != nil {
			company, err = a.store.ListCompanyDocuments(gctx, *user.CompanyID)
			if err != nil {
				return fmt.Errorf("failed to load company documents: %w", err)
			}
		}
		out.DocumentsText = DocumentsText(personal, company)
		return nil
	})

	if sessionID != "" {
		g.Go(func() error {
			msgs, err := a.store.RecentUserMessages(gctx, sessionID, styleSampleSize)
			if err != nil {
				return fmt.Errorf("failed to load recent messages: %w", err)
			}
			texts := make([]string, 0, len(msgs))
			for _, m := range msgs {
				texts = append(texts, m.Content)
			}
			out.LanguageStyle = AnalyzeStyle(texts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) activeRoutines(ctx context.Context, userID string) ([]ActiveRoutine, error) {
	routines, err := a.store.ListRoutines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load routines: %w", err)
	}
	since := a.now().Add(-routineWindow)

	var out []ActiveRoutine
	for _, r := range routines {
		if r.Status != models.RoutineActive {
			continue
		}
		n, err := a.store.CountCompletedEntriesSince(ctx, r.ID, since)
		if err != nil {
			return nil, fmt.Errorf("failed to count routine entries: %w", err)
		}
		out = append(out, ActiveRoutine{
			Title:              r.Title,
			Frequency:          r.Frequency,
			CompletedLast7Days: n,
			Target:             r.Target,
		})
	}
	return out, nil
}

// ProfileFacts projects the profile onto the fields that hold a value.
func ProfileFacts(p *models.Profile) []Fact {
	if p == nil {
		return nil
	}

	var facts []Fact
	addString := func(key string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			facts = append(facts, Fact{Key: key, Value: *v})
		}
	}
	addInt := func(key string, v *int) {
		if v != nil {
			facts = append(facts, Fact{Key: key, Value: strconv.Itoa(*v)})
		}
	}

	addString("first name", p.FirstName)
	addInt("age", p.Age)
	addString("gender", p.Gender)
	addString("role", p.Role)
	addString("industry", p.Industry)
	addInt("team size", p.TeamSize)
	addInt("years of leadership experience", p.LeadershipYears)
	if len(p.Goals) > 0 {
		facts = append(facts, Fact{Key: "goals", Value: strings.Join(p.Goals, "; ")})
	}
	if p.PreferredLanguage != "" {
		facts = append(facts, Fact{Key: "preferred language", Value: p.PreferredLanguage})
	}
	return facts
}

// DocumentsText groups extracted document text under personal and company
// headings, each document prefixed by its filename.
func DocumentsText(personal, company []models.Document) string {
	var b strings.Builder
	writeGroup := func(heading string, docs []models.Document) {
		wrote := false
		for _, d := range docs {
			text := strings.TrimSpace(d.ExtractedText)
			if text == "" {
				continue
			}
			if !wrote {
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
				b.WriteString(heading)
				wrote = true
			}
			fmt.Fprintf(&b, "\n\n[%s]\n%s", d.Filename, text)
		}
	}
	writeGroup("### Personal documents", personal)
	writeGroup("### Company documents", company)
	return b.String()
}

// Render formats the context as the block appended to the system prompt.
// Empty sections are left out.
func (c *Context) Render() string {
	if c == nil {
		return ""
	}

	var sections []string

	if len(c.Profile) > 0 {
		var b strings.Builder
		b.WriteString("Profile:")
		for _, f := range c.Profile {
			fmt.Fprintf(&b, "\n- %s: %s", f.Key, f.Value)
		}
		sections = append(sections, b.String())
	}

	if len(c.ActivePackages) > 0 {
		var b strings.Builder
		b.WriteString("Active learning packages:")
		for _, p := range c.ActivePackages {
			fmt.Fprintf(&b, "\n- %s (day %d of %d)", p.Title, p.CurrentDay, p.DurationDays)
		}
		sections = append(sections, b.String())
	}

	if len(c.ActiveRoutines) > 0 {
		var b strings.Builder
		b.WriteString("Active routines:")
		for _, r := range c.ActiveRoutines {
			fmt.Fprintf(&b, "\n- %s (%s): completed %d times in the last 7 days", r.Title, r.Frequency, r.CompletedLast7Days)
			if r.Target != nil {
				fmt.Fprintf(&b, ", target %d", *r.Target)
			}
		}
		sections = append(sections, b.String())
	}

	if style := c.LanguageStyle.Describe(); style != "" {
		sections = append(sections, "Language style: "+style)
	}

	if c.DocumentsText != "" {
		sections = append(sections, "Documents provided by the user and their company:\n\n"+c.DocumentsText)
	}

	if len(sections) == 0 {
		return ""
	}
	return "## What you know about the user\n\n" + strings.Join(sections, "\n\n")
}
