package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/coachly/backend/internal/cache"
	"github.com/coachly/backend/internal/storage/models"
)

type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	Period3Months Period = "3months"
	Period6Months Period = "6months"
	PeriodAll     Period = "all"
)

const DefaultPeriod = PeriodWeek

const (
	dashboardPrefix   = "dashboard_summary_"
	companyPrefix     = "company_analytics_"
	profileSummaryKey = "profile_summary"
)

// ParsePeriod accepts the period names used in query strings. An empty
// string selects DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPeriod, nil
	case PeriodWeek, PeriodMonth, Period3Months, Period6Months, PeriodAll:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q: %w", s, models.ErrInvalidArgument)
}

// Cutoff is the start of the trailing window ending at now. The all-time
// window starts at the Unix epoch.
func (p Period) Cutoff(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case Period3Months:
		return now.AddDate(0, -3, 0)
	case Period6Months:
		return now.AddDate(0, -6, 0)
	}
	return time.Unix(0, 0).UTC()
}

// TTL is how long a summary of this period stays cached.
func (p Period) TTL() time.Duration {
	switch p {
	case PeriodWeek:
		return cache.TTLWeek
	case PeriodMonth:
		return cache.TTLMonth
	}
	return cache.TTLLongRange
}

func (p Period) label() string {
	switch p {
	case PeriodWeek:
		return "the last 7 days"
	case PeriodMonth:
		return "the last month"
	case Period3Months:
		return "the last 3 months"
	case Period6Months:
		return "the last 6 months"
	}
	return "all time"
}

func dashboardKey(p Period) string { return dashboardPrefix + string(p) }

func companyKey(p Period) string { return companyPrefix + string(p) }
