// Package profile merges model-extracted facts into stored profiles.
package profile

import (
	"github.com/coachly/backend/internal/llm"
	"github.com/coachly/backend/internal/storage/models"
)

// Merge applies an extraction to a copy of current. Without HasNewInfo the
// copy is returned unchanged. Non-nil scalars overwrite unconditionally;
// goals are appended in order, skipping exact duplicates.
func Merge(current models.Profile, ext llm.Extraction) models.Profile {
	out := current
	if current.Goals != nil {
		out.Goals = make(models.StringList, len(current.Goals))
		copy(out.Goals, current.Goals)
	}

	if !ext.HasNewInfo {
		return out
	}

	overwriteString(&out.FirstName, ext.FirstName)
	overwriteInt(&out.Age, ext.Age)
	overwriteString(&out.Gender, ext.Gender)
	overwriteString(&out.Role, ext.Role)
	overwriteString(&out.Industry, ext.Industry)
	overwriteInt(&out.TeamSize, ext.TeamSize)
	overwriteInt(&out.LeadershipYears, ext.LeadershipYears)

	for _, g := range ext.Goals {
		if !out.Goals.Contains(g) {
			out.Goals = append(out.Goals, g)
		}
	}

	return out
}

func overwriteString(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

func overwriteInt(dst **int, v *int) {
	if v != nil {
		i := *v
		*dst = &i
	}
}

// IsComplete gates the onboarding flow: a known role or team size is
// enough.
func IsComplete(p models.Profile) bool {
	return p.Role != nil || p.TeamSize != nil
}

// Changed reports whether merge produced a different profile.
func Changed(before, after models.Profile) bool {
	return !equalString(before.FirstName, after.FirstName) ||
		!equalInt(before.Age, after.Age) ||
		!equalString(before.Gender, after.Gender) ||
		!equalString(before.Role, after.Role) ||
		!equalString(before.Industry, after.Industry) ||
		!equalInt(before.TeamSize, after.TeamSize) ||
		!equalInt(before.LeadershipYears, after.LeadershipYears) ||
		len(before.Goals) != len(after.Goals)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
