package analytics

import (
	"sort"

	"github.com/coachly/backend/internal/storage/models"
)

const popularityLimit = 10

type Popularity struct {
	Title string `json:"title"`
	Users int    `json:"users"`
}

// CompanyRollup is the computed part of a company summary.
type CompanyRollup struct {
	TotalUsers      int          `json:"totalUsers"`
	ActiveUsers     int          `json:"activeUsers"`
	ChatUsers       int          `json:"chatUsers"`
	LearningUsers   int          `json:"learningUsers"`
	PopularPackages []Popularity `json:"popularPackages"`
	PopularRoutines []Popularity `json:"popularRoutines"`
}

// Rollup merges the activity signals of one window. Active users are the
// union of chat and package activity by user id; popularity counts distinct
// users per package and per routine title.
func Rollup(totalUsers int, chatUsers []string, packages []models.PackageActivity, routines []models.RoutineActivity) CompanyRollup {
	active := make(map[string]struct{}, len(chatUsers))
	for _, id := range chatUsers {
		active[id] = struct{}{}
	}

	learning := make(map[string]struct{})
	packageUsers := make(map[string]map[string]struct{})
	packageTitles := make(map[string]string)
	for _, a := range packages {
		active[a.UserID] = struct{}{}
		learning[a.UserID] = struct{}{}
		addUser(packageUsers, a.PackageID, a.UserID)
		packageTitles[a.PackageID] = a.PackageTitle
	}

	routineUsers := make(map[string]map[string]struct{})
	for _, a := range routines {
		if a.Completed > 0 {
			addUser(routineUsers, a.Title, a.UserID)
		}
	}

	return CompanyRollup{
		TotalUsers:      totalUsers,
		ActiveUsers:     len(active),
		ChatUsers:       len(distinct(chatUsers)),
		LearningUsers:   len(learning),
		PopularPackages: rank(packageUsers, func(id string) string { return packageTitles[id] }),
		PopularRoutines: rank(routineUsers, func(title string) string { return title }),
	}
}

func addUser(m map[string]map[string]struct{}, key, userID string) {
	users, ok := m[key]
	if !ok {
		users = make(map[string]struct{})
		m[key] = users
	}
	users[userID] = struct{}{}
}

func distinct(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// rank sorts by distinct users descending, then title, and keeps the top
// entries.
func rank(m map[string]map[string]struct{}, title func(string) string) []Popularity {
	out := make([]Popularity, 0, len(m))
	for key, users := range m {
		out = append(out, Popularity{Title: title(key), Users: len(users)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Users != out[j].Users {
			return out[i].Users > out[j].Users
		}
		return out[i].Title < out[j].Title
	})
	if len(out) > popularityLimit {
		out = out[:popularityLimit]
	}
	return out
}
