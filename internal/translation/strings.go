package translation

// UIStrings is the source string table of the web client.
var UIStrings = map[string]string{
	"nav.dashboard":          "Dashboard",
	"nav.chat":               "Coach",
	"nav.packages":           "Themenpakete",
	"nav.routines":           "Routinen",
	"nav.documents":          "Dokumente",
	"nav.profile":            "Profil",
	"dashboard.greeting":     "Hallo {name}, schön, dass du da bist.",
	"dashboard.summary":      "Deine Woche im Überblick",
	"dashboard.recommended":  "Empfohlene Themenpakete",
	"chat.placeholder":       "Schreib deinem Coach …",
	"chat.newSession":        "Neues Gespräch",
	"packages.start":         "Paket starten",
	"packages.continue":      "Weiterlernen",
	"packages.dayOf":         "Tag {day} von {total}",
	"routines.add":           "Routine hinzufügen",
	"routines.checkIn":       "Heute erledigt",
	"documents.upload":       "Dokument hochladen",
	"documents.personal":     "Persönliche Dokumente",
	"documents.company":      "Unternehmensdokumente",
	"profile.onboardingHint": "Erzähl deinem Coach von dir, damit er dich besser unterstützen kann.",
}
