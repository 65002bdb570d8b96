package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	CompanyID    *string   `json:"companyId"`
	AuthProvider string    `json:"authProvider"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile holds the personalization facts of a user. Nil scalar fields are
// unknown, not empty.
type Profile struct {
	UserID             string     `json:"userId"`
	FirstName          *string    `json:"firstName"`
	Age                *int       `json:"age"`
	Gender             *string    `json:"gender"`
	Role               *string    `json:"role"`
	Industry           *string    `json:"industry"`
	TeamSize           *int       `json:"teamSize"`
	LeadershipYears    *int       `json:"leadershipYears"`
	Goals              StringList `json:"goals"`
	PreferredLanguage  string     `json:"preferredLanguage"`
	IndividualPrompt   *string    `json:"individualPrompt"`
	OnboardingComplete bool       `json:"onboardingComplete"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type Company struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LogoURL         *string   `json:"logoUrl"`
	AccentColor     *string   `json:"accentColor"`
	CorporatePrompt *string   `json:"corporatePrompt"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ChatType string

const (
	ChatTypeGeneral           ChatType = "general"
	ChatTypeOnboarding        ChatType = "onboarding"
	ChatTypeProfileReflection ChatType = "profile_reflection"
	ChatTypeKIBriefing        ChatType = "ki_briefing"
	ChatTypePackage           ChatType = "package"
)

// IsSingleton reports whether a user owns at most one session of this type.
func (t ChatType) IsSingleton() bool {
	switch t {
	case ChatTypeOnboarding, ChatTypeProfileReflection, ChatTypeKIBriefing:
		return true
	}
	return false
}

func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeGeneral, ChatTypeOnboarding, ChatTypeProfileReflection, ChatTypeKIBriefing, ChatTypePackage:
		return true
	}
	return false
}

type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     *string   `json:"title"`
	ChatType  ChatType  `json:"chatType"`
	PackageID *string   `json:"packageId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Metadata  JSONMap     `json:"metadata"`
	CreatedAt time.Time   `json:"createdAt"`
}

type LearningPackage struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	DurationDays int       `json:"durationDays"`
	UnitsPerDay  int       `json:"unitsPerDay"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LearningUnit struct {
	ID               string `json:"id"`
	PackageID        string `json:"packageId"`
	DayIndex         int    `json:"dayIndex"`
	UnitIndex        int    `json:"unitIndex"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	ReflectionPrompt string `json:"reflectionPrompt"`
	SortOrder        int    `json:"sortOrder"`
}

type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressActive     ProgressStatus = "active"
	ProgressPaused     ProgressStatus = "paused"
	ProgressCompleted  ProgressStatus = "completed"
)

type ProgressRecord struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	PackageID      string         `json:"packageId"`
	Status         ProgressStatus `json:"status"`
	CurrentDay     int            `json:"currentDay"`
	CurrentUnit    int            `json:"currentUnit"`
	StartedAt      *time.Time     `json:"startedAt"`
	LastAccessedAt *time.Time     `json:"lastAccessedAt"`
	CompletedAt    *time.Time     `json:"completedAt"`
	ChatSessionID  *string        `json:"chatSessionId"`
}

// ProgressWithPackage joins a progress row with the package fields the
// personalization and analytics layers need.
type ProgressWithPackage struct {
	ProgressRecord
	PackageTitle    string `json:"packageTitle"`
	PackageCategory string `json:"packageCategory"`
	DurationDays    int    `json:"durationDays"`
	UnitsPerDay     int    `json:"unitsPerDay"`
}

type RoutineFrequency string

const (
	FrequencyDaily   RoutineFrequency = "daily"
	FrequencyWeekly  RoutineFrequency = "weekly"
	FrequencyMonthly RoutineFrequency = "monthly"
	FrequencyCustom  RoutineFrequency = "custom"
)

func (f RoutineFrequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	}
	return false
}

type RoutineStatus string

const (
	RoutineActive    RoutineStatus = "active"
	RoutinePaused    RoutineStatus = "paused"
	RoutineCompleted RoutineStatus = "completed"
)

type Routine struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Frequency   RoutineFrequency `json:"frequency"`
	Target      *int             `json:"target"`
	Status      RoutineStatus    `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type RoutineEntry struct {
	ID        string    `json:"id"`
	RoutineID string    `json:"routineId"`
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
	Note      *string   `json:"note"`
}

type DocumentCategory string

const (
	DocumentPersonal DocumentCategory = "personal"
	DocumentCompany  DocumentCategory = "company"
)

type Document struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	CompanyID     *string          `json:"companyId"`
	Filename      string           `json:"filename"`
	FileType      string           `json:"fileType"`
	SizeBytes     int64            `json:"sizeBytes"`
	Category      DocumentCategory `json:"category"`
	ExtractedText string           `json:"extractedText"`
	Metadata      JSONMap          `json:"metadata"`
	UploadedAt    time.Time        `json:"uploadedAt"`
}

type CacheEntry struct {
	SubjectID string    `json:"subjectId"`
	CacheKey  string    `json:"cacheKey"`
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expiresAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AuditLogEntry struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actorId"`
	Action    string    `json:"action"`
	TargetID  *string   `json:"targetId"`
	Details   JSONMap   `json:"details"`
	IPAddress *string   `json:"ipAddress"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatActivity counts a user's sessions and messages touched since a cutoff.
type ChatActivity struct {
	Sessions     int `json:"sessions"`
	Messages     int `json:"messages"`
	UserMessages int `json:"userMessages"`
}

// PackageActivity is one (user, package) pair accessed within a window.
type PackageActivity struct {
	UserID       string `json:"userId"`
	PackageID    string `json:"packageId"`
	PackageTitle string `json:"packageTitle"`
}

// RoutineActivity is one user's completed entry count for a routine title
// within a window.
type RoutineActivity struct {
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Completed int    `json:"completed"`
}

// AuditFilter selects audit entries. Zero fields match everything.
type AuditFilter struct {
	ActorIDs []string
	Action   string
	Since    time.Time
	Limit    int
}
