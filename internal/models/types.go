package models

import "time"

// Language is the app language preference. Only English and Nepali are shipped.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageNepali  Language = "ne"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageNepali
}

// Session is the current user's authentication state. An empty Token means
// no user is signed in.
type Session struct {
	Token    string
	Language Language
}

func (s Session) HasToken() bool { return s.Token != "" }

// ParentSignup is the account a parent creates before signing in.
type ParentSignup struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// FormDraft is the persisted input of one form section.
type FormDraft struct {
	SectionID   int            `json:"section_id"`
	Fields      map[string]any `json:"fields"`
	CompletedAt time.Time      `json:"completed_at"`
}

// ChildProfile is a child registered under the signed-in parent. Owned by the
// remote service; never mutated locally.
type ChildProfile struct {
	ID          int64  `json:"id"`
	Name        string `json:"full_name"`
	AgeYears    int    `json:"age_years"`
	AgeMonths   int    `json:"age_months"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

// AssessmentState is the server-side lifecycle of a submitted assessment.
type AssessmentState string

const (
	AssessmentPending   AssessmentState = "pending"
	AssessmentInReview  AssessmentState = "in_review"
	AssessmentAccepted  AssessmentState = "accepted"
	AssessmentCompleted AssessmentState = "completed"

	// Display-only states. Never sent by the server.
	AssessmentUnknown      AssessmentState = "unknown"
	AssessmentNotSubmitted AssessmentState = "not_submitted"
)

// Remote reports whether s is one of the states the server can return.
func (s AssessmentState) Remote() bool {
	switch s {
	case AssessmentPending, AssessmentInReview, AssessmentAccepted, AssessmentCompleted:
		return true
	}
	return false
}

type AssessmentStatus struct {
	State           AssessmentState
	ParentConfirmed bool
	AssignedDoctor  string
	CreatedAt       time.Time
}

// CurriculumProgress describes the child's active therapy curriculum.
type CurriculumProgress struct {
	Name         string `json:"name"`
	CurrentDay   int    `json:"current_day"`
	DurationDays int    `json:"duration_days"`
	Status       string `json:"status"`
}

// MediaReference points at a locally captured assessment video.
type MediaReference struct {
	URI         string `json:"uri"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// JourneyStep identifies the screen the user should occupy.
type JourneyStep string

const (
	StepLanguageSelect     JourneyStep = "language_select"
	StepOnboardingAuth     JourneyStep = "onboarding_auth"
	StepPostLoginDashboard JourneyStep = "dashboard"
	StepRegistrationForm   JourneyStep = "registration_form"
	StepReauthRequired     JourneyStep = "reauth_required"
	StepDegradedDashboard  JourneyStep = "dashboard_degraded"
)
