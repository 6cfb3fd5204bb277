package services

import (
	"github.com/autisahara/companion/internal/models"
)

// RemoteSnapshot is the result of one children fetch. Err holds the
// classified failure; Children is meaningful only when Err is nil.
type RemoteSnapshot struct {
	Children []models.ChildProfile
	Err      error
}

// Effect is a side effect the caller of Decide must apply.
type Effect int

const (
	EffectNone Effect = iota
	// EffectClearSession removes the token and every cached remote value.
	EffectClearSession
)

func (e Effect) String() string {
	switch e {
	case EffectClearSession:
		return "clear_session"
	default:
		return "none"
	}
}

type Decision struct {
	Step   models.JourneyStep
	Effect Effect
}

// LaunchResult is what a launch hands to the presentation layer.
type LaunchResult struct {
	Step     models.JourneyStep
	Children []models.ChildProfile
	// Degraded is set when Children came from the local cache.
	Degraded bool
	// Err is the remote failure behind a degraded or reauth step.
	Err error
}

// ChildDashboard is one child's row on the dashboard. Status is
// AssessmentUnknown when it could not be fetched.
type ChildDashboard struct {
	Child      models.ChildProfile
	Status     models.AssessmentStatus
	Curriculum *models.CurriculumProgress
	StatusErr  error
}

type Dashboard struct {
	Children []ChildDashboard
	Degraded bool
}

type SubmissionState string

const (
	SubmissionDraft        SubmissionState = "draft"
	SubmissionSubmitting   SubmissionState = "submitting"
	SubmissionAcknowledged SubmissionState = "acknowledged"
	SubmissionFailed       SubmissionState = "failed"
)

type SubmissionResult struct {
	State          SubmissionState
	AcknowledgedID string
	// Replayed is set when the acknowledgment was already on record and
	// nothing was sent.
	Replayed bool
}
