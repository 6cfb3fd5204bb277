package services

import (
	"context"

	"github.com/autisahara/companion/internal/models"
)

// StatusClient reads authoritative state. Implementations classify every
// failure as AuthInvalid, Unreachable or ServerError.
type StatusClient interface {
	FetchChildren(ctx context.Context, token string) ([]models.ChildProfile, error)
	FetchAssessmentStatus(ctx context.Context, childID int64, token string) (models.AssessmentStatus, error)
	FetchCurriculum(ctx context.Context, childID int64, token string) (*models.CurriculumProgress, error)
}

// AuthClient signs parents in and creates their accounts. Both return the
// access token; RegisterParent may return "" when the server issues none.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	RegisterParent(ctx context.Context, signup models.ParentSignup) (string, error)
}

type SubmissionClient interface {
	SubmitRegistration(ctx context.Context, token string, payload any, idempotencyKey string) (string, error)
	// SubmitAssessment sends the parent-confirmed assessment of a child for
	// doctor review and returns the resulting status.
	SubmitAssessment(ctx context.Context, token string, childID int64) (models.AssessmentStatus, error)
}
