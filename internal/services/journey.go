package services

import (
	"github.com/autisahara/companion/internal/models"
)

// Decide maps the session and the remote snapshot to the next step. It is
// pure: side effects are returned in the Decision for the caller to apply.
//
// Without a token the snapshot is ignored. A nil snapshot with a token means
// the remote state is not known, which routes to the degraded dashboard.
func Decide(session models.Session, snap *RemoteSnapshot) Decision {
	if !session.HasToken() {
		return Decision{Step: models.StepLanguageSelect}
	}
	if snap == nil {
		return Decision{Step: models.StepDegradedDashboard}
	}
	if snap.Err != nil {
		if IsAuthInvalid(snap.Err) {
			return Decision{Step: models.StepReauthRequired, Effect: EffectClearSession}
		}
		return Decision{Step: models.StepDegradedDashboard}
	}
	if len(snap.Children) == 0 {
		return Decision{Step: models.StepRegistrationForm}
	}
	return Decision{Step: models.StepPostLoginDashboard}
}
