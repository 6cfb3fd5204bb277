package services

import (
	"errors"
	"testing"

	"github.com/autisahara/companion/internal/models"
)

func TestDecide(t *testing.T) {
	kids := []models.ChildProfile{{ID: 1, Name: "Aarav"}}
	withToken := models.Session{Token: "tok", Language: models.LanguageEnglish}

	tests := []struct {
		name   string
		sess   models.Session
		snap   *RemoteSnapshot
		step   models.JourneyStep
		effect Effect
	}{
		{name: "fresh install", sess: models.Session{}, step: models.StepLanguageSelect},
		{name: "children present", sess: withToken, snap: &RemoteSnapshot{Children: kids}, step: models.StepPostLoginDashboard},
		{name: "no children", sess: withToken, snap: &RemoteSnapshot{Children: []models.ChildProfile{}}, step: models.StepRegistrationForm},
		{name: "auth invalid", sess: withToken, snap: &RemoteSnapshot{Err: NewAuthInvalidError("expired")}, step: models.StepReauthRequired, effect: EffectClearSession},
		{name: "unreachable", sess: withToken, snap: &RemoteSnapshot{Err: NewUnreachableError(errors.New("offline"))}, step: models.StepDegradedDashboard},
		{name: "server error", sess: withToken, snap: &RemoteSnapshot{Err: NewServerError(503, "")}, step: models.StepDegradedDashboard},
		{name: "token without snapshot", sess: withToken, step: models.StepDegradedDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.sess, tt.snap)
			if d.Step != tt.step || d.Effect != tt.effect {
				t.Fatalf("Decide = %+v, want step %s effect %s", d, tt.step, tt.effect)
			}
		})
	}
}

func TestDecideWithoutTokenIgnoresSnapshot(t *testing.T) {
	snaps := []*RemoteSnapshot{
		nil,
		{},
		{Children: []models.ChildProfile{{ID: 3, Name: "A"}}},
		{Err: NewAuthInvalidError("x")},
		{Err: NewUnreachableError(errors.New("x"))},
		{Err: NewServerError(500, "")},
	}
	for _, lang := range []models.Language{"", models.LanguageEnglish, models.LanguageNepali} {
		for i, snap := range snaps {
			d := Decide(models.Session{Language: lang}, snap)
			if d.Step != models.StepLanguageSelect || d.Effect != EffectNone {
				t.Fatalf("snapshot %d lang %q: got %+v", i, lang, d)
			}
		}
	}
}

func TestDecideChildrenAlwaysDashboard(t *testing.T) {
	for n := 1; n <= 5; n++ {
		kids := make([]models.ChildProfile, n)
		for i := range kids {
			kids[i] = models.ChildProfile{ID: int64(i + 1), Name: "child"}
		}
		d := Decide(models.Session{Token: "t"}, &RemoteSnapshot{Children: kids})
		if d.Step != models.StepPostLoginDashboard {
			t.Fatalf("%d children: got %s", n, d.Step)
		}
	}
}
