package main

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/models"
	"github.com/autisahara/companion/internal/services"
	"github.com/autisahara/companion/internal/utils"
)

func (o *rootOptions) print(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail prints err as a JSON document and returns it so the exit code is
// non-zero.
func (o *rootOptions) fail(ctx context.Context, a *app, err error) error {
	return o.failWith(ctx, a, err, nil)
}

// failWith is fail with extra fields merged into the document.
func (o *rootOptions) failWith(ctx context.Context, a *app, err error, extra map[string]any) error {
	lang := a.language(ctx)
	doc := map[string]any{"error": err.Error()}
	if key := errorKey(err); key != "" {
		doc["message"] = utils.T(lang, key)
	}
	if ve, ok := services.AsValidationError(err); ok {
		doc["section"] = ve.SectionID
		doc["fields"] = ve.Fields
	}
	if ie, ok := services.AsIncompleteError(err); ok {
		doc["missing"] = ie.Missing
	}
	if services.IsAuthInvalid(err) {
		doc["step"] = models.StepReauthRequired
	}
	for k, v := range extra {
		doc[k] = v
	}
	if perr := o.print(doc); perr != nil {
		a.log.Warn("print error document", zap.Error(perr))
	}
	return err
}

func errorKey(err error) string {
	switch {
	case services.IsAuthInvalid(err):
		return "step.reauth_required"
	case services.IsUnreachable(err):
		return "error.unreachable"
	case services.IsStorage(err):
		return "error.storage"
	}
	if _, ok := services.AsValidationError(err); ok {
		return "error.validation"
	}
	if _, ok := services.AsIncompleteError(err); ok {
		return "error.incomplete"
	}
	if _, ok := services.ServerStatus(err); ok {
		return "error.server_error"
	}
	return ""
}

func launchView(lang string, res services.LaunchResult, noteKey string) map[string]any {
	doc := map[string]any{
		"step":    res.Step,
		"message": utils.T(lang, "step."+string(res.Step)),
	}
	if res.Children != nil {
		doc["children"] = res.Children
	}
	if res.Degraded {
		doc["degraded"] = true
	}
	if res.Err != nil {
		doc["error"] = res.Err.Error()
	}
	if noteKey != "" {
		doc["note"] = utils.T(lang, noteKey)
	}
	return doc
}

type childRow struct {
	ID         int64                      `json:"id"`
	Name       string                     `json:"full_name"`
	Status     models.AssessmentState     `json:"status"`
	StatusText string                     `json:"status_text,omitempty"`
	Doctor     string                     `json:"assigned_doctor,omitempty"`
	Submitted  *time.Time                 `json:"submitted_at,omitempty"`
	Curriculum *models.CurriculumProgress `json:"curriculum,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

func dashboardView(lang string, d services.Dashboard) map[string]any {
	rows := make([]childRow, 0, len(d.Children))
	for _, c := range d.Children {
		row := childRow{
			ID:         c.Child.ID,
			Name:       c.Child.Name,
			Status:     c.Status.State,
			Doctor:     c.Status.AssignedDoctor,
			Curriculum: c.Curriculum,
		}
		switch c.Status.State {
		case models.AssessmentUnknown:
			row.StatusText = utils.T(lang, "status.unknown")
		case models.AssessmentNotSubmitted:
			row.StatusText = utils.T(lang, "status.not_submitted")
		}
		if !c.Status.CreatedAt.IsZero() {
			ts := c.Status.CreatedAt
			row.Submitted = &ts
		}
		if c.StatusErr != nil {
			row.Error = c.StatusErr.Error()
		}
		rows = append(rows, row)
	}
	step := models.StepPostLoginDashboard
	if d.Degraded {
		step = models.StepDegradedDashboard
	}
	return map[string]any{
		"step":     step,
		"message":  utils.T(lang, "step."+string(step)),
		"children": rows,
		"degraded": d.Degraded,
	}
}

func submissionView(lang string, res services.SubmissionResult) map[string]any {
	doc := map[string]any{"state": res.State}
	switch res.State {
	case services.SubmissionAcknowledged:
		doc["acknowledged_id"] = res.AcknowledgedID
		doc["replayed"] = res.Replayed
		doc["message"] = utils.T(lang, "submission.acknowledged")
	}
	return doc
}
