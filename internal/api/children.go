package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/autisahara/companion/internal/models"
	"github.com/autisahara/companion/internal/services"
)

type childWire struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	AgeYears    int    `json:"age_years"`
	AgeMonths   int    `json:"age_months"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"date_of_birth"`
}

// childList accepts either a bare array or a paginated {"results": [...]}.
// Anything else, null and an object without a results array included, is
// rejected: an empty list must come from the server saying so.
type childList []childWire

func (l *childList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(b, &page); err != nil {
			return err
		}
		b = bytes.TrimSpace(page.Results)
		if len(b) == 0 {
			return errors.New("object carries no results list")
		}
	}
	if len(b) == 0 || b[0] != '[' {
		return fmt.Errorf("expected a child list, got %.20q", b)
	}
	var arr []childWire
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}

// FetchChildren lists the children registered under the token's parent.
func (c *Client) FetchChildren(ctx context.Context, token string) ([]models.ChildProfile, error) {
	if strings.TrimSpace(token) == "" {
		return nil, services.NewAuthInvalidError(errEmptyToken.Error())
	}
	var wire childList
	if _, err := c.call(ctx, request{method: http.MethodGet, path: "/api/children/", token: token}, &wire); err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, malformed("children answer carries no list")
	}
	out := make([]models.ChildProfile, 0, len(wire))
	for i, w := range wire {
		if w.ID <= 0 || strings.TrimSpace(w.FullName) == "" {
			return nil, malformed("child %d has no id or name", i)
		}
		out = append(out, models.ChildProfile{
			ID:          w.ID,
			Name:        w.FullName,
			AgeYears:    w.AgeYears,
			AgeMonths:   w.AgeMonths,
			Gender:      w.Gender,
			DateOfBirth: w.DateOfBirth,
		})
	}
	return out, nil
}

type statusWire struct {
	Status          string  `json:"status"`
	ParentConfirmed bool    `json:"parent_confirmed"`
	DoctorName      *string `json:"doctor_name"`
	AssignedDoctor  any     `json:"assigned_doctor"`
	SubmittedAt     *string `json:"submitted_at"`
	CreatedAt       *string `json:"created_at"`
}

// notSubmittedDetail is the detail the status endpoint sends with its 404
// when the child exists but has no assessment yet.
const notSubmittedDetail = "assessment not submitted yet"

// FetchAssessmentStatus reads the assessment lifecycle of one child. A 404
// carrying the not-submitted detail maps to AssessmentNotSubmitted; any other
// 404 (unknown child, child of another parent) stays a ServerError.
func (c *Client) FetchAssessmentStatus(ctx context.Context, childID int64, token string) (models.AssessmentStatus, error) {
	if strings.TrimSpace(token) == "" {
		return models.AssessmentStatus{}, services.NewAuthInvalidError(errEmptyToken.Error())
	}
	var wire statusWire
	path := "/api/children/" + strconv.FormatInt(childID, 10) + "/assessment/status/"
	if _, err := c.call(ctx, request{method: http.MethodGet, path: path, token: token}, &wire); err != nil {
		if isNotSubmitted(err) {
			return models.AssessmentStatus{State: models.AssessmentNotSubmitted}, nil
		}
		return models.AssessmentStatus{}, err
	}
	return wire.status()
}

func isNotSubmitted(err error) bool {
	if !isStatus(err, http.StatusNotFound) {
		return false
	}
	se, _ := services.AsServiceError(err)
	return strings.EqualFold(strings.TrimSpace(se.Message), notSubmittedDetail)
}

// status converts the wire form, rejecting states the server never sends.
func (wire statusWire) status() (models.AssessmentStatus, error) {
	state := models.AssessmentState(wire.Status)
	if !state.Remote() {
		return models.AssessmentStatus{}, malformed("unknown assessment status %q", wire.Status)
	}
	out := models.AssessmentStatus{State: state, ParentConfirmed: wire.ParentConfirmed}
	switch {
	case wire.DoctorName != nil:
		out.AssignedDoctor = *wire.DoctorName
	case wire.AssignedDoctor != nil:
		out.AssignedDoctor = stringify(wire.AssignedDoctor)
	}
	for _, ts := range []*string{wire.SubmittedAt, wire.CreatedAt} {
		if ts == nil || *ts == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, *ts); err == nil {
			out.CreatedAt = t
			break
		}
	}
	return out, nil
}

type curriculumWire struct {
	Title        string `json:"curriculum_title"`
	Name         string `json:"curriculum_name"`
	Duration     int    `json:"curriculum_duration"`
	DurationDays int    `json:"duration_days"`
	CurrentDay   int    `json:"current_day"`
	Status       string `json:"status"`
}

// FetchCurriculum returns the active curriculum of a child, or nil when none
// is assigned. Without an active one the most recent entry is reported.
func (c *Client) FetchCurriculum(ctx context.Context, childID int64, token string) (*models.CurriculumProgress, error) {
	if strings.TrimSpace(token) == "" {
		return nil, services.NewAuthInvalidError(errEmptyToken.Error())
	}
	var wire struct {
		ChildID   int64            `json:"child_id"`
		Curricula []curriculumWire `json:"curricula"`
	}
	path := "/api/therapy/child/" + strconv.FormatInt(childID, 10) + "/curriculum/"
	if _, err := c.call(ctx, request{method: http.MethodGet, path: path, token: token}, &wire); err != nil {
		return nil, err
	}
	if wire.ChildID != 0 && wire.ChildID != childID {
		return nil, malformed("curriculum for child %d, asked %d", wire.ChildID, childID)
	}
	if len(wire.Curricula) == 0 {
		return nil, nil
	}
	pick := wire.Curricula[0]
	for _, cw := range wire.Curricula {
		if cw.Status == "active" {
			pick = cw
			break
		}
	}
	if pick.CurrentDay < 0 {
		return nil, malformed("negative current_day %d", pick.CurrentDay)
	}
	name := pick.Title
	if name == "" {
		name = pick.Name
	}
	duration := pick.Duration
	if duration == 0 {
		duration = pick.DurationDays
	}
	return &models.CurriculumProgress{Name: name, CurrentDay: pick.CurrentDay, DurationDays: duration, Status: pick.Status}, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
