package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/autisahara/companion/internal/models"
	"github.com/autisahara/companion/internal/services"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// SubmitRegistration posts the merged registration payload and returns the
// id the server assigned. The idempotency key lets the server drop a replay
// of an attempt whose answer was lost.
func (c *Client) SubmitRegistration(ctx context.Context, token string, payload any, idempotencyKey string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", services.NewAuthInvalidError(errEmptyToken.Error())
	}
	hdr := http.Header{}
	if idempotencyKey != "" {
		hdr.Set(HeaderIdempotencyKey, idempotencyKey)
	}
	var out struct {
		ID any `json:"id"`
	}
	r := request{method: http.MethodPost, path: "/api/children/register/", token: token, body: payload, header: hdr}
	if _, err := c.call(ctx, r, &out); err != nil {
		return "", err
	}
	switch id := out.ID.(type) {
	case float64:
		if id > 0 {
			return strconv.FormatInt(int64(id), 10), nil
		}
	case string:
		if strings.TrimSpace(id) != "" {
			return id, nil
		}
	}
	return "", malformed("registration answer carries no id")
}

// SubmitAssessment confirms the parent declaration for a child and sends the
// assessment for review. The answer must carry a state the server can send.
func (c *Client) SubmitAssessment(ctx context.Context, token string, childID int64) (models.AssessmentStatus, error) {
	if strings.TrimSpace(token) == "" {
		return models.AssessmentStatus{}, services.NewAuthInvalidError(errEmptyToken.Error())
	}
	var wire statusWire
	path := "/api/children/" + strconv.FormatInt(childID, 10) + "/assessment/submit/"
	body := map[string]bool{"parent_confirmed": true}
	if _, err := c.call(ctx, request{method: http.MethodPost, path: path, token: token, body: body}, &wire); err != nil {
		return models.AssessmentStatus{}, err
	}
	return wire.status()
}
