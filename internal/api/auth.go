package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/autisahara/companion/internal/models"
	"github.com/autisahara/companion/internal/services"
)

type loginResponse struct {
	Token  string `json:"token"`
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
}

// Login exchanges credentials for an access token. Both {"token": ...} and
// {"tokens": {"access": ...}} answers are understood.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var out loginResponse
	if _, err := c.call(ctx, request{method: http.MethodPost, path: "/api/auth/login/", body: body}, &out); err != nil {
		if isStatus(err, http.StatusBadRequest) {
			return "", services.NewAuthInvalidError("invalid credentials")
		}
		return "", err
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		token = strings.TrimSpace(out.Tokens.Access)
	}
	if token == "" {
		return "", malformed("login answer carries no token")
	}
	return token, nil
}

// RegisterParent creates a parent account. Field errors in a 400 answer come
// back as a services.ValidationError keyed by field name.
func (c *Client) RegisterParent(ctx context.Context, signup models.ParentSignup) (string, error) {
	var out loginResponse
	var fieldErrs map[string]any
	r := request{method: http.MethodPost, path: "/api/auth/register/parent/", body: signup, errOut: &fieldErrs}
	if _, err := c.call(ctx, r, &out); err != nil {
		if isStatus(err, http.StatusBadRequest) {
			if verr := services.NewFieldErrors(fieldMessages(fieldErrs)); verr != nil {
				return "", verr
			}
		}
		return "", err
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		token = strings.TrimSpace(out.Tokens.Access)
	}
	return token, nil
}

// fieldMessages flattens {"email": ["taken"], "phone": "too long"} into one
// message per field. Generic keys such as detail are left out.
func fieldMessages(raw map[string]any) map[string]string {
	out := map[string]string{}
	for field, v := range raw {
		if field == "detail" || field == "error" || field == "non_field_errors" {
			continue
		}
		switch msg := v.(type) {
		case string:
			out[field] = msg
		case []any:
			parts := make([]string, 0, len(msg))
			for _, p := range msg {
				if s, ok := p.(string); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				out[field] = strings.Join(parts, " ")
			}
		}
	}
	return out
}
