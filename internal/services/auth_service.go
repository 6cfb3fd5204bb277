package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/models"
)

type AuthService struct {
	client  AuthClient
	session *SessionContext
	log     *zap.Logger
}

func NewAuthService(client AuthClient, session *SessionContext, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{client: client, session: session, log: log.Named("auth")}
}

// Login exchanges credentials for a token and persists it. The remote is not
// called when either field is blank.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	problems := map[string]string{}
	if email == "" {
		problems["email"] = "required"
	} else if !strings.Contains(email, "@") {
		problems["email"] = "not an email address"
	}
	if strings.TrimSpace(password) == "" {
		problems["password"] = "required"
	}
	if err := newValidationError(0, problems); err != nil {
		return models.Session{}, err
	}
	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.log.Info("login failed", zap.Error(err))
		return models.Session{}, err
	}
	if err := s.session.SetToken(ctx, token); err != nil {
		return models.Session{}, err
	}
	return s.session.Load(ctx), nil
}

const (
	minPasswordLen = 6
	maxPhoneLen    = 20
)

// SignupForm is what the parent types on the account screen.
type SignupForm struct {
	FullName        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// Signup creates a parent account. Input is checked locally first; a form
// with problems never reaches the remote. When the server answers with a
// token the parent is signed in right away, otherwise the returned session
// has no token and the caller proceeds to sign-in.
func (s *AuthService) Signup(ctx context.Context, form SignupForm) (models.Session, error) {
	signup := models.ParentSignup{
		FullName: strings.TrimSpace(form.FullName),
		Email:    strings.ToLower(strings.TrimSpace(form.Email)),
		Phone:    strings.TrimSpace(form.Phone),
		Password: form.Password,
	}
	problems := map[string]string{}
	if signup.FullName == "" {
		problems["full_name"] = "required"
	}
	switch {
	case signup.Email == "":
		problems["email"] = "required"
	case !strings.Contains(signup.Email, "@"):
		problems["email"] = "not an email address"
	}
	switch {
	case signup.Phone == "":
		problems["phone"] = "required"
	case len(signup.Phone) > maxPhoneLen:
		problems["phone"] = "too long"
	}
	switch {
	case strings.TrimSpace(signup.Password) == "":
		problems["password"] = "required"
	case len(signup.Password) < minPasswordLen:
		problems["password"] = "too short"
	case form.ConfirmPassword != signup.Password:
		problems["confirm_password"] = "does not match"
	}
	if err := newValidationError(0, problems); err != nil {
		return models.Session{}, err
	}

	token, err := s.client.RegisterParent(ctx, signup)
	if err != nil {
		s.log.Info("signup failed", zap.Error(err))
		return models.Session{}, err
	}
	if token != "" {
		if err := s.session.SetToken(ctx, token); err != nil {
			return models.Session{}, err
		}
	}
	return s.session.Load(ctx), nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}
