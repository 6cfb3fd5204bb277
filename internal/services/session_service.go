package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/models"
	"github.com/autisahara/companion/internal/utils"
)

var supportedLanguages = []string{string(models.LanguageEnglish), string(models.LanguageNepali)}

// SessionContext owns the durable session keys. Reads never fail: a storage
// error is logged and treated as an absent value.
type SessionContext struct {
	store        KVStore
	log          *zap.Logger
	deviceLocale string
}

func NewSessionContext(store KVStore, deviceLocale string, log *zap.Logger) *SessionContext {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionContext{store: store, log: log.Named("session"), deviceLocale: deviceLocale}
}

// Load reads the current session.
func (s *SessionContext) Load(ctx context.Context) models.Session {
	return models.Session{Token: s.token(ctx), Language: s.Language(ctx)}
}

func (s *SessionContext) token(ctx context.Context) string {
	v, ok := s.read(ctx, KeyAuthToken)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Language returns the stored preference, or the device locale resolved
// against the shipped languages.
func (s *SessionContext) Language(ctx context.Context) models.Language {
	if v, ok := s.read(ctx, KeyAppLanguage); ok {
		if l := models.Language(v); l.Valid() {
			return l
		}
		s.log.Warn("ignoring stored language", zap.String("value", v))
	}
	return models.Language(utils.DetermineLocale("", s.deviceLocale, supportedLanguages, string(models.LanguageEnglish)))
}

func (s *SessionContext) SetLanguage(ctx context.Context, lang models.Language) error {
	if !lang.Valid() {
		return newValidationError(0, map[string]string{"language": "unsupported language " + string(lang)})
	}
	return s.store.Set(ctx, KeyAppLanguage, string(lang))
}

func (s *SessionContext) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return newValidationError(0, map[string]string{"token": "required"})
	}
	return s.store.Set(ctx, KeyAuthToken, token)
}

// Invalidate drops the token and every cached remote value. Drafts and the
// language preference survive so a re-login continues where the user was.
func (s *SessionContext) Invalidate(ctx context.Context) error {
	err := s.store.Remove(ctx, KeyAuthToken)
	if cerr := removePrefix(ctx, s.store, prefixCache); err == nil {
		err = cerr
	}
	if err != nil {
		s.log.Warn("invalidate session", zap.Error(err))
	}
	return err
}

// Logout is Invalidate plus every piece of user data kept on the device.
func (s *SessionContext) Logout(ctx context.Context) error {
	err := s.Invalidate(ctx)
	for _, prefix := range []string{prefixDraft, prefixSubmission} {
		if perr := removePrefix(ctx, s.store, prefix); err == nil {
			err = perr
		}
	}
	if rerr := s.store.Remove(ctx, KeyMediaReference); err == nil {
		err = rerr
	}
	return err
}

func (s *SessionContext) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("read failed, treating as absent", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}
