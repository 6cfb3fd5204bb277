package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/api"
	"github.com/autisahara/companion/internal/config"
	dbstore "github.com/autisahara/companion/internal/db"
	"github.com/autisahara/companion/internal/services"
	"github.com/autisahara/companion/internal/utils"
)

// app holds the wired services for one CLI invocation.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	store    services.KVStore
	session  *services.SessionContext
	journey  *services.JourneyService
	auth     *services.AuthService
	drafts   *services.DraftAccumulator
	pipeline *services.SubmissionPipeline
	closeFn  func() error
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	fresh, err := isFirstRun(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	sqlite, closeFn, err := dbstore.Open(cfg.DBPath, cfg.MigrationsDir, log)
	if err != nil {
		return nil, err
	}
	var store services.KVStore = sqlite
	if cfg.SealKey != "" {
		key, err := dbstore.ParseSealKey(cfg.SealKey)
		if err != nil {
			_ = closeFn()
			return nil, err
		}
		store = dbstore.NewSealedStore(sqlite, key, services.KeyAuthToken)
	}

	locale := cfg.DeviceLocale
	if locale == "" {
		locale = utils.DeviceLocale()
	}
	session := services.NewSessionContext(store, locale, log)
	client := api.NewClient(cfg.BaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log),
		api.WithLanguage(func() string { return string(session.Language(context.Background())) }),
	)
	drafts := services.NewDraftAccumulator(store, nil, cfg.DraftTTL, log)
	a := &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		session: session,
		journey: services.NewJourneyService(session, client, services.JourneyConfig{
			FetchAttempts: cfg.FetchAttempts,
			FanOut:        cfg.FanOut,
		}, log),
		auth:     services.NewAuthService(client, session, log),
		drafts:   drafts,
		pipeline: services.NewSubmissionPipeline(drafts, session, client, log),
		closeFn:  closeFn,
	}

	if fresh && cfg.LegacySnapshot != "" {
		n, err := importLegacy(ctx, cfg.LegacySnapshot, store, drafts, log)
		if err != nil {
			_ = closeFn()
			return nil, fmt.Errorf("import legacy snapshot: %w", err)
		}
		log.Info("legacy snapshot imported", zap.String("path", cfg.LegacySnapshot), zap.Int("keys", n))
	}
	return a, nil
}

func (a *app) Close() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

func (a *app) language(ctx context.Context) string {
	return string(a.session.Language(ctx))
}

func isFirstRun(path string) (bool, error) {
	if path == ":memory:" {
		return true, nil
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("check sqlite file: %w", err)
	}
	return true, nil
}
