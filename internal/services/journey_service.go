package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/autisahara/companion/internal/fetch"
	"github.com/autisahara/companion/internal/middleware"
	"github.com/autisahara/companion/internal/models"
)

const (
	defaultFetchAttempts = 2
	defaultRetryInitial  = 300 * time.Millisecond
	defaultFanOut        = 4
	// defaultClockSkew tolerates a device clock running ahead of the server.
	defaultClockSkew = 5 * time.Minute
)

type JourneyConfig struct {
	// FetchAttempts is the total number of tries for a retryable fetch.
	FetchAttempts int
	RetryInitial  time.Duration
	// FanOut bounds the concurrent per-child fetches of the dashboard.
	FanOut int
	// ClockSkew is how long past its exp a JWT is still sent to the server,
	// which has the final say.
	ClockSkew time.Duration
}

// JourneyService runs launches and builds the dashboard. Remote fetches run
// outside mu; decisions and their side effects run under it.
type JourneyService struct {
	mu       sync.Mutex
	session  *SessionContext
	client   StatusClient
	tracker  *fetch.Tracker
	log      *zap.Logger
	now      func() time.Time
	attempts uint
	initial  time.Duration
	fanOut   int
	skew     time.Duration
}

func NewJourneyService(session *SessionContext, client StatusClient, cfg JourneyConfig, log *zap.Logger) *JourneyService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &JourneyService{
		session:  session,
		client:   client,
		tracker:  fetch.NewTracker(),
		log:      log.Named("journey"),
		now:      func() time.Time { return time.Now().UTC() },
		attempts: defaultFetchAttempts,
		initial:  defaultRetryInitial,
		fanOut:   defaultFanOut,
		skew:     defaultClockSkew,
	}
	if cfg.FetchAttempts > 0 {
		s.attempts = uint(cfg.FetchAttempts)
	}
	if cfg.RetryInitial > 0 {
		s.initial = cfg.RetryInitial
	}
	if cfg.FanOut > 0 {
		s.fanOut = cfg.FanOut
	}
	if cfg.ClockSkew > 0 {
		s.skew = cfg.ClockSkew
	}
	return s
}

// SelectLanguage stores the language and moves on to sign-in.
func (s *JourneyService) SelectLanguage(ctx context.Context, lang models.Language) (models.JourneyStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.SetLanguage(ctx, lang); err != nil {
		return models.StepLanguageSelect, err
	}
	return models.StepOnboardingAuth, nil
}

// Launch decides where the user should be. The remote is only called when a
// token is present. It returns fetch.ErrSuperseded when a newer launch
// overtook this one; the caller should drop the result.
func (s *JourneyService) Launch(ctx context.Context) (LaunchResult, error) {
	sess := s.session.Load(ctx)
	if !sess.HasToken() {
		return LaunchResult{Step: Decide(sess, nil).Step}, nil
	}

	snap, err := s.snapshot(ctx, sess.Token)
	if err != nil {
		return LaunchResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.session.Load(ctx)
	if cur.Token != sess.Token {
		if !cur.HasToken() {
			return LaunchResult{Step: Decide(cur, nil).Step}, nil
		}
		return LaunchResult{}, fetch.ErrSuperseded
	}

	d := Decide(cur, &snap)
	res := LaunchResult{Step: d.Step, Err: snap.Err}
	if err := s.apply(ctx, d); err != nil {
		s.log.Warn("apply effect", zap.Stringer("effect", d.Effect), zap.Error(err))
	}
	switch d.Step {
	case models.StepPostLoginDashboard, models.StepRegistrationForm:
		res.Children = snap.Children
		s.cacheChildren(ctx, snap.Children)
	case models.StepDegradedDashboard:
		res.Children, _ = s.cachedChildren(ctx)
		res.Degraded = true
	}
	s.log.Info("launch", zap.String("step", string(d.Step)), zap.Bool("degraded", res.Degraded))
	return res, nil
}

// snapshot fetches the child list. A JWT expired by more than the clock skew
// short-circuits to AuthInvalid. Only supersession is returned as an error; every other
// failure travels in the snapshot.
func (s *JourneyService) snapshot(ctx context.Context, token string) (RemoteSnapshot, error) {
	if middleware.TokenExpired(token, s.now().Add(-s.skew)) {
		return RemoteSnapshot{Err: NewAuthInvalidError("token expired")}, nil
	}
	children, err := fetch.Do(ctx, s.tracker, "children", func(ctx context.Context) ([]models.ChildProfile, error) {
		return withRetry(ctx, s.attempts, s.initial, func() ([]models.ChildProfile, error) {
			return s.client.FetchChildren(ctx, token)
		})
	})
	if errors.Is(err, fetch.ErrSuperseded) {
		return RemoteSnapshot{}, err
	}
	if err != nil {
		s.log.Info("children fetch failed", zap.Error(err))
		return RemoteSnapshot{Err: err}, nil
	}
	return RemoteSnapshot{Children: children}, nil
}

func (s *JourneyService) apply(ctx context.Context, d Decision) error {
	switch d.Effect {
	case EffectClearSession:
		return s.session.Invalidate(ctx)
	}
	return nil
}

// Dashboard lists every child with its assessment status and curriculum day.
// A per-child failure shows as AssessmentUnknown; only AuthInvalid fails the
// whole dashboard, after clearing the session.
func (s *JourneyService) Dashboard(ctx context.Context) (Dashboard, error) {
	sess := s.session.Load(ctx)
	if !sess.HasToken() {
		return Dashboard{}, NewAuthInvalidError("not signed in")
	}
	snap, err := s.snapshot(ctx, sess.Token)
	if err != nil {
		return Dashboard{}, err
	}
	if snap.Err != nil {
		if IsAuthInvalid(snap.Err) {
			s.invalidate(ctx)
			return Dashboard{}, snap.Err
		}
		cached, _ := s.cachedChildren(ctx)
		out := Dashboard{Degraded: true, Children: make([]ChildDashboard, 0, len(cached))}
		for _, c := range cached {
			out.Children = append(out.Children, ChildDashboard{
				Child:     c,
				Status:    models.AssessmentStatus{State: models.AssessmentUnknown},
				StatusErr: snap.Err,
			})
		}
		return out, nil
	}

	s.mu.Lock()
	cur := s.session.Load(ctx)
	if cur.Token != sess.Token {
		s.mu.Unlock()
		if !cur.HasToken() {
			return Dashboard{}, NewAuthInvalidError("signed out during refresh")
		}
		return Dashboard{}, fetch.ErrSuperseded
	}
	s.cacheChildren(ctx, snap.Children)
	s.mu.Unlock()

	rows := make([]ChildDashboard, len(snap.Children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, child := range snap.Children {
		g.Go(func() error {
			row, err := s.childRow(gctx, child, sess.Token)
			rows[i] = row
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, fetch.ErrSuperseded) {
			return Dashboard{}, err
		}
		s.invalidate(ctx)
		return Dashboard{}, err
	}

	out := Dashboard{Children: rows}
	for _, r := range rows {
		if r.StatusErr != nil {
			out.Degraded = true
			break
		}
	}
	return out, nil
}

// childRow returns an error only for failures that must abort the
// dashboard: AuthInvalid and supersession.
func (s *JourneyService) childRow(ctx context.Context, child models.ChildProfile, token string) (ChildDashboard, error) {
	row := ChildDashboard{Child: child}
	id := strconv.FormatInt(child.ID, 10)

	status, err := fetch.Do(ctx, s.tracker, "assessment:"+id, func(ctx context.Context) (models.AssessmentStatus, error) {
		return withRetry(ctx, s.attempts, s.initial, func() (models.AssessmentStatus, error) {
			return s.client.FetchAssessmentStatus(ctx, child.ID, token)
		})
	})
	if err != nil {
		if IsAuthInvalid(err) || errors.Is(err, fetch.ErrSuperseded) {
			return row, err
		}
		s.log.Info("assessment status unavailable", zap.Int64("child", child.ID), zap.Error(err))
		status = models.AssessmentStatus{State: models.AssessmentUnknown}
		row.StatusErr = err
	}
	row.Status = status

	cur, err := fetch.Do(ctx, s.tracker, "curriculum:"+id, func(ctx context.Context) (*models.CurriculumProgress, error) {
		return withRetry(ctx, s.attempts, s.initial, func() (*models.CurriculumProgress, error) {
			return s.client.FetchCurriculum(ctx, child.ID, token)
		})
	})
	if err != nil {
		if IsAuthInvalid(err) || errors.Is(err, fetch.ErrSuperseded) {
			return row, err
		}
		s.log.Info("curriculum unavailable", zap.Int64("child", child.ID), zap.Error(err))
		cur = nil
	}
	row.Curriculum = cur
	return row, nil
}

func (s *JourneyService) invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.Invalidate(ctx); err != nil {
		s.log.Warn("invalidate session", zap.Error(err))
	}
}

func (s *JourneyService) cacheChildren(ctx context.Context, children []models.ChildProfile) {
	if children == nil {
		children = []models.ChildProfile{}
	}
	raw, err := json.Marshal(children)
	if err != nil {
		return
	}
	if err := s.session.store.Set(ctx, KeyCachedChildren, string(raw)); err != nil {
		s.log.Warn("cache children", zap.Error(err))
	}
}

func (s *JourneyService) cachedChildren(ctx context.Context) ([]models.ChildProfile, bool) {
	raw, ok := s.session.read(ctx, KeyCachedChildren)
	if !ok {
		return nil, false
	}
	var out []models.ChildProfile
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Warn("undecodable children cache", zap.Error(err))
		return nil, false
	}
	return out, true
}

// retryable reports whether a fetch failure may succeed on a later try.
func retryable(err error) bool {
	if IsUnreachable(err) {
		return true
	}
	status, ok := ServerStatus(err)
	return ok && status >= 500
}

// withRetry runs op up to attempts times with exponential backoff between
// retryable failures. The error returned is always op's own last error.
func withRetry[T any](ctx context.Context, attempts uint, initial time.Duration, op func() (T, error)) (T, error) {
	if attempts <= 1 {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	var last error
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		last = err
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))
	if err != nil && last != nil {
		var zero T
		return zero, last
	}
	return v, err
}
