package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/models"
)

// SubmissionPipeline pushes the merged registration once. Attempts are
// serialized; the acknowledged id and the idempotency key are persisted so a
// restart never produces a duplicate registration.
type SubmissionPipeline struct {
	mu      sync.Mutex
	drafts  *DraftAccumulator
	session *SessionContext
	client  SubmissionClient
	log     *zap.Logger
	idGen   func() string
	state   SubmissionState
}

func NewSubmissionPipeline(drafts *DraftAccumulator, session *SessionContext, client SubmissionClient, log *zap.Logger) *SubmissionPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionPipeline{
		drafts:  drafts,
		session: session,
		client:  client,
		log:     log.Named("submission"),
		idGen:   uuid.NewString,
		state:   SubmissionDraft,
	}
}

// State is the state of the latest attempt.
func (p *SubmissionPipeline) State() SubmissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *SubmissionPipeline) group() string {
	return p.drafts.Schema().Group
}

// Submit runs one attempt. Without a token or with an incomplete form the
// attempt stays in Draft. A remote failure leaves the drafts untouched; an
// AuthInvalid failure also invalidates the session.
func (p *SubmissionPipeline) Submit(ctx context.Context) (SubmissionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	group := p.group()

	if id, ok := p.session.read(ctx, acknowledgedKey(group)); ok && strings.TrimSpace(id) != "" {
		p.state = SubmissionAcknowledged
		return SubmissionResult{State: p.state, AcknowledgedID: id, Replayed: true}, nil
	}

	sess := p.session.Load(ctx)
	if !sess.HasToken() {
		p.state = SubmissionDraft
		return SubmissionResult{State: p.state}, NewAuthInvalidError("not signed in")
	}
	payload, err := p.drafts.BuildPayload(ctx)
	if err != nil {
		p.state = SubmissionDraft
		return SubmissionResult{State: p.state}, err
	}
	key, err := p.idempotencyKey(ctx, group)
	if err != nil {
		p.state = SubmissionDraft
		return SubmissionResult{State: p.state}, err
	}

	p.state = SubmissionSubmitting
	p.log.Info("submitting", zap.String("group", group), zap.Ints("sections", payload.SectionIDs()))
	id, err := p.client.SubmitRegistration(ctx, sess.Token, payload, key)
	if err != nil {
		p.state = SubmissionFailed
		p.log.Warn("submission failed", zap.Error(err))
		if IsAuthInvalid(err) {
			if ierr := p.session.Invalidate(ctx); ierr != nil {
				p.log.Warn("invalidate after auth failure", zap.Error(ierr))
			}
		}
		return SubmissionResult{State: p.state}, err
	}

	p.state = SubmissionAcknowledged
	res := SubmissionResult{State: p.state, AcknowledgedID: id}
	// Without the marker the drafts stay, and a retry replays the same
	// idempotency key.
	if err := p.session.store.Set(ctx, acknowledgedKey(group), id); err != nil {
		p.log.Warn("persist acknowledgment", zap.Error(err))
		return res, err
	}
	if err := p.drafts.ClearSections(ctx, payload.SectionIDs()...); err != nil {
		p.log.Warn("clear drafts", zap.Error(err))
	}
	if err := p.drafts.ClearMedia(ctx); err != nil {
		p.log.Warn("clear media reference", zap.Error(err))
	}
	if err := p.session.store.Remove(ctx, idempotencyKey(group)); err != nil {
		p.log.Warn("clear idempotency key", zap.Error(err))
	}
	return res, nil
}

// Reset forgets an acknowledged submission so another child can be
// registered.
func (p *SubmissionPipeline) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = SubmissionDraft
	if err := p.session.store.Remove(ctx, acknowledgedKey(p.group())); err != nil {
		return err
	}
	return p.session.store.Remove(ctx, idempotencyKey(p.group()))
}

func (p *SubmissionPipeline) idempotencyKey(ctx context.Context, group string) (string, error) {
	k := idempotencyKey(group)
	v, ok, err := p.session.store.Get(ctx, k)
	if err != nil {
		return "", err
	}
	if ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	v = p.idGen()
	if err := p.session.store.Set(ctx, k, v); err != nil {
		return "", err
	}
	return v, nil
}

// ConfirmAssessment sends a child's assessment for doctor review once the
// parent has confirmed the declaration. Nothing is sent without the
// confirmation or a token; an AuthInvalid answer invalidates the session.
func (p *SubmissionPipeline) ConfirmAssessment(ctx context.Context, childID int64, confirmed bool) (models.AssessmentStatus, error) {
	problems := map[string]string{}
	if childID <= 0 {
		problems["child_id"] = "required"
	}
	if !confirmed {
		problems["parent_confirmed"] = "declaration must be confirmed"
	}
	if err := newValidationError(0, problems); err != nil {
		return models.AssessmentStatus{}, err
	}
	sess := p.session.Load(ctx)
	if !sess.HasToken() {
		return models.AssessmentStatus{}, NewAuthInvalidError("not signed in")
	}
	status, err := p.client.SubmitAssessment(ctx, sess.Token, childID)
	if err != nil {
		p.log.Warn("assessment submit failed", zap.Int64("child", childID), zap.Error(err))
		if IsAuthInvalid(err) {
			if ierr := p.session.Invalidate(ctx); ierr != nil {
				p.log.Warn("invalidate after auth failure", zap.Error(ierr))
			}
		}
		return models.AssessmentStatus{}, err
	}
	p.log.Info("assessment submitted", zap.Int64("child", childID), zap.String("state", string(status.State)))
	return status, nil
}
