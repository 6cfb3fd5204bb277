package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/autisahara/companion/internal/models"
)

type pipelineFixture struct {
	store    *memStore
	acc      *DraftAccumulator
	client   *stubSubmissionClient
	pipeline *SubmissionPipeline
}

func newPipelineFixture(t *testing.T, store *memStore) *pipelineFixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	acc := newTestAccumulator(store)
	client := &stubSubmissionClient{id: "41"}
	p := NewSubmissionPipeline(acc, NewSessionContext(store, "", log), client, log)
	n := 0
	p.idGen = func() string {
		n++
		return "idem-" + string(rune('0'+n))
	}
	return &pipelineFixture{store: store, acc: acc, client: client, pipeline: p}
}

func readyStore(t *testing.T) *memStore {
	t.Helper()
	store := newMemStore()
	store.values[KeyAuthToken] = "tok"
	fillSections(t, newTestAccumulator(store), 1, 2, 3, 4, 5, 6, 7)
	return store
}

func TestSubmitAcknowledged(t *testing.T) {
	f := newPipelineFixture(t, readyStore(t))
	require.NoError(t, f.acc.SetMedia(context.Background(), models.MediaReference{URI: "file:///v.mp4", Kind: "playing"}))

	res, err := f.pipeline.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, SubmissionAcknowledged, res.State)
	require.Equal(t, "41", res.AcknowledgedID)
	require.False(t, res.Replayed)
	require.Equal(t, SubmissionAcknowledged, f.pipeline.State())

	require.Equal(t, []string{"idem-1"}, f.client.keys)
	require.Equal(t, "Aarav Sharma", f.client.payloads[0]["full_name"])
	require.Contains(t, f.client.payloads[0], "media")

	require.Equal(t, "41", f.store.get(AcknowledgedKey(RegistrationGroup)))
	for id := 1; id <= 7; id++ {
		require.False(t, f.store.has(DraftKey(id)), "draft %d should be cleared", id)
	}
	require.False(t, f.store.has(KeyMediaReference))
	require.False(t, f.store.has(idempotencyKey(RegistrationGroup)))
	require.Equal(t, "tok", f.store.get(KeyAuthToken))
}

func TestSubmitAlreadyAcknowledgedDoesNotResend(t *testing.T) {
	f := newPipelineFixture(t, readyStore(t))
	_, err := f.pipeline.Submit(context.Background())
	require.NoError(t, err)

	again := newPipelineFixture(t, f.store.restart())
	res, err := again.pipeline.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, SubmissionAcknowledged, res.State)
	require.Equal(t, "41", res.AcknowledgedID)
	require.True(t, res.Replayed)
	require.Empty(t, again.client.keys)
}

func TestSubmitFailureKeepsDrafts(t *testing.T) {
	store := readyStore(t)
	f := newPipelineFixture(t, store)
	before, err := f.acc.BuildPayload(context.Background())
	require.NoError(t, err)

	f.client.err = NewServerError(500, "boom")
	res, err := f.pipeline.Submit(context.Background())
	require.Error(t, err)
	require.Equal(t, SubmissionFailed, res.State)

	after, err := f.acc.BuildPayload(context.Background())
	require.NoError(t, err)
	require.Equal(t, before.Sections, after.Sections)
	require.Equal(t, "tok", store.get(KeyAuthToken))
	require.False(t, store.has(AcknowledgedKey(RegistrationGroup)))
}

func TestSubmitRetryReusesIdempotencyKey(t *testing.T) {
	store := readyStore(t)
	f := newPipelineFixture(t, store)
	f.client.err = NewUnreachableError(errors.New("timeout"))
	_, err := f.pipeline.Submit(context.Background())
	require.True(t, IsUnreachable(err))

	// a restart between attempts must not mint a new key
	retry := newPipelineFixture(t, store.restart())
	retry.pipeline.idGen = func() string { return "fresh" }
	res, err := retry.pipeline.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, SubmissionAcknowledged, res.State)
	require.Equal(t, f.client.keys, retry.client.keys)
}

func TestSubmitAuthInvalidInvalidatesSession(t *testing.T) {
	store := readyStore(t)
	f := newPipelineFixture(t, store)
	f.client.err = NewAuthInvalidError("expired")

	res, err := f.pipeline.Submit(context.Background())
	require.True(t, IsAuthInvalid(err))
	require.Equal(t, SubmissionFailed, res.State)
	require.False(t, store.has(KeyAuthToken))
	require.True(t, store.has(DraftKey(1)), "drafts survive for the next sign-in")
}

func TestSubmitStaysDraftWhenNotReady(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		store := readyStore(t)
		delete(store.values, KeyAuthToken)
		f := newPipelineFixture(t, store)
		res, err := f.pipeline.Submit(context.Background())
		require.True(t, IsAuthInvalid(err))
		require.Equal(t, SubmissionDraft, res.State)
		require.Empty(t, f.client.keys)
	})
	t.Run("incomplete", func(t *testing.T) {
		store := newMemStore()
		store.values[KeyAuthToken] = "tok"
		fillSections(t, newTestAccumulator(store), 1, 2)
		f := newPipelineFixture(t, store)
		res, err := f.pipeline.Submit(context.Background())
		ie, ok := AsIncompleteError(err)
		require.True(t, ok)
		require.Equal(t, []int{3, 4, 5, 6, 7}, ie.Missing)
		require.Equal(t, SubmissionDraft, res.State)
		require.Empty(t, f.client.keys)
		require.False(t, store.has(idempotencyKey(RegistrationGroup)))
	})
}

func TestResetAllowsAnotherRegistration(t *testing.T) {
	f := newPipelineFixture(t, readyStore(t))
	_, err := f.pipeline.Submit(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.pipeline.Reset(context.Background()))
	require.False(t, f.store.has(AcknowledgedKey(RegistrationGroup)))

	fillSections(t, f.acc, 1, 2, 3, 4, 5, 6, 7)
	f.client.id = "42"
	res, err := f.pipeline.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, "42", res.AcknowledgedID)
	require.Equal(t, []string{"idem-1", "idem-2"}, f.client.keys)
}

func TestConfirmAssessment(t *testing.T) {
	store := newMemStore()
	store.values[KeyAuthToken] = "tok"
	f := newPipelineFixture(t, store)
	f.client.assessment = models.AssessmentStatus{State: models.AssessmentPending, ParentConfirmed: true}

	status, err := f.pipeline.ConfirmAssessment(context.Background(), 7, true)
	require.NoError(t, err)
	require.Equal(t, models.AssessmentPending, status.State)
	require.True(t, status.ParentConfirmed)
	require.Equal(t, []int64{7}, f.client.assessedChildren)
}

func TestConfirmAssessmentNeedsDeclarationAndToken(t *testing.T) {
	store := newMemStore()
	f := newPipelineFixture(t, store)

	_, err := f.pipeline.ConfirmAssessment(context.Background(), 7, false)
	ve, ok := AsValidationError(err)
	require.True(t, ok, "got %v", err)
	require.Contains(t, ve.Fields, "parent_confirmed")

	_, err = f.pipeline.ConfirmAssessment(context.Background(), 0, true)
	ve, ok = AsValidationError(err)
	require.True(t, ok, "got %v", err)
	require.Contains(t, ve.Fields, "child_id")

	_, err = f.pipeline.ConfirmAssessment(context.Background(), 7, true)
	require.True(t, IsAuthInvalid(err))
	require.Empty(t, f.client.assessedChildren)
}

func TestConfirmAssessmentAuthInvalidInvalidatesSession(t *testing.T) {
	store := readyStore(t)
	f := newPipelineFixture(t, store)
	f.client.assessmentErr = NewAuthInvalidError("expired")

	_, err := f.pipeline.ConfirmAssessment(context.Background(), 7, true)
	require.True(t, IsAuthInvalid(err))
	require.False(t, store.has(KeyAuthToken))
	require.True(t, store.has(DraftKey(1)))
}
