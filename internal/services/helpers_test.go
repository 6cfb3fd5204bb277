package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/autisahara/companion/internal/models"
)

// memStore is a KVStore with injectable failures.
type memStore struct {
	mu       sync.Mutex
	values   map[string]string
	failGet  map[string]bool
	failSet  map[string]bool
	setCalls int
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}, failGet: map[string]bool{}, failSet: map[string]bool{}}
}

// restart returns a new store holding only what was persisted.
func (s *memStore) restart() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newMemStore()
	for k, v := range s.values {
		out.values[k] = v
	}
	return out
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet[key] {
		return "", false, NewStorageError("get", key, errors.New("disk error"))
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.failSet[key] {
		return NewStorageError("set", key, errors.New("disk full"))
	}
	s.values[key] = value
	return nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *memStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

func (s *memStore) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

type stubStatusClient struct {
	mu           sync.Mutex
	children     []models.ChildProfile
	childrenErrs []error
	statuses     map[int64]models.AssessmentStatus
	statusErrs   map[int64]error
	curricula    map[int64]*models.CurriculumProgress
	curErrs      map[int64]error
	childCalls   int
	statusCalls  int
	tokens       []string
}

func (c *stubStatusClient) FetchChildren(_ context.Context, token string) ([]models.ChildProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.childCalls++
	c.tokens = append(c.tokens, token)
	if len(c.childrenErrs) > 0 {
		err := c.childrenErrs[0]
		c.childrenErrs = c.childrenErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]models.ChildProfile(nil), c.children...), nil
}

func (c *stubStatusClient) FetchAssessmentStatus(_ context.Context, childID int64, _ string) (models.AssessmentStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if err := c.statusErrs[childID]; err != nil {
		return models.AssessmentStatus{}, err
	}
	return c.statuses[childID], nil
}

func (c *stubStatusClient) FetchCurriculum(_ context.Context, childID int64, _ string) (*models.CurriculumProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.curErrs[childID]; err != nil {
		return nil, err
	}
	return c.curricula[childID], nil
}

func (c *stubStatusClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.childCalls
}

type stubSubmissionClient struct {
	mu       sync.Mutex
	id       string
	err      error
	keys     []string
	payloads []map[string]any

	assessment       models.AssessmentStatus
	assessmentErr    error
	assessedChildren []int64
}

func (c *stubSubmissionClient) SubmitAssessment(_ context.Context, _ string, childID int64) (models.AssessmentStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assessedChildren = append(c.assessedChildren, childID)
	if c.assessmentErr != nil {
		return models.AssessmentStatus{}, c.assessmentErr
	}
	return c.assessment, nil
}

func (c *stubSubmissionClient) SubmitRegistration(_ context.Context, _ string, payload any, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	if p, ok := payload.(*SubmissionPayload); ok {
		c.payloads = append(c.payloads, p.Body())
	}
	if c.err != nil {
		return "", c.err
	}
	return c.id, nil
}

type stubAuthClient struct {
	token string
	err   error
	email string
	calls int

	signup models.ParentSignup
}

func (c *stubAuthClient) RegisterParent(_ context.Context, signup models.ParentSignup) (string, error) {
	c.calls++
	c.signup = signup
	return c.token, c.err
}

func (c *stubAuthClient) Login(_ context.Context, email, _ string) (string, error) {
	c.calls++
	c.email = email
	return c.token, c.err
}

func validSections() map[int]map[string]any {
	return map[int]map[string]any{
		1: {"full_name": "Aarav Sharma", "date_of_birth": "2022-03-15", "age_years": "2", "age_months": "8", "gender": "male"},
		2: {"mother_name": "Sita", "mother_age": "29", "father_age": "31", "primary_caregiver": "mother"},
		3: {"address": "Ward 4", "municipality": "Lalitpur", "district": "Lalitpur", "province": "Bagmati Pradesh", "phone_number": "9841000000", "is_whatsapp": "yes"},
		4: {"household_members": "grandparents,siblings", "siblings_count": "1"},
		5: {"goes_to_school": "no", "wake_up_time": "6:30"},
		6: {"has_vaccinations": "complete", "seen_pediatrician": "yes", "height_cm": "85.5", "family_autism_history": "no"},
		7: {"smartphone_comfort": "4", "consent_data": "yes", "declaration_confirmed": "yes"},
	}
}

func fillSections(t *testing.T, acc *DraftAccumulator, ids ...int) {
	t.Helper()
	all := validSections()
	for _, id := range ids {
		if err := acc.SetSection(context.Background(), id, all[id]); err != nil {
			t.Fatalf("SetSection(%d) error: %v", id, err)
		}
	}
}
