package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autisahara/companion/internal/models"
)

var mediaKinds = []string{"walking", "eating", "speaking", "behavior", "playing", "other"}

// DraftAccumulator persists validated section drafts and merges them into a
// submission payload. Every read goes to the store, so two accumulators over
// the same store agree.
type DraftAccumulator struct {
	store  KVStore
	schema *FormSchema
	log    *zap.Logger
	now    func() time.Time
	ttl    time.Duration
}

// NewDraftAccumulator builds an accumulator. A zero ttl keeps drafts forever.
func NewDraftAccumulator(store KVStore, schema *FormSchema, ttl time.Duration, log *zap.Logger) *DraftAccumulator {
	if schema == nil {
		schema = RegistrationForm()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DraftAccumulator{
		store:  store,
		schema: schema,
		log:    log.Named("drafts"),
		now:    func() time.Time { return time.Now().UTC() },
		ttl:    ttl,
	}
}

func (a *DraftAccumulator) Schema() *FormSchema { return a.schema }

// SetSection validates fields against the section and replaces its draft.
// Nothing is written when validation fails.
func (a *DraftAccumulator) SetSection(ctx context.Context, id int, fields map[string]any) error {
	sec, ok := a.schema.Section(id)
	if !ok {
		return newValidationError(id, map[string]string{"section": "unknown section"})
	}
	normalized, err := sec.Normalize(fields)
	if err != nil {
		return err
	}
	draft := models.FormDraft{SectionID: id, Fields: normalized, CompletedAt: a.now()}
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode section %d: %w", id, err)
	}
	if err := a.store.Set(ctx, draftKey(id), string(raw)); err != nil {
		a.log.Warn("persist draft", zap.Int("section", id), zap.Error(err))
		return err
	}
	return nil
}

// Section returns the stored draft of id for prefill. Expired, unreadable and
// invalid drafts are reported as absent.
func (a *DraftAccumulator) Section(ctx context.Context, id int) (*models.FormDraft, bool) {
	sec, ok := a.schema.Section(id)
	if !ok {
		return nil, false
	}
	d, err := a.load(ctx, sec)
	if err != nil || d == nil {
		return nil, false
	}
	return d, true
}

// load returns nil, nil for an absent or expired draft and the validation
// error for a stored draft that no longer passes the section rules.
func (a *DraftAccumulator) load(ctx context.Context, sec *SectionSchema) (*models.FormDraft, error) {
	raw, ok, err := a.store.Get(ctx, draftKey(sec.ID))
	if err != nil {
		a.log.Warn("read draft, treating as missing", zap.Int("section", sec.ID), zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	var d models.FormDraft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		a.log.Warn("undecodable draft, treating as missing", zap.Int("section", sec.ID), zap.Error(err))
		return nil, nil
	}
	if a.ttl > 0 && a.now().Sub(d.CompletedAt) > a.ttl {
		return nil, nil
	}
	fields, err := sec.Normalize(d.Fields)
	if err != nil {
		return nil, err
	}
	d.SectionID = sec.ID
	d.Fields = fields
	return &d, nil
}

// IsComplete reports whether BuildPayload would succeed for required.
// With no ids every section of the schema is required.
func (a *DraftAccumulator) IsComplete(ctx context.Context, required ...int) bool {
	_, err := a.collect(ctx, required)
	return err == nil
}

// BuildPayload merges the stored drafts. It fails with IncompleteError when
// any required section is absent, expired or invalid, and never returns a
// partial payload. With no ids every section of the schema is required.
func (a *DraftAccumulator) BuildPayload(ctx context.Context, required ...int) (*SubmissionPayload, error) {
	sections, err := a.collect(ctx, required)
	if err != nil {
		return nil, err
	}
	p := &SubmissionPayload{Group: a.schema.Group, Sections: sections, schema: a.schema}
	if ref, ok := a.Media(ctx); ok {
		p.Media = ref
	}
	return p, nil
}

func (a *DraftAccumulator) collect(ctx context.Context, required []int) (map[int]map[string]any, error) {
	if len(required) == 0 {
		required = a.schema.RequiredIDs()
	}
	need := map[int]bool{}
	for _, id := range required {
		need[id] = true
	}

	sections := map[int]map[string]any{}
	missing := map[int]bool{}
	causes := map[int]error{}
	for i := range a.schema.Sections {
		sec := &a.schema.Sections[i]
		d, err := a.load(ctx, sec)
		switch {
		case err != nil:
			causes[sec.ID] = err
			if need[sec.ID] {
				missing[sec.ID] = true
			}
		case d == nil:
			if need[sec.ID] {
				missing[sec.ID] = true
			}
		default:
			sections[sec.ID] = d.Fields
		}
	}
	for id := range need {
		if _, known := a.schema.Section(id); !known {
			missing[id] = true
		}
	}

	if a.schema.CrossCheck != nil {
		for id, problems := range a.schema.CrossCheck(sections) {
			if len(problems) == 0 {
				continue
			}
			causes[id] = newValidationError(id, problems)
			delete(sections, id)
			if need[id] {
				missing[id] = true
			}
		}
	}

	if len(missing) > 0 {
		ids := make([]int, 0, len(missing))
		for id := range missing {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		out := &IncompleteError{Missing: ids}
		for _, id := range ids {
			if c, ok := causes[id]; ok {
				if out.Causes == nil {
					out.Causes = map[int]error{}
				}
				out.Causes[id] = c
			}
		}
		return nil, out
	}
	return sections, nil
}

// ClearSections removes the drafts of ids.
func (a *DraftAccumulator) ClearSections(ctx context.Context, ids ...int) error {
	var firstErr error
	for _, id := range ids {
		if err := a.store.Remove(ctx, draftKey(id)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetMedia records the captured assessment video.
func (a *DraftAccumulator) SetMedia(ctx context.Context, ref models.MediaReference) error {
	ref.URI = strings.TrimSpace(ref.URI)
	ref.Kind = strings.TrimSpace(ref.Kind)
	ref.Description = strings.TrimSpace(ref.Description)
	problems := map[string]string{}
	if ref.URI == "" {
		problems["uri"] = "required"
	}
	spec := FieldSpec{Name: "kind", Type: FieldChoice, Options: mediaKinds}
	if !spec.allows(ref.Kind) {
		problems["kind"] = "must be one of " + strings.Join(mediaKinds, ", ")
	}
	if err := newValidationError(0, problems); err != nil {
		return err
	}
	raw, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encode media reference: %w", err)
	}
	return a.store.Set(ctx, KeyMediaReference, string(raw))
}

func (a *DraftAccumulator) Media(ctx context.Context) (*models.MediaReference, bool) {
	raw, ok, err := a.store.Get(ctx, KeyMediaReference)
	if err != nil {
		a.log.Warn("read media reference", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var ref models.MediaReference
	if err := json.Unmarshal([]byte(raw), &ref); err != nil || ref.URI == "" {
		return nil, false
	}
	return &ref, true
}

func (a *DraftAccumulator) ClearMedia(ctx context.Context) error {
	return a.store.Remove(ctx, KeyMediaReference)
}

// SubmissionPayload is the merged form. It marshals to the grouped shape the
// registration endpoint expects.
type SubmissionPayload struct {
	Group    string
	Sections map[int]map[string]any
	Media    *models.MediaReference
	schema   *FormSchema
}

// SectionIDs lists the merged sections in ascending order.
func (p *SubmissionPayload) SectionIDs() []int {
	ids := make([]int, 0, len(p.Sections))
	for id := range p.Sections {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Body returns the wire form: root fields flattened, grouped fields nested
// under their group name.
func (p *SubmissionPayload) Body() map[string]any {
	body := map[string]any{}
	nested := func(group string) map[string]any {
		m, ok := body[group].(map[string]any)
		if !ok {
			m = map[string]any{}
			body[group] = m
		}
		return m
	}
	for _, id := range p.SectionIDs() {
		fields := p.Sections[id]
		var sec *SectionSchema
		if p.schema != nil {
			sec, _ = p.schema.Section(id)
		}
		for name, v := range fields {
			group := ""
			if sec != nil {
				group = sec.Group
				if spec, ok := sec.field(name); ok && spec.Group != "" {
					group = spec.Group
				}
			}
			if group == "" {
				body[name] = v
			} else {
				nested(group)[name] = v
			}
		}
	}
	if p.Media != nil {
		m := map[string]any{"video_url": p.Media.URI, "video_type": p.Media.Kind}
		if p.Media.Description != "" {
			m["description"] = p.Media.Description
		}
		body["media"] = m
	}
	return body
}

func (p *SubmissionPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Body())
}
