package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autisahara/companion/internal/models"
)

func newTestAccumulator(store KVStore) *DraftAccumulator {
	acc := NewDraftAccumulator(store, nil, 0, nil)
	acc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return acc
}

func TestBuildPayloadListsMissingSections(t *testing.T) {
	acc := newTestAccumulator(newMemStore())
	fillSections(t, acc, 1, 2)

	_, err := acc.BuildPayload(context.Background(), 1, 2, 3)
	ie, ok := AsIncompleteError(err)
	require.True(t, ok, "expected IncompleteError, got %v", err)
	require.Equal(t, []int{3}, ie.Missing)
	require.False(t, acc.IsComplete(context.Background(), 1, 2, 3))
	require.True(t, acc.IsComplete(context.Background(), 1, 2))
}

func TestBuildPayloadMissingIDsAscending(t *testing.T) {
	acc := newTestAccumulator(newMemStore())
	fillSections(t, acc, 2, 5)

	_, err := acc.BuildPayload(context.Background())
	ie, ok := AsIncompleteError(err)
	require.True(t, ok)
	require.Equal(t, []int{1, 3, 4, 6, 7}, ie.Missing)
}

func TestSectionSurvivesRestart(t *testing.T) {
	store := newMemStore()
	acc := newTestAccumulator(store)
	fillSections(t, acc, 3)
	before, ok := acc.Section(context.Background(), 3)
	require.True(t, ok)

	restarted := newTestAccumulator(store.restart())
	p, err := restarted.BuildPayload(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, before.Fields, p.Sections[3])
	require.Equal(t, "9841000000", p.Sections[3]["phone_number"])
	require.Equal(t, true, p.Sections[3]["is_whatsapp"])
}

func TestSetSectionValidation(t *testing.T) {
	tests := []struct {
		name    string
		section int
		fields  map[string]any
		field   string
	}{
		{name: "missing required", section: 1, fields: map[string]any{"full_name": "A", "date_of_birth": "2022-03-15", "gender": "male"}, field: "age_years"},
		{name: "required number unparsable", section: 1, fields: map[string]any{"full_name": "A", "date_of_birth": "2022-03-15", "age_years": "two", "gender": "male"}, field: "age_years"},
		{name: "number out of range", section: 7, fields: map[string]any{"smartphone_comfort": "9", "declaration_confirmed": true}, field: "smartphone_comfort"},
		{name: "unknown option", section: 1, fields: map[string]any{"full_name": "A", "date_of_birth": "2022-03-15", "age_years": 2, "gender": "robot"}, field: "gender"},
		{name: "bad date", section: 1, fields: map[string]any{"full_name": "A", "date_of_birth": "15/03/2022", "age_years": 2, "gender": "male"}, field: "date_of_birth"},
		{name: "unknown field", section: 4, fields: map[string]any{"pets": "2"}, field: "pets"},
		{name: "school name when in school", section: 5, fields: map[string]any{"goes_to_school": "yes"}, field: "school_name"},
		{name: "no professional selected", section: 6, fields: map[string]any{"has_vaccinations": "complete"}, field: "seen_none"},
		{name: "declaration not confirmed", section: 7, fields: map[string]any{"smartphone_comfort": 3, "declaration_confirmed": "no"}, field: "declaration_confirmed"},
		{name: "bad phone", section: 3, fields: map[string]any{"address": "a", "municipality": "m", "district": "d", "province": "Bagmati Pradesh", "phone_number": "call me"}, field: "phone_number"},
		{name: "unknown section", section: 12, fields: map[string]any{}, field: "section"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			acc := newTestAccumulator(store)
			err := acc.SetSection(context.Background(), tt.section, tt.fields)
			ve, ok := AsValidationError(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			require.Contains(t, ve.Fields, tt.field)
			require.Equal(t, tt.section, ve.SectionID)
			require.False(t, store.has(DraftKey(tt.section)), "invalid section must not be persisted")
		})
	}
}

func TestOptionalUnparsableNumberIsDropped(t *testing.T) {
	acc := newTestAccumulator(newMemStore())
	fields := validSections()[6]
	fields["weight_kg"] = "heavy"
	require.NoError(t, acc.SetSection(context.Background(), 6, fields))

	d, ok := acc.Section(context.Background(), 6)
	require.True(t, ok)
	require.NotContains(t, d.Fields, "weight_kg")
	require.Equal(t, 85.5, d.Fields["height_cm"])
}

func TestSetSectionReplacesDraft(t *testing.T) {
	acc := newTestAccumulator(newMemStore())
	fillSections(t, acc, 4)
	require.NoError(t, acc.SetSection(context.Background(), 4, map[string]any{"siblings_count": 3}))

	d, ok := acc.Section(context.Background(), 4)
	require.True(t, ok)
	require.Equal(t, map[string]any{"siblings_count": int64(3)}, d.Fields)
}

func TestSetSectionWriteFailure(t *testing.T) {
	store := newMemStore()
	store.failSet[DraftKey(1)] = true
	acc := newTestAccumulator(store)

	err := acc.SetSection(context.Background(), 1, validSections()[1])
	require.True(t, IsStorage(err), "got %v", err)
}

func TestExpiredDraftCountsAsMissing(t *testing.T) {
	store := newMemStore()
	acc := newTestAccumulator(store)
	acc.ttl = 24 * time.Hour
	fillSections(t, acc, 1, 2)

	acc.now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }
	_, err := acc.BuildPayload(context.Background(), 1, 2)
	ie, ok := AsIncompleteError(err)
	require.True(t, ok)
	require.Equal(t, []int{1, 2}, ie.Missing)
	_, found := acc.Section(context.Background(), 1)
	require.False(t, found)
}

func TestUnreadableDraftCountsAsMissing(t *testing.T) {
	store := newMemStore()
	acc := newTestAccumulator(store)
	fillSections(t, acc, 1, 2)
	store.values[DraftKey(2)] = "{broken"
	store.failGet[DraftKey(1)] = true

	_, err := acc.BuildPayload(context.Background(), 1, 2)
	ie, ok := AsIncompleteError(err)
	require.True(t, ok)
	require.Equal(t, []int{1, 2}, ie.Missing)
}

func TestCrossSectionParentAge(t *testing.T) {
	acc := newTestAccumulator(newMemStore())
	child := validSections()[1]
	child["age_years"] = "15"
	require.NoError(t, acc.SetSection(context.Background(), 1, child))
	require.NoError(t, acc.SetSection(context.Background(), 2, map[string]any{"mother_age": "14", "father_age": "40", "primary_caregiver": "mother"}))

	_, err := acc.BuildPayload(context.Background(), 1, 2)
	ie, ok := AsIncompleteError(err)
	require.True(t, ok)
	require.Equal(t, []int{2}, ie.Missing)
	ve, ok := AsValidationError(ie.Causes[2])
	require.True(t, ok)
	require.Contains(t, ve.Fields, "mother_age")
	require.NotContains(t, ve.Fields, "father_age")

	// not required: the invalid section is left out of the payload
	p, err := acc.BuildPayload(context.Background(), 1)
	require.NoError(t, err)
	require.NotContains(t, p.Sections, 2)
}

func TestPayloadBodyGroups(t *testing.T) {
	acc := newTestAccumulator(newMemStore())
	fillSections(t, acc, 1, 2, 3, 4, 5, 6, 7)
	require.NoError(t, acc.SetMedia(context.Background(), models.MediaReference{URI: "file:///videos/walk.mp4", Kind: "walking"}))
	require.True(t, acc.IsComplete(context.Background()))

	p, err := acc.BuildPayload(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, p.SectionIDs())

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))

	require.Equal(t, "Aarav Sharma", body["full_name"])
	require.Equal(t, float64(2), body["age_years"])
	require.Equal(t, float64(4), body["smartphone_comfort"])
	require.Equal(t, true, body["declaration_confirmed"])

	edu := body["education"].(map[string]any)
	require.Equal(t, false, edu["goes_to_school"])
	require.Equal(t, "06:30", edu["wake_up_time"])

	health := body["health"].(map[string]any)
	require.Equal(t, "complete", health["has_vaccinations"])
	require.NotContains(t, health, "family_autism_history")
	medical := body["medical_history"].(map[string]any)
	require.Equal(t, false, medical["family_autism_history"])

	household := body["household"].(map[string]any)
	require.Equal(t, []any{"grandparents", "siblings"}, household["household_members"])

	media := body["media"].(map[string]any)
	require.Equal(t, "walking", media["video_type"])
	require.Equal(t, "file:///videos/walk.mp4", media["video_url"])
}

func TestSetMediaValidation(t *testing.T) {
	acc := newTestAccumulator(newMemStore())
	err := acc.SetMedia(context.Background(), models.MediaReference{Kind: "dancing"})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "uri")
	require.Contains(t, ve.Fields, "kind")
	_, found := acc.Media(context.Background())
	require.False(t, found)
}

func TestClearSections(t *testing.T) {
	store := newMemStore()
	acc := newTestAccumulator(store)
	fillSections(t, acc, 1, 2, 3)
	require.NoError(t, acc.ClearSections(context.Background(), 1, 3))
	require.False(t, store.has(DraftKey(1)))
	require.True(t, store.has(DraftKey(2)))
	require.False(t, store.has(DraftKey(3)))
}
