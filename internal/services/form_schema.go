package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldNumber
	FieldBool
	FieldChoice
	FieldMulti
	FieldDate
	FieldTime
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// FieldSpec describes one input. Group overrides the section's payload group.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Options  []string
	Group    string
	// Min and Max bound numeric fields when Bounded is set.
	Min, Max float64
	Bounded  bool
}

// SectionSchema describes one page of the form. Check runs after every field
// parsed and returns per-field problems.
type SectionSchema struct {
	ID     int
	Title  string
	Group  string
	Fields []FieldSpec
	Check  func(fields map[string]any) map[string]string
}

// FormSchema is an ordered set of sections. CrossCheck sees every present
// section's normalized fields and returns problems keyed by section id.
type FormSchema struct {
	Group      string
	Sections   []SectionSchema
	CrossCheck func(sections map[int]map[string]any) map[int]map[string]string
}

func (f *FormSchema) Section(id int) (*SectionSchema, bool) {
	for i := range f.Sections {
		if f.Sections[i].ID == id {
			return &f.Sections[i], true
		}
	}
	return nil, false
}

// RequiredIDs lists every section id in ascending order.
func (f *FormSchema) RequiredIDs() []int {
	ids := make([]int, 0, len(f.Sections))
	for _, s := range f.Sections {
		ids = append(ids, s.ID)
	}
	sort.Ints(ids)
	return ids
}

func (s *SectionSchema) field(name string) (*FieldSpec, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Normalize validates raw input and returns the typed values to persist.
// Blank values are absent. Numbers that do not parse are dropped, and reject
// the section only when the field is required.
func (s *SectionSchema) Normalize(raw map[string]any) (map[string]any, error) {
	out := map[string]any{}
	problems := map[string]string{}
	for name := range raw {
		if _, ok := s.field(name); !ok {
			problems[name] = "unknown field"
		}
	}
	for _, spec := range s.Fields {
		v, present := raw[spec.Name]
		if present && isBlank(v) {
			present = false
		}
		if present {
			val, err := spec.coerce(v)
			switch {
			case err == nil:
				out[spec.Name] = val
			case spec.Type == FieldInteger || spec.Type == FieldNumber:
				if _, unparsable := err.(parseError); !unparsable || spec.Required {
					problems[spec.Name] = err.Error()
				}
				continue
			default:
				problems[spec.Name] = err.Error()
				continue
			}
		}
		if _, ok := out[spec.Name]; !ok && spec.Required {
			if _, reported := problems[spec.Name]; !reported {
				problems[spec.Name] = "required"
			}
		}
	}
	if len(problems) == 0 && s.Check != nil {
		for name, msg := range s.Check(out) {
			problems[name] = msg
		}
	}
	if err := newValidationError(s.ID, problems); err != nil {
		return nil, err
	}
	return out, nil
}

// parseError marks a value that is not a number at all, as opposed to a
// number out of range.
type parseError string

func (e parseError) Error() string { return string(e) }

func (f *FieldSpec) coerce(v any) (any, error) {
	switch f.Type {
	case FieldText:
		return coerceText(v)
	case FieldInteger:
		n, err := coerceFloat(v)
		if err != nil {
			return nil, err
		}
		if n != math.Trunc(n) {
			return nil, parseError("must be a whole number")
		}
		if err := f.checkRange(n); err != nil {
			return nil, err
		}
		return int64(n), nil
	case FieldNumber:
		n, err := coerceFloat(v)
		if err != nil {
			return nil, err
		}
		if err := f.checkRange(n); err != nil {
			return nil, err
		}
		return n, nil
	case FieldBool:
		return coerceBool(v)
	case FieldChoice:
		s, err := coerceText(v)
		if err != nil {
			return nil, err
		}
		if !f.allows(s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(f.Options, ", "))
		}
		return s, nil
	case FieldMulti:
		return f.coerceMulti(v)
	case FieldDate:
		s, err := coerceText(v)
		if err != nil {
			return nil, err
		}
		// accept full timestamps from older clients, keep only the date
		if len(s) > len(dateLayout) && s[len(dateLayout)] == 'T' {
			s = s[:len(dateLayout)]
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return nil, fmt.Errorf("must be a date like 2021-04-30")
		}
		return s, nil
	case FieldTime:
		s, err := coerceText(v)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, s)
		if err != nil {
			if t, err = time.Parse("15:04:05", s); err != nil {
				return nil, fmt.Errorf("must be a time like 07:30")
			}
		}
		return t.Format(timeLayout), nil
	}
	return nil, fmt.Errorf("unsupported field type %d", f.Type)
}

func (f *FieldSpec) checkRange(n float64) error {
	if f.Bounded && (n < f.Min || n > f.Max) {
		return fmt.Errorf("must be between %s and %s", formatNumber(f.Min), formatNumber(f.Max))
	}
	return nil
}

func (f *FieldSpec) allows(s string) bool {
	if len(f.Options) == 0 {
		return true
	}
	for _, o := range f.Options {
		if o == s {
			return true
		}
	}
	return false
}

func (f *FieldSpec) coerceMulti(v any) (any, error) {
	var items []string
	switch x := v.(type) {
	case []string:
		items = x
	case []any:
		for _, it := range x {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("must be a list of options")
			}
			items = append(items, s)
		}
	case string:
		items = strings.Split(x, ",")
	default:
		return nil, fmt.Errorf("must be a list of options")
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if !f.allows(it) {
			return nil, fmt.Errorf("%q is not one of %s", it, strings.Join(f.Options, ", "))
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func coerceText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case float64:
		return formatNumber(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	}
	return "", fmt.Errorf("must be text")
}

func coerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, parseError("must be a number")
		}
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, parseError("must be a number")
		}
		return n, nil
	}
	return 0, parseError("must be a number")
}

func coerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1", "on":
			return true, nil
		case "false", "no", "n", "0", "off":
			return false, nil
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	}
	return false, fmt.Errorf("must be yes or no")
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
