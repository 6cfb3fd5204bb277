package services

import (
	"regexp"
	"strings"
)

// RegistrationGroup names the submission marker keys of the registration form.
const RegistrationGroup = "registration"

const (
	groupParent         = "parent"
	groupContact        = "contact"
	groupHousehold      = "household"
	groupEducation      = "education"
	groupHealth         = "health"
	groupMedicalHistory = "medical_history"
)

var (
	genderOptions      = []string{"male", "female", "other"}
	caregiverOptions   = []string{"mother", "father", "grandparent", "other"}
	provinceOptions    = []string{"Province 1", "Madhesh Pradesh", "Bagmati Pradesh", "Gandaki Pradesh", "Lumbini Pradesh", "Karnali Pradesh", "Sudurpashchim Pradesh"}
	householdOptions   = []string{"grandparents", "siblings", "uncle_aunt", "cousins", "domestic_help", "other_relatives"}
	schoolTypeOptions  = []string{"government", "private", "special"}
	transportOptions   = []string{"walk", "bus", "private_vehicle", "other"}
	vaccinationOptions = []string{"complete", "incomplete", "unknown"}

	professionalFields = []string{
		"seen_pediatrician", "seen_psychiatrist", "seen_speech_therapist",
		"seen_occupational_therapist", "seen_psychologist", "seen_special_educator",
		"seen_neurologist", "seen_traditional_healer", "seen_none",
	}

	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{5,18}[0-9]$`)
)

func bounded(spec FieldSpec, lo, hi float64) FieldSpec {
	spec.Min, spec.Max, spec.Bounded = lo, hi, true
	return spec
}

// RegistrationForm is the seven-section child registration form.
func RegistrationForm() *FormSchema {
	health := []FieldSpec{
		bounded(FieldSpec{Name: "height_cm", Type: FieldNumber}, 20, 250),
		bounded(FieldSpec{Name: "weight_kg", Type: FieldNumber}, 1, 200),
		{Name: "has_vaccinations", Type: FieldChoice, Required: true, Options: vaccinationOptions},
		{Name: "medical_conditions", Type: FieldText},
		{Name: "takes_medication", Type: FieldBool},
		{Name: "medication_list", Type: FieldText},
	}
	for _, name := range professionalFields {
		health = append(health, FieldSpec{Name: name, Type: FieldBool})
	}
	health = append(health,
		FieldSpec{Name: "pregnancy_infection", Type: FieldBool, Group: groupMedicalHistory},
		FieldSpec{Name: "pregnancy_infection_desc", Type: FieldText, Group: groupMedicalHistory},
		FieldSpec{Name: "birth_complications", Type: FieldBool, Group: groupMedicalHistory},
		FieldSpec{Name: "birth_complications_desc", Type: FieldText, Group: groupMedicalHistory},
		FieldSpec{Name: "brain_injury_first_year", Type: FieldBool, Group: groupMedicalHistory},
		FieldSpec{Name: "brain_injury_desc", Type: FieldText, Group: groupMedicalHistory},
		FieldSpec{Name: "family_autism_history", Type: FieldBool, Group: groupMedicalHistory},
	)

	return &FormSchema{
		Group: RegistrationGroup,
		Sections: []SectionSchema{
			{
				ID: 1, Title: "Child basic information",
				Fields: []FieldSpec{
					{Name: "full_name", Type: FieldText, Required: true},
					{Name: "date_of_birth", Type: FieldDate, Required: true},
					bounded(FieldSpec{Name: "age_years", Type: FieldInteger, Required: true}, 0, 18),
					bounded(FieldSpec{Name: "age_months", Type: FieldInteger}, 0, 11),
					{Name: "gender", Type: FieldChoice, Required: true, Options: genderOptions},
				},
			},
			{
				ID: 2, Title: "Parent or guardian", Group: groupParent,
				Fields: []FieldSpec{
					{Name: "mother_name", Type: FieldText},
					bounded(FieldSpec{Name: "mother_age", Type: FieldInteger}, 12, 100),
					{Name: "mother_occupation", Type: FieldText},
					{Name: "father_name", Type: FieldText},
					bounded(FieldSpec{Name: "father_age", Type: FieldInteger}, 12, 100),
					{Name: "father_occupation", Type: FieldText},
					{Name: "primary_caregiver", Type: FieldChoice, Required: true, Options: caregiverOptions},
				},
			},
			{
				ID: 3, Title: "Contact", Group: groupContact,
				Fields: []FieldSpec{
					{Name: "address", Type: FieldText, Required: true},
					{Name: "municipality", Type: FieldText, Required: true},
					{Name: "district", Type: FieldText, Required: true},
					{Name: "province", Type: FieldChoice, Required: true, Options: provinceOptions},
					{Name: "phone_number", Type: FieldText, Required: true},
					{Name: "alternate_phone", Type: FieldText},
					{Name: "is_whatsapp", Type: FieldBool},
					{Name: "email", Type: FieldText},
				},
				Check: checkContact,
			},
			{
				ID: 4, Title: "Household", Group: groupHousehold,
				Fields: []FieldSpec{
					{Name: "household_members", Type: FieldMulti, Options: householdOptions},
					bounded(FieldSpec{Name: "siblings_count", Type: FieldInteger}, 0, 20),
				},
			},
			{
				ID: 5, Title: "Education and daily routine", Group: groupEducation,
				Fields: []FieldSpec{
					{Name: "goes_to_school", Type: FieldBool, Required: true},
					{Name: "school_name", Type: FieldText},
					{Name: "grade_class", Type: FieldText},
					{Name: "school_type", Type: FieldChoice, Options: schoolTypeOptions},
					{Name: "transport_mode", Type: FieldChoice, Options: transportOptions},
					{Name: "wake_up_time", Type: FieldTime},
					{Name: "breakfast_time", Type: FieldTime},
					{Name: "school_start_time", Type: FieldTime},
					{Name: "school_end_time", Type: FieldTime},
					{Name: "lunch_time", Type: FieldTime},
					{Name: "nap_start_time", Type: FieldTime},
					{Name: "nap_end_time", Type: FieldTime},
					{Name: "evening_activities", Type: FieldText},
					{Name: "dinner_time", Type: FieldTime},
					{Name: "sleep_time", Type: FieldTime},
				},
				Check: checkEducation,
			},
			{
				ID: 6, Title: "Health and medical history", Group: groupHealth,
				Fields: health,
				Check:  checkHealth,
			},
			{
				ID: 7, Title: "Comfort and consent",
				Fields: []FieldSpec{
					bounded(FieldSpec{Name: "smartphone_comfort", Type: FieldInteger, Required: true}, 1, 5),
					{Name: "consent_data", Type: FieldBool},
					{Name: "consent_video", Type: FieldBool},
					{Name: "consent_contact", Type: FieldBool},
					{Name: "declaration_confirmed", Type: FieldBool, Required: true},
				},
				Check: checkConsent,
			},
		},
		CrossCheck: checkParentAges,
	}
}

func checkContact(f map[string]any) map[string]string {
	problems := map[string]string{}
	for _, name := range []string{"phone_number", "alternate_phone"} {
		if v, ok := f[name].(string); ok && !phonePattern.MatchString(v) {
			problems[name] = "not a phone number"
		}
	}
	if v, ok := f["email"].(string); ok && !strings.Contains(v, "@") {
		problems["email"] = "not an email address"
	}
	return problems
}

func checkEducation(f map[string]any) map[string]string {
	if school, _ := f["goes_to_school"].(bool); school {
		if _, ok := f["school_name"]; !ok {
			return map[string]string{"school_name": "required when the child goes to school"}
		}
	}
	return nil
}

func checkHealth(f map[string]any) map[string]string {
	problems := map[string]string{}
	seen := false
	for _, name := range professionalFields {
		if v, _ := f[name].(bool); v {
			seen = true
			break
		}
	}
	if !seen {
		problems["seen_none"] = "select at least one professional, or none"
	}
	if takes, _ := f["takes_medication"].(bool); takes {
		if _, ok := f["medication_list"]; !ok {
			problems["medication_list"] = "required when the child takes medication"
		}
	}
	return problems
}

func checkConsent(f map[string]any) map[string]string {
	if confirmed, _ := f["declaration_confirmed"].(bool); !confirmed {
		return map[string]string{"declaration_confirmed": "must be confirmed"}
	}
	return nil
}

// checkParentAges rejects parents that are not older than the child.
func checkParentAges(sections map[int]map[string]any) map[int]map[string]string {
	child, ok := sections[1]
	if !ok {
		return nil
	}
	childAge, ok := child["age_years"].(int64)
	if !ok {
		return nil
	}
	parents, ok := sections[2]
	if !ok {
		return nil
	}
	problems := map[string]string{}
	for _, name := range []string{"mother_age", "father_age"} {
		if age, ok := parents[name].(int64); ok && age <= childAge {
			problems[name] = "must be greater than the child's age"
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return map[int]map[string]string{2: problems}
}
