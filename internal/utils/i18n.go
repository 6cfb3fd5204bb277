package utils

// Engine messages only. Screen copy lives with the presentation layer.

var translations = map[string]map[string]string{
	"en": {
		"step.language_select":    "Choose your language",
		"step.onboarding_auth":    "Sign in to continue",
		"step.dashboard":          "Welcome back",
		"step.registration_form":  "Register your child to begin",
		"step.reauth_required":    "Your session has expired. Please sign in again",
		"step.dashboard_degraded": "Showing saved data. Some information may be out of date",
		"error.unreachable":       "Could not reach the server. Check your connection and try again",
		"error.server_error":      "The server had a problem. Please try again later",
		"error.storage":           "Could not save on this device",
		"error.validation":        "Some answers need attention",
		"error.incomplete":        "Please complete every section before submitting",
		"submission.acknowledged": "Registration received",
		"submission.failed":       "Submission failed. Your answers are kept",
		"section.saved":           "Section saved",
		"status.unknown":          "Status unavailable",
		"status.not_submitted":    "Assessment not submitted",
		"auth.logged_out":         "Signed out",
		"language.saved":          "Language saved",
		"media.saved":             "Video saved",
		"signup.done":             "Account created",
		"assessment.submitted":    "Assessment sent for doctor review",
	},
	"ne": {
		"step.language_select":    "आफ्नो भाषा छान्नुहोस्",
		"step.onboarding_auth":    "जारी राख्न साइन इन गर्नुहोस्",
		"step.dashboard":          "फेरि स्वागत छ",
		"step.registration_form":  "सुरु गर्न आफ्नो बच्चा दर्ता गर्नुहोस्",
		"step.reauth_required":    "तपाईंको सत्र समाप्त भयो। कृपया फेरि साइन इन गर्नुहोस्",
		"step.dashboard_degraded": "सुरक्षित डाटा देखाइँदै। केही जानकारी पुरानो हुन सक्छ",
		"error.unreachable":       "सर्भरमा पुग्न सकिएन। जडान जाँच गरी फेरि प्रयास गर्नुहोस्",
		"error.server_error":      "सर्भरमा समस्या भयो। कृपया पछि प्रयास गर्नुहोस्",
		"error.storage":           "यो उपकरणमा सुरक्षित गर्न सकिएन",
		"error.validation":        "केही उत्तरहरू मिलाउनु पर्छ",
		"error.incomplete":        "पेश गर्नु अघि सबै खण्डहरू पूरा गर्नुहोस्",
		"submission.acknowledged": "दर्ता प्राप्त भयो",
		"submission.failed":       "पेश गर्न सकिएन। तपाईंका उत्तरहरू सुरक्षित छन्",
		"signup.done":             "खाता बनाइयो",
		"assessment.submitted":    "मूल्याङ्कन डाक्टरको समीक्षाका लागि पठाइयो",
		"section.saved":           "खण्ड सुरक्षित भयो",
		"status.unknown":          "स्थिति उपलब्ध छैन",
		"status.not_submitted":    "मूल्याङ्कन पेश गरिएको छैन",
		"auth.logged_out":         "साइन आउट भयो",
		"language.saved":          "भाषा सुरक्षित भयो",
		"media.saved":             "भिडियो सुरक्षित भयो",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
