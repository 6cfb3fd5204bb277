package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DetermineLocale resolves the locale to use from an explicit choice, an
// Accept-Language style list and the supported locales. POSIX values such as
// "ne_NP.UTF-8" are accepted for both inputs. def is returned when nothing
// matches; if def is unsupported the first supported locale wins.
func DetermineLocale(explicit, acceptLang string, supported []string, def string) string {
	if len(supported) == 0 {
		return "en"
	}
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		tags = append(tags, language.Make(strings.ToLower(s)))
	}
	matcher := language.NewMatcher(tags)

	pick := func(desired ...language.Tag) (string, bool) {
		if len(desired) == 0 {
			return "", false
		}
		_, idx, conf := matcher.Match(desired...)
		if conf == language.No {
			return "", false
		}
		return strings.ToLower(supported[idx]), true
	}

	if v := NormalizePOSIX(explicit); v != "" {
		if tag, err := language.Parse(v); err == nil {
			if l, ok := pick(tag); ok {
				return l
			}
		}
	}
	if v := NormalizePOSIX(acceptLang); v != "" {
		if desired, _, err := language.ParseAcceptLanguage(v); err == nil {
			if l, ok := pick(desired...); ok {
				return l
			}
		}
	}
	for _, s := range supported {
		if strings.EqualFold(s, def) {
			return strings.ToLower(s)
		}
	}
	return strings.ToLower(supported[0])
}

// NormalizePOSIX turns "ne_NP.UTF-8" or "en_US@euro" into a BCP 47 tag.
// "C" and "POSIX" carry no language and normalize to "".
func NormalizePOSIX(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, ".@"); i >= 0 && !strings.Contains(v, ",") {
		v = v[:i]
	}
	if v == "C" || v == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(v, "_", "-")
}
