package conversation

import (
	"strings"
	"unicode"
)

// Classification is the result of running free text through the keyword
// tables. Total: unmatched input yields the zero value, never an error.
type Classification struct {
	Interruption   Interruption
	OrderIntent    bool
	DetailsRequest bool
}

// Classify maps free text to an interruption category and intent flags.
// Category priority follows interruptionOrder exactly; the first category
// with a matching keyword wins.
func Classify(text string) Classification {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Classification{}
	}

	result := Classification{}

	for _, category := range interruptionOrder {
		if matchesAny(normalized, interruptionKeywords[category]) {
			result.Interruption = category
			break
		}
	}

	result.OrderIntent = matchesAny(normalized, orderIntentKeywords)
	result.DetailsRequest = matchesAny(normalized, detailsRequestKeywords)

	return result
}

// matchesAny applies the two matching policies: tokens of two characters or
// fewer must match on word boundaries (so "y" never fires inside "payment"),
// longer tokens match by substring containment.
func matchesAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if len([]rune(kw)) <= 2 {
			if containsWord(normalized, kw) {
				return true
			}
		} else if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// containsWord reports whether kw occurs in text delimited by non-letter,
// non-digit runes on both sides. Works for Latin and Bengali script alike,
// which rules out regexp's ASCII-only \b.
func containsWord(text, kw string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start

		before := ' '
		if idx > 0 {
			runes := []rune(text[:idx])
			before = runes[len(runes)-1]
		}
		after := ' '
		if end := idx + len(kw); end < len(text) {
			after = []rune(text[end:])[0]
		}

		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		start = idx + len(kw)
		if start >= len(text) {
			return false
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isGreeting reports whether the input is a greeting. Greetings are global
// interrupts handled before any state dispatch.
func isGreeting(normalized string) bool {
	return matchesAny(normalized, greetingKeywords)
}

// isAffirmative matches the YES pattern set.
func isAffirmative(normalized string) bool {
	return matchesAny(normalized, yesKeywords)
}

// isNegative matches the NO pattern set.
func isNegative(normalized string) bool {
	return matchesAny(normalized, noKeywords)
}

// isMetroAddress reports whether the address mentions an in-metro area.
func isMetroAddress(address string) bool {
	return matchesAny(strings.ToLower(address), metroAreaKeywords)
}
