package correction

import (
	"regexp"
	"strings"
)

// disallowedScriptRe flags characters outside the Latin blocks used by
// Azerbaijani plus common punctuation; this catches Cyrillic or Greek
// leaks the model occasionally produces mid-word. U+0250-02AF is the
// IPA Extensions block, where lowercase schwa (ə) lives.
var disallowedScriptRe = regexp.MustCompile(`[^\x{0000}-\x{007F}\x{00A0}-\x{024F}\x{0250}-\x{02AF}\x{1E00}-\x{1EFF}\x{0300}-\x{036F}\s.,!?;:'"()\-\x{2013}\x{2014}]`)

// malformedDiacriticRe matches telltale half-corrected words the model
// emits when it drops diacritics.
var malformedDiacriticRe = regexp.MustCompile(`(?i)göndərmek|isteyirəm|yaziram|men sizə`)

var wrappingQuotesRe = regexp.MustCompile("^[\"'`]+|[\"'`]+$")

// confusables maps Cyrillic homoglyphs to their Latin counterparts.
var confusables = map[rune]rune{
	'А': 'A', 'а': 'a',
	'В': 'B', 'в': 'b',
	'Е': 'E', 'е': 'e',
	'К': 'K', 'к': 'k',
	'М': 'M', 'м': 'm',
	'О': 'O', 'о': 'o',
	'Р': 'P', 'р': 'p',
	'С': 'C', 'с': 'c',
	'Т': 'T', 'т': 't',
	'Х': 'X', 'х': 'x',
	'У': 'Y', 'у': 'y',
	'И': 'I', 'и': 'i',
	'Ј': 'J', 'ј': 'j',
}

// normalizeConfusables rewrites Cyrillic homoglyphs (sənədlərимi) into
// Latin letters. Cyrillic characters without a mapping pass through
// untouched for the repair pass to deal with.
func normalizeConfusables(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x0400 || r > 0x04FF {
			return r
		}
		if mapped, ok := confusables[r]; ok {
			return mapped
		}
		return r
	}, s)
}

// needsRepair reports whether model output shows script leakage or
// malformed diacritics that warrant a cleanup pass.
func needsRepair(s string) bool {
	return disallowedScriptRe.MatchString(s) || malformedDiacriticRe.MatchString(s)
}

// finalize applies the deterministic output hygiene every response gets:
// trim, strip accidental wrapping quotes, canonicalize homoglyphs.
func finalize(s string) string {
	out := strings.TrimSpace(s)
	out = wrappingQuotesRe.ReplaceAllString(out, "")
	out = normalizeConfusables(out)
	return strings.TrimSpace(out)
}
