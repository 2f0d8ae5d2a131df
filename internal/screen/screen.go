// Package screen provides pre-moderation content screening. It scans
// submitted text for patterns that deserve a closer look — URLs, phone
// numbers, character or word flooding — and returns an advisory flag that is
// attached to the moderator view. Screening never blocks a submission;
// the decision always stays with a human moderator.
package screen

import (
	"regexp"
	"strings"
	"unicode"
)

// Compiled once at package init and reused for every call, so checks are
// safe and cheap under concurrent use.
var (
	// urlPattern matches http/https URLs, www. URLs, and bare domains on
	// common TLDs. The bare-domain variant requires a trailing "/" to
	// avoid false positives on version strings like "v2.0".
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// phonePattern matches common phone number formats such as
	// +1-555-123-4567, (555) 123-4567, 555.123.4567. Anchored to
	// whitespace boundaries so short plain numbers don't match.
	phonePattern = regexp.MustCompile(`(?:^|\s)(\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}(?:\s|$)`)
)

// check pairs a detection function with the flag it raises.
type check struct {
	flag  string
	match func(string) bool
}

// checks is the ordered list applied by Check; the first match wins.
var checks = []check{
	{flag: "url", match: urlPattern.MatchString},
	{flag: "phone", match: phonePattern.MatchString},
	{flag: "char_flood", match: hasCharFlood},
	{flag: "word_flood", match: hasWordFlood},
}

// Check scans text and returns the first raised flag, or "" when the text
// looks clean.
func Check(text string) string {
	for _, c := range checks {
		if c.match(text) {
			return c.flag
		}
	}
	return ""
}

// hasCharFlood returns true if text contains 5 or more consecutive identical
// characters. RE2 has no backreferences, so this is a linear scan.
func hasCharFlood(text string) bool {
	const threshold = 5

	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasWordFlood returns true if the same word appears 3 or more times
// consecutively, case-insensitive, delimited by whitespace.
func hasWordFlood(text string) bool {
	const threshold = 3

	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	if len(words) < threshold {
		return false
	}

	count := 1
	prev := ""
	for _, w := range words {
		lower := strings.ToLower(w)
		if lower == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = lower
		}
	}
	return false
}
