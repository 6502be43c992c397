package prompts

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxChars bounds text placed into a single prompt.
const DefaultMaxChars = 10000

const removedMarker = "[removed]"

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)disregard\s+(previous|all|above|prior)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(previous|all|everything)`),
	regexp.MustCompile(`(?i)(you\s+are\s+now|now\s+you\s+are|act\s+as)\s+`),
	regexp.MustCompile(`(?i)\b(system|assistant|user)\s*:\s*`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)updated\s+rules?:`),
	regexp.MustCompile(`(?i)override\s+(instructions?|rules?)`),
	regexp.MustCompile(`(?i)<\s*script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\b(eval|exec)\s*\(`),
	regexp.MustCompile(`(?i)show\s+(me\s+)?(your|the)\s+(system|prompt|instructions?)`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system|prompt)`),
	regexp.MustCompile(`(?i)what\s+(are|is)\s+your\s+(system|instructions?)`),
	regexp.MustCompile("['\"`]{3,}"),
	regexp.MustCompile(`-{3,}`),
	regexp.MustCompile(`={3,}`),
	// Our own delimiters.
	regexp.MustCompile(`<<<|>>>`),
}

var horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)

// SanitizeResult reports what Sanitize changed.
type SanitizeResult struct {
	Text      string
	Truncated bool
	Removed   int
}

// Sanitize prepares untrusted script text for a prompt: it truncates to
// maxChars runes, drops NUL and control characters except newline and tab,
// collapses horizontal whitespace and replaces injection patterns.
func Sanitize(text string, maxChars int) SanitizeResult {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	var res SanitizeResult

	if r := []rune(text); len(r) > maxChars {
		text = string(r[:maxChars])
		res.Truncated = true
	}

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == 0 || unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	text = horizontalSpace.ReplaceAllString(text, " ")

	for _, p := range dangerousPatterns {
		text = p.ReplaceAllStringFunc(text, func(string) string {
			res.Removed++
			return removedMarker
		})
	}

	res.Text = strings.TrimSpace(text)
	return res
}

// IsSafe reports whether text contains none of the injection patterns.
func IsSafe(text string) bool {
	for _, p := range dangerousPatterns {
		if p.MatchString(text) {
			return false
		}
	}
	return true
}
