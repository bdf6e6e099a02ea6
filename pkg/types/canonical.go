package types

import (
	"html"
	"regexp"
	"strings"
)

// controlChars matches C0/C1 control characters that extractors occasionally
// leak into entity names and descriptions.
var controlChars = regexp.MustCompile(`[\x{0000}-\x{001f}\x{007f}-\x{009f}]`)

// CleanString removes HTML escapes, control characters and double quotes from
// an extracted field.
func CleanString(s string) string {
	result := html.UnescapeString(s)
	result = controlChars.ReplaceAllString(result, "")
	result = strings.ReplaceAll(result, `"`, "")
	return strings.TrimSpace(result)
}

// Canonicalize produces the canonical node uid for a raw extracted title:
// upper-cased, then cleaned. Canonicalize is idempotent, so stored uids
// satisfy uid == Canonicalize(uid).
func Canonicalize(raw string) string {
	return CleanString(strings.ToUpper(raw))
}
