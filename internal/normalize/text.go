// Package normalize canonicalizes notification text and merchant names.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var lineEndings = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u00a0", " ",
	"\u200b", "",
	"\ufeff", "",
)

// Text folds full-width digits, letters and punctuation to their half-width
// forms (NFKC), unifies line endings and drops trailing whitespace on every
// line. Half-width katakana come out full-width with voicing marks composed,
// so vendor labels compare equal however the sender encoded them.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = lineEndings.Replace(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
