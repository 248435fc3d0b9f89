package matcher

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/mailtx/internal/model"
)

const (
	// placeholderPenalty is subtracted when the merchant fell back to a placeholder.
	placeholderPenalty = 0.10

	// Overseas charges inside this yen band look like foreign-currency
	// subscription pricing and are flagged on first sight.
	overseasSubscriptionMin = 500
	overseasSubscriptionMax = 3000
)

// maxAmount rejects numerals no card notice could carry, such as order or
// account numbers caught by a loose label.
var maxAmount = decimal.NewFromInt(1_000_000_000_000)

// numeral is a grouped numeral such as "1,980" or "12.50".
const numeral = `([0-9][0-9,]*(?:\.[0-9]+)?)`

// labelGap is what may sit between a label and its value: brackets, colons,
// a parenthetical such as "(日本時間)", and spacing, all on the same line.
const labelGap = `[^\S\n]*(?:\([^)\n]{0,20}\))?[^\S\n]*[】\]:]?[^\S\n]*`

// labelSep is labelGap with the bracket or colon required.
const labelSep = `[^\S\n]*(?:\([^)\n]{0,20}\))?[^\S\n]*[】\]:][^\S\n]*`

// labelAlt joins literal labels into a regexp alternation.
func labelAlt(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	return `(?:` + strings.Join(quoted, `|`) + `)`
}

// amountPattern matches a labeled amount followed by 円/JPY, or preceded by ¥.
func amountPattern(labels []string) *regexp.Regexp {
	return regexp.MustCompile(labelAlt(labels) + labelGap +
		`(?:¥[^\S\n]*` + numeral + `|` + numeral + `[^\S\n]*(?:円|JPY))`)
}

// datePattern matches a labeled date with optional year and optional HH:MM.
// Groups: year, month, day, hour, minute.
func datePattern(labels []string) *regexp.Regexp {
	return regexp.MustCompile(labelAlt(labels) + labelGap +
		`(?:([0-9]{4})[^\S\n]*[/年.\-][^\S\n]*)?([0-9]{1,2})[^\S\n]*[/月.\-][^\S\n]*([0-9]{1,2})[^\S\n]*日?` +
		`(?:[^\S\n]*(?:\([^)\n]{1,6}\))?[^\S\n]*([0-9]{1,2}):([0-9]{2}))?`)
}

// merchantPattern captures the rest of the line after a merchant label.
func merchantPattern(labels []string) *regexp.Regexp {
	return regexp.MustCompile(labelAlt(labels) + labelGap + `([^\n]+)`)
}

// findAmount returns the first labeled amount in minor units.
func findAmount(re *regexp.Regexp, text string) (int64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	return parseAmount(raw)
}

// parseAmount converts "1,980" into 1980. Fractional yen are rounded.
func parseAmount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() || d.GreaterThan(maxAmount) {
		return 0, false
	}
	n := d.Round(0).IntPart()
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// findDate returns the first labeled date that is a real calendar date and its
// "HH:MM" time. A year-less date takes the year of received, stepping back a
// year when the result would land after the mail arrived. bad is set when
// labeled dates were present but none of them could be read.
func findDate(re *regexp.Regexp, text string, received time.Time) (d time.Time, clock string, bad bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		day, ok := buildDate(m[1], m[2], m[3], received)
		if !ok {
			bad = true
			continue
		}
		return day, buildClock(m[4], m[5]), false
	}
	return time.Time{}, "", bad
}

// buildDate validates a year/month/day triple as a real calendar date.
func buildDate(ys, ms, ds string, received time.Time) (time.Time, bool) {
	month, err := strconv.Atoi(ms)
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(ds)
	if err != nil {
		return time.Time{}, false
	}

	var year int
	inferred := false
	if ys != "" {
		if year, err = strconv.Atoi(ys); err != nil {
			return time.Time{}, false
		}
	} else {
		if received.IsZero() {
			return time.Time{}, false
		}
		year = received.Year()
		inferred = true
	}

	d, ok := model.ValidDate(year, month, day)
	if !ok {
		return time.Time{}, false
	}
	if inferred && d.After(received) {
		if d, ok = model.ValidDate(year-1, month, day); !ok {
			return time.Time{}, false
		}
	}
	return d, true
}

func buildClock(hs, ms string) string {
	if hs == "" || ms == "" {
		return ""
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h > 23 {
		return ""
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// overseasTag is a trailing marker some issuers append to the merchant name.
var overseasTag = regexp.MustCompile(`[^\S\n]*\((?:海外|海外利用|海外ご利用分|海外利用分)\)$`)

// findMerchant returns the trimmed merchant value following a label, and
// whether the issuer tagged it as an overseas charge.
func findMerchant(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	tagged := overseasTag.MatchString(v)
	v = overseasTag.ReplaceAllString(v, "")
	return strings.TrimSpace(v), tagged
}

// containsAny reports whether s contains any of the needles.
func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// flashMarkers identify preliminary notices whose merchant/amount pairing is
// unreliable; the confirmed notice follows later.
var flashMarkers = []string{
	"速報",
	"詳細は後日",
	"後日あらためて",
	"後日改めて",
	"確定後にお知らせ",
	"利用先は後日",
}

// isFlash reports whether a mail is a preliminary notice.
func isFlash(in Input, extra []string) bool {
	all := in.Subject + "\n" + in.Text
	return containsAny(all, flashMarkers) || containsAny(all, extra)
}

// Labeled lines only appear on charges made abroad: the country of use, or
// the amount in the local currency. Footer prose about overseas use does not
// count.
var (
	countryLine  = regexp.MustCompile(`(?m)^[^\S\n]*[■◇◆【\[]?` + labelAlt([]string{"ご利用国・地域", "利用国・地域", "ご利用国", "利用国"}) + labelSep + `([^\n]*)`)
	currencyLine = regexp.MustCompile(`(?m)^[^\S\n]*[■◇◆【\[]?` + labelAlt([]string{"現地通貨額", "現地通貨金額", "現地利用額", "外貨金額", "外貨額", "現地通貨", "外貨"}) + labelSep + `([^\n]*[0-9][^\n]*)`)
)

var domesticCountries = []string{"日本", "JAPAN", "JPN", "JP"}

// isOverseas reports whether a labeled field marks the charge as a foreign one.
// A country line naming Japan does not.
func isOverseas(text string, merchantTagged bool) bool {
	if merchantTagged {
		return true
	}
	for _, m := range countryLine.FindAllStringSubmatch(text, -1) {
		v := strings.ToUpper(strings.TrimSpace(m[1]))
		if v != "" && !slices.Contains(domesticCountries, v) {
			return true
		}
	}
	return currencyLine.MatchString(text)
}

// inOverseasBand reports whether amount looks like a foreign subscription price.
func inOverseasBand(amount int64) bool {
	return amount >= overseasSubscriptionMin && amount <= overseasSubscriptionMax
}
