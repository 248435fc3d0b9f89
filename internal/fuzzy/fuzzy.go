// Package fuzzy is the opt-in last resort for mails no vendor matcher claims.
// It looks for any date, any yen amount and a labeled merchant anywhere in the
// text, and reports a deliberately low confidence.
package fuzzy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/mailtx/internal/matcher"
	"github.com/cleared-dev/mailtx/internal/model"
)

const (
	// Name is the source tag for fuzzy transactions.
	Name = model.SourceFuzzy

	// Confidence is fixed and below every vendor matcher's base.
	Confidence = 0.55

	MinAmount = 100
	MaxAmount = 10_000_000

	ReasonNoAmount   = "no_amount"
	ReasonOutOfRange = "amount_out_of_range"
	ReasonEmptyText  = "empty"
)

var (
	datePattern = regexp.MustCompile(`([0-9]{4})[^\S\n]*[/年.\-][^\S\n]*([0-9]{1,2})[^\S\n]*[/月.\-][^\S\n]*([0-9]{1,2})[^\S\n]*日?` +
		`(?:[^\S\n]*(?:\([^)\n]{1,6}\))?[^\S\n]*([0-9]{1,2}):([0-9]{2}))?`)

	amountPattern = regexp.MustCompile(`¥[^\S\n]*([0-9][0-9,]*(?:\.[0-9]+)?)|([0-9][0-9,]*(?:\.[0-9]+)?)[^\S\n]*円`)

	merchantPattern = regexp.MustCompile(
		`(?:ご利用店名|ご利用先|利用店名|利用先|加盟店名|店名|Merchant|Store)[^\S\n]*[】\]:]?[^\S\n]*([^\n]+)`)
)

// Extract pulls a transaction out of free-form notification text. The date is
// zero when none was found; DateInvalid is set when every date-shaped value
// was impossible.
func Extract(in matcher.Input) matcher.Result {
	if strings.TrimSpace(in.Text) == "" {
		return matcher.NoMatch(ReasonEmptyText)
	}

	m := amountPattern.FindStringSubmatch(in.Text)
	if m == nil {
		return matcher.NoMatch(ReasonNoAmount)
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	amount, ok := parseAmount(raw)
	if !ok || amount < MinAmount || amount > MaxAmount {
		return matcher.NoMatch(ReasonOutOfRange)
	}

	f := matcher.Fields{
		Amount:     amount,
		Merchant:   merchant(in),
		Confidence: Confidence,
	}
	f.Date, f.Time, f.DateInvalid = date(in.Text)
	return matcher.Matched(f)
}

func parseAmount(s string) (int64, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || d.GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return 0, false
	}
	return d.Round(0).IntPart(), true
}

// date returns the first triple that is a real calendar date. The flag reports
// triples that were found when none of them was valid.
func date(text string) (time.Time, string, bool) {
	bad := false
	for _, m := range datePattern.FindAllStringSubmatch(text, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		day, ok := model.ValidDate(y, mo, d)
		if !ok {
			bad = true
			continue
		}
		return day, clock24(m[4], m[5]), false
	}
	return time.Time{}, "", bad
}

func clock24(hs, ms string) string {
	if hs == "" {
		return ""
	}
	h, _ := strconv.Atoi(hs)
	m, _ := strconv.Atoi(ms)
	if h > 23 || m > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func merchant(in matcher.Input) string {
	if m := merchantPattern.FindStringSubmatch(in.Text); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			return v
		}
	}
	if s := strings.TrimSpace(in.Subject); s != "" {
		return s
	}
	return model.UnknownMerchant
}
