package model

import "time"

// Source tags for transactions not produced by a vendor matcher.
const (
	SourceFuzzy   = "fuzzy"
	SourceUnknown = "unknown"
)

// UnknownMerchant is the placeholder used when no merchant could be resolved.
const UnknownMerchant = "unknown"

// ParsedTransaction is a single charge extracted from one notification mail.
type ParsedTransaction struct {
	Source             string    `json:"sourceTag"`
	MailID             string    `json:"mailId"`
	Date               time.Time `json:"date"`           // calendar date, UTC midnight
	Time               string    `json:"time,omitempty"` // "HH:MM" when the notice carried one
	Amount             int64     `json:"amount"`         // minor currency units
	Merchant           string    `json:"merchant"`
	RawMerchant        string    `json:"rawMerchant,omitempty"`
	IsOverseas         bool      `json:"isOverseas"`
	Confidence         float64   `json:"confidence"`
	PrelimSubscription bool      `json:"prelimSubscription"`
}

// Day returns the calendar date year-month-day as UTC midnight.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t in t's own location, as UTC midnight.
func DateOf(t time.Time) time.Time {
	return Day(t.Year(), t.Month(), t.Day())
}

// ValidDate returns the calendar date year-month-day if it exists and lies
// within the range notices can plausibly carry.
func ValidDate(year, month, day int) (time.Time, bool) {
	if year < 1990 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
