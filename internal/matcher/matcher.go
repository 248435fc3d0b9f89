// Package matcher holds the vendor template matchers: one strategy per known
// notification layout, tried in a fixed priority order.
package matcher

import "time"

// Input is the normalized content of one mail.
type Input struct {
	Subject    string
	Text       string
	ReceivedAt time.Time // zero when the fetcher did not supply it
}

// Fields are the transaction fields a strategy extracted. Date is zero when the
// notice carried no date; the caller decides how to fall back. DateInvalid is
// set when a date was present but could not be read, and the candidate must
// then be discarded rather than dated some other way.
type Fields struct {
	Date               time.Time
	DateInvalid        bool
	Time               string
	Amount             int64
	Merchant           string
	IsOverseas         bool
	Confidence         float64
	PrelimSubscription bool
}

type outcome int

const (
	outcomeNoMatch outcome = iota
	outcomeMatched
	outcomeSuppressed
)

// Result is either Matched(fields), NoMatch(reason) or Suppressed(reason).
// A suppressed result means the matcher owns the mail but it must not yield a
// transaction, e.g. a preliminary notice.
type Result struct {
	outcome outcome
	fields  Fields
	reason  string
}

// Matched wraps successfully extracted fields.
func Matched(f Fields) Result { return Result{outcome: outcomeMatched, fields: f} }

// NoMatch reports that the layout was not (fully) recognized.
func NoMatch(reason string) Result { return Result{outcome: outcomeNoMatch, reason: reason} }

// Suppressed reports a recognized mail that must produce nothing.
func Suppressed(reason string) Result { return Result{outcome: outcomeSuppressed, reason: reason} }

// Fields returns the extracted fields and whether the result is a match.
func (r Result) Fields() (Fields, bool) { return r.fields, r.outcome == outcomeMatched }

// IsSuppressed reports whether the mail was deliberately dropped.
func (r Result) IsSuppressed() bool { return r.outcome == outcomeSuppressed }

// Reason explains a non-match or suppression.
func (r Result) Reason() string { return r.reason }

// Reasons used by the built-in matchers.
const (
	ReasonFlash     = "flash"
	ReasonNoAmount  = "no_amount"
	ReasonCancelled = "cancelled"
)

// Matcher is one vendor-specific extraction strategy.
type Matcher interface {
	// Name is the source tag attached to transactions the matcher produces.
	Name() string
	Recognizes(in Input) bool
	Extract(in Input) Result
}

// Default returns the built-in matchers in priority order. The order is part
// of the contract: the first matcher that recognizes and extracts a mail wins.
func Default() []Matcher {
	return []Matcher{
		RakutenCard(),
		SMBCCard(),
		MUFGCard(),
		JCBCard(),
		EposCard(),
		AmazonOrder(),
	}
}
