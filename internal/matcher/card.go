package matcher

import "regexp"

// cardNotice is the shared shape of Japanese card-usage notices: labeled date,
// merchant and amount lines under a vendor-specific heading.
type cardNotice struct {
	name        string
	brand       []string // any of these must appear in subject or body
	headings    []string // any of these must appear in subject or body
	flash       []string // vendor-specific preliminary markers
	placeholder string
	base        float64

	amount   *regexp.Regexp
	date     *regexp.Regexp
	merchant *regexp.Regexp
}

type cardLabels struct {
	amount   []string
	date     []string
	merchant []string
}

// Merchant placeholders used when a card notice names no merchant.
const (
	PlaceholderRakuten = "楽天カード利用"
	PlaceholderSMBC    = "三井住友カード利用"
	PlaceholderMUFG    = "MUFGカード利用"
	PlaceholderJCB     = "JCBカード利用"
	PlaceholderEpos    = "エポスカード利用"
)

var placeholders = map[string]bool{
	PlaceholderRakuten: true,
	PlaceholderSMBC:    true,
	PlaceholderMUFG:    true,
	PlaceholderJCB:     true,
	PlaceholderEpos:    true,
}

// IsPlaceholder reports whether merchant is a vendor placeholder rather than
// a merchant the notice actually named.
func IsPlaceholder(merchant string) bool { return placeholders[merchant] }

func newCardNotice(n cardNotice, labels cardLabels) *cardNotice {
	n.amount = amountPattern(labels.amount)
	n.date = datePattern(labels.date)
	n.merchant = merchantPattern(labels.merchant)
	return &n
}

func (c *cardNotice) Name() string { return c.name }

func (c *cardNotice) Recognizes(in Input) bool {
	all := in.Subject + "\n" + in.Text
	return containsAny(all, c.brand) && containsAny(all, c.headings)
}

func (c *cardNotice) Extract(in Input) Result {
	if isFlash(in, c.flash) {
		return Suppressed(ReasonFlash)
	}

	amount, ok := findAmount(c.amount, in.Text)
	if !ok {
		return NoMatch(ReasonNoAmount)
	}

	f := Fields{
		Amount:     amount,
		Confidence: c.base,
	}
	f.Date, f.Time, f.DateInvalid = findDate(c.date, in.Text, in.ReceivedAt)

	var tagged bool
	f.Merchant, tagged = findMerchant(c.merchant, in.Text)
	f.IsOverseas = isOverseas(in.Text, tagged)
	if f.Merchant == "" {
		f.Merchant = c.placeholder
		f.Confidence -= placeholderPenalty
	}

	if f.IsOverseas && inOverseasBand(f.Amount) {
		f.PrelimSubscription = true
	}
	return Matched(f)
}
