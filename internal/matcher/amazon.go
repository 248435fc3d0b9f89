package matcher

import "regexp"

// amazonOrder matches Amazon.co.jp order confirmations. The merchant is the
// store itself, so it never falls back to a placeholder.
//
//	注文日: 2024/05/01
//	注文番号: 250-1234567-1234567
//	ご請求額: ¥ 1,980
type amazonOrder struct {
	amount *regexp.Regexp
	date   *regexp.Regexp
}

// AmazonOrder returns the Amazon.co.jp order-confirmation matcher.
func AmazonOrder() Matcher {
	return &amazonOrder{
		amount: amountPattern([]string{"ご請求額", "注文合計", "お支払い金額", "Order Total", "Grand Total"}),
		date:   datePattern([]string{"注文日", "ご注文日", "Order Placed", "Order Date"}),
	}
}

const amazonMerchant = "Amazon.co.jp"

var (
	amazonSenders  = []string{"Amazon.co.jp", "amazon.co.jp"}
	amazonHeadings = []string{"ご注文の確認", "注文確認", "ご注文ありがとうございます", "Your Amazon.co.jp order"}
	amazonCancel   = []string{"キャンセル", "cancelled", "canceled"}
)

func (a *amazonOrder) Name() string { return "amazon_order" }

func (a *amazonOrder) Recognizes(in Input) bool {
	all := in.Subject + "\n" + in.Text
	return containsAny(all, amazonSenders) && containsAny(in.Subject+"\n"+firstLines(in.Text, 5), amazonHeadings)
}

func (a *amazonOrder) Extract(in Input) Result {
	if containsAny(in.Subject, amazonCancel) {
		return Suppressed(ReasonCancelled)
	}

	amount, ok := findAmount(a.amount, in.Text)
	if !ok {
		return NoMatch(ReasonNoAmount)
	}

	f := Fields{
		Amount:     amount,
		Merchant:   amazonMerchant,
		Confidence: 0.90,
	}
	f.Date, f.Time, f.DateInvalid = findDate(a.date, in.Text, in.ReceivedAt)
	return Matched(f)
}

// firstLines returns at most n leading lines of s.
func firstLines(s string, n int) string {
	count := 0
	for i, r := range s {
		if r == '\n' {
			count++
			if count == n {
				return s[:i]
			}
		}
	}
	return s
}
