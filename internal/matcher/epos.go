package matcher

// EposCard matches エポスカード usage notices:
//
//	ご利用日時:2024年05月01日 12:34
//	ご利用場所:マルイ
//	ご利用金額:1,980円
func EposCard() Matcher {
	return newCardNotice(cardNotice{
		name:        "epos_card",
		brand:       []string{"エポスカード", "eposcard.co.jp"},
		headings:    []string{"ご利用のお知らせ", "カードご利用", "ご利用金額"},
		placeholder: PlaceholderEpos,
		base:        0.88,
	}, cardLabels{
		amount:   []string{"ご利用金額"},
		date:     []string{"ご利用日時", "ご利用日"},
		merchant: []string{"ご利用場所", "ご利用先", "ご利用店舗"},
	})
}
