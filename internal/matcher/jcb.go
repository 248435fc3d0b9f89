package matcher

// JCBCard matches JCB "ショッピングご利用のお知らせ" notices:
//
//	【ご利用日時(日本時間)】 2024/05/01 12:34
//	【ご利用金額】 1,980円
//	【ご利用先】 AMAZON.CO.JP
func JCBCard() Matcher {
	return newCardNotice(cardNotice{
		name:        "jcb_card",
		brand:       []string{"JCB", "jcb.co.jp"},
		headings:    []string{"ショッピングご利用のお知らせ", "カードご利用のお知らせ", "ご利用のお知らせ"},
		placeholder: PlaceholderJCB,
		base:        0.90,
	}, cardLabels{
		amount:   []string{"【ご利用金額", "ご利用金額"},
		date:     []string{"【ご利用日時", "【ご利用日", "ご利用日時", "ご利用日"},
		merchant: []string{"【ご利用先", "【ご利用店名", "ご利用先", "ご利用店名"},
	})
}
