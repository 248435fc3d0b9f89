package matcher

// SMBCCard matches 三井住友カード (Vpass) "ご利用のお知らせ" notices:
//
//	◇利用日:2024/05/01 12:34
//	◇利用先:セブン-イレブン
//	◇利用取引:買物
//	◇利用金額:1,980円
func SMBCCard() Matcher {
	return newCardNotice(cardNotice{
		name:        "smbc_card",
		brand:       []string{"三井住友カード", "Vpass", "vpass.ne.jp", "smbc-card.com"},
		headings:    []string{"ご利用のお知らせ", "ご利用確認", "◇利用金額"},
		flash:       []string{"ご利用先等の詳細は後日"},
		placeholder: PlaceholderSMBC,
		base:        0.93,
	}, cardLabels{
		amount:   []string{"◇利用金額", "利用金額"},
		date:     []string{"◇利用日", "利用日時", "利用日"},
		merchant: []string{"◇利用先", "利用先"},
	})
}
