package matcher

// RakutenCard matches 楽天カード "カード利用のお知らせ" notices:
//
//	■利用日: 2024/05/01
//	■利用先: AMAZON.CO.JP
//	■利用者: 本人
//	■支払方法: 1回
//	■利用金額: 1,980 円
//
// The 速報版 variant arrives minutes after the swipe without a reliable
// merchant and is suppressed.
func RakutenCard() Matcher {
	return newCardNotice(cardNotice{
		name:        "rakuten_card",
		brand:       []string{"楽天カード", "rakuten-card.co.jp"},
		headings:    []string{"カード利用のお知らせ", "ご利用のお知らせ", "■利用金額"},
		flash:       []string{"ご利用内容は確定次第"},
		placeholder: PlaceholderRakuten,
		base:        0.95,
	}, cardLabels{
		amount:   []string{"■利用金額", "■ご利用金額", "利用金額"},
		date:     []string{"■利用日", "■ご利用日", "利用日"},
		merchant: []string{"■利用先", "■ご利用先", "利用先"},
	})
}
