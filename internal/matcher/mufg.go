package matcher

// MUFGCard matches 三菱UFJニコス (MUFGカード/DCカード/NICOSカード) notices:
//
//	【ご利用日時】2024/05/01 12:34
//	【ご利用店名】NETFLIX.COM
//	【ご利用金額】1,490円
func MUFGCard() Matcher {
	return newCardNotice(cardNotice{
		name:        "mufg_card",
		brand:       []string{"MUFGカード", "三菱UFJニコス", "DCカード", "NICOSカード", "cr.mufg.jp"},
		headings:    []string{"ご利用のお知らせ", "カードご利用", "【ご利用金額】"},
		placeholder: PlaceholderMUFG,
		base:        0.90,
	}, cardLabels{
		amount:   []string{"【ご利用金額", "ご利用金額"},
		date:     []string{"【ご利用日時", "【ご利用日", "ご利用日時", "ご利用日"},
		merchant: []string{"【ご利用店名", "【ご利用先", "ご利用店名", "ご利用先"},
	})
}
