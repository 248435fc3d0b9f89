package fuzzy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/mailtx/internal/matcher"
	"github.com/cleared-dev/mailtx/internal/model"
)

func TestExtract(t *testing.T) {
	in := matcher.Input{
		Subject: "お支払いのお知らせ",
		Text:    "お支払い日 2024年5月1日 09:15\n加盟店名: ABC STORE\nお支払い金額 3,300円\n",
	}
	f, ok := Extract(in).Fields()
	require.True(t, ok)
	assert.Equal(t, int64(3300), f.Amount)
	assert.Equal(t, "ABC STORE", f.Merchant)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), f.Date)
	assert.Equal(t, "09:15", f.Time)
	assert.InDelta(t, Confidence, f.Confidence, 1e-9)
}

func TestExtract_YenPrefix(t *testing.T) {
	f, ok := Extract(matcher.Input{Text: "Total ¥12,800\n2024-06-10"}).Fields()
	require.True(t, ok)
	assert.Equal(t, int64(12800), f.Amount)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), f.Date)
	assert.Equal(t, model.UnknownMerchant, f.Merchant)
}

func TestExtract_MerchantFallsBackToSubject(t *testing.T) {
	f, ok := Extract(matcher.Input{Subject: "ABCマート ご購入明細", Text: "合計 5,000円"}).Fields()
	require.True(t, ok)
	assert.Equal(t, "ABCマート ご購入明細", f.Merchant)
	assert.True(t, f.Date.IsZero())
}

func TestExtract_SkipsInvalidDates(t *testing.T) {
	f, ok := Extract(matcher.Input{Text: "2024/02/30 受付\n2024/03/01 決済\n1,000円"}).Fields()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), f.Date)
	assert.False(t, f.DateInvalid)
}

func TestExtract_ImpossibleDate(t *testing.T) {
	f, ok := Extract(matcher.Input{Text: "2024/02/30 決済\n1,000円"}).Fields()
	require.True(t, ok)
	assert.True(t, f.Date.IsZero())
	assert.True(t, f.DateInvalid)

	f, ok = Extract(matcher.Input{Text: "合計 1,000円"}).Fields()
	require.True(t, ok)
	assert.False(t, f.DateInvalid, "no date at all is not an invalid one")
}

func TestExtract_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"empty", "  \n", ReasonEmptyText},
		{"no amount", "2024/05/01 ご利用ありがとうございます", ReasonNoAmount},
		{"too small", "ポイント 50円 付与", ReasonOutOfRange},
		{"too large", "残高 12,000,000円", ReasonOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(matcher.Input{Text: tt.text})
			_, ok := res.Fields()
			assert.False(t, ok)
			assert.Equal(t, tt.reason, res.Reason())
		})
	}
}

func TestConfidenceBelowMatchers(t *testing.T) {
	in := matcher.Input{
		Subject: "カード利用のお知らせ",
		Text:    "楽天カード\n■利用日: 2024/05/01\n■利用金額: 800 円\n",
	}
	for _, m := range matcher.Default() {
		if !m.Recognizes(in) {
			continue
		}
		f, ok := m.Extract(in).Fields()
		require.True(t, ok)
		assert.Greater(t, f.Confidence, Confidence, m.Name())
	}
}
