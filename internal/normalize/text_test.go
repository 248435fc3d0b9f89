package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"full-width digits", "利用金額：１，９８０円", "利用金額:1,980円"},
		{"full-width slash date", "２０２４／０５／０１", "2024/05/01"},
		{"ideographic space", "利用日\u3000２０２４", "利用日 2024"},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"nbsp", "a\u00a0b", "a b"},
		{"trailing spaces before break", "a  \t\nb ", "a\nb"},
		{"yen sign", "￥1,200", "¥1,200"},
		{"half-width katakana widened", "ｱﾏｿﾞﾝ", "アマゾン"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	in := "◇利用日：２０２４／０５／０１　１２：３４\r\n◇利用金額：１，９８０円　\r\n"
	once := Text(in)
	assert.Equal(t, once, Text(once))
}
