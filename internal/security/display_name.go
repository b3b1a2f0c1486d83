package security

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDisplayNameLength は表示名の最大文字数（rune数）。
const MaxDisplayNameLength = 100

// StrictPolicyはgoroutineから並行に使える
var displayNamePolicy = bluemonday.StrictPolicy()

// CleanDisplayName はIdPから受け取った表示名をプレーンテキストにする。
// HTMLタグと制御文字を除去し、連続する空白を1つにまとめ、最大長で切り詰める。
func CleanDisplayName(name string) string {
	text := html.UnescapeString(displayNamePolicy.Sanitize(name))
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) > MaxDisplayNameLength {
		text = strings.TrimSpace(string([]rune(text)[:MaxDisplayNameLength]))
	}
	return text
}
