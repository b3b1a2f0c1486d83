package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxPromptLength はプロンプトの最大文字数（rune数）。
const DefaultMaxPromptLength = 4000

// PromptSanitizerService は生成バックエンドに渡す前のプロンプトを整える。
type PromptSanitizerService interface {
	// Sanitize は改行とタブ以外の制御文字を除去し、最大長で切り詰める。
	// それ以外の文字（<>や改行を含む）は入力のまま残す。
	// 空白だけの入力は空文字列になる。
	Sanitize(prompt string) string
}

type promptSanitizer struct {
	maxLength int
}

// NewPromptSanitizer はPromptSanitizerServiceの新しいインスタンスを生成する。
// maxLengthが0以下の場合はDefaultMaxPromptLengthを使う。
func NewPromptSanitizer(maxLength int) *promptSanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxPromptLength
	}
	return &promptSanitizer{maxLength: maxLength}
}

// Sanitize はPromptSanitizerServiceを実装する。
func (s *promptSanitizer) Sanitize(prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return ""
	}

	text := strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, prompt)

	if utf8.RuneCountInString(text) > s.maxLength {
		text = string([]rune(text)[:s.maxLength])
	}
	return text
}
