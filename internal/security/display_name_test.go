package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Alice Liddell", "Alice Liddell"},
		{"empty", "", ""},
		{"tags stripped", "<b>Alice</b>", "Alice"},
		{"script removed", "<script>alert(1)</script>Bob", "Bob"},
		{"entities decoded", "Tom &amp; Jerry", "Tom & Jerry"},
		{"apostrophe kept", "O'Brien", "O'Brien"},
		{"whitespace collapsed", "  Carol \n\t Danvers ", "Carol Danvers"},
		{"japanese", "山田 太郎", "山田 太郎"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanDisplayName(tt.input); got != tt.want {
				t.Errorf("CleanDisplayName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanDisplayName_Truncates(t *testing.T) {
	got := CleanDisplayName(strings.Repeat("名", MaxDisplayNameLength+20))
	if n := utf8.RuneCountInString(got); n != MaxDisplayNameLength {
		t.Errorf("rune count = %d, want %d", n, MaxDisplayNameLength)
	}
}
