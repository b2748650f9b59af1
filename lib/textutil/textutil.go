package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// RemoveAccents folds away diacritics, e.g. "Tereza Nováková"
// becomes "Tereza Novakova".
func RemoveAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

var customEmojiRegex = regexp.MustCompile(`^<a?:\w+:\d+>`)

// skin tone modifiers, Fitzpatrick scale
func isEmojiModifier(r rune) bool {
	return r >= 0x1F3FB && r <= 0x1F3FF
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // emoticons, symbols, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // arrows and symbols
		return true
	case r == 0x203C || r == 0x2049 || r == 0x2122 || r == 0x2139:
		return true
	case r >= 0x2190 && r <= 0x21FF: // arrows
		return true
	}
	return false
}

// StartingEmoji returns the emoji a string starts with, be it a
// unicode emoji (including joined sequences) or a custom one in the
// <:name:id> form. Returns "" when the string starts with anything else.
func StartingEmoji(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if custom := customEmojiRegex.FindString(text); custom != "" {
		return custom
	}

	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(text, -1)
	for _, r := range cluster {
		if isEmojiRune(r) {
			return cluster
		}
	}
	return ""
}

// StripEmojiModifiers drops skin tone modifiers, so "👋🏻" compares
// equal to "👋".
func StripEmojiModifiers(emoji string) string {
	var b strings.Builder
	for _, r := range emoji {
		if isEmojiModifier(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
