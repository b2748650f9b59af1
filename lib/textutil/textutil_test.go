package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartingEmoji(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected string
	}{
		{"empty", "", ""},
		{"emoji", "😀", "😀"},
		{"emoji with text", "😀 blah blah blah", "😀"},
		{"multi byte emoji with text", "👨‍👩‍👦 blah blah blah", "👨‍👩‍👦"},
		{"emoji with spaces", "     😀", "😀"},
		{"custom emoji", "<:discordthread:993580255287705681>", "<:discordthread:993580255287705681>"},
		{"custom emoji with text", "<:discordthread:993580255287705681> blah blah blah", "<:discordthread:993580255287705681>"},
		{"custom emoji with spaces", "    <:discordthread:993580255287705681>", "<:discordthread:993580255287705681>"},
		{"plain text", "AHOJ", ""},
		{"marker emoji", "🆗 fourth message", "🆗"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, StartingEmoji(tc.text))
		})
	}
}

func TestStripEmojiModifiers(t *testing.T) {
	require.Equal(t, "👋", StripEmojiModifiers("👋🏻"))
	require.Equal(t, "👋", StripEmojiModifiers("👋"))
	require.Equal(t, "🆗", StripEmojiModifiers("🆗"))
}

func TestRemoveAccents(t *testing.T) {
	testCases := []struct {
		value    string
		expected string
	}{
		{"žofie", "zofie"},
		{"tereza nováková", "tereza novakova"},
		{"katarína", "katarina"},
		{"alice", "alice"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, RemoveAccents(tc.value))
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "alice foo", NormalizeName("  Alice   Foo\n"))
}
