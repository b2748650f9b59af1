package discord

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmojiName(t *testing.T) {
	testCases := []struct {
		emoji    Emoji
		expected string
	}{
		{Emoji{Name: "🆗"}, "🆗"},
		{Emoji{Name: "👋🏻"}, "👋"},
		{Emoji{ID: "1002448596572061746", Name: "lolpain"}, "lolpain"},
		{Emoji{ID: "1002448596572061747", Name: "BabyYoda"}, "babyyoda"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, EmojiName(tc.emoji))
	}
}

func TestMessageOlderThan(t *testing.T) {
	message := &Message{Timestamp: time.Date(2022, 1, 25, 14, 30, 0, 0, time.UTC)}

	testCases := []struct {
		date     time.Time
		expected bool
	}{
		{time.Date(2022, 1, 24, 0, 0, 0, 0, time.UTC), false},
		{time.Date(2022, 1, 25, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2022, 1, 26, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, MessageOlderThan(message, tc.date))
	}
}

func TestMessageOlderThanNoMessage(t *testing.T) {
	require.True(t, MessageOlderThan(nil, time.Date(2022, 1, 25, 0, 0, 0, 0, time.UTC)))
}

func TestTimeSnowflake(t *testing.T) {
	require.Equal(t, "0", TimeSnowflake(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "0", TimeSnowflake(time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "661720242585600000", TimeSnowflake(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMessageOverPeriodAgo(t *testing.T) {
	message := &Message{Timestamp: time.Date(2022, 1, 18, 9, 0, 0, 0, time.UTC)}

	testCases := []struct {
		today    time.Time
		expected bool
	}{
		{time.Date(2022, 1, 24, 0, 0, 0, 0, time.UTC), false},
		{time.Date(2022, 1, 25, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2022, 1, 26, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, MessageOverPeriodAgo(message, time.Hour*24*7, tc.today))
	}
}

func TestReactionCount(t *testing.T) {
	message := Message{Reactions: []Reaction{
		{Emoji: Emoji{Name: "✅"}, Count: 2},
		{Emoji: Emoji{Name: "❤️"}, Count: 42},
	}}
	require.Equal(t, 2, message.ReactionCount("✅"))
	require.Equal(t, 0, message.ReactionCount("👀"))
}
