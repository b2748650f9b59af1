package club

import (
	"testing"
	"time"

	"clubops-backend/lib/discord"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMessageRecord(t *testing.T) {
	created := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := discord.Message{
		ID:        "11",
		Author:    discord.User{ID: "1"},
		Content:   "ahoj!",
		Timestamp: created,
		Reactions: []discord.Reaction{
			{Emoji: discord.Emoji{Name: "👋"}, Count: 3},
			{Emoji: discord.Emoji{ID: "1002448596572061746", Name: "meowsheart"}, Count: 1},
		},
	}

	expected := StoredMessage{
		ID:        "11",
		ChannelID: "intro",
		AuthorID:  "1",
		Content:   "ahoj!",
		CreatedAt: created,
		Reactions: map[string]int{
			"👋": 3,
			"<:meowsheart:1002448596572061746>": 1,
		},
	}
	if diff := cmp.Diff(expected, MessageRecord(msg, "intro")); diff != "" {
		t.Fatal(diff)
	}
}

func TestMemberRecord(t *testing.T) {
	joined := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	fetched := discord.Member{
		User:     discord.User{ID: "1", Username: "alice", Avatar: "abc123"},
		Nick:     "Alice",
		Roles:    []string{"222"},
		JoinedAt: joined,
	}
	existing := Member{
		ID:             "1",
		UpdatedRoles:   []string{"222", "333"},
		AvatarPath:     "images/avatars/xyz.png",
		IntroMessageID: "55",
		Coupon:         "ACME123456",
		FirstSeenOn:    joined.Add(-time.Hour * 24 * 365),
	}
	stats := MemberStats{MessagesCount: 10, RecentMessagesCount: 2, UpvotesCount: 7, RecentUpvotesCount: 1}

	record := MemberRecord(existing, fetched, stats, "")

	require.Equal(t, "Alice", record.DisplayName)
	require.Equal(t, "alice", record.Tag)
	require.Equal(t, "<@1>", record.Mention)
	require.Equal(t, []string{"222"}, record.InitialRoles)
	// the live role set is the new baseline
	require.Nil(t, record.UpdatedRoles)
	require.True(t, record.HasAvatar)
	// bookkeeping owned by other syncs survives
	require.Equal(t, "images/avatars/xyz.png", record.AvatarPath)
	require.Equal(t, "ACME123456", record.Coupon)
	require.Equal(t, "55", record.IntroMessageID)
	require.Equal(t, existing.FirstSeenOn, record.FirstSeenOn)
	require.Equal(t, 10, record.MessagesCount)
	require.Equal(t, 2, record.RecentMessagesCount)
}

func TestMemberRecordNewcomer(t *testing.T) {
	joined := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	fetched := discord.Member{
		User:     discord.User{ID: "2", Username: "bob", Bot: true},
		JoinedAt: joined,
	}

	record := MemberRecord(Member{}, fetched, MemberStats{}, "77")

	require.Equal(t, "bob", record.DisplayName)
	require.Equal(t, joined, record.FirstSeenOn)
	require.Equal(t, "77", record.IntroMessageID)
	require.False(t, record.HasAvatar)
	require.True(t, record.IsBot)
}
