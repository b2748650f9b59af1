package club

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	"clubops-backend/lib/telemetry"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) (Store, context.Context) {
	t.Helper()

	cleanup := telemetry.SetupForTesting("test:club")
	t.Cleanup(cleanup)

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	_, err = sqlite.Exec(Schema)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	t.Cleanup(cancel)

	return NewStore(sqlite), ctx
}

func TestMembers(t *testing.T) {
	store, ctx := testStore(t)

	joined := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	err := store.UpsertMember(ctx, Member{
		ID:           "1",
		DisplayName:  "Alice",
		Tag:          "alice#0001",
		Mention:      "<@1>",
		JoinedAt:     joined,
		InitialRoles: []string{"222", "333"},
		FirstSeenOn:  joined,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.UpsertMember(ctx, Member{
		ID:          "2",
		DisplayName: "Bot",
		JoinedAt:    joined,
		FirstSeenOn: joined,
		IsBot:       true,
	})
	if err != nil {
		t.Fatal(err)
	}

	members, err := store.ListMembers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, members, 1)
	require.Equal(t, "Alice", members[0].DisplayName)
	require.Equal(t, []string{"222", "333"}, members[0].InitialRoles)
	require.Equal(t, []string{"222", "333"}, members[0].Roles())

	err = store.UpdateMemberRoles(ctx, "1", []string{"222"})
	if err != nil {
		t.Fatal(err)
	}
	alice, err := store.GetMember(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []string{"222"}, alice.Roles())

	// a later upsert must not move first_seen_on forward
	err = store.UpsertMember(ctx, Member{
		ID:          "1",
		DisplayName: "Alice",
		JoinedAt:    joined,
		FirstSeenOn: joined.Add(time.Hour * 24 * 30),
	})
	if err != nil {
		t.Fatal(err)
	}
	alice, err = store.GetMember(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, joined.Unix(), alice.FirstSeenOn.Unix())
}

func TestTopMembersLimit(t *testing.T) {
	store, ctx := testStore(t)

	limit, err := store.TopMembersLimit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 5, limit)

	joined := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		err := store.UpsertMember(ctx, Member{
			ID:          strconv.Itoa(i),
			JoinedAt:    joined,
			FirstSeenOn: joined,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	limit, err = store.TopMembersLimit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 10, limit)
}

func TestChannelMessages(t *testing.T) {
	store, ctx := testStore(t)

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	messages := []StoredMessage{
		{ID: "10", ChannelID: "c1", AuthorID: "1", Content: "old", CreatedAt: base.Add(-time.Hour * 48)},
		{ID: "11", ChannelID: "c1", AuthorID: "1", Content: "hello", CreatedAt: base,
			Reactions: map[string]int{"✅": 2}},
		{ID: "12", ChannelID: "c2", AuthorID: "2", Content: "elsewhere", CreatedAt: base},
	}
	for _, msg := range messages {
		if err := store.SaveMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := store.ChannelMessagesSince(ctx, "c1", base.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, recent, 1)
	require.Equal(t, "hello", recent[0].Content)
	require.Equal(t, 2, recent[0].Reactions["✅"])
}

func TestMessageStats(t *testing.T) {
	store, ctx := testStore(t)

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	messages := []StoredMessage{
		{ID: "1", ChannelID: "c1", AuthorID: "a", CreatedAt: base.Add(-time.Hour * 24 * 60),
			Reactions: map[string]int{"👍": 3, "❤️": 1}},
		{ID: "2", ChannelID: "c1", AuthorID: "a", CreatedAt: base,
			Reactions: map[string]int{"👍": 2, "👎": 5}},
		{ID: "3", ChannelID: "c2", AuthorID: "b", CreatedAt: base},
	}
	for _, msg := range messages {
		if err := store.SaveMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.MessageStats(ctx, base.Add(-time.Hour*24*30))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, MemberStats{
		MessagesCount:       2,
		RecentMessagesCount: 1,
		UpvotesCount:        6,
		RecentUpvotesCount:  2,
	}, stats["a"])
	require.Equal(t, MemberStats{MessagesCount: 1, RecentMessagesCount: 1}, stats["b"])
}

func TestIntroMessageIDs(t *testing.T) {
	store, ctx := testStore(t)

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	messages := []StoredMessage{
		{ID: "5", ChannelID: "intro", AuthorID: "a", CreatedAt: base.Add(time.Hour)},
		{ID: "4", ChannelID: "intro", AuthorID: "a", CreatedAt: base},
		{ID: "6", ChannelID: "intro", AuthorID: "b", CreatedAt: base, Type: 7},
		{ID: "7", ChannelID: "other", AuthorID: "c", CreatedAt: base},
	}
	for _, msg := range messages {
		if err := store.SaveMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	intros, err := store.IntroMessageIDs(ctx, "intro")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, map[string]string{"a": "4"}, intros)
}

func TestDocumentedRoles(t *testing.T) {
	store, ctx := testStore(t)

	err := store.SaveDocumentedRoles(ctx, []DocumentedRole{
		{ID: "9", Position: 2, Name: "Dobrovolník", Mention: "<@&9>", Slug: "volunteer", Description: "Pomáhá."},
		{ID: "8", Position: 1, Name: "Moderátor", Mention: "<@&8>", Slug: "moderator", Description: "Moderuje."},
	})
	if err != nil {
		t.Fatal(err)
	}

	roles, err := store.ListDocumentedRoles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, roles, 2)
	require.Equal(t, "moderator", roles[0].Slug)

	role, err := store.GetDocumentedRole(ctx, "volunteer")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "9", role.ID)

	// saving again replaces the register wholesale
	err = store.SaveDocumentedRoles(ctx, []DocumentedRole{
		{ID: "8", Position: 1, Name: "Moderátor", Mention: "<@&8>", Slug: "moderator", Description: "Moderuje."},
	})
	if err != nil {
		t.Fatal(err)
	}
	roles, err = store.ListDocumentedRoles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, roles, 1)
}

func TestPostings(t *testing.T) {
	store, ctx := testStore(t)

	posted := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	posting := Posting{
		ID:              "abc",
		Title:           "Junior Go Developer",
		URL:             "https://example.com/jobs/1",
		CompanyName:     "Acme",
		LocationsRaw:    []string{"Praha, Česko"},
		Locations:       []string{"Praha, Česko"},
		EmploymentTypes: []string{"FULL_TIME"},
		PostedAt:        posted,
		Source:          "boards",
		FirstSeenOn:     posted,
		LastSeenOn:      posted,
	}
	if err := store.UpsertPosting(ctx, posting); err != nil {
		t.Fatal(err)
	}

	posting.LastSeenOn = posted.Add(time.Hour * 24)
	posting.FirstSeenOn = posted.Add(time.Hour * 24)
	if err := store.UpsertPosting(ctx, posting); err != nil {
		t.Fatal(err)
	}

	postings, err := store.ListPostings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, postings, 1)
	require.Equal(t, posted.Unix(), postings[0].FirstSeenOn.Unix())
	require.Equal(t, posted.Add(time.Hour*24).Unix(), postings[0].LastSeenOn.Unix())
}

func TestActivities(t *testing.T) {
	store, ctx := testStore(t)

	happened := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	activities := []Activity{
		{AccountID: "acc1", Type: "order", HappenedAt: happened, Coupon: "ACME123456"},
		{AccountID: "acc1", Type: "trial_start", HappenedAt: happened.Add(-time.Hour * 24 * 14)},
		{AccountID: "acc2", Type: "order", HappenedAt: happened},
	}
	for _, a := range activities {
		if err := store.SaveActivity(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	listed, err := store.ListActivities(ctx, "acc1")
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, listed, 2)
	require.Equal(t, "trial_start", listed[0].Type)
	require.Equal(t, "ACME123456", listed[1].Coupon)
}

func TestSubscriptionSources(t *testing.T) {
	store, ctx := testStore(t)

	referrers := map[string]string{
		"anna@example.com":  "https://blog.example.com/go-club",
		"pavel@example.com": "https://twitter.com/goclub/status/1",
	}
	if err := store.SaveSubscriptionSources(ctx, SourceReferrer, referrers); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSubscriptionSources(ctx, SourceOrigin, map[string]string{
		"anna@example.com": "https://example.com/pricing",
	}); err != nil {
		t.Fatal(err)
	}

	listed, err := store.ListSubscriptionSources(ctx, SourceReferrer)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, referrers, listed)

	// saving again replaces the register wholesale
	if err := store.SaveSubscriptionSources(ctx, SourceReferrer, map[string]string{
		"anna@example.com": "https://news.example.com/launch",
	}); err != nil {
		t.Fatal(err)
	}
	listed, err = store.ListSubscriptionSources(ctx, SourceReferrer)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, map[string]string{"anna@example.com": "https://news.example.com/launch"}, listed)

	origins, err := store.ListSubscriptionSources(ctx, SourceOrigin)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, map[string]string{"anna@example.com": "https://example.com/pricing"}, origins)
}
