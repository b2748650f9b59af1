package club

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"clubops-backend/lib/discord"
	"clubops-backend/lib/telemetry"
	"clubops-backend/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("services/club")

const defaultMessageWindow = time.Hour * 24 * 30

// Mirror pulls the guild into the local store: recent channel history
// first, then every member with activity counters derived from the
// mirrored messages. The other syncs run against the store, so this
// one runs first.
type Mirror struct {
	store   Store
	chat    *discord.Client
	options MirrorOptions
}

type MirrorOptions struct {
	GuildID        string
	IntroChannelID string
	// MessageWindow bounds how much channel history is pulled per
	// run, 30 days when zero. Older messages stay in the store and
	// keep counting towards the all-time counters.
	MessageWindow time.Duration
}

func NewMirror(store Store, chat *discord.Client, options MirrorOptions) Mirror {
	return Mirror{store: store, chat: chat, options: options}
}

// MessageRecord converts a fetched message into the store's shape.
// Custom emoji keep their id in the reaction key so reacting with
// them still works after a round trip through the database.
func MessageRecord(msg discord.Message, channelID string) StoredMessage {
	reactions := make(map[string]int, len(msg.Reactions))
	for _, r := range msg.Reactions {
		key := r.Emoji.Name
		if r.Emoji.ID != "" {
			key = "<:" + r.Emoji.Name + ":" + r.Emoji.ID + ">"
		}
		reactions[key] = r.Count
	}
	return StoredMessage{
		ID:        msg.ID,
		ChannelID: channelID,
		AuthorID:  msg.Author.ID,
		Content:   msg.Content,
		CreatedAt: msg.Timestamp,
		Reactions: reactions,
		Type:      msg.Type,
	}
}

// MemberRecord folds a freshly fetched guild member over what is
// already known locally. Coupon and avatar bookkeeping belong to the
// billing and avatar syncs and survive untouched; the live role set
// becomes the new baseline and any reconciliation result is reset.
func MemberRecord(existing Member, fetched discord.Member, stats MemberStats, introMessageID string) Member {
	firstSeen := fetched.JoinedAt
	if !existing.FirstSeenOn.IsZero() && existing.FirstSeenOn.Before(firstSeen) {
		firstSeen = existing.FirstSeenOn
	}
	if introMessageID == "" {
		// the intro may have scrolled out of the mirrored window
		introMessageID = existing.IntroMessageID
	}
	return Member{
		ID:                  fetched.User.ID,
		DisplayName:         fetched.DisplayName(),
		Tag:                 fetched.User.Username,
		Mention:             "<@" + fetched.User.ID + ">",
		JoinedAt:            fetched.JoinedAt,
		InitialRoles:        fetched.Roles,
		UpdatedRoles:        nil,
		HasAvatar:           fetched.User.Avatar != "",
		AvatarPath:          existing.AvatarPath,
		IntroMessageID:      introMessageID,
		Coupon:              existing.Coupon,
		MessagesCount:       stats.MessagesCount,
		RecentMessagesCount: stats.RecentMessagesCount,
		UpvotesCount:        stats.UpvotesCount,
		RecentUpvotesCount:  stats.RecentUpvotesCount,
		FirstSeenOn:         firstSeen,
		IsBot:               fetched.User.Bot,
	}
}

func (m Mirror) Sync(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Mirror.Sync")
	defer span.End()

	window := m.options.MessageWindow
	if window == 0 {
		window = defaultMessageWindow
	}
	since := timezone.Now().Add(-window)

	mirrored, err := m.syncMessages(ctx, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to mirror messages")
		return err
	}

	synced, err := m.syncMembers(ctx, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to mirror members")
		return err
	}

	span.SetAttributes(
		attribute.Int("messages", mirrored),
		attribute.Int("members", synced),
	)
	slog.InfoContext(ctx, "guild mirrored", "messages", mirrored, "members", synced)
	return nil
}

func (m Mirror) syncMessages(ctx context.Context, since time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Mirror.syncMessages")
	defer span.End()

	channels, err := m.chat.GuildChannels(ctx, m.options.GuildID)
	if err != nil {
		return 0, err
	}

	after := discord.TimeSnowflake(since)
	mirrored := 0
	for _, channel := range channels {
		if channel.Type != discord.ChannelTypeText {
			continue
		}
		history, err := m.chat.ChannelMessages(ctx, channel.ID, after)
		if err != nil {
			return mirrored, err
		}
		for _, msg := range history {
			if err := m.store.SaveMessage(ctx, MessageRecord(msg, channel.ID)); err != nil {
				return mirrored, err
			}
			mirrored++
		}
	}
	return mirrored, nil
}

func (m Mirror) syncMembers(ctx context.Context, since time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Mirror.syncMembers")
	defer span.End()

	fetched, err := m.chat.GuildMembers(ctx, m.options.GuildID)
	if err != nil {
		return 0, err
	}
	stats, err := m.store.MessageStats(ctx, since)
	if err != nil {
		return 0, err
	}
	intros := map[string]string{}
	if m.options.IntroChannelID != "" {
		intros, err = m.store.IntroMessageIDs(ctx, m.options.IntroChannelID)
		if err != nil {
			return 0, err
		}
	}

	for i, member := range fetched {
		existing, err := m.store.GetMember(ctx, member.User.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return i, err
		}
		record := MemberRecord(existing, member, stats[member.User.ID], intros[member.User.ID])
		if err := m.store.UpsertMember(ctx, record); err != nil {
			return i, err
		}
	}
	return len(fetched), nil
}
