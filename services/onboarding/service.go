package onboarding

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"clubops-backend/lib/discord"
	"clubops-backend/lib/telemetry"
	"clubops-backend/lib/timezone"
	"clubops-backend/services/club"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("services/onboarding")

// processHistorySince bounds how far back the intro channel is
// scanned for posts to greet.
const processHistorySince = time.Hour * 24 * 30

type Service struct {
	store   club.Store
	chat    *discord.Client
	options ServiceOptions
}

type ServiceOptions struct {
	GuildID string
	// BotID is the bot's own user id, used to tell its messages apart
	// in channel histories.
	BotID string
	// CategoryID is the channel category holding the personal
	// channels.
	CategoryID     string
	IntroChannelID string
	Scheduled      []ScheduledMessage
	// IsFeminine drives the gendered bits of the rendered messages.
	IsFeminine func(displayName string) bool
}

func NewService(store club.Store, chat *discord.Client, options ServiceOptions) Service {
	return Service{store: store, chat: chat, options: options}
}

func (s Service) renderContext(member club.Member) Context {
	name, _, _ := strings.Cut(member.DisplayName, " ")
	context := Context{MemberName: name}
	if s.options.IsFeminine != nil {
		context.IsFeminine = s.options.IsFeminine(member.DisplayName)
	}
	return context
}

// Sync reconciles the personal channels and replays the script into
// each of them.
func (s Service) Sync(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Sync")
	defer span.End()

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return spanErr(span, err, "failed to list members")
	}

	allChannels, err := s.chat.GuildChannels(ctx, s.options.GuildID)
	if err != nil {
		return spanErr(span, err, "failed to list channels")
	}
	var channels []discord.Channel
	for _, channel := range allChannels {
		if channel.Type == discord.ChannelTypeText && channel.ParentID == s.options.CategoryID {
			channels = append(channels, channel)
		}
	}

	ops := PrepareChannelsOperations(channels, members)
	span.SetAttributes(attribute.Int("channel_ops", len(ops)))

	memberChannels := map[string]string{}
	for _, channel := range channels {
		if memberID, ok := ChannelMemberID(channel); ok {
			memberChannels[memberID] = channel.ID
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case ChannelOpDelete:
			slog.InfoContext(ctx, "deleting channel with broken topic", "channel", op.Channel.Name)
			if err := s.chat.DeleteChannel(ctx, op.Channel.ID); err != nil {
				return spanErr(span, err, "failed to delete channel")
			}
		case ChannelOpClose:
			slog.InfoContext(ctx, "closing channel of a departed member", "channel", op.Channel.Name)
			if err := s.chat.DeleteChannel(ctx, op.Channel.ID); err != nil {
				return spanErr(span, err, "failed to close channel")
			}
		case ChannelOpCreate:
			slog.InfoContext(ctx, "creating channel", "member", op.Member.DisplayName)
			channel, err := s.chat.CreateChannel(ctx, s.options.GuildID, discord.CreateChannelParams{
				Name:     ChannelName(*op.Member),
				Topic:    ChannelTopic(*op.Member),
				ParentID: s.options.CategoryID,
				Type:     discord.ChannelTypeText,
			})
			if err != nil {
				return spanErr(span, err, "failed to create channel")
			}
			memberChannels[op.Member.ID] = channel.ID
		case ChannelOpUpdate:
			name, topic := ChannelName(*op.Member), ChannelTopic(*op.Member)
			if op.Channel.Name == name && op.Channel.Topic == topic {
				continue
			}
			slog.InfoContext(ctx, "updating channel", "member", op.Member.DisplayName)
			if err := s.chat.EditChannel(ctx, op.Channel.ID, name, topic); err != nil {
				return spanErr(span, err, "failed to update channel")
			}
		}
	}

	today := timezone.Today()
	for _, member := range members {
		channelID, ok := memberChannels[member.ID]
		if !ok {
			continue
		}
		if err := s.syncMessages(ctx, member, channelID, today); err != nil {
			return err
		}
	}
	return nil
}

func (s Service) syncMessages(ctx context.Context, member club.Member, channelID string, today time.Time) error {
	ctx, span := tracer.Start(ctx, "syncMessages")
	defer span.End()

	history, err := s.chat.ChannelMessages(ctx, channelID, "")
	if err != nil {
		return spanErr(span, err, "failed to load channel history")
	}

	ops := PrepareMessages(history, s.options.BotID, s.options.Scheduled, today, s.renderContext(member))
	for _, op := range ops {
		if op.MessageID != "" {
			slog.InfoContext(ctx, "editing message",
				"member", member.DisplayName, "message", op.MessageID)
			if err := s.chat.EditMessage(ctx, channelID, op.MessageID, op.Content); err != nil {
				return spanErr(span, err, "failed to edit message")
			}
			continue
		}

		slog.InfoContext(ctx, "sending message", "member", member.DisplayName)
		msg, err := s.chat.SendMessage(ctx, channelID, op.Content)
		if err != nil {
			return spanErr(span, err, "failed to send message")
		}
		// seed the read receipt so the member only has to click it
		if err := s.chat.AddReaction(ctx, channelID, msg.ID, "✅"); err != nil {
			return spanErr(span, err, "failed to add reaction")
		}
	}
	return nil
}

// SyncIntros greets recent intro posts with reactions and welcomes
// back returning members.
func (s Service) SyncIntros(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SyncIntros")
	defer span.End()

	since := timezone.Now().Add(-processHistorySince)

	history, err := s.chat.ChannelMessages(ctx, s.options.IntroChannelID, "")
	if err != nil {
		return spanErr(span, err, "failed to load intro channel")
	}
	for _, msg := range history {
		if msg.Timestamp.Before(since) {
			continue
		}
		if err := s.store.SaveMessage(ctx, club.MessageRecord(msg, s.options.IntroChannelID)); err != nil {
			return spanErr(span, err, "failed to mirror intro message")
		}
	}

	messages, err := s.store.ChannelMessagesSince(ctx, s.options.IntroChannelID, since)
	if err != nil {
		return spanErr(span, err, "failed to list intro messages")
	}

	for _, msg := range messages {
		if msg.AuthorID == s.options.BotID {
			continue
		}

		var wanted []string
		switch msg.Type {
		case discord.MessageTypeDefault:
			wanted = WelcomeReactions
		case discord.MessageTypeNewMember:
			member, err := s.store.GetMember(ctx, msg.AuthorID)
			if err != nil || !member.FirstSeenOn.Before(msg.CreatedAt) {
				continue
			}
			wanted = WelcomeBackReactions
		default:
			continue
		}

		existing := make([]discord.Reaction, 0, len(msg.Reactions))
		for emoji, count := range msg.Reactions {
			existing = append(existing, discord.Reaction{
				Emoji: discord.ParseEmoji(emoji),
				Count: count,
			})
		}
		for _, emoji := range MissingReactions(existing, wanted) {
			if err := s.chat.AddReaction(ctx, s.options.IntroChannelID, msg.ID, reactionForm(emoji)); err != nil {
				return spanErr(span, err, "failed to react to intro")
			}
		}
	}
	return nil
}

// reactionForm turns an emoji reference into the form the reactions
// endpoint expects: custom emoji as name:id, unicode as itself.
func reactionForm(emoji string) string {
	parsed := discord.ParseEmoji(emoji)
	if parsed.ID != "" {
		return parsed.Name + ":" + parsed.ID
	}
	return parsed.Name
}

func spanErr(span oteltrace.Span, err error, message string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return err
}
