// Package onboarding drip-feeds a scripted series of tips into every
// member's personal channel and keeps those channels tidy. The script
// is replayed against the channel history on every run, so edits to
// the script propagate and nothing is ever posted twice.
package onboarding

import (
	"time"

	"clubops-backend/lib/discord"
	"clubops-backend/lib/textutil"
)

// Context is what the script templates get to work with.
type Context struct {
	MemberName string
	IsFeminine bool
}

// ScheduledMessage is one entry of the script. The emoji doubles as
// the entry's identity: it is how a previously posted message is
// recognized in the history.
type ScheduledMessage struct {
	Emoji  string
	Render func(Context) string
}

// MessageOp is a single planned write. An empty MessageID means a new
// message, otherwise the existing one is edited to Content.
type MessageOp struct {
	MessageID string
	Content   string
}

// readThreshold is the ✅ count that proves a member saw a message:
// the bot reacts once itself, so anything above one is the member.
const readThreshold = 1

func isRead(msg *discord.Message) bool {
	if msg == nil {
		return true
	}
	return msg.ReactionCount("✅") > readThreshold
}

// PrepareMessages replays the script against the channel history and
// plans the writes. Walking the script in order, a posted entry whose
// content drifted gets an edit (regardless of dates), and at the first
// entry with no posted message a single send is planned, but only if
// the member read the previous entry and nothing was posted today.
// The walk stops at that first missing entry.
func PrepareMessages(history []discord.Message, botID string, scheduled []ScheduledMessage, today time.Time, context Context) []MessageOp {
	var ops []MessageOp
	var lastPosted *discord.Message

	for _, entry := range scheduled {
		content := entry.Emoji + " " + entry.Render(context)

		var posted *discord.Message
		for i := range history {
			msg := &history[i]
			if msg.Author.ID != botID {
				continue
			}
			if textutil.StartingEmoji(msg.Content) == entry.Emoji {
				posted = msg
				break
			}
		}

		if posted != nil {
			if posted.Content != content {
				ops = append(ops, MessageOp{MessageID: posted.ID, Content: content})
			}
			lastPosted = posted
			continue
		}

		if isRead(lastPosted) && discord.MessageOverPeriodAgo(lastPosted, time.Hour*24, today) {
			ops = append(ops, MessageOp{Content: content})
		}
		break
	}
	return ops
}
