package discord

import (
	"regexp"
	"strings"
	"time"

	"clubops-backend/lib/textutil"
)

// Channel types, per the platform API.
const (
	ChannelTypeText     = 0
	ChannelTypeCategory = 4
)

// Message types. Everything else the platform sends is irrelevant to
// the syncs.
const (
	MessageTypeDefault   = 0
	MessageTypeNewMember = 7
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Bot      bool   `json:"bot"`
}

type Member struct {
	User     User      `json:"user"`
	Nick     string    `json:"nick"`
	Roles    []string  `json:"roles"`
	JoinedAt time.Time `json:"joined_at"`
}

func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

type Role struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Position     int    `json:"position"`
	Color        int    `json:"color"`
	Mentionable  bool   `json:"mentionable"`
	UnicodeEmoji string `json:"unicode_emoji"`
}

func (r Role) Mention() string {
	return "<@&" + r.ID + ">"
}

type Emoji struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var customEmojiRegexp = regexp.MustCompile(`^<a?:(\w+):(\d+)>$`)

// ParseEmoji reads an emoji reference as it appears in message text:
// either a plain unicode emoji or the <:name:id> custom form.
func ParseEmoji(s string) Emoji {
	if match := customEmojiRegexp.FindStringSubmatch(s); match != nil {
		return Emoji{ID: match[2], Name: match[1]}
	}
	return Emoji{Name: s}
}

// EmojiName normalizes an emoji for comparisons: custom emoji go by
// their lowercased name, unicode emoji lose skin tone modifiers.
func EmojiName(e Emoji) string {
	if e.ID != "" {
		return strings.ToLower(e.Name)
	}
	return textutil.StripEmojiModifiers(e.Name)
}

type Reaction struct {
	Emoji Emoji `json:"emoji"`
	Count int   `json:"count"`
}

type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	Author    User       `json:"author"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Reactions []Reaction `json:"reactions"`
	Type      int        `json:"type"`
}

// ReactionCount returns how many members reacted with the given emoji
// (normalized through EmojiName).
func (m Message) ReactionCount(emoji string) int {
	for _, r := range m.Reactions {
		if EmojiName(r.Emoji) == emoji {
			return r.Count
		}
	}
	return 0
}

type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Topic    string `json:"topic"`
	ParentID string `json:"parent_id"`
	Type     int    `json:"type"`
}
