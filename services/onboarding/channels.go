package onboarding

import (
	"fmt"
	"regexp"
	"strings"

	"clubops-backend/lib/discord"
	"clubops-backend/lib/textutil"
	"clubops-backend/services/club"
)

type ChannelOpKind string

const (
	ChannelOpDelete ChannelOpKind = "delete"
	ChannelOpCreate ChannelOpKind = "create"
	ChannelOpUpdate ChannelOpKind = "update"
	ChannelOpClose  ChannelOpKind = "close"
)

// ChannelOp is one planned change to the personal channels category.
type ChannelOp struct {
	Kind    ChannelOpKind
	Channel *discord.Channel
	Member  *club.Member
}

// channelTopicRegexp picks the owning member's id out of a channel
// topic. The id rides along at the end of the topic because it is the
// only channel attribute members cannot edit away by accident.
var channelTopicRegexp = regexp.MustCompile(`#(\d+)$`)

// ChannelMemberID parses the owner out of a channel topic.
func ChannelMemberID(channel discord.Channel) (string, bool) {
	match := channelTopicRegexp.FindStringSubmatch(channel.Topic)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// ChannelName derives the channel name from the member's display
// name: lowercased, accents folded, spaces dashed, "-tipy" suffixed.
func ChannelName(member club.Member) string {
	name := textutil.RemoveAccents(textutil.NormalizeName(member.DisplayName))
	name = strings.ReplaceAll(name, " ", "-")
	return name + "-tipy"
}

// ChannelTopic renders the topic carrying the member's id.
func ChannelTopic(member club.Member) string {
	return fmt.Sprintf("Tipy a soukromý kanál jen pro tebe! 🦸 %s #%s", member.DisplayName, member.ID)
}

// PrepareChannelsOperations plans the category cleanup: channels with
// no parseable owner go first (delete), then every member gets their
// channel updated or created, and finally channels owned by members
// who left are closed.
func PrepareChannelsOperations(channels []discord.Channel, members []club.Member) []ChannelOp {
	var ops []ChannelOp

	byMemberID := map[string]*discord.Channel{}
	for i := range channels {
		channel := &channels[i]
		memberID, ok := ChannelMemberID(*channel)
		if !ok {
			ops = append(ops, ChannelOp{Kind: ChannelOpDelete, Channel: channel})
			continue
		}
		byMemberID[memberID] = channel
	}

	memberIDs := map[string]bool{}
	for i := range members {
		member := &members[i]
		memberIDs[member.ID] = true
		if channel, ok := byMemberID[member.ID]; ok {
			ops = append(ops, ChannelOp{Kind: ChannelOpUpdate, Channel: channel, Member: member})
		} else {
			ops = append(ops, ChannelOp{Kind: ChannelOpCreate, Member: member})
		}
	}

	for i := range channels {
		channel := &channels[i]
		memberID, ok := ChannelMemberID(*channel)
		if !ok || memberIDs[memberID] {
			continue
		}
		ops = append(ops, ChannelOp{Kind: ChannelOpClose, Channel: channel})
	}
	return ops
}
