package onboarding

import (
	"fmt"

	"clubops-backend/lib/discord"
)

// Reactions the bot greets intro posts with, and the set for members
// who left and came back.
var (
	WelcomeReactions     = []string{"👋", "❤️", "💡"}
	WelcomeBackReactions = []string{"👋", "🔄", "<:meowsheart:1002448596572061746>"}
)

// MissingReactions filters the wanted emoji down to those not yet on
// the message, so re-runs never react twice.
func MissingReactions(existing []discord.Reaction, wanted []string) []string {
	present := map[string]bool{}
	for _, reaction := range existing {
		present[discord.EmojiName(reaction.Emoji)] = true
	}

	var missing []string
	for _, emoji := range wanted {
		if !present[discord.EmojiName(discord.ParseEmoji(emoji))] {
			missing = append(missing, emoji)
		}
	}
	return missing
}

// GreetingMessage renders the message opening an intro thread. Czech
// past tense is gendered, hence the flag.
func GreetingMessage(context Context) string {
	joined := "přidal"
	if context.IsFeminine {
		joined = "přidala"
	}
	return fmt.Sprintf("%s, vítej v klubu! 👋 Jsme rádi, že ses k nám %s. Tady si tě ostatní rádi přečtou a poznají.",
		context.MemberName, joined)
}
