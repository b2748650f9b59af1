package onboarding

import "fmt"

// DefaultScript is the tips series the bot drip-feeds into every
// member's personal channel, one entry per day at most.
var DefaultScript = []ScheduledMessage{
	{
		Emoji: "👋",
		Render: func(ctx Context) string {
			ready := "připraven"
			if ctx.IsFeminine {
				ready = "připravena"
			}
			return fmt.Sprintf(
				"Vítej, %s! Tohle je tvůj soukromý kanál s tipy. Každý den tu přistane jedna rada. Až si ji přečteš, klikni na ✅, ať víme, že jsi %s na další.",
				ctx.MemberName, ready)
		},
	},
	{
		Emoji: "🌱",
		Render: func(ctx Context) string {
			return "Napiš své představení do kanálu #ahoj. Kdo jsi, co už umíš, kam se chceš dostat? Ostatní se rádi přidají s radami."
		},
	},
	{
		Emoji: "🧭",
		Render: func(ctx Context) string {
			return "Projdi si příručku. Je tam postup krok za krokem, ať se neučíš nazdařbůh."
		},
	},
	{
		Emoji: "💬",
		Render: func(ctx Context) string {
			return "Nestyď se ptát! Kanál #poradna je přesně na dotazy, které ti přijdou hloupé. Nejsou."
		},
	},
	{
		Emoji: "📚",
		Render: func(ctx Context) string {
			return "Mrkni na klubový seznam materiálů. Ušetří ti čas, který bys jinak propálil hledáním kurzů."
		},
	},
	{
		Emoji: "🤖",
		Render: func(ctx Context) string {
			return "Nastav si avatar, ať nejsi jen další šedé kolečko. Lidem s tváří se odpovídá líp."
		},
	},
	{
		Emoji: "🎯",
		Render: func(ctx Context) string {
			return "Jednou týdně si zapiš, co ses naučil/a. Kanál #deníčky je na to jak dělaný."
		},
	},
}
