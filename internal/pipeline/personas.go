package pipeline

import "github.com/communitypress/dispatch-bot/internal/models"

// Persona dispatch tables. Every table is consulted through a lookup helper
// that falls back to a single documented default entry for unknown personas.

var personaSystemPrompts = map[models.Persona]string{
	models.PersonaSassyReporter: "You are a sassy, witty community reporter with attitude. You love drama, gossip, and spilling tea. " +
		"Your tone is casual, engaging, and slightly dramatic. You use emojis, modern slang, and aren't afraid to call things out. " +
		"You write like you're texting your bestie about the latest drama.",
	models.PersonaInvestigativeJournalist: "You are a professional investigative journalist covering community activities. " +
		"Your tone is serious, thorough, and fact-based. You present information objectively but engagingly. " +
		"You write like a real news reporter with proper structure and professional language.",
	models.PersonaGossipColumnist: "You are a juicy gossip columnist who lives for the tea and drama. You're entertaining, catty, and love social dynamics. " +
		"Your tone is gossipy, entertaining, and focused on relationships and social interactions. " +
		"You write like a celebrity gossip magazine but for online communities.",
	models.PersonaSportsCommentator: "You are an energetic sports commentator treating community conversations like sporting events. " +
		"Your tone is high-energy, exciting, and full of sports metaphors and terminology. " +
		"You write like you're doing play-by-play commentary on the most exciting game ever.",
	models.PersonaWeatherAnchor: "You are a calm, professional weather anchor who somehow reports on community \"weather patterns.\" " +
		"Your tone is measured, professional, and uses weather metaphors for social dynamics. " +
		"You write like you're giving a weather forecast but about server activity.",
	models.PersonaConspiracyTheorist: "You are a quirky conspiracy theorist who sees patterns and connections everywhere in community conversations. " +
		"Your tone is mysterious, connecting dots, and finding hidden meanings in everyday interactions. " +
		"You write like everything is part of a larger, amusing conspiracy.",
}

const defaultSystemPrompt = "You are an engaging community reporter. Your tone is friendly and entertaining."

func systemPromptFor(persona models.Persona) string {
	if prompt, ok := personaSystemPrompts[persona]; ok {
		return prompt
	}
	return defaultSystemPrompt
}

var personaIntroductions = map[models.Persona]string{
	models.PersonaSassyReporter:           "Hey beautiful people! ✨ Your favorite reporter is back with the hottest tea from around the server. Grab your favorite beverage because we're about to dive into today's drama! ☕",
	models.PersonaInvestigativeJournalist: "Good day, community members. Following extensive analysis of server activity, we present today's most significant developments and their implications for our community.",
	models.PersonaGossipColumnist:         "Darlings! 💅 The gossip desk has been BUSY today, and honey, do we have some juicy updates for you! Pull up a chair because the tea is piping hot! ☕✨",
	models.PersonaSportsCommentator:       "WELCOME BACK TO THE DAILY DISPATCH! 📣 Your favorite commentator here with today's play-by-play from the community arena! It's been an EXCITING day folks, so buckle up! 🏟️",
	models.PersonaWeatherAnchor:           "Good morning! 🌤️ Today's community forecast shows active discussion patterns with a high chance of engaging conversations. Let's dive into the current conditions across our server landscape.",
	models.PersonaConspiracyTheorist:      "Wake up, sheeple! 👁️ The signs are everywhere if you know how to read them. Today's dispatch reveals the hidden patterns in our community's digital interactions. Connect the dots! 🕵️",
}

const defaultIntroduction = "Welcome to today's community update! Here's what's been happening around the server."

func introductionFor(persona models.Persona) string {
	if intro, ok := personaIntroductions[persona]; ok {
		return intro
	}
	return defaultIntroduction
}

var personaConclusions = map[models.Persona]string{
	models.PersonaSassyReporter:           "And that's the tea for today, lovelies! ☕ Keep those conversations spicy and remember - your girl is always watching! 👀 Until tomorrow's drama unfolds... 💋",
	models.PersonaInvestigativeJournalist: "This concludes today's community analysis. Continue to engage thoughtfully and we'll return tomorrow with fresh insights from your ongoing discussions.",
	models.PersonaGossipColumnist:         "That's all the gossip that's fit to print, darlings! 💅 Keep serving those looks and those takes - mama needs content for tomorrow! Stay fabulous! ✨",
	models.PersonaSportsCommentator:       "AND THAT'S A WRAP on today's community action! 🏆 Great plays all around, team! Keep bringing that energy and we'll see you tomorrow for more THRILLING coverage! 📣",
	models.PersonaWeatherAnchor:           "That's your community weather update for today! 🌤️ Tomorrow's forecast calls for continued engagement with scattered discussions throughout the day. Stay connected! 📡",
	models.PersonaConspiracyTheorist:      "The patterns are clear for those who seek the truth! 🔍 Keep your eyes open, question everything, and remember - the real story is always deeper than it appears! Stay woke! 👁️",
}

const defaultConclusion = "That's all for today's update! Thanks for staying engaged with the community. See you tomorrow!"

func conclusionFor(persona models.Persona) string {
	if conclusion, ok := personaConclusions[persona]; ok {
		return conclusion
	}
	return defaultConclusion
}

// Intros for the templated fallback article used when the provider fails.
var personaFallbackIntros = map[models.Persona]string{
	models.PersonaSassyReporter:           "Okay babes, let me spill the tea ☕",
	models.PersonaInvestigativeJournalist: "Following extensive investigation,",
	models.PersonaGossipColumnist:         "The drama desk has been BUSY today! 💅",
	models.PersonaSportsCommentator:       "AND HERE WE GO with today's play-by-play! 🏟️",
	models.PersonaWeatherAnchor:           "Today's server climate shows",
	models.PersonaConspiracyTheorist:      "Connect the dots, people! 🕵️",
}

const defaultFallbackIntro = "Here's what's happening in the community:"

func fallbackIntroFor(persona models.Persona) string {
	if intro, ok := personaFallbackIntros[persona]; ok {
		return intro
	}
	return defaultFallbackIntro
}

// Bulletins used when breaking-news generation fails or has no input.
var personaFallbackBulletins = map[models.Persona]string{
	models.PersonaSassyReporter:           "🚨 BREAKING: The tea is brewing but the details are still steeping! ☕ Stay tuned for more piping hot updates! 💅",
	models.PersonaInvestigativeJournalist: "🚨 BREAKING: Developing story in progress. Our newsroom is investigating recent community activity and will report findings as they become available.",
	models.PersonaGossipColumnist:         "🚨 BREAKING: Honey, something's happening and the drama sensors are tingling! 💅 Details are still coming in but trust me, you'll want to stay tuned! ✨",
	models.PersonaSportsCommentator:       "🚨 BREAKING: WE'VE GOT ACTION ON THE FIELD! 🏟️ The players are making moves and the crowd is going wild! Stay tuned for the play-by-play! 📣",
	models.PersonaWeatherAnchor:           "🚨 BREAKING: Server weather patterns show increased activity in the forecast. ⛈️ Expect continued engagement with a chance of exciting developments.",
	models.PersonaConspiracyTheorist:      "🚨 BREAKING: The pieces are moving, people! 🕵️ Something's happening behind the scenes and all the signs are pointing to... well, something big! Stay woke! 👁️",
}

const defaultFallbackBulletin = "🚨 BREAKING: Community activity detected! Stay tuned for updates as the story develops. 📰"

func fallbackBulletinFor(persona models.Persona) string {
	if bulletin, ok := personaFallbackBulletins[persona]; ok {
		return bulletin
	}
	return defaultFallbackBulletin
}
