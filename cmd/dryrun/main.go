package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/communitypress/dispatch-bot/internal/pipeline"
	"github.com/communitypress/dispatch-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

// ScriptedClient replays canned completions so the full pipeline can run
// without a provider.
type ScriptedClient struct {
	responses []string
	calls     int
}

func (c *ScriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if c.calls >= len(c.responses) {
		return "", &llm.ProviderError{Provider: "scripted", Kind: llm.KindGeneric, Message: "script exhausted"}
	}
	response := c.responses[c.calls]
	c.calls++
	return response, nil
}

func (c *ScriptedClient) Name() string { return "scripted" }

func sampleMessages(now time.Time) []models.Message {
	return []models.Message{
		{
			ID: "msg-001", ChannelID: "general", ServerID: "demo", AuthorID: "user-aurora",
			Content:        "The community game night poll closed and trivia won by a landslide! Saturday 8pm, be there.",
			Timestamp:      now.Add(-2 * time.Hour),
			TotalReactions: 42, ReplyCount: 18, ControversyScore: 0.2,
		},
		{
			ID: "msg-002", ChannelID: "general", ServerID: "demo", AuthorID: "user-basil",
			Content:        "Hot take: the new moderation policy on off-topic memes is way too strict and nobody asked for it.",
			Timestamp:      now.Add(-5 * time.Hour),
			TotalReactions: 27, ReplyCount: 31, ControversyScore: 0.8,
		},
		{
			ID: "msg-003", ChannelID: "dev-corner", ServerID: "demo", AuthorID: "user-cedar",
			Content:        "Shipped the community bot rewrite tonight. Three months of work, feels great to finally merge it.",
			Timestamp:      now.Add(-8 * time.Hour),
			TotalReactions: 35, ReplyCount: 12, ControversyScore: 0.1,
		},
		{
			ID: "msg-004", ChannelID: "general", ServerID: "demo", AuthorID: "user-dune",
			Content:        "Does anyone else think the server icon contest entries this year are the best we've ever had?",
			Timestamp:      now.Add(-3 * time.Hour),
			TotalReactions: 19, ReplyCount: 9, ControversyScore: 0.3,
		},
		{
			ID: "msg-005", ChannelID: "general", ServerID: "demo", AuthorID: "user-ember",
			Content:        "Reminder that the charity stream starts Friday! We are 80% of the way to the fundraising goal already.",
			Timestamp:      now.Add(-6 * time.Hour),
			TotalReactions: 24, ReplyCount: 7, ControversyScore: 0.1,
		},
	}
}

const newsDeskScript = `**STORY 1**
Headline: Trivia Night Triumphs in Community Poll
Summary: The game night poll wrapped up with trivia taking a decisive win, and Saturday's event is already generating buzz across the general channel.
Newsworthiness: High engagement with broad participation
Key Players: Poll organizers and the general channel regulars

**STORY 2**
Headline: Meme Moderation Policy Sparks Heated Debate
Summary: A new moderation policy on off-topic memes drew sharp criticism and a long reply thread, splitting opinion across the server.
Newsworthiness: Very controversial topic with active debate
Key Players: Moderation team and vocal community members

**STORY 3**
Headline: Community Bot Rewrite Finally Ships
Summary: After three months of development the community bot rewrite merged tonight, drawing congratulations in the dev corner.
Newsworthiness: Medium interest milestone
Key Players: The dev-corner contributors`

const editorScript = `SELECTED: Story 2

HEADLINE: Meme Crackdown Ignites Server-Wide Showdown
ANGLE: Cover both sides of the moderation debate with quotes from the reply thread
REASONING: The moderation debate has the highest controversy and the longest reply chain of the day, making it the clear lead story.`

const reporterScript = `## Meme Crackdown Ignites Server-Wide Showdown 🔥

Hold onto your keyboards, because the server's newest moderation policy just turned the general channel into a debate arena. One member called the off-topic meme rules "way too strict", and judging by the thirty-one replies, they are not alone.

The moderation team has yet to respond publicly, but sources say a follow-up announcement is coming. Meanwhile, reaction counts keep climbing and nobody is ready to let this one go.

Stay tuned, because this story is far from over! 💅`

func main() {
	logrus.SetLevel(logrus.WarnLevel)

	now := time.Now().UTC()
	client := &ScriptedClient{responses: []string{newsDeskScript, editorScript, reporterScript}}
	orchestrator := pipeline.NewOrchestrator(client, pipeline.OrchestratorOptions{})

	profile := models.ServerProfile{
		ServerID:            "demo",
		ServerName:          "Demo Community",
		Persona:             models.PersonaSassyReporter,
		NewsletterChannelID: "newsletter",
		MaxMessagesAnalysis: 500,
	}

	newsletter := models.NewNewsletter("demo", now, now.Add(-24*time.Hour), now)

	if err := orchestrator.Generate(context.Background(), newsletter, profile, sampleMessages(now), "Server: Demo Community"); err != nil {
		fmt.Printf("Generation failed: %v\n", err)
		fmt.Printf("Last error: %s\n", newsletter.LastError())
		return
	}

	store := storage.NewNewsletterStore(storage.NewMemoryStorage())
	if err := store.Save(newsletter); err != nil {
		fmt.Printf("Persist failed: %v\n", err)
		return
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("📰 DRY RUN NEWSLETTER")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println(newsletter.ToMarkdown())
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Status: %s | Mode: %s | Analyzed: %d messages | Success score: %.2f\n",
		newsletter.Status, newsletter.ArticleMode, newsletter.AnalyzedMessages, newsletter.SuccessScore())
}
