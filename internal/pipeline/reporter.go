package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// Article length constraints, in characters after post-processing.
const (
	articleMinLength      = 100
	articleMaxLength      = 2000
	articleTruncateLength = 1900
	quoteLimit            = 5
	quoteMaxLength        = 150
	breakingMessageLimit  = 10
)

// articleFooter is appended to every article exactly once.
const articleFooter = "---\n*Generated by Community Dispatch 🤖 | Stay informed, stay entertained*"

const truncationNotice = "...\n\n*[Article truncated for length]*"

// Reporter renders the editorial brief into the final article, with a
// breaking-news variant.
type Reporter struct {
	client llm.CompletionClient
}

// NewReporter creates the article-composition stage.
func NewReporter(client llm.CompletionClient) *Reporter {
	return &Reporter{client: client}
}

// ComposeArticle writes the newsletter article for the selected story.
// Provider failure yields a deterministic persona-templated fallback article;
// the composer itself never returns an error.
func (r *Reporter) ComposeArticle(ctx context.Context, story models.SelectedStory, persona models.Persona, sourceMessages []models.Message, serverContext string) models.Article {
	prompt := buildWritingPrompt(story, persona, sourceMessages, serverContext)

	raw, err := r.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: reporterPrompt(persona),
		Messages:     []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature:  0.8,
		MaxTokens:    1200,
	})
	if err != nil {
		logrus.Errorf("Article completion failed, using templated fallback: %v", err)
		return models.Article{
			Text:    fallbackArticle(story, persona),
			Persona: persona,
			Mode:    models.ModeFallback,
		}
	}

	processed := postProcessArticle(raw, persona)
	logrus.Infof("Newsletter article written (%d chars, persona: %s)", len([]rune(processed)), persona)
	return models.Article{
		Text:    processed,
		Persona: persona,
		Mode:    models.ModeFullPipeline,
	}
}

func reporterPrompt(persona models.Persona) string {
	return systemPromptFor(persona) + "\n\n" +
		"You are the STAR REPORTER. Write the complete newsletter article for your editorial assignment."
}

func buildWritingPrompt(story models.SelectedStory, persona models.Persona, sourceMessages []models.Message, serverContext string) string {
	var b strings.Builder

	b.WriteString("Write the complete newsletter article based on this editorial assignment:\n\nSELECTED STORY:\n")
	fmt.Fprintf(&b, "Headline: %s\n", story.BestHeadline())
	fmt.Fprintf(&b, "Editorial Reasoning: %s\n", story.EditorialReasoning)
	fmt.Fprintf(&b, "Reporting Angle: %s\n\n", story.ReportingAngle)

	b.WriteString("STORY CONTEXT:\n")
	b.WriteString(buildArticleContext(story, sourceMessages, serverContext))

	fmt.Fprintf(&b, "\n\nWRITING REQUIREMENTS:\n"+
		"- Write as a %s personality\n"+
		"- Include actual quotes from messages (but never name message authors directly)\n"+
		"- Make it 200-400 words\n"+
		"- Include engaging headline and conclusion\n"+
		"- Use appropriate emojis and formatting\n\n"+
		"Write the complete newsletter article now:", persona.Display())
	return b.String()
}

// buildArticleContext assembles the story summary, metrics, anonymized quotes
// and optional server context into one block.
func buildArticleContext(story models.SelectedStory, messages []models.Message, serverContext string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("STORY SUMMARY:\n%s", story.Summary))
	parts = append(parts, fmt.Sprintf(
		"STORY METRICS:\n- Engagement Score: %.2f\n- Participants: %d users\n- Time Span: %.1f hours\n- Controversy Level: %.2f/1.0",
		story.TotalEngagement, story.UniqueParticipants, story.TimeSpanHours, story.AverageControversy))

	if quotes := buildQuotesSection(story, messages); quotes != "" {
		parts = append(parts, quotes)
	}

	if serverContext != "" {
		parts = append(parts, fmt.Sprintf("SERVER CONTEXT:\n%s", serverContext))
	}

	return strings.Join(parts, "\n\n")
}

// buildQuotesSection selects up to five of the story's related messages by
// engagement, anonymizing authors and truncating long content.
func buildQuotesSection(story models.SelectedStory, messages []models.Message) string {
	relatedIDs := make(map[string]struct{}, len(story.RelatedMessages))
	for _, id := range story.RelatedMessages {
		relatedIDs[id] = struct{}{}
	}

	var relevant []models.Message
	for _, msg := range messages {
		if _, ok := relatedIDs[msg.ID]; ok {
			relevant = append(relevant, msg)
		}
	}
	if len(relevant) == 0 {
		return ""
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].EngagementScore() > relevant[j].EngagementScore()
	})
	if len(relevant) > quoteLimit {
		relevant = relevant[:quoteLimit]
	}

	var b strings.Builder
	b.WriteString("AVAILABLE QUOTES (anonymized):")
	for i, msg := range relevant {
		content := msg.Content
		if len(content) > quoteMaxLength {
			content = content[:quoteMaxLength] + "..."
		}
		fmt.Fprintf(&b, "\nQuote %d: %q\n- Author: User_%s\n- Reactions: %d\n- Replies: %d\n- Timestamp: %s",
			i+1, content, shortAuthorToken(msg.AuthorID, 3), msg.TotalReactions, msg.ReplyCount,
			msg.Timestamp.Format("15:04"))
	}
	return b.String()
}

// postProcessArticle deterministically normalizes a generated article: promote
// a heading when no markdown is present, guarantee the footer exactly once,
// pad short output with persona filler, and truncate overlong output. The
// result is always within the length bounds and reprocessing a well-formed
// article is a no-op.
func postProcessArticle(article string, persona models.Persona) string {
	processed := strings.TrimSpace(article)

	if !strings.ContainsAny(processed, "#*") {
		lines := strings.Split(processed, "\n")
		if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
			lines[0] = "## " + strings.TrimSpace(lines[0])
			processed = strings.Join(lines, "\n")
		}
	}

	filler := fmt.Sprintf(
		"This story continues to develop as community discussions evolve. The %s will keep monitoring the situation!",
		persona.Display())
	for len([]rune(processed)) < articleMinLength {
		processed += "\n\n" + filler
	}

	if !strings.Contains(processed, articleFooter) {
		processed += "\n\n" + articleFooter
	}

	if len([]rune(processed)) > articleMaxLength {
		suffix := truncationNotice + "\n\n" + articleFooter
		budget := articleTruncateLength
		if max := articleMaxLength - len([]rune(suffix)); budget > max {
			budget = max
		}
		processed = string([]rune(processed)[:budget]) + suffix
	}

	return processed
}

// fallbackArticle builds the persona-templated article used when the provider
// call fails. It depends only on the selected story's headline and summary.
func fallbackArticle(story models.SelectedStory, persona models.Persona) string {
	summary := story.Summary
	if summary == "" {
		summary = "Community discussions continue across the server."
	}

	return fmt.Sprintf(
		"## %s\n\n%s\n\n%s\n\n"+
			"Community engagement continues to be strong, with multiple discussions and interactions "+
			"happening across various channels. While the details are still developing, "+
			"it's clear that our server members are staying active and engaged.\n\n"+
			"Stay tuned for more updates as stories develop!\n\n"+
			"---\n*Generated by Community Dispatch 🤖 | Fallback article due to technical difficulties*",
		story.BestHeadline(), fallbackIntroFor(persona), summary)
}

// ComposeBreakingNews generates a short, time-sensitive bulletin from recent
// messages. Any failure falls back to the persona bulletin table.
func (r *Reporter) ComposeBreakingNews(ctx context.Context, messages []models.Message, persona models.Persona, channelContext string) string {
	if len(messages) == 0 {
		return fallbackBulletinFor(persona)
	}

	ranked := rankBreakingMessages(messages)

	var b strings.Builder
	b.WriteString("You are reporting BREAKING NEWS from recent community activity.\n\n" +
		"Analyze these recent messages and create a single-paragraph breaking news bulletin:\n")
	for i, msg := range ranked {
		content := msg.Content
		if len(content) > 100 {
			content = content[:100] + "..."
		}
		fmt.Fprintf(&b, "\nMessage %d | %s\nContent: %s\nEngagement: %d reactions, %d replies\n",
			i+1, msg.Timestamp.Format("15:04"), content, msg.TotalReactions, msg.ReplyCount)
	}

	context := channelContext
	if context == "" {
		context = "Recent channel activity"
	}
	fmt.Fprintf(&b, "\nContext: %s\n\n"+
		"Write a 2-3 sentence breaking news bulletin that:\n"+
		"- Starts with \"🚨 BREAKING:\" or similar\n"+
		"- Summarizes the most significant recent event/topic\n"+
		"- Uses your %s voice\n"+
		"- Includes relevant emojis\n"+
		"- Makes it feel urgent and newsworthy\n\n"+
		"Write only the bulletin, nothing else:", context, persona.Display())

	bulletin, err := r.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPromptFor(persona),
		Messages:     []llm.ChatMessage{{Role: "user", Content: b.String()}},
		Temperature:  0.8,
		MaxTokens:    300,
	})
	if err != nil {
		logrus.Errorf("Breaking news completion failed, using fallback bulletin: %v", err)
		return fallbackBulletinFor(persona)
	}

	bulletin = strings.TrimSpace(bulletin)
	if bulletin == "" {
		return fallbackBulletinFor(persona)
	}
	return bulletin
}

// rankBreakingMessages orders by recency first and engagement second, keeping
// the top slice.
func rankBreakingMessages(messages []models.Message) []models.Message {
	ranked := make([]models.Message, len(messages))
	copy(ranked, messages)

	sort.SliceStable(ranked, func(i, j int) bool {
		if !ranked[i].Timestamp.Equal(ranked[j].Timestamp) {
			return ranked[i].Timestamp.After(ranked[j].Timestamp)
		}
		return ranked[i].EngagementScore() > ranked[j].EngagementScore()
	})

	if len(ranked) > breakingMessageLimit {
		ranked = ranked[:breakingMessageLimit]
	}
	return ranked
}
