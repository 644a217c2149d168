package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStory() models.SelectedStory {
	return models.SelectedStory{
		StoryCandidate: models.StoryCandidate{
			Headline:        "Poll Results Shock Everyone",
			Summary:         "The community poll closed with an upset nobody predicted.",
			RelatedMessages: []string{"m1", "m2"},
			TotalEngagement: 1.2,
		},
		SuggestedHeadline:  "Upset at the Polls",
		ReportingAngle:     "Focus on the surprise outcome",
		EditorialReasoning: "Highest engagement of the day",
	}
}

func TestComposeArticle_FullPipeline(t *testing.T) {
	longBody := "## Upset at the Polls\n\n" + strings.Repeat("The community is still processing the result. ", 10)
	client := &stubClient{responses: []string{longBody}}
	reporter := NewReporter(client)

	article := reporter.ComposeArticle(context.Background(), sampleStory(), models.PersonaSassyReporter, nil, "")

	assert.Equal(t, models.ModeFullPipeline, article.Mode)
	assert.Equal(t, models.PersonaSassyReporter, article.Persona)
	assert.Contains(t, article.Text, articleFooter)
	length := len([]rune(article.Text))
	assert.GreaterOrEqual(t, length, articleMinLength)
	assert.LessOrEqual(t, length, articleMaxLength)
}

func TestComposeArticle_ProviderErrorUsesFallback(t *testing.T) {
	client := &stubClient{err: &llm.ProviderError{Provider: "stub", Kind: llm.KindQuotaExceeded, Message: "429"}}
	reporter := NewReporter(client)

	article := reporter.ComposeArticle(context.Background(), sampleStory(), models.PersonaGossipColumnist, nil, "")

	assert.Equal(t, models.ModeFallback, article.Mode)
	assert.Contains(t, article.Text, "Upset at the Polls")
	assert.Contains(t, article.Text, "drama desk", "gossip columnist fallback intro")
	assert.Contains(t, article.Text, "Fallback article due to technical difficulties")
}

func TestPostProcessArticle_HeadingPromotion(t *testing.T) {
	plain := "Poll results are in\n" + strings.Repeat("Everyone is talking about it. ", 5)

	processed := postProcessArticle(plain, models.PersonaSassyReporter)

	assert.True(t, strings.HasPrefix(processed, "## Poll results are in"))
}

func TestPostProcessArticle_KeepsExistingMarkdown(t *testing.T) {
	marked := "# Already a heading\n" + strings.Repeat("Body text right here. ", 5)

	processed := postProcessArticle(marked, models.PersonaSassyReporter)

	assert.True(t, strings.HasPrefix(processed, "# Already a heading"))
}

func TestPostProcessArticle_PadsShortArticles(t *testing.T) {
	processed := postProcessArticle("## Tiny update today folks", models.PersonaSportsCommentator)

	assert.GreaterOrEqual(t, len([]rune(processed)), articleMinLength)
	assert.Contains(t, processed, "keep monitoring the situation")
	assert.Contains(t, processed, articleFooter)
}

func TestPostProcessArticle_TruncatesLongArticles(t *testing.T) {
	long := "## Huge Story\n\n" + strings.Repeat("word ", 600)

	processed := postProcessArticle(long, models.PersonaSassyReporter)

	length := len([]rune(processed))
	assert.LessOrEqual(t, length, articleMaxLength)
	assert.Contains(t, processed, "*[Article truncated for length]*")
	assert.True(t, strings.HasSuffix(processed, articleFooter))
}

func TestPostProcessArticle_Idempotent(t *testing.T) {
	article := "## Solid Story\n\n" + strings.Repeat("A reasonable paragraph of text. ", 8)

	once := postProcessArticle(article, models.PersonaSassyReporter)
	twice := postProcessArticle(once, models.PersonaSassyReporter)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, articleFooter), "footer appended exactly once")
}

func TestPostProcessArticle_RuneSafety(t *testing.T) {
	// Multi-byte content near the truncation point must not split a rune.
	long := "## 🔥 Emoji Story\n\n" + strings.Repeat("🎉🎊✨ the party continues ", 120)

	processed := postProcessArticle(long, models.PersonaSassyReporter)

	assert.True(t, len([]rune(processed)) <= articleMaxLength)
	for _, r := range processed {
		assert.NotEqual(t, '�', r, "no replacement characters from split runes")
	}
}

func TestBuildQuotesSection_AnonymizesAndCaps(t *testing.T) {
	story := sampleStory()
	story.RelatedMessages = []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"}

	now := time.Now().UTC()
	var messages []models.Message
	for i, id := range story.RelatedMessages {
		messages = append(messages, models.Message{
			ID: id, AuthorID: "secret-author-" + id,
			Content:        "Quote body " + id + " " + strings.Repeat("x", 160),
			Timestamp:      now,
			TotalReactions: 10 * (i + 1),
		})
	}

	section := buildQuotesSection(story, messages)

	assert.Equal(t, 5, strings.Count(section, "Quote "), "capped at five quotes")
	assert.NotContains(t, section, "secret-author", "author ids are anonymized")
	assert.Contains(t, section, "User_")
	assert.Contains(t, section, "...", "long quotes truncated")
	// Highest engagement quote leads.
	assert.Contains(t, strings.Split(section, "Quote 2")[0], "m7")
}

func TestComposeBreakingNews_Success(t *testing.T) {
	client := &stubClient{responses: []string{"🚨 BREAKING: The server exploded with poll drama!"}}
	reporter := NewReporter(client)

	now := time.Now().UTC()
	messages := []models.Message{
		{ID: "old", Content: "older message with plenty of length", Timestamp: now.Add(-90 * time.Minute)},
		{ID: "new", Content: "newest message with plenty of length", Timestamp: now.Add(-5 * time.Minute)},
	}

	bulletin := reporter.ComposeBreakingNews(context.Background(), messages, models.PersonaSassyReporter, "general channel")

	assert.Equal(t, "🚨 BREAKING: The server exploded with poll drama!", bulletin)
	require.Len(t, client.requests, 1)
	assert.InDelta(t, 0.8, client.requests[0].Temperature, 0.0001)
	assert.Equal(t, 300, client.requests[0].MaxTokens)
	// Recency ordering puts the newest message first in the prompt.
	prompt := client.requests[0].Messages[0].Content
	assert.Less(t, strings.Index(prompt, "newest message"), strings.Index(prompt, "older message"))
}

func TestComposeBreakingNews_Fallbacks(t *testing.T) {
	now := time.Now().UTC()
	messages := []models.Message{{ID: "m", Content: "something happened just now", Timestamp: now}}

	// No messages at all.
	reporter := NewReporter(&stubClient{})
	assert.Equal(t, fallbackBulletinFor(models.PersonaWeatherAnchor),
		reporter.ComposeBreakingNews(context.Background(), nil, models.PersonaWeatherAnchor, ""))

	// Provider failure.
	failing := NewReporter(&stubClient{err: &llm.ProviderError{Provider: "stub", Kind: llm.KindGeneric, Message: "down"}})
	assert.Equal(t, fallbackBulletinFor(models.PersonaConspiracyTheorist),
		failing.ComposeBreakingNews(context.Background(), messages, models.PersonaConspiracyTheorist, ""))

	// Blank response.
	blank := NewReporter(&stubClient{responses: []string{"   "}})
	assert.Equal(t, fallbackBulletinFor(models.PersonaSassyReporter),
		blank.ComposeBreakingNews(context.Background(), messages, models.PersonaSassyReporter, ""))
}

func TestRankBreakingMessages_Order(t *testing.T) {
	now := time.Now().UTC()
	var messages []models.Message
	for i := 0; i < 15; i++ {
		messages = append(messages, models.Message{
			ID:        string(rune('a' + i)),
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	// Two messages share a timestamp; engagement breaks the tie.
	messages = append(messages,
		models.Message{ID: "tied-low", Timestamp: now, TotalReactions: 1},
		models.Message{ID: "tied-high", Timestamp: now, TotalReactions: 30, ReplyCount: 10},
	)

	ranked := rankBreakingMessages(messages)

	assert.Len(t, ranked, breakingMessageLimit)
	assert.Equal(t, "tied-high", ranked[0].ID)
	assert.Equal(t, "tied-low", ranked[1].ID)
}
