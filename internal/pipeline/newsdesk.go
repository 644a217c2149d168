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

// Story discovery constants, preserved from the original heuristics.
const (
	DefaultMaxStories = 5

	evidenceMessageLimit   = 50
	controversyRankWeight  = 10
	relatedOverlapMinRatio = 0.2
	relatedEngagementMin   = 0.5
	relatedMessageLimit    = 10
	minKeywordLength       = 3 // tokens must be longer than this

	storyBonusHigh    = 0.3
	storyBonusMedium  = 0.2
	storyBonusDefault = 0.1

	storyEngagementWeight    = 0.3
	storyControversyWeight   = 0.2
	storyParticipationWeight = 0.2
	participationNormalizer  = 10
)

// storyBlockDelimiter separates story blocks in the provider's response.
const storyBlockDelimiter = "**STORY"

// NewsDesk turns a ranked message set into scored story candidates.
type NewsDesk struct {
	client llm.CompletionClient
}

// NewNewsDesk creates the story-discovery stage.
func NewNewsDesk(client llm.CompletionClient) *NewsDesk {
	return &NewsDesk{client: client}
}

// DiscoverStories asks the provider for story candidates, parses the free-text
// response and scores each surviving candidate. A response with no parseable
// block is recovered locally by synthesizing one candidate from the highest
// engagement message; provider errors propagate to the orchestrator.
func (d *NewsDesk) DiscoverStories(ctx context.Context, messages []models.Message, persona models.Persona, maxStories int) ([]models.StoryCandidate, error) {
	if maxStories <= 0 {
		maxStories = DefaultMaxStories
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided for story discovery")
	}

	evidence := rankEvidence(messages)

	response, err := d.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: newsDeskPrompt(persona),
		Messages: []llm.ChatMessage{
			{Role: "user", Content: buildAnalysisPrompt(evidence, maxStories)},
		},
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("news desk completion: %w", err)
	}

	blocks := parseStoryBlocks(response)
	candidates := make([]models.StoryCandidate, 0, len(blocks))
	for _, block := range blocks {
		candidates = append(candidates, models.StoryCandidate{
			Headline:       block.Headline,
			Summary:        block.Summary,
			Newsworthiness: block.Newsworthiness,
			KeyPlayers:     block.KeyPlayers,
		})
	}

	if len(candidates) == 0 {
		logrus.Warnf("News desk response had no parseable story block, synthesizing fallback candidate")
		candidates = []models.StoryCandidate{fallbackCandidate(messages)}
	}

	for i := range candidates {
		d.enrichCandidate(&candidates[i], messages)
	}

	if len(candidates) > maxStories {
		candidates = candidates[:maxStories]
	}

	logrus.Infof("News desk identified %d story candidates from %d messages", len(candidates), len(messages))
	return candidates, nil
}

// rankEvidence re-ranks messages for the analysis table, weighting
// controversy higher, and keeps the top slice as evidence.
func rankEvidence(messages []models.Message) []models.Message {
	ranked := make([]models.Message, len(messages))
	copy(ranked, messages)

	sort.SliceStable(ranked, func(i, j int) bool {
		return evidenceRank(ranked[i]) > evidenceRank(ranked[j])
	})

	if len(ranked) > evidenceMessageLimit {
		ranked = ranked[:evidenceMessageLimit]
	}
	return ranked
}

func evidenceRank(m models.Message) float64 {
	return float64(m.TotalReactions) + float64(m.ReplyCount) + m.ControversyScore*controversyRankWeight
}

func newsDeskPrompt(persona models.Persona) string {
	return systemPromptFor(persona) + "\n\n" +
		"You are working the NEWS DESK. Your job is to analyze community messages and identify the most interesting, " +
		"newsworthy, or entertaining stories that happened in the last 24 hours.\n\n" +
		"Look for:\n" +
		"- High engagement (lots of replies/reactions)\n" +
		"- Controversial or debate-inducing topics\n" +
		"- Funny or memorable moments\n" +
		"- Community events or announcements\n" +
		"- Unexpected developments or surprises\n\n" +
		"Return your analysis in this format:\n" +
		"**STORY 1:**\n" +
		"Headline: [headline]\n" +
		"Newsworthiness: [why it's interesting]\n" +
		"Key Players: [participants involved]\n" +
		"Summary: [what happened]"
}

func buildAnalysisPrompt(evidence []models.Message, maxStories int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following community messages and identify %d potential news stories.\n\nMESSAGE DATA:\n", maxStories)

	for i, msg := range evidence {
		content := msg.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Fprintf(&b, "MSG_%d | %s | User_%s\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), shortAuthorToken(msg.AuthorID, 4))
		fmt.Fprintf(&b, "Content: %s\n", content)
		fmt.Fprintf(&b, "Engagement: %d reactions, %d replies\n", msg.TotalReactions, msg.ReplyCount)
		fmt.Fprintf(&b, "Controversy: %.2f/1.0 | Engagement: %.2f/1.0\n---\n", msg.ControversyScore, msg.EngagementScore())
	}

	fmt.Fprintf(&b, "\nProvide exactly %d story candidates in the required format.", maxStories)
	return b.String()
}

// ParsedBlock is one labeled story block recovered from generative text.
type ParsedBlock struct {
	Headline       string
	Newsworthiness string
	KeyPlayers     string
	Summary        string
}

// Complete reports whether the block carries the required fields.
func (p ParsedBlock) Complete() bool {
	return p.Headline != "" && p.Summary != ""
}

// parseStoryBlocks scans the response for the literal block delimiter and
// pulls the labeled lines out of each section. Incomplete blocks are dropped.
func parseStoryBlocks(response string) []ParsedBlock {
	sections := strings.Split(response, storyBlockDelimiter)
	if len(sections) < 2 {
		return nil
	}

	var blocks []ParsedBlock
	for _, section := range sections[1:] {
		block := parseBlockSection(section)
		if block.Complete() {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func parseBlockSection(section string) ParsedBlock {
	var block ParsedBlock
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Headline:"):
			block.Headline = strings.TrimSpace(strings.TrimPrefix(line, "Headline:"))
		case strings.HasPrefix(line, "Newsworthiness:"):
			block.Newsworthiness = strings.TrimSpace(strings.TrimPrefix(line, "Newsworthiness:"))
		case strings.HasPrefix(line, "Key Players:"):
			block.KeyPlayers = strings.TrimSpace(strings.TrimPrefix(line, "Key Players:"))
		case strings.HasPrefix(line, "Summary:"):
			block.Summary = strings.TrimSpace(strings.TrimPrefix(line, "Summary:"))
		}
	}
	return block
}

// fallbackCandidate builds the single deterministic candidate used when the
// provider's response yields no valid block.
func fallbackCandidate(messages []models.Message) models.StoryCandidate {
	top := messages[0]
	for _, msg := range messages[1:] {
		if msg.EngagementScore() > top.EngagementScore() {
			top = msg
		}
	}

	return models.StoryCandidate{
		Headline:       "Community Discussion",
		Summary:        fmt.Sprintf("Active discussion around recent messages with %d reactions", top.TotalReactions),
		Newsworthiness: "High engagement",
		KeyPlayers:     "Multiple community members",
		IsFallback:     true,
	}
}

// enrichCandidate attaches related messages, aggregate metrics and the final
// story score to a candidate.
func (d *NewsDesk) enrichCandidate(candidate *models.StoryCandidate, messages []models.Message) {
	related := findRelatedMessages(*candidate, messages)

	candidate.RelatedMessages = make([]string, 0, len(related))
	for _, msg := range related {
		candidate.RelatedMessages = append(candidate.RelatedMessages, msg.ID)
	}

	if len(related) > 0 {
		var totalEngagement, totalControversy float64
		authors := make(map[string]struct{})
		for _, msg := range related {
			totalEngagement += msg.EngagementScore()
			totalControversy += msg.ControversyScore
			authors[msg.AuthorID] = struct{}{}
		}
		candidate.TotalEngagement = totalEngagement
		candidate.AverageControversy = totalControversy / float64(len(related))
		candidate.UniqueParticipants = len(authors)
	}
	candidate.TimeSpanHours = timeSpanHours(related)
	candidate.StoryScore = storyScore(*candidate, related)
}

// storyScore combines the provider's newsworthiness wording with aggregate
// engagement, controversy and participation of the related messages, clamped
// to [0,1].
func storyScore(candidate models.StoryCandidate, related []models.Message) float64 {
	score := newsworthinessBonus(candidate.Newsworthiness)

	if len(related) > 0 {
		var totalEngagement, totalControversy float64
		authors := make(map[string]struct{})
		for _, msg := range related {
			totalEngagement += msg.EngagementScore()
			totalControversy += msg.ControversyScore
			authors[msg.AuthorID] = struct{}{}
		}
		n := float64(len(related))
		score += (totalEngagement / n) * storyEngagementWeight
		score += (totalControversy / n) * storyControversyWeight

		participation := float64(len(authors)) / participationNormalizer
		if participation > 1 {
			participation = 1
		}
		score += participation * storyParticipationWeight
	}

	if score > 1 {
		return 1
	}
	return score
}

func newsworthinessBonus(newsworthiness string) float64 {
	lower := strings.ToLower(newsworthiness)
	for _, word := range []string{"high", "very", "extremely"} {
		if strings.Contains(lower, word) {
			return storyBonusHigh
		}
	}
	for _, word := range []string{"medium", "moderate"} {
		if strings.Contains(lower, word) {
			return storyBonusMedium
		}
	}
	return storyBonusDefault
}

// findRelatedMessages keeps messages with sufficient keyword overlap against
// the story text or high engagement, sorted by engagement, capped at ten.
func findRelatedMessages(candidate models.StoryCandidate, messages []models.Message) []models.Message {
	storyKeywords := contentKeywords(candidate.Headline + " " + candidate.Summary)

	var related []models.Message
	for _, msg := range messages {
		overlap := keywordOverlapRatio(storyKeywords, contentKeywords(msg.Content))
		if overlap > relatedOverlapMinRatio || msg.EngagementScore() > relatedEngagementMin {
			related = append(related, msg)
		}
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].EngagementScore() > related[j].EngagementScore()
	})

	if len(related) > relatedMessageLimit {
		related = related[:relatedMessageLimit]
	}
	return related
}

// contentKeywords lowercases the text and keeps words longer than three
// characters, with trailing punctuation stripped.
func contentKeywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?")
		if len(word) > minKeywordLength {
			keywords[word] = struct{}{}
		}
	}
	return keywords
}

func keywordOverlapRatio(storyKeywords, messageKeywords map[string]struct{}) float64 {
	if len(storyKeywords) == 0 {
		return 0
	}
	overlap := 0
	for word := range storyKeywords {
		if _, ok := messageKeywords[word]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(storyKeywords))
}

// timeSpanHours is the distance between the earliest and latest related
// message, zero when fewer than two exist.
func timeSpanHours(messages []models.Message) float64 {
	if len(messages) < 2 {
		return 0
	}
	earliest, latest := messages[0].Timestamp, messages[0].Timestamp
	for _, msg := range messages[1:] {
		if msg.Timestamp.Before(earliest) {
			earliest = msg.Timestamp
		}
		if msg.Timestamp.After(latest) {
			latest = msg.Timestamp
		}
	}
	return latest.Sub(earliest).Hours()
}

func shortAuthorToken(authorID string, n int) string {
	if authorID == "" {
		return "unkn"
	}
	if len(authorID) <= n {
		return authorID
	}
	return authorID[len(authorID)-n:]
}
