package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// Editorial priority weights and thresholds, preserved as the original
// constants.
const (
	priorityStoryWeight         = 0.4
	priorityEngagementWeight    = 0.3
	priorityParticipantsWeight  = 0.3
	priorityEngagementNormal    = 5
	priorityParticipantsNormal  = 10
	priorityHighThreshold       = 0.8
	priorityMediumThreshold     = 0.5
	headlineIndicatorPrefixLen  = 20
	summaryMatchWordLimit       = 10
)

// Selection methods recorded on the selected story.
const (
	selectionExplicit     = "explicit_mention"
	selectionKeywordMatch = "keyword_match"
	selectionHighestScore = "fallback_highest_score"
)

// Editor picks one candidate and derives the editorial brief for the
// article composer.
type Editor struct {
	client llm.CompletionClient
}

// NewEditor creates the editorial-selection stage.
func NewEditor(client llm.CompletionClient) *Editor {
	return &Editor{client: client}
}

// SelectStory runs editorial review over the candidates. It never fails: any
// provider or parsing problem is recovered by falling back to the candidate
// with the highest story score.
func (e *Editor) SelectStory(ctx context.Context, candidates []models.StoryCandidate, persona models.Persona, serverContext string) models.SelectedStory {
	switch len(candidates) {
	case 0:
		logrus.Warn("No story candidates provided, using hard-coded fallback story")
		return fallbackSelection()
	case 1:
		return e.reviewSingleStory(ctx, candidates[0], persona, serverContext)
	}

	response, err := e.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: editorPrompt(persona),
		Messages: []llm.ChatMessage{
			{Role: "user", Content: buildEditorialPrompt(candidates, persona, serverContext)},
		},
		Temperature: 0.6,
		MaxTokens:   2048,
	})
	if err != nil {
		logrus.Errorf("Editorial completion failed, selecting highest-scoring candidate: %v", err)
		return highestScoreFallback(candidates)
	}

	chosen, method := parseEditorialDecision(response, candidates)
	selected := annotateSelection(chosen, response, len(candidates))
	selected.SelectionMethod = method

	logrus.Infof("Editorial selection completed: %q (method: %s, %d candidates)",
		selected.BestHeadline(), method, len(candidates))
	return selected
}

func editorPrompt(persona models.Persona) string {
	return systemPromptFor(persona) + "\n\n" +
		"You are the EDITOR-IN-CHIEF. Review story candidates and select the single best one for today's newsletter headline.\n" +
		"Respond with the selected story and label your decision using these sections:\n" +
		"HEADLINE: [improved headline]\n" +
		"ANGLE: [reporting angle for the reporter]\n" +
		"REASONING: [why this story works for the community]"
}

func buildEditorialPrompt(candidates []models.StoryCandidate, persona models.Persona, serverContext string) string {
	var b strings.Builder
	b.WriteString("Review these story candidates and select the best one for today's newsletter headline.\n\nSTORY CANDIDATES:\n")

	for i, story := range candidates {
		fmt.Fprintf(&b, "\n**CANDIDATE %d:**\n", i+1)
		fmt.Fprintf(&b, "Headline: %s\n", story.Headline)
		fmt.Fprintf(&b, "Summary: %s\n", story.Summary)
		fmt.Fprintf(&b, "Newsworthiness: %s\n", story.Newsworthiness)
		fmt.Fprintf(&b, "Key Players: %s\n", story.KeyPlayers)
		fmt.Fprintf(&b, "METRICS: score %.2f/1.0, %d related messages, %.2f total engagement, %d participants, %.2f avg controversy, %.1fh span\n",
			story.StoryScore, len(story.RelatedMessages), story.TotalEngagement,
			story.UniqueParticipants, story.AverageControversy, story.TimeSpanHours)
	}

	if serverContext != "" {
		fmt.Fprintf(&b, "\nSERVER CONTEXT:\n%s\n", serverContext)
	}

	fmt.Fprintf(&b, "\nConsider which story will most engage this community and which fits best with the %s persona.\n", persona.Display())
	b.WriteString("Select ONE story and explain your editorial decision.")
	return b.String()
}

// reviewSingleStory runs the lighter single-candidate review. Review failure
// proceeds with the original candidate rather than aborting.
func (e *Editor) reviewSingleStory(ctx context.Context, candidate models.StoryCandidate, persona models.Persona, serverContext string) models.SelectedStory {
	prompt := fmt.Sprintf(
		"Review this single story candidate for the newsletter. Even though it's the only option, provide editorial feedback and improvements.\n\n"+
			"STORY:\nHeadline: %s\nSummary: %s\nMetrics: score %.2f, %d participants\n\n"+
			"Provide:\nHEADLINE: [improved headline if needed]\nANGLE: [editorial angle for the reporter]\nREASONING: [why this story works for the community]",
		candidate.Headline, candidate.Summary, candidate.StoryScore, candidate.UniqueParticipants)
	if serverContext != "" {
		prompt += "\n\nSERVER CONTEXT:\n" + serverContext
	}

	response, err := e.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: editorPrompt(persona),
		Messages:     []llm.ChatMessage{{Role: "user", Content: prompt}},
		Temperature:  0.6,
		MaxTokens:    2048,
	})
	if err != nil {
		logrus.Warnf("Single story review failed, proceeding with original: %v", err)
		selected := models.SelectedStory{StoryCandidate: candidate}
		selected.EditorialReasoning = "Review failed, proceeding with original"
		selected.SuggestedHeadline = candidate.Headline
		selected.ReportingAngle = "Standard reporting approach"
		selected.Priority = editorialPriority(candidate)
		return selected
	}

	selected := annotateSelection(candidate, response, 1)
	if selected.EditorialReasoning == "" || selected.EditorialReasoning == defaultReasoning {
		selected.EditorialReasoning = "Single candidate review completed"
	}
	return selected
}

const defaultReasoning = "Story selected by editorial review"

// annotateSelection parses the labeled sections out of the editorial response
// and fills the editorial brief.
func annotateSelection(candidate models.StoryCandidate, response string, totalCandidates int) models.SelectedStory {
	elements := parseEditorialElements(response)

	selected := models.SelectedStory{StoryCandidate: candidate}
	selected.EditorialReasoning = defaultReasoning
	if elements.Reasoning != "" {
		selected.EditorialReasoning = elements.Reasoning
	}
	selected.SuggestedHeadline = candidate.Headline
	if elements.Headline != "" {
		selected.SuggestedHeadline = elements.Headline
	}
	selected.ReportingAngle = "Standard reporting approach"
	if elements.Angle != "" {
		selected.ReportingAngle = elements.Angle
	}
	selected.Priority = editorialPriority(candidate)
	selected.RejectedCandidates = totalCandidates - 1
	return selected
}

// parseEditorialDecision identifies which candidate the response selected.
// Strategies in order, first match wins: explicit story/candidate index or
// headline prefix, then shared content words, then highest story score.
func parseEditorialDecision(response string, candidates []models.StoryCandidate) (models.StoryCandidate, string) {
	responseLower := strings.ToLower(response)

	// Explicit mention of an index or the headline itself.
	for i, candidate := range candidates {
		indicators := []string{
			fmt.Sprintf("story %d", i+1),
			fmt.Sprintf("candidate %d", i+1),
		}
		headline := strings.ToLower(candidate.Headline)
		if len(headline) > headlineIndicatorPrefixLen {
			headline = headline[:headlineIndicatorPrefixLen]
		}
		if headline != "" {
			indicators = append(indicators, headline)
		}

		for _, indicator := range indicators {
			if strings.Contains(responseLower, indicator) {
				return candidate, selectionExplicit
			}
		}
	}

	// Shared content words between the response and each candidate's
	// headline plus the first ten summary words.
	var best *models.StoryCandidate
	bestScore := 0
	for i := range candidates {
		words := strings.Fields(strings.ToLower(candidates[i].Headline))
		summaryWords := strings.Fields(strings.ToLower(candidates[i].Summary))
		if len(summaryWords) > summaryMatchWordLimit {
			summaryWords = summaryWords[:summaryMatchWordLimit]
		}
		words = append(words, summaryWords...)

		score := 0
		for _, word := range words {
			if len(word) > minKeywordLength && strings.Contains(responseLower, word) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}
	if best != nil {
		return *best, selectionKeywordMatch
	}

	return maxStoryScore(candidates), selectionHighestScore
}

// editorialElements are the labeled sections recovered from the editorial
// response.
type editorialElements struct {
	Headline  string
	Angle     string
	Reasoning string
}

// parseEditorialElements is a line-oriented section scanner keyed on the
// HEADLINE/ANGLE/REASONING markers. Markdown emphasis around a marker is
// ignored, and reasoning continues across lines until a blank line.
func parseEditorialElements(response string) editorialElements {
	var elements editorialElements
	var reasoningBuffer []string
	inReasoning := false

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		stripped := strings.Trim(line, "*")
		stripped = strings.TrimSpace(stripped)
		upper := strings.ToUpper(stripped)

		switch {
		case strings.HasPrefix(upper, "HEADLINE:"):
			inReasoning = false
			elements.Headline = sectionValue(stripped, "HEADLINE:")
		case strings.HasPrefix(upper, "ANGLE:"):
			inReasoning = false
			elements.Angle = sectionValue(stripped, "ANGLE:")
		case strings.HasPrefix(upper, "REASONING:"):
			inReasoning = true
			reasoningBuffer = reasoningBuffer[:0]
			if content := sectionValue(stripped, "REASONING:"); content != "" {
				reasoningBuffer = append(reasoningBuffer, content)
			}
		case inReasoning && line == "":
			inReasoning = false
		case inReasoning:
			reasoningBuffer = append(reasoningBuffer, line)
		}

		if !inReasoning && len(reasoningBuffer) > 0 && elements.Reasoning == "" {
			elements.Reasoning = strings.Join(reasoningBuffer, " ")
		}
	}

	if len(reasoningBuffer) > 0 && elements.Reasoning == "" {
		elements.Reasoning = strings.Join(reasoningBuffer, " ")
	}
	return elements
}

// sectionValue extracts the text after a marker, dropping any markdown
// emphasis that closed the marker itself.
func sectionValue(line, marker string) string {
	value := line[len(marker):]
	value = strings.TrimLeft(value, "* ")
	return strings.TrimSpace(value)
}

// editorialPriority buckets the selected story by a weighted combination of
// story score, engagement and participation.
func editorialPriority(candidate models.StoryCandidate) models.EditorialPriority {
	engagement := candidate.TotalEngagement / priorityEngagementNormal
	if engagement > 1 {
		engagement = 1
	}
	participants := float64(candidate.UniqueParticipants) / priorityParticipantsNormal
	if participants > 1 {
		participants = 1
	}

	priorityScore := candidate.StoryScore*priorityStoryWeight +
		engagement*priorityEngagementWeight +
		participants*priorityParticipantsWeight

	switch {
	case priorityScore >= priorityHighThreshold:
		return models.PriorityHigh
	case priorityScore >= priorityMediumThreshold:
		return models.PriorityMedium
	}
	return models.PriorityLow
}

// highestScoreFallback is the recovery path when the provider or decision
// parsing fails outright.
func highestScoreFallback(candidates []models.StoryCandidate) models.SelectedStory {
	chosen := maxStoryScore(candidates)
	selected := models.SelectedStory{StoryCandidate: chosen}
	selected.IsFallback = true
	selected.EditorialReasoning = "Automatic selection due to processing error"
	selected.SuggestedHeadline = chosen.Headline
	selected.ReportingAngle = "Standard reporting approach"
	selected.Priority = editorialPriority(chosen)
	selected.RejectedCandidates = len(candidates) - 1
	selected.SelectionMethod = selectionHighestScore
	return selected
}

func maxStoryScore(candidates []models.StoryCandidate) models.StoryCandidate {
	chosen := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.StoryScore > chosen.StoryScore {
			chosen = candidate
		}
	}
	return chosen
}

// fallbackSelection is the hard-coded story used when discovery produced no
// candidates at all.
func fallbackSelection() models.SelectedStory {
	selected := models.SelectedStory{
		StoryCandidate: models.StoryCandidate{
			Headline:       "Community Activity Update",
			Summary:        "Regular community discussions and interactions continue across the server.",
			Newsworthiness: "Baseline community activity",
			KeyPlayers:     "Community members",
			StoryScore:     0.3,
			IsFallback:     true,
		},
	}
	selected.EditorialReasoning = "Fallback story - no specific candidates available"
	selected.SuggestedHeadline = selected.Headline
	selected.ReportingAngle = "General community update"
	selected.Priority = editorialPriority(selected.StoryCandidate)
	selected.SelectionMethod = selectionHighestScore
	return selected
}
