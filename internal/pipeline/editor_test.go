package pipeline

import (
	"context"
	"testing"

	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func editorCandidates() []models.StoryCandidate {
	return []models.StoryCandidate{
		{
			Headline:   "Charity Stream Smashes Fundraising Goal",
			Summary:    "The annual charity stream blew past its fundraising target in record time.",
			StoryScore: 0.4,
		},
		{
			Headline:   "Moderation Policy Debate Splits Server",
			Summary:    "A new moderation policy triggered the longest reply thread of the month.",
			StoryScore: 0.7,
		},
		{
			Headline:   "Bot Rewrite Ships After Three Months",
			Summary:    "The community bot rewrite finally merged with congratulations all around.",
			StoryScore: 0.5,
		},
	}
}

func TestSelectStory_ExplicitMention(t *testing.T) {
	client := &stubClient{responses: []string{
		"I select Story 2 as the lead.\n\nHEADLINE: Mod Policy Meltdown\nANGLE: Cover both camps\nREASONING: Most heated debate of the day.",
	}}
	editor := NewEditor(client)

	selected := editor.SelectStory(context.Background(), editorCandidates(), models.PersonaSassyReporter, "")

	assert.Equal(t, "Moderation Policy Debate Splits Server", selected.Headline)
	assert.Equal(t, selectionExplicit, selected.SelectionMethod)
	assert.Equal(t, "Mod Policy Meltdown", selected.SuggestedHeadline)
	assert.Equal(t, "Cover both camps", selected.ReportingAngle)
	assert.Equal(t, "Most heated debate of the day.", selected.EditorialReasoning)
	assert.Equal(t, 2, selected.RejectedCandidates)
}

func TestSelectStory_KeywordMatch(t *testing.T) {
	// No index or headline prefix, only shared content words.
	client := &stubClient{responses: []string{
		"The charity fundraising angle is the winner today, that stream target record was remarkable.",
	}}
	editor := NewEditor(client)

	selected := editor.SelectStory(context.Background(), editorCandidates(), models.PersonaSassyReporter, "")

	assert.Equal(t, "Charity Stream Smashes Fundraising Goal", selected.Headline)
	assert.Equal(t, selectionKeywordMatch, selected.SelectionMethod)
}

func TestSelectStory_UltimateFallbackPicksHighestScore(t *testing.T) {
	// Nothing in the response matches any candidate.
	client := &stubClient{responses: []string{"zzz qqq xxx"}}
	editor := NewEditor(client)

	selected := editor.SelectStory(context.Background(), editorCandidates(), models.PersonaSassyReporter, "")

	assert.Equal(t, "Moderation Policy Debate Splits Server", selected.Headline, "0.7 beats 0.4 and 0.5")
	assert.Equal(t, selectionHighestScore, selected.SelectionMethod)
}

func TestSelectStory_ProviderErrorFallsBack(t *testing.T) {
	client := &stubClient{err: &llm.ProviderError{Provider: "stub", Kind: llm.KindTimeout, Message: "slow"}}
	editor := NewEditor(client)

	selected := editor.SelectStory(context.Background(), editorCandidates(), models.PersonaSassyReporter, "")

	assert.Equal(t, "Moderation Policy Debate Splits Server", selected.Headline)
	assert.True(t, selected.IsFallback)
	assert.Equal(t, "Automatic selection due to processing error", selected.EditorialReasoning)
}

func TestSelectStory_NoCandidates(t *testing.T) {
	editor := NewEditor(&stubClient{})

	selected := editor.SelectStory(context.Background(), nil, models.PersonaSassyReporter, "")

	assert.Equal(t, "Community Activity Update", selected.Headline)
	assert.True(t, selected.IsFallback)
	assert.InDelta(t, 0.3, selected.StoryScore, 0.0001)
}

func TestSelectStory_SingleCandidateReviewFailure(t *testing.T) {
	client := &stubClient{err: &llm.ProviderError{Provider: "stub", Kind: llm.KindGeneric, Message: "oops"}}
	editor := NewEditor(client)
	candidate := editorCandidates()[0]

	selected := editor.SelectStory(context.Background(), []models.StoryCandidate{candidate}, models.PersonaSassyReporter, "")

	assert.Equal(t, candidate.Headline, selected.Headline)
	assert.Equal(t, "Review failed, proceeding with original", selected.EditorialReasoning)
	assert.Equal(t, "Standard reporting approach", selected.ReportingAngle)
}

func TestParseEditorialElements(t *testing.T) {
	response := `Some preamble the editor wrote.

**HEADLINE:** Drama at the Poll Booth
ANGLE: Follow the recount demands
REASONING: This story has legs.
It keeps growing every hour.

Unrelated trailing text.`

	elements := parseEditorialElements(response)

	assert.Equal(t, "Drama at the Poll Booth", elements.Headline)
	assert.Equal(t, "Follow the recount demands", elements.Angle)
	assert.Equal(t, "This story has legs. It keeps growing every hour.", elements.Reasoning)
}

func TestParseEditorialElements_MissingSections(t *testing.T) {
	elements := parseEditorialElements("No labels at all in this response.")
	assert.Empty(t, elements.Headline)
	assert.Empty(t, elements.Angle)
	assert.Empty(t, elements.Reasoning)
}

func TestEditorialPriority_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		candidate models.StoryCandidate
		expected  models.EditorialPriority
	}{
		{
			name:      "Exactly at the high threshold",
			candidate: models.StoryCandidate{StoryScore: 0.5, TotalEngagement: 5, UniqueParticipants: 10},
			expected:  models.PriorityHigh, // 0.2 + 0.3 + 0.3
		},
		{
			name:      "Just below the high threshold",
			candidate: models.StoryCandidate{StoryScore: 0.499975, TotalEngagement: 5, UniqueParticipants: 10},
			expected:  models.PriorityMedium,
		},
		{
			name:      "Exactly at the medium threshold",
			candidate: models.StoryCandidate{StoryScore: 0.5, TotalEngagement: 5, UniqueParticipants: 0},
			expected:  models.PriorityMedium, // 0.2 + 0.3
		},
		{
			name:      "Just below the medium threshold",
			candidate: models.StoryCandidate{StoryScore: 0.499975, TotalEngagement: 5, UniqueParticipants: 0},
			expected:  models.PriorityLow,
		},
		{
			name:      "Components cap at their normalizers",
			candidate: models.StoryCandidate{StoryScore: 1.0, TotalEngagement: 50, UniqueParticipants: 100},
			expected:  models.PriorityHigh,
		},
		{
			name:      "Zero everything",
			candidate: models.StoryCandidate{},
			expected:  models.PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, editorialPriority(tt.candidate))
		})
	}
}

func TestSelectStory_TemperatureAndPrompt(t *testing.T) {
	client := &stubClient{responses: []string{"Story 1 it is."}}
	editor := NewEditor(client)

	editor.SelectStory(context.Background(), editorCandidates(), models.PersonaGossipColumnist, "Server: Testville")

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.InDelta(t, 0.6, req.Temperature, 0.0001)
	assert.Contains(t, req.Messages[0].Content, "CANDIDATE 1")
	assert.Contains(t, req.Messages[0].Content, "Server: Testville")
	assert.Contains(t, req.SystemPrompt, "EDITOR-IN-CHIEF")
}
