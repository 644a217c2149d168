package models

// EditorialPriority buckets a selected story's expected audience impact.
type EditorialPriority string

const (
	PriorityLow    EditorialPriority = "low"
	PriorityMedium EditorialPriority = "medium"
	PriorityHigh   EditorialPriority = "high"
)

// StoryCandidate is a proposed newsworthy topic extracted from a message set,
// produced by story discovery and consumed by editorial selection.
type StoryCandidate struct {
	Headline        string   `json:"headline"`
	Summary         string   `json:"summary"`
	Newsworthiness  string   `json:"newsworthiness"`
	KeyPlayers      string   `json:"key_players"`
	StoryScore      float64  `json:"story_score"` // 0-1
	RelatedMessages []string `json:"related_message_ids"`

	// Aggregate metrics over the related messages.
	TotalEngagement    float64 `json:"total_engagement"`
	AverageControversy float64 `json:"average_controversy"`
	UniqueParticipants int     `json:"unique_participants"`
	TimeSpanHours      float64 `json:"time_span_hours"`

	IsFallback bool `json:"is_fallback,omitempty"`
}

// SelectedStory is the candidate chosen by editorial review, annotated with
// the editorial brief handed to article composition.
type SelectedStory struct {
	StoryCandidate

	SuggestedHeadline  string            `json:"suggested_headline"`
	ReportingAngle     string            `json:"reporting_angle"`
	EditorialReasoning string            `json:"editorial_reasoning"`
	Priority           EditorialPriority `json:"editorial_priority"`
	RejectedCandidates int               `json:"rejected_candidates"`
	SelectionMethod    string            `json:"selection_method,omitempty"`
}

// BestHeadline prefers the editor's suggested headline over the discovered one.
func (s SelectedStory) BestHeadline() string {
	if s.SuggestedHeadline != "" {
		return s.SuggestedHeadline
	}
	if s.Headline != "" {
		return s.Headline
	}
	return "Community Update"
}

// GenerationMode records which path produced an article.
type GenerationMode string

const (
	ModeFullPipeline GenerationMode = "full_pipeline"
	ModeFallback     GenerationMode = "fallback"
)

// Article is the final composed newsletter body.
type Article struct {
	Text    string         `json:"text"`
	Persona Persona        `json:"persona"`
	Mode    GenerationMode `json:"mode"`
}
