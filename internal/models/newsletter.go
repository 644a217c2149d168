package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewsletterStatus tracks a newsletter through generation and delivery.
type NewsletterStatus string

const (
	StatusPending    NewsletterStatus = "pending"
	StatusGenerating NewsletterStatus = "generating"
	StatusGenerated  NewsletterStatus = "generated"
	StatusDelivering NewsletterStatus = "delivering"
	StatusDelivered  NewsletterStatus = "delivered"
	StatusFailed     NewsletterStatus = "failed"
	StatusCancelled  NewsletterStatus = "cancelled"
)

// FailureCooldown is the minimum time a failed newsletter waits before it
// becomes eligible for a fresh generation attempt.
const FailureCooldown = 2 * time.Hour

// Newsletter is the persisted generation/delivery record. A server has at most
// one non-cancelled newsletter per calendar date; the record is mutated only by
// the task that owns the in-flight attempt.
type Newsletter struct {
	ID         string           `json:"id"`
	ServerID   string           `json:"server_id"`
	Date       string           `json:"date"` // YYYY-MM-DD, unique per server
	Status     NewsletterStatus `json:"status"`
	Title      string           `json:"title"`
	Persona    Persona          `json:"persona_used"`
	WindowFrom time.Time        `json:"time_period_start"`
	WindowTo   time.Time        `json:"time_period_end"`

	FeaturedStory *SelectedStory `json:"featured_story,omitempty"`
	ArticleText   string         `json:"article_text,omitempty"`
	ArticleMode   GenerationMode `json:"article_mode,omitempty"`
	Introduction  string         `json:"introduction,omitempty"`
	Conclusion    string         `json:"conclusion,omitempty"`
	BriefMentions []string       `json:"brief_mentions,omitempty"` // up to 3 additional story summaries

	AnalyzedMessages int `json:"analyzed_messages_count"`

	GenerationStartedAt   *time.Time `json:"generation_started_at,omitempty"`
	GenerationCompletedAt *time.Time `json:"generation_completed_at,omitempty"`
	DeliveryChannelID     string     `json:"delivery_channel_id,omitempty"`
	DeliveryMessageID     string     `json:"delivery_message_id,omitempty"`
	DeliveredAt           *time.Time `json:"delivered_at,omitempty"`

	GenerationErrors []string   `json:"generation_errors,omitempty"`
	DeliveryErrors   []string   `json:"delivery_errors,omitempty"`
	RetryCount       int        `json:"retry_count"`
	FailedAt         *time.Time `json:"failed_at,omitempty"`
}

// NewNewsletter creates a pending newsletter record for one server and date.
func NewNewsletter(serverID string, date time.Time, windowFrom, windowTo time.Time) *Newsletter {
	return &Newsletter{
		ID:         uuid.NewString(),
		ServerID:   serverID,
		Date:       date.Format("2006-01-02"),
		Status:     StatusPending,
		Title:      fmt.Sprintf("Daily Dispatch - %s", date.Format("January 2, 2006")),
		WindowFrom: windowFrom,
		WindowTo:   windowTo,
	}
}

func (n *Newsletter) transitionErr(trigger string) error {
	return fmt.Errorf("newsletter %s: cannot %s from status %s", n.ID, trigger, n.Status)
}

// StartGeneration moves the newsletter into the generating state. A fresh
// attempt clears content left over from a prior failed attempt.
func (n *Newsletter) StartGeneration(persona Persona) error {
	switch n.Status {
	case StatusPending, StatusFailed:
	default:
		return n.transitionErr("start generation")
	}

	now := time.Now().UTC()
	n.Status = StatusGenerating
	n.Persona = persona
	n.GenerationStartedAt = &now
	n.GenerationCompletedAt = nil
	n.FeaturedStory = nil
	n.ArticleText = ""
	n.ArticleMode = ""
	n.BriefMentions = nil
	return nil
}

// SetFeaturedStory attaches the selected story. The featured story is set at
// most once per generation attempt.
func (n *Newsletter) SetFeaturedStory(story *SelectedStory) error {
	if n.Status != StatusGenerating {
		return n.transitionErr("set featured story")
	}
	if n.FeaturedStory != nil {
		return fmt.Errorf("newsletter %s: featured story already set for this attempt", n.ID)
	}
	n.FeaturedStory = story
	return nil
}

// AddBriefMention records an additional story summary, capped at three and
// deduplicated.
func (n *Newsletter) AddBriefMention(mention string) {
	if len(n.BriefMentions) >= 3 {
		return
	}
	for _, existing := range n.BriefMentions {
		if existing == mention {
			return
		}
	}
	n.BriefMentions = append(n.BriefMentions, mention)
}

// CompleteGeneration marks generation as finished.
func (n *Newsletter) CompleteGeneration() error {
	if n.Status != StatusGenerating {
		return n.transitionErr("complete generation")
	}
	now := time.Now().UTC()
	n.Status = StatusGenerated
	n.GenerationCompletedAt = &now
	return nil
}

// StartDelivery marks delivery to a channel as in flight.
func (n *Newsletter) StartDelivery(channelID string) error {
	if n.Status != StatusGenerated {
		return n.transitionErr("start delivery")
	}
	n.Status = StatusDelivering
	n.DeliveryChannelID = channelID
	return nil
}

// CompleteDelivery records the delivered message id and finishes the lifecycle.
func (n *Newsletter) CompleteDelivery(messageID string) error {
	if n.Status != StatusDelivering {
		return n.transitionErr("complete delivery")
	}
	now := time.Now().UTC()
	n.Status = StatusDelivered
	n.DeliveryMessageID = messageID
	n.DeliveredAt = &now
	return nil
}

// MarkFailed moves the newsletter to failed and appends the error to the
// phase-appropriate log. Failed is reachable from generating or delivering.
func (n *Newsletter) MarkFailed(message string, generationPhase bool) error {
	switch n.Status {
	case StatusGenerating, StatusDelivering:
	default:
		return n.transitionErr("mark failed")
	}

	now := time.Now().UTC()
	n.Status = StatusFailed
	n.FailedAt = &now
	entry := fmt.Sprintf("[%s] %s", now.Format(time.RFC3339), message)
	if generationPhase {
		n.GenerationErrors = append(n.GenerationErrors, entry)
	} else {
		n.DeliveryErrors = append(n.DeliveryErrors, entry)
	}
	return nil
}

// Cancel is terminal and settable from any non-terminal state.
func (n *Newsletter) Cancel() error {
	switch n.Status {
	case StatusDelivered, StatusCancelled:
		return n.transitionErr("cancel")
	}
	n.Status = StatusCancelled
	return nil
}

// RetryEligible reports whether a failed newsletter may be attempted again.
func (n *Newsletter) RetryEligible(now time.Time) bool {
	if n.Status != StatusFailed || n.FailedAt == nil {
		return false
	}
	return now.Sub(*n.FailedAt) >= FailureCooldown
}

// LastError returns the most recent error entry, truncated for user display.
func (n *Newsletter) LastError() string {
	var entry string
	if len(n.DeliveryErrors) > 0 {
		entry = n.DeliveryErrors[len(n.DeliveryErrors)-1]
	} else if len(n.GenerationErrors) > 0 {
		entry = n.GenerationErrors[len(n.GenerationErrors)-1]
	}
	if len(entry) > 200 {
		entry = entry[:200] + "..."
	}
	return entry
}

// SuccessScore is a 0-1 heuristic combining lifecycle progress and content
// richness, with a penalty for logged errors.
func (n *Newsletter) SuccessScore() float64 {
	score := 0.0

	switch n.Status {
	case StatusDelivered:
		score += 0.4
	case StatusGenerated:
		score += 0.2
	}

	if n.FeaturedStory != nil {
		score += 0.2
	}
	score += minFloat(float64(len(n.BriefMentions))*0.05, 0.2)

	if len(n.GenerationErrors) > 0 {
		score -= 0.1
	}
	if len(n.DeliveryErrors) > 0 {
		score -= 0.1
	}

	if score < 0 {
		return 0
	}
	return minFloat(score, 1.0)
}

// ToMarkdown renders the newsletter for channel delivery.
func (n *Newsletter) ToMarkdown() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("# %s", n.Title), "")
	lines = append(lines, fmt.Sprintf("📅 %s", n.Date))
	if n.Introduction != "" {
		lines = append(lines, "", n.Introduction)
	}
	lines = append(lines, "")

	if n.FeaturedStory != nil {
		lines = append(lines, "## 🔥 Top Story")
		lines = append(lines, fmt.Sprintf("### %s", n.FeaturedStory.BestHeadline()))
		lines = append(lines, n.ArticleText, "")
	} else if n.ArticleText != "" {
		lines = append(lines, n.ArticleText, "")
	}

	if len(n.BriefMentions) > 0 {
		lines = append(lines, "## 📝 Quick Mentions")
		for _, mention := range n.BriefMentions {
			lines = append(lines, fmt.Sprintf("• %s", mention))
		}
		lines = append(lines, "")
	}

	if n.Conclusion != "" {
		lines = append(lines, n.Conclusion, "")
	}

	lines = append(lines, "---", "*Generated by Community Dispatch 🤖*")
	return strings.Join(lines, "\n")
}
