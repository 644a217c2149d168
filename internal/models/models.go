package models

import (
	"strings"
	"time"
)

// Persona is a named writing-style profile applied to generated text
// and to the templated fallbacks.
type Persona string

const (
	PersonaSassyReporter           Persona = "sassy_reporter"
	PersonaInvestigativeJournalist Persona = "investigative_journalist"
	PersonaGossipColumnist         Persona = "gossip_columnist"
	PersonaSportsCommentator       Persona = "sports_commentator"
	PersonaWeatherAnchor           Persona = "weather_anchor"
	PersonaConspiracyTheorist      Persona = "conspiracy_theorist"
)

// ParsePersona maps a config string to a known persona, defaulting to
// the sassy reporter for anything unrecognized.
func ParsePersona(s string) Persona {
	p := Persona(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PersonaSassyReporter, PersonaInvestigativeJournalist, PersonaGossipColumnist,
		PersonaSportsCommentator, PersonaWeatherAnchor, PersonaConspiracyTheorist:
		return p
	}
	return PersonaSassyReporter
}

// Display returns the persona name with underscores replaced, for prompts
// and rendered text.
func (p Persona) Display() string {
	return strings.ReplaceAll(string(p), "_", " ")
}

// Message is a chat message as provided by the message-feed collaborator.
// Messages are immutable once ingested.
type Message struct {
	ID               string    `json:"id"`
	ChannelID        string    `json:"channel_id"`
	ServerID         string    `json:"server_id"`
	AuthorID         string    `json:"author_id"`
	Content          string    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
	TotalReactions   int       `json:"total_reactions"`
	ReplyCount       int       `json:"reply_count"`
	ControversyScore float64   `json:"controversy_score"` // 0-1, precomputed upstream
	Excluded         bool      `json:"excluded_from_analysis"`
}

// Engagement score weights and normalization caps.
const (
	reactionWeight = 0.6
	replyWeight    = 0.4
	maxReactions   = 50
	maxReplies     = 20
)

// EngagementScore combines normalized reaction and reply counts into a 0-1 score.
func (m Message) EngagementScore() float64 {
	if m.TotalReactions == 0 && m.ReplyCount == 0 {
		return 0.0
	}

	reactionScore := minFloat(float64(m.TotalReactions)/maxReactions, 1.0)
	replyScore := minFloat(float64(m.ReplyCount)/maxReplies, 1.0)

	return reactionScore*reactionWeight + replyScore*replyWeight
}

// ServerProfile is the read-only per-server configuration consumed by the
// filtering stage.
type ServerProfile struct {
	ServerID            string   `json:"server_id"`
	ServerName          string   `json:"server_name"`
	Persona             Persona  `json:"persona"`
	NewsletterChannelID string   `json:"newsletter_channel_id"`
	AllowedChannels     []string `json:"allowed_channels"` // empty = all channels allowed
	BlacklistedWords    []string `json:"blacklisted_words"`
	MaxMessagesAnalysis int      `json:"max_messages_analysis"`
}

// ChannelAllowed reports whether a channel participates in analysis.
// An empty allow-list admits every channel.
func (p ServerProfile) ChannelAllowed(channelID string) bool {
	if len(p.AllowedChannels) == 0 {
		return true
	}
	for _, id := range p.AllowedChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

// FailureReport is the structured failure payload handed to the
// notification collaborator when a generation attempt gives up.
type FailureReport struct {
	ServerID  string    `json:"server_id"`
	ErrorKind string    `json:"error_kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
