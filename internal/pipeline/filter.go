package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// Relevance weights for ranking filtered messages. Kept as the original
// constants rather than tuned values.
const (
	relevanceEngagementWeight  = 0.4
	relevanceControversyWeight = 0.3
	relevanceRecencyWeight     = 0.3

	recencyDecayHours      = 24
	minQualifyingMessages  = 5
	hardMessageCap         = 500
	minMessageLength       = 10
	maxLinkOnlyTokens      = 2
)

// FilterRanker cleans and ranks a raw message set per generation request.
type FilterRanker struct {
	now func() time.Time
}

// NewFilterRanker creates the filtering stage. The clock is injectable so the
// recency factor is testable.
func NewFilterRanker() *FilterRanker {
	return &FilterRanker{now: time.Now}
}

// FilterRank drops unusable messages, ranks the survivors by relevance and
// truncates to the profile's analysis cap. It returns an
// *InsufficientContentError when fewer than five messages survive.
func (f *FilterRanker) FilterRank(messages []models.Message, profile models.ServerProfile) ([]models.Message, error) {
	now := f.now()
	var filtered []models.Message

	for _, msg := range messages {
		if msg.Excluded {
			continue
		}
		if !profile.ChannelAllowed(msg.ChannelID) {
			continue
		}
		if containsBlacklistedWord(msg.Content, profile.BlacklistedWords) {
			continue
		}
		if len(strings.TrimSpace(msg.Content)) < minMessageLength {
			continue
		}
		if isLinkOrMentionOnly(msg.Content) {
			continue
		}
		filtered = append(filtered, msg)
	}

	if len(filtered) < minQualifyingMessages {
		return nil, &InsufficientContentError{ServerID: profile.ServerID, MessageCount: len(filtered)}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return f.relevanceScore(filtered[i], now) > f.relevanceScore(filtered[j], now)
	})

	limit := profile.MaxMessagesAnalysis
	if limit <= 0 || limit > hardMessageCap {
		limit = hardMessageCap
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	logrus.Debugf("Filter kept %d of %d messages for server %s", len(filtered), len(messages), profile.ServerID)
	return filtered, nil
}

// relevanceScore combines engagement, controversy and recency. Recency decays
// linearly to zero over 24 hours.
func (f *FilterRanker) relevanceScore(msg models.Message, now time.Time) float64 {
	hoursSince := now.Sub(msg.Timestamp).Hours()
	recency := 1 - hoursSince/recencyDecayHours
	if recency < 0 {
		recency = 0
	}

	return msg.EngagementScore()*relevanceEngagementWeight +
		msg.ControversyScore*relevanceControversyWeight +
		recency*relevanceRecencyWeight
}

func containsBlacklistedWord(content string, blacklist []string) bool {
	lower := strings.ToLower(content)
	for _, word := range blacklist {
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}

// isLinkOrMentionOnly reports whether a message is at most two tokens that are
// all links or chat mentions.
func isLinkOrMentionOnly(content string) bool {
	tokens := strings.Fields(content)
	if len(tokens) == 0 || len(tokens) > maxLinkOnlyTokens {
		return false
	}
	for _, token := range tokens {
		if !strings.HasPrefix(token, "http") &&
			!strings.HasPrefix(token, "www") &&
			!strings.HasPrefix(token, "<@") &&
			!strings.HasPrefix(token, "<#") {
			return false
		}
	}
	return true
}
