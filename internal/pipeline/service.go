package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/communitypress/dispatch-bot/internal/config"
	"github.com/communitypress/dispatch-bot/internal/feed"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/communitypress/dispatch-bot/internal/notifications"
	"github.com/communitypress/dispatch-bot/internal/storage"
	"github.com/communitypress/dispatch-bot/internal/trending"
	"github.com/sirupsen/logrus"
)

const (
	trendingTopicLimit   = 5
	breakingWindowHours  = 2
	generationRunTimeout = 15 * time.Minute
)

// Service drives the newsletter lifecycle for all configured servers: fetch
// messages, run the editorial pipeline, persist the record and deliver the
// result.
type Service struct {
	config       *config.Config
	feed         feed.Feed
	trending     trending.Provider
	newsletters  *storage.NewsletterStore
	profiles     *storage.ProfileStore
	notifier     notifications.NotificationInterface
	orchestrator *Orchestrator

	metrics *Metrics
	mu      sync.RWMutex
}

// Metrics holds pipeline run metrics
type Metrics struct {
	NewslettersGenerated int               `json:"newsletters_generated"`
	NewslettersDelivered int               `json:"newsletters_delivered"`
	NewslettersFailed    int               `json:"newsletters_failed"`
	BulletinsSent        int               `json:"bulletins_sent"`
	LastRun              time.Time         `json:"last_run"`
	LastRunDuration      string            `json:"last_run_duration"`
	ServerStatus         map[string]string `json:"server_status"`
	ErrorCount           int               `json:"error_count"`
}

// NewService creates the newsletter pipeline service
func NewService(cfg *config.Config, messageFeed feed.Feed, trendingProvider trending.Provider,
	newsletters *storage.NewsletterStore, profiles *storage.ProfileStore,
	notifier notifications.NotificationInterface, orchestrator *Orchestrator) *Service {
	return &Service{
		config:       cfg,
		feed:         messageFeed,
		trending:     trendingProvider,
		newsletters:  newsletters,
		profiles:     profiles,
		notifier:     notifier,
		orchestrator: orchestrator,
		metrics: &Metrics{
			ServerStatus: make(map[string]string),
		},
	}
}

// RunDaily generates and delivers the daily newsletter for every configured
// server. Failures on one server do not stop the others.
func (s *Service) RunDaily() error {
	start := time.Now()
	logrus.Infof("Starting daily newsletter run for %d servers", len(s.config.ServerIDs))

	ctx, cancel := context.WithTimeout(context.Background(), generationRunTimeout)
	defer cancel()

	errorCount := 0
	for _, serverID := range s.config.ServerIDs {
		if err := s.GenerateForServer(ctx, serverID, time.Now().UTC()); err != nil {
			logrus.Errorf("Newsletter run failed for server %s: %v", serverID, err)
			errorCount++
		}
	}

	s.mu.Lock()
	s.metrics.LastRun = time.Now()
	s.metrics.LastRunDuration = time.Since(start).String()
	s.metrics.ErrorCount = errorCount
	s.mu.Unlock()

	logrus.Infof("Daily newsletter run completed in %v (%d errors)", time.Since(start), errorCount)
	if errorCount > 0 {
		return fmt.Errorf("newsletter run finished with %d server errors", errorCount)
	}
	return nil
}

// GenerateForServer runs the full generate-persist-deliver lifecycle for one
// server and date. At most one newsletter exists per server per date; an
// existing failed record is reused only once its cooldown has elapsed.
func (s *Service) GenerateForServer(ctx context.Context, serverID string, date time.Time) error {
	dateKey := date.Format("2006-01-02")

	profile, err := s.profiles.Get(serverID)
	if err != nil {
		return fmt.Errorf("load profile for server %s: %w", serverID, err)
	}

	newsletter, err := s.resolveNewsletter(serverID, dateKey, date)
	if err != nil {
		return err
	}
	if newsletter == nil {
		return nil // already handled for this date
	}

	window := time.Duration(s.config.WindowHours) * time.Hour
	messages, err := s.feed.FetchMessages(ctx, serverID, window)
	if err != nil {
		return fmt.Errorf("fetch messages for server %s: %w", serverID, err)
	}

	serverContext := s.buildServerContext(ctx, serverID, profile)

	genErr := s.orchestrator.Generate(ctx, newsletter, profile, messages, serverContext)
	if saveErr := s.newsletters.Save(newsletter); saveErr != nil {
		s.recordFailure(serverID, saveErr, newsletter.RetryCount)
		return saveErr
	}

	if genErr != nil {
		s.recordFailure(serverID, genErr, newsletter.RetryCount)
		return genErr
	}

	s.mu.Lock()
	s.metrics.NewslettersGenerated++
	s.metrics.ServerStatus[serverID] = string(newsletter.Status)
	s.mu.Unlock()

	return s.deliver(newsletter, profile)
}

// resolveNewsletter returns the record to generate into, nil when nothing
// should run for this date, or an error.
func (s *Service) resolveNewsletter(serverID, dateKey string, date time.Time) (*models.Newsletter, error) {
	existing, err := s.newsletters.FindByServerAndDate(serverID, dateKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		windowTo := date
		windowFrom := date.Add(-time.Duration(s.config.WindowHours) * time.Hour)
		return models.NewNewsletter(serverID, date, windowFrom, windowTo), nil
	}

	switch existing.Status {
	case models.StatusFailed:
		if !existing.RetryEligible(time.Now().UTC()) {
			logrus.Infof("Newsletter for server %s on %s is in failure cooldown, skipping", serverID, dateKey)
			return nil, nil
		}
		logrus.Infof("Retrying failed newsletter %s for server %s", existing.ID, serverID)
		return existing, nil
	case models.StatusPending:
		return existing, nil
	default:
		logrus.Infof("Newsletter for server %s on %s already %s, skipping", serverID, dateKey, existing.Status)
		return nil, nil
	}
}

// buildServerContext summarizes trending topics for the prompt builders.
// The trending subsystem is optional; failures degrade to an empty context.
func (s *Service) buildServerContext(ctx context.Context, serverID string, profile models.ServerProfile) string {
	name := profile.ServerName
	if name == "" {
		name = serverID
	}
	base := fmt.Sprintf("Server: %s", name)

	if s.trending == nil {
		return base
	}
	topics, err := s.trending.TrendingTopics(ctx, serverID, s.config.WindowHours, trendingTopicLimit)
	if err != nil {
		logrus.Warnf("Trending topics unavailable for server %s: %v", serverID, err)
		return base
	}
	if len(topics) == 0 {
		return base
	}

	var texts []string
	for _, topic := range topics {
		texts = append(texts, topic.RepresentativeText)
	}
	return base + "\nTrending topics: " + strings.Join(texts, "; ")
}

func (s *Service) deliver(newsletter *models.Newsletter, profile models.ServerProfile) error {
	channelID := profile.NewsletterChannelID
	if channelID == "" {
		channelID = s.config.DefaultChannelID
	}

	if err := newsletter.StartDelivery(channelID); err != nil {
		return err
	}
	if err := s.newsletters.Save(newsletter); err != nil {
		return err
	}

	messageID, err := s.notifier.DeliverNewsletter(newsletter, channelID)
	if err != nil {
		newsletter.MarkFailed(err.Error(), false)
		if saveErr := s.newsletters.Save(newsletter); saveErr != nil {
			logrus.Errorf("Failed to persist delivery failure for newsletter %s: %v", newsletter.ID, saveErr)
		}
		s.recordFailure(newsletter.ServerID, err, newsletter.RetryCount)
		return fmt.Errorf("deliver newsletter %s: %w", newsletter.ID, err)
	}

	if err := newsletter.CompleteDelivery(messageID); err != nil {
		return err
	}
	if err := s.newsletters.Save(newsletter); err != nil {
		return err
	}

	s.mu.Lock()
	s.metrics.NewslettersDelivered++
	s.metrics.ServerStatus[newsletter.ServerID] = string(newsletter.Status)
	s.mu.Unlock()

	logrus.Infof("Newsletter %s delivered to server %s (success score %.2f)",
		newsletter.ID, newsletter.ServerID, newsletter.SuccessScore())
	return nil
}

func (s *Service) recordFailure(serverID string, err error, attempt int) {
	s.mu.Lock()
	s.metrics.NewslettersFailed++
	s.metrics.ServerStatus[serverID] = string(models.StatusFailed)
	s.mu.Unlock()

	report := FailureReportFor(serverID, err, attempt)
	if notifyErr := s.notifier.SendFailure(report); notifyErr != nil {
		logrus.Errorf("Failed to send failure notification for server %s: %v", serverID, notifyErr)
	}
}

// RetrySweep re-attempts today's failed newsletters whose cooldown has
// elapsed. Scheduled hourly.
func (s *Service) RetrySweep() error {
	ctx, cancel := context.WithTimeout(context.Background(), generationRunTimeout)
	defer cancel()

	now := time.Now().UTC()
	dateKey := now.Format("2006-01-02")
	retried := 0

	for _, serverID := range s.config.ServerIDs {
		existing, err := s.newsletters.FindByServerAndDate(serverID, dateKey)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				logrus.Errorf("Retry sweep lookup failed for server %s: %v", serverID, err)
			}
			continue
		}
		if !existing.RetryEligible(now) {
			continue
		}

		retried++
		if err := s.GenerateForServer(ctx, serverID, now); err != nil {
			logrus.Errorf("Retry failed for server %s: %v", serverID, err)
		}
	}

	if retried > 0 {
		logrus.Infof("Retry sweep re-attempted %d newsletters", retried)
	}
	return nil
}

// BreakingNews generates and posts an on-demand bulletin from the last two
// hours of channel activity.
func (s *Service) BreakingNews(ctx context.Context, serverID, channelID string) (string, error) {
	profile, err := s.profiles.Get(serverID)
	if err != nil {
		return "", fmt.Errorf("load profile for server %s: %w", serverID, err)
	}

	messages, err := s.feed.FetchMessages(ctx, serverID, breakingWindowHours*time.Hour)
	if err != nil {
		return "", fmt.Errorf("fetch messages for server %s: %w", serverID, err)
	}

	var channelMessages []models.Message
	for _, msg := range messages {
		if channelID == "" || msg.ChannelID == channelID {
			channelMessages = append(channelMessages, msg)
		}
	}

	bulletin := s.orchestrator.BreakingNews(ctx, channelMessages, profile.Persona, s.buildServerContext(ctx, serverID, profile))

	if channelID == "" {
		channelID = profile.NewsletterChannelID
	}
	if err := s.notifier.SendBulletin(serverID, channelID, bulletin); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.metrics.BulletinsSent++
	s.mu.Unlock()

	return bulletin, nil
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
