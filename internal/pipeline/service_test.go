package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/communitypress/dispatch-bot/internal/config"
	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/communitypress/dispatch-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFeed is a mock implementation of the message feed
type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) FetchMessages(ctx context.Context, serverID string, window time.Duration) ([]models.Message, error) {
	args := m.Called(ctx, serverID, window)
	return args.Get(0).([]models.Message), args.Error(1)
}

// MockNotifier is a mock implementation of the notification service
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) DeliverNewsletter(newsletter *models.Newsletter, channelID string) (string, error) {
	args := m.Called(newsletter, channelID)
	return args.String(0), args.Error(1)
}

func (m *MockNotifier) SendBulletin(serverID, channelID, bulletin string) error {
	args := m.Called(serverID, channelID, bulletin)
	return args.Error(0)
}

func (m *MockNotifier) SendFailure(report *models.FailureReport) error {
	args := m.Called(report)
	return args.Error(0)
}

func serviceConfig() *config.Config {
	return &config.Config{
		ServerIDs:   []string{"server-1"},
		WindowHours: 24,
	}
}

func newTestService(client llm.CompletionClient, feed *MockFeed, notifier *MockNotifier) (*Service, *storage.NewsletterStore) {
	backend := storage.NewMemoryStorage()
	newsletters := storage.NewNewsletterStore(backend)
	profiles := storage.NewProfileStore(backend, models.ServerProfile{
		Persona:             models.PersonaSassyReporter,
		NewsletterChannelID: "news-channel",
	})

	o := NewOrchestrator(client, OrchestratorOptions{})
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return NewService(serviceConfig(), feed, nil, newsletters, profiles, notifier, o), newsletters
}

func TestService_GenerateForServer_FullLifecycle(t *testing.T) {
	now := time.Now().UTC()
	client := &stubClient{responses: []string{wellFormedResponse, pipelineEditorResponse, pipelineArticleResponse}}

	feed := &MockFeed{}
	feed.On("FetchMessages", mock.Anything, "server-1", 24*time.Hour).Return(pipelineMessages(now), nil)

	notifier := &MockNotifier{}
	notifier.On("DeliverNewsletter", mock.Anything, "news-channel").Return("posted-123", nil)

	service, newsletters := newTestService(client, feed, notifier)

	err := service.GenerateForServer(context.Background(), "server-1", now)
	require.NoError(t, err)

	stored, err := newsletters.FindByServerAndDate("server-1", now.Format("2006-01-02"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, stored.Status)
	assert.Equal(t, "posted-123", stored.DeliveryMessageID)
	assert.Equal(t, "news-channel", stored.DeliveryChannelID)
	assert.NotNil(t, stored.FeaturedStory)

	feed.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_GenerateForServer_SkipsDeliveredDate(t *testing.T) {
	now := time.Now().UTC()
	client := &stubClient{}
	feed := &MockFeed{}
	notifier := &MockNotifier{}

	service, newsletters := newTestService(client, feed, notifier)

	// Pre-store a delivered newsletter for today.
	existing := models.NewNewsletter("server-1", now, now.Add(-24*time.Hour), now)
	require.NoError(t, existing.StartGeneration(models.PersonaSassyReporter))
	require.NoError(t, existing.CompleteGeneration())
	require.NoError(t, existing.StartDelivery("c"))
	require.NoError(t, existing.CompleteDelivery("m"))
	require.NoError(t, newsletters.Save(existing))

	err := service.GenerateForServer(context.Background(), "server-1", now)
	require.NoError(t, err)

	assert.Equal(t, 0, client.calls)
	feed.AssertNotCalled(t, "FetchMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GenerateForServer_FailedInCooldownSkips(t *testing.T) {
	now := time.Now().UTC()
	client := &stubClient{}
	feed := &MockFeed{}
	notifier := &MockNotifier{}

	service, newsletters := newTestService(client, feed, notifier)

	failed := models.NewNewsletter("server-1", now, now.Add(-24*time.Hour), now)
	require.NoError(t, failed.StartGeneration(models.PersonaSassyReporter))
	require.NoError(t, failed.MarkFailed("provider down", true))
	require.NoError(t, newsletters.Save(failed))

	err := service.GenerateForServer(context.Background(), "server-1", now)
	require.NoError(t, err)
	assert.Equal(t, 0, client.calls, "cooldown blocks the retry")
}

func TestService_GenerateForServer_FailureNotifies(t *testing.T) {
	now := time.Now().UTC()
	client := &stubClient{err: &llm.ProviderError{Provider: "stub", Kind: llm.KindAuthFailure, Message: "bad key"}}

	feed := &MockFeed{}
	feed.On("FetchMessages", mock.Anything, "server-1", 24*time.Hour).Return(pipelineMessages(now), nil)

	notifier := &MockNotifier{}
	notifier.On("SendFailure", mock.MatchedBy(func(report *models.FailureReport) bool {
		return report.ServerID == "server-1" && report.ErrorKind == "auth_failure"
	})).Return(nil)

	service, newsletters := newTestService(client, feed, notifier)

	err := service.GenerateForServer(context.Background(), "server-1", now)
	require.Error(t, err)

	stored, findErr := newsletters.FindByServerAndDate("server-1", now.Format("2006-01-02"))
	require.NoError(t, findErr)
	assert.Equal(t, models.StatusFailed, stored.Status)
	notifier.AssertExpectations(t)
}

func TestService_BreakingNews(t *testing.T) {
	now := time.Now().UTC()
	client := &stubClient{responses: []string{"🚨 BREAKING: drama in general!"}}

	messages := pipelineMessages(now)
	feed := &MockFeed{}
	feed.On("FetchMessages", mock.Anything, "server-1", 2*time.Hour).Return(messages, nil)

	notifier := &MockNotifier{}
	notifier.On("SendBulletin", "server-1", "general", "🚨 BREAKING: drama in general!").Return(nil)

	service, _ := newTestService(client, feed, notifier)

	bulletin, err := service.BreakingNews(context.Background(), "server-1", "general")
	require.NoError(t, err)
	assert.Contains(t, bulletin, "BREAKING")
	notifier.AssertExpectations(t)
}

func TestService_RunDaily_UpdatesMetrics(t *testing.T) {
	now := time.Now().UTC()
	client := &stubClient{responses: []string{wellFormedResponse, pipelineEditorResponse, pipelineArticleResponse}}

	feed := &MockFeed{}
	feed.On("FetchMessages", mock.Anything, "server-1", 24*time.Hour).Return(pipelineMessages(now), nil)

	notifier := &MockNotifier{}
	notifier.On("DeliverNewsletter", mock.Anything, "news-channel").Return("posted-1", nil)

	service, _ := newTestService(client, feed, notifier)

	require.NoError(t, service.RunDaily())

	metrics := service.GetMetrics()
	assert.Contains(t, metrics, `"newsletters_generated": 1`)
	assert.Contains(t, metrics, `"newsletters_delivered": 1`)
	assert.Contains(t, metrics, `"server-1": "delivered"`)
}
