package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Feed supplies the messages for a server and time window. The message store
// owns the records; this package only reads them.
type Feed interface {
	FetchMessages(ctx context.Context, serverID string, window time.Duration) ([]models.Message, error)
}

// HTTPFeed reads messages from the chat-platform ingestion service's REST API.
type HTTPFeed struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

// Ensure HTTPFeed implements Feed
var _ Feed = (*HTTPFeed)(nil)

// NewHTTPFeed creates a message feed client.
func NewHTTPFeed(baseURL, apiKey string) *HTTPFeed {
	return &HTTPFeed{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  resty.New().SetTimeout(30 * time.Second),
	}
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// FetchMessages returns the server's messages newer than now-window.
func (f *HTTPFeed) FetchMessages(ctx context.Context, serverID string, window time.Duration) ([]models.Message, error) {
	since := time.Now().Add(-window).UTC()

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+f.apiKey).
		SetQueryParams(map[string]string{
			"server_id": serverID,
			"since":     since.Format(time.RFC3339),
		}).
		Get(f.baseURL + "/v1/messages")

	if err != nil {
		return nil, fmt.Errorf("fetch messages for server %s: %w", serverID, err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("message feed returned status %d", resp.StatusCode())
	}

	var parsed messagesResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("decode message feed response: %w", err)
	}

	logrus.Infof("Fetched %d messages for server %s (window: %v)", len(parsed.Messages), serverID, window)
	return parsed.Messages, nil
}
