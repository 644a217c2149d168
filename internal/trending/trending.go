package trending

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Topic is one trending conversation theme reported by the semantic-search
// collaborator.
type Topic struct {
	RepresentativeText string  `json:"representative_text"`
	EngagementScore    float64 `json:"engagement_score"`
}

// Provider queries the semantic/trending subsystem. Implementations may be
// absent; callers treat a nil provider or an error as an empty topic list.
type Provider interface {
	TrendingTopics(ctx context.Context, serverID string, windowHours, limit int) ([]Topic, error)
}

// HTTPProvider calls the semantic-search service over REST.
type HTTPProvider struct {
	baseURL string
	client  *resty.Client
}

// Ensure HTTPProvider implements Provider
var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a trending-topics client, or nil when the
// subsystem is not configured.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	if baseURL == "" {
		return nil
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  resty.New().SetTimeout(15 * time.Second),
	}
}

type topicsResponse struct {
	Topics []Topic `json:"topics"`
}

func (p *HTTPProvider) TrendingTopics(ctx context.Context, serverID string, windowHours, limit int) ([]Topic, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"server_id":    serverID,
			"window_hours": strconv.Itoa(windowHours),
			"limit":        strconv.Itoa(limit),
		}).
		Get(p.baseURL + "/v1/trending")

	if err != nil {
		return nil, fmt.Errorf("fetch trending topics: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("trending service returned status %d", resp.StatusCode())
	}

	var parsed topicsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("decode trending response: %w", err)
	}

	logrus.Debugf("Fetched %d trending topics for server %s", len(parsed.Topics), serverID)
	return parsed.Topics, nil
}
