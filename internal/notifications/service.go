package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/communitypress/dispatch-bot/internal/config"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service delivers newsletters to chat channels and failure alerts to
// operators
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// chatMessage is the payload posted to the chat gateway webhook
type chatMessage struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type chatResponse struct {
	MessageID string `json:"message_id"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// DeliverNewsletter posts the rendered newsletter markdown to a channel and
// returns the posted message id
func (s *Service) DeliverNewsletter(newsletter *models.Newsletter, channelID string) (string, error) {
	if s.config.ChatWebhookURL == "" {
		return "", fmt.Errorf("chat webhook URL is not configured")
	}
	if channelID == "" {
		return "", fmt.Errorf("delivery channel id is required")
	}

	messageID, err := s.postMessage(channelID, newsletter.ToMarkdown())
	if err != nil {
		return "", fmt.Errorf("failed to deliver newsletter %s: %w", newsletter.ID, err)
	}

	logrus.Infof("Delivered newsletter %s to channel %s (message %s)", newsletter.ID, channelID, messageID)
	return messageID, nil
}

// SendBulletin posts a breaking-news bulletin to a channel
func (s *Service) SendBulletin(serverID, channelID, bulletin string) error {
	if s.config.ChatWebhookURL == "" {
		return fmt.Errorf("chat webhook URL is not configured")
	}

	if _, err := s.postMessage(channelID, bulletin); err != nil {
		return fmt.Errorf("failed to send bulletin for server %s: %w", serverID, err)
	}

	logrus.Infof("Posted breaking news bulletin to channel %s", channelID)
	return nil
}

func (s *Service) postMessage(channelID, content string) (string, error) {
	var result chatResponse

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(chatMessage{ChannelID: channelID, Content: content}).
		SetResult(&result).
		Post(s.config.ChatWebhookURL)

	if err != nil {
		return "", fmt.Errorf("failed to post chat message: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("chat webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	if result.MessageID == "" {
		// Some gateways acknowledge without an id.
		result.MessageID = fmt.Sprintf("ack-%d", time.Now().UnixNano())
	}
	return result.MessageID, nil
}

// SendFailure reports a generation failure via the configured channels
func (s *Service) SendFailure(report *models.FailureReport) error {
	var errors []string

	if s.config.OpsWebhookURL != "" {
		if err := s.sendFailureWebhook(report); err != nil {
			logrus.Errorf("Failed to send failure webhook: %v", err)
			errors = append(errors, fmt.Sprintf("Webhook: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendFailureEmail(report); err != nil {
			logrus.Errorf("Failed to send failure email: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendFailureWebhook(report *models.FailureReport) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(report).
		Post(s.config.OpsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to post failure report: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("ops webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) sendFailureEmail(report *models.FailureReport) error {
	subject := fmt.Sprintf("Newsletter generation failed for server %s (%s)", report.ServerID, report.ErrorKind)

	htmlBody, err := s.buildFailureHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildFailureText(report))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

var failureEmailTemplate = template.Must(template.New("failure").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Newsletter Generation Failure</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #d13438; color: white; padding: 20px; border-radius: 5px; }
        .detail { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Newsletter Generation Failure</h1>
        <p>Server {{.ServerID}} at {{.CreatedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>
    <div class="detail">
        <p><strong>Error Kind:</strong> {{.ErrorKind}}</p>
        <p><strong>Attempt:</strong> {{.Attempt}}</p>
        <p><strong>Retryable:</strong> {{.Retryable}}</p>
        <p><strong>Message:</strong> {{.Message}}</p>
    </div>
    <hr>
    <p><small>This alert was generated automatically by the Community Dispatch bot.</small></p>
</body>
</html>
`))

func (s *Service) buildFailureHTML(report *models.FailureReport) (string, error) {
	var buf bytes.Buffer
	if err := failureEmailTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Service) buildFailureText(report *models.FailureReport) string {
	var text strings.Builder

	text.WriteString("Newsletter Generation Failure\n")
	text.WriteString("=============================\n")
	text.WriteString(fmt.Sprintf("Server: %s\n", report.ServerID))
	text.WriteString(fmt.Sprintf("Time: %s\n", report.CreatedAt.Format("2006-01-02 15:04:05 UTC")))
	text.WriteString(fmt.Sprintf("Error Kind: %s\n", report.ErrorKind))
	text.WriteString(fmt.Sprintf("Attempt: %d\n", report.Attempt))
	text.WriteString(fmt.Sprintf("Retryable: %t\n", report.Retryable))
	text.WriteString(fmt.Sprintf("Message: %s\n", report.Message))
	text.WriteString("\n---\nThis alert was generated automatically by the Community Dispatch bot.\n")

	return text.String()
}
