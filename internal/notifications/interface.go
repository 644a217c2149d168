package notifications

import "github.com/communitypress/dispatch-bot/internal/models"

// NotificationInterface defines the contract for newsletter delivery and
// operational alerts
type NotificationInterface interface {
	// DeliverNewsletter posts the rendered newsletter to the server's
	// newsletter channel and returns the posted message id.
	DeliverNewsletter(newsletter *models.Newsletter, channelID string) (string, error)

	// SendBulletin posts a short breaking-news bulletin to a channel.
	SendBulletin(serverID, channelID, bulletin string) error

	// SendFailure reports a generation failure to the operational channels.
	SendFailure(report *models.FailureReport) error
}
