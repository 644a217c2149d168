package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/communitypress/dispatch-bot/internal/models"
)

// NewsletterStore persists newsletter records as JSON blobs, one per server
// per date.
type NewsletterStore struct {
	backend StorageInterface
}

// NewNewsletterStore wraps a blob backend with newsletter serialization.
func NewNewsletterStore(backend StorageInterface) *NewsletterStore {
	return &NewsletterStore{backend: backend}
}

func newsletterKey(serverID, date string) string {
	return fmt.Sprintf("newsletters/%s/%s.json", serverID, date)
}

// Save writes the full newsletter record, overwriting any prior version.
func (s *NewsletterStore) Save(newsletter *models.Newsletter) error {
	key := newsletterKey(newsletter.ServerID, newsletter.Date)
	data, err := json.MarshalIndent(newsletter, "", "  ")
	if err != nil {
		return &PersistenceError{Operation: "marshal", Key: key, Err: err}
	}
	if err := s.backend.Store(key, data); err != nil {
		return &PersistenceError{Operation: "store", Key: key, Err: err}
	}
	return nil
}

// FindByServerAndDate returns the newsletter for one server and date, or
// ErrNotFound.
func (s *NewsletterStore) FindByServerAndDate(serverID, date string) (*models.Newsletter, error) {
	key := newsletterKey(serverID, date)
	data, err := s.backend.Retrieve(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Operation: "retrieve", Key: key, Err: err}
	}

	var newsletter models.Newsletter
	if err := json.Unmarshal(data, &newsletter); err != nil {
		return nil, &PersistenceError{Operation: "unmarshal", Key: key, Err: err}
	}
	return &newsletter, nil
}

// ListByServer returns all stored newsletters for a server, in blob order.
func (s *NewsletterStore) ListByServer(serverID string) ([]*models.Newsletter, error) {
	prefix := fmt.Sprintf("newsletters/%s/", serverID)
	keys, err := s.backend.List(prefix)
	if err != nil {
		return nil, &PersistenceError{Operation: "list", Key: prefix, Err: err}
	}

	newsletters := make([]*models.Newsletter, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Retrieve(key)
		if err != nil {
			return nil, &PersistenceError{Operation: "retrieve", Key: key, Err: err}
		}
		var newsletter models.Newsletter
		if err := json.Unmarshal(data, &newsletter); err != nil {
			return nil, &PersistenceError{Operation: "unmarshal", Key: key, Err: err}
		}
		newsletters = append(newsletters, &newsletter)
	}
	return newsletters, nil
}
