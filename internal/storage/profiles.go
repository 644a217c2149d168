package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// ProfileStore persists per-server editorial profiles. Servers without a
// stored profile fall back to a configured default.
type ProfileStore struct {
	backend  StorageInterface
	defaults models.ServerProfile
}

// NewProfileStore wraps a blob backend. The defaults are used when a server
// has no stored profile; ServerID is filled in per lookup.
func NewProfileStore(backend StorageInterface, defaults models.ServerProfile) *ProfileStore {
	return &ProfileStore{backend: backend, defaults: defaults}
}

func profileKey(serverID string) string {
	return fmt.Sprintf("profiles/%s.json", serverID)
}

// Get returns the server profile, falling back to defaults when none is
// stored.
func (s *ProfileStore) Get(serverID string) (models.ServerProfile, error) {
	key := profileKey(serverID)
	data, err := s.backend.Retrieve(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logrus.Debugf("No stored profile for server %s, using defaults", serverID)
			profile := s.defaults
			profile.ServerID = serverID
			return profile, nil
		}
		return models.ServerProfile{}, &PersistenceError{Operation: "retrieve", Key: key, Err: err}
	}

	var profile models.ServerProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return models.ServerProfile{}, &PersistenceError{Operation: "unmarshal", Key: key, Err: err}
	}
	profile.ServerID = serverID
	return profile, nil
}

// Save stores the server profile.
func (s *ProfileStore) Save(profile models.ServerProfile) error {
	key := profileKey(profile.ServerID)
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return &PersistenceError{Operation: "marshal", Key: key, Err: err}
	}
	if err := s.backend.Store(key, data); err != nil {
		return &PersistenceError{Operation: "store", Key: key, Err: err}
	}
	return nil
}
