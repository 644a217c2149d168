package storage

import (
	"testing"
	"time"

	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsletterStore_SaveAndFind(t *testing.T) {
	store := NewNewsletterStore(NewMemoryStorage())

	now := time.Now().UTC()
	newsletter := models.NewNewsletter("server-1", now, now.Add(-24*time.Hour), now)
	newsletter.ArticleText = "the article"

	require.NoError(t, store.Save(newsletter))

	loaded, err := store.FindByServerAndDate("server-1", newsletter.Date)
	require.NoError(t, err)
	assert.Equal(t, newsletter.ID, loaded.ID)
	assert.Equal(t, "the article", loaded.ArticleText)
	assert.Equal(t, models.StatusPending, loaded.Status)
}

func TestNewsletterStore_FindMissing(t *testing.T) {
	store := NewNewsletterStore(NewMemoryStorage())

	_, err := store.FindByServerAndDate("server-1", "2026-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewsletterStore_SaveOverwrites(t *testing.T) {
	store := NewNewsletterStore(NewMemoryStorage())

	now := time.Now().UTC()
	newsletter := models.NewNewsletter("server-1", now, now.Add(-24*time.Hour), now)
	require.NoError(t, store.Save(newsletter))

	require.NoError(t, newsletter.StartGeneration(models.PersonaSassyReporter))
	require.NoError(t, store.Save(newsletter))

	loaded, err := store.FindByServerAndDate("server-1", newsletter.Date)
	require.NoError(t, err)
	assert.Equal(t, models.StatusGenerating, loaded.Status)
}

func TestNewsletterStore_ListByServer(t *testing.T) {
	store := NewNewsletterStore(NewMemoryStorage())

	now := time.Now().UTC()
	first := models.NewNewsletter("server-1", now.AddDate(0, 0, -1), now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	second := models.NewNewsletter("server-1", now, now.Add(-24*time.Hour), now)
	other := models.NewNewsletter("server-2", now, now.Add(-24*time.Hour), now)

	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))
	require.NoError(t, store.Save(other))

	newsletters, err := store.ListByServer("server-1")
	require.NoError(t, err)
	assert.Len(t, newsletters, 2)
	for _, n := range newsletters {
		assert.Equal(t, "server-1", n.ServerID)
	}
}

func TestProfileStore_DefaultFallback(t *testing.T) {
	defaults := models.ServerProfile{
		Persona:             models.PersonaWeatherAnchor,
		MaxMessagesAnalysis: 200,
	}
	store := NewProfileStore(NewMemoryStorage(), defaults)

	profile, err := store.Get("server-9")
	require.NoError(t, err)
	assert.Equal(t, "server-9", profile.ServerID)
	assert.Equal(t, models.PersonaWeatherAnchor, profile.Persona)
	assert.Equal(t, 200, profile.MaxMessagesAnalysis)
}

func TestProfileStore_SaveAndGet(t *testing.T) {
	store := NewProfileStore(NewMemoryStorage(), models.ServerProfile{})

	stored := models.ServerProfile{
		ServerID:            "server-1",
		ServerName:          "Stored Server",
		Persona:             models.PersonaConspiracyTheorist,
		AllowedChannels:     []string{"general"},
		NewsletterChannelID: "news",
	}
	require.NoError(t, store.Save(stored))

	loaded, err := store.Get("server-1")
	require.NoError(t, err)
	assert.Equal(t, "Stored Server", loaded.ServerName)
	assert.Equal(t, models.PersonaConspiracyTheorist, loaded.Persona)
	assert.Equal(t, []string{"general"}, loaded.AllowedChannels)
}

func TestMemoryStorage_Isolation(t *testing.T) {
	backend := NewMemoryStorage()
	data := []byte("original")
	require.NoError(t, backend.Store("key", data))

	data[0] = 'X'
	loaded, err := backend.Retrieve("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), loaded, "stored bytes are copied, not aliased")

	require.NoError(t, backend.Delete("key"))
	_, err = backend.Retrieve("key")
	assert.ErrorIs(t, err, ErrNotFound)
}
