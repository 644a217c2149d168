package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	NewsletterSchedule string // cron expression for daily generation
	RetrySweepSchedule string // cron expression for the failed-newsletter sweep
	TimeZone           string

	// Servers to generate newsletters for
	ServerIDs []string

	// Editorial defaults, used when a server has no stored profile
	DefaultPersona      string
	DefaultChannelID    string
	BlacklistedWords    []string
	MaxMessagesAnalysis int
	WindowHours         int

	// Completion provider configuration
	ProviderName      string
	ProviderEndpoint  string
	ProviderModel     string
	ProviderAPIKey    string
	RequestsPerMinute int

	// Retry policy
	MaxAttempts    int
	BackoffSeconds int

	// Upstream service URLs
	FeedBaseURL     string
	FeedAPIKey      string
	TrendingBaseURL string

	// Azure Storage configuration
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	ChatWebhookURL    string
	OpsWebhookURL     string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		NewsletterSchedule: getEnv("NEWSLETTER_SCHEDULE", "0 9 * * *"),
		RetrySweepSchedule: getEnv("RETRY_SWEEP_SCHEDULE", "30 * * * *"),
		TimeZone:           getEnv("TIMEZONE", "UTC"),

		ServerIDs: getSliceEnv("SERVER_IDS", nil),

		DefaultPersona:      getEnv("DEFAULT_PERSONA", "sassy_reporter"),
		DefaultChannelID:    getEnv("DEFAULT_NEWSLETTER_CHANNEL", ""),
		BlacklistedWords:    getSliceEnv("BLACKLISTED_WORDS", nil),
		MaxMessagesAnalysis: getIntEnv("MAX_MESSAGES_ANALYSIS", 500),
		WindowHours:         getIntEnv("ANALYSIS_WINDOW_HOURS", 24),

		ProviderName:      getEnv("LLM_PROVIDER_NAME", "openai"),
		ProviderEndpoint:  getEnv("LLM_ENDPOINT", ""),
		ProviderModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
		ProviderAPIKey:    getEnv("LLM_API_KEY", ""),
		RequestsPerMinute: getIntEnv("LLM_REQUESTS_PER_MINUTE", 30),

		MaxAttempts:    getIntEnv("GENERATION_MAX_ATTEMPTS", 3),
		BackoffSeconds: getIntEnv("GENERATION_BACKOFF_SECONDS", 5),

		FeedBaseURL:     getEnv("FEED_BASE_URL", ""),
		FeedAPIKey:      getEnv("FEED_API_KEY", ""),
		TrendingBaseURL: getEnv("TRENDING_BASE_URL", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "newsletters"),

		ChatWebhookURL:    getEnv("CHAT_WEBHOOK_URL", ""),
		OpsWebhookURL:     getEnv("OPS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.ServerIDs) == 0 {
		return fmt.Errorf("SERVER_IDS must list at least one server")
	}

	if c.FeedBaseURL == "" {
		return fmt.Errorf("FEED_BASE_URL is required")
	}

	if c.ProviderEndpoint == "" || c.ProviderAPIKey == "" {
		return fmt.Errorf("LLM_ENDPOINT and LLM_API_KEY are required")
	}

	if c.ChatWebhookURL == "" {
		return fmt.Errorf("CHAT_WEBHOOK_URL is required for newsletter delivery")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.WindowHours <= 0 {
		return fmt.Errorf("ANALYSIS_WINDOW_HOURS must be positive")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
