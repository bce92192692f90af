package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Report store configuration
	StorageBackend   string // "memory", "sqlite" or "azure"
	SQLitePath       string
	StorageAccount   string
	StorageContainer string
	FreshnessWindow  time.Duration

	// API keys and credentials
	RedditClientID     string
	RedditClientSecret string
	GitHubToken        string
	StackExchangeKey   string

	// Article feeds, "{tag}" is replaced with the query tag
	FeedURLTemplates []string

	// Embedding model
	OllamaURL      string
	EmbeddingModel string

	// Pipeline tuning
	RelevanceThreshold float64
	TitleSimilarity    float64
	DeepScanLimit      int
	RequestDelay       time.Duration
	WindowDays         int
	MaxThemes          int
	LexiconPath        string

	// Per-client throttle; X-Forwarded-For is only honored for requests
	// arriving from one of TrustedProxies
	ThrottleLimit  int
	ThrottleWindow time.Duration
	TrustedProxies []string

	// Scheduled refresh of tracked queries
	TrackedQueries  []string
	RefreshSchedule string

	// Notification configuration
	TeamsWebhookURL   string
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

		StorageBackend:   getEnv("STORAGE_BACKEND", "memory"),
		SQLitePath:       getEnv("SQLITE_PATH", "data/painradar.db"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "reports"),
		FreshnessWindow:  getDurationEnv("FRESHNESS_WINDOW", 24*time.Hour),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		GitHubToken:        getEnv("GITHUB_TOKEN", ""),
		StackExchangeKey:   getEnv("STACKEXCHANGE_KEY", ""),

		FeedURLTemplates: getSliceEnv("FEED_URL_TEMPLATES", []string{
			"https://dev.to/feed/tag/{tag}",
			"https://medium.com/feed/tag/{tag}",
		}),

		OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "all-minilm"),

		RelevanceThreshold: getFloatEnv("RELEVANCE_THRESHOLD", 0.35),
		TitleSimilarity:    getFloatEnv("TITLE_SIMILARITY", 0),
		DeepScanLimit:      getIntEnv("DEEP_SCAN_LIMIT", 12),
		RequestDelay:       time.Duration(getIntEnv("REQUEST_DELAY_MS", 300)) * time.Millisecond,
		WindowDays:         getIntEnv("WINDOW_DAYS", 30),
		MaxThemes:          getIntEnv("MAX_THEMES", 5),
		LexiconPath:        getEnv("LEXICON_PATH", ""),

		ThrottleLimit:  getIntEnv("THROTTLE_LIMIT", 10),
		ThrottleWindow: getDurationEnv("THROTTLE_WINDOW", time.Minute),
		TrustedProxies: getSliceEnv("TRUSTED_PROXIES", nil),

		TrackedQueries:  getSliceEnv("TRACKED_QUERIES", nil),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 0 */6 * * *"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
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
	switch c.StorageBackend {
	case "memory", "sqlite", "azure":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'memory', 'sqlite' or 'azure'")
	}

	if c.StorageBackend == "azure" && c.StorageAccount == "" {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required for the azure backend")
	}

	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be between 0 and 1")
	}

	if c.TitleSimilarity < 0 || c.TitleSimilarity > 1 {
		return fmt.Errorf("TITLE_SIMILARITY must be between 0 and 1")
	}

	if c.WindowDays <= 0 || c.FreshnessWindow <= 0 || c.ThrottleWindow <= 0 {
		return fmt.Errorf("WINDOW_DAYS, FRESHNESS_WINDOW and THROTTLE_WINDOW must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// NotificationsEnabled reports whether any notification channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
