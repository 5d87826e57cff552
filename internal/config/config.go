package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	CORSAllowedOrigins []string
	AuthJWTSecret      string
	LeadsPageSize      int
	DefaultPhoneRegion string
	RateLimitPerSec    float64
	RateLimitBurst     int
	WebFormKey         string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Conversation provider
	ConversationsAPIURL     string
	ConversationsAPIKey     string
	ConversationsTimeout    time.Duration
	ConversationsMaxRetries int
	ConversationsRatePerSec float64

	// Sync loop
	SyncInterval    time.Duration
	SyncMinInterval time.Duration
	SyncSessionIdle time.Duration
	SyncCompanyIDs  []string

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// AWSEndpointOverride points SES, S3 and Bedrock at LocalStack or another emulator.
	AWSEndpointOverride string

	BedrockModelID string

	// ArchiveBucket receives a scrubbed copy of every deleted lead when set.
	ArchiveBucket string

	ProfileRetryDelay  time.Duration
	ProfileMaxAttempts int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		LeadsPageSize:      getEnvAsInt("LEADS_PAGE_SIZE", 25),
		DefaultPhoneRegion: strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "US")),
		RateLimitPerSec:    getEnvAsFloat("RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		WebFormKey:         getEnv("WEB_FORM_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ConversationsAPIURL:     getEnv("CONVERSATIONS_API_URL", ""),
		ConversationsAPIKey:     getEnv("CONVERSATIONS_API_KEY", ""),
		ConversationsTimeout:    getEnvAsDuration("CONVERSATIONS_TIMEOUT", 15*time.Second),
		ConversationsMaxRetries: getEnvAsInt("CONVERSATIONS_MAX_RETRIES", 0),
		ConversationsRatePerSec: getEnvAsFloat("CONVERSATIONS_RATE_PER_SEC", 1),

		SyncInterval:    getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute),
		SyncMinInterval: getEnvAsDuration("SYNC_MIN_INTERVAL", 5*time.Minute),
		SyncSessionIdle: getEnvAsDuration("SYNC_SESSION_IDLE", 30*time.Minute),
		SyncCompanyIDs:  getEnvAsList("SYNC_COMPANY_IDS"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "LeadDesk"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),

		ProfileRetryDelay:  getEnvAsDuration("PROFILE_RETRY_DELAY", time.Second),
		ProfileMaxAttempts: getEnvAsInt("PROFILE_MAX_ATTEMPTS", 5),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
