package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port            string
	Env             string
	PublicBaseURL   string
	LogLevel        string
	UseMemoryQueue  bool
	WorkerCount     int
	WorkerRate      int
	DatabaseURL     string
	DefaultClientID string

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWhatsAppFrom  string
	TwilioValidateSig   bool
	TwilioRetryAttempts int
	TwilioRetryBase     time.Duration

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string
	OpenRouterReferer string
	OpenRouterTitle   string
	GeminiAPIKey      string
	GeminiModel       string

	AdminJWTSecret string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	MessageQueueURL     string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// SendGrid Email Configuration
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	EscalationAlertTo   string
	EscalationAlertFrom string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 5),
		WorkerRate:      getEnvAsInt("WORKER_JOBS_PER_SECOND", 20),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DefaultClientID: getEnv("DEFAULT_CLIENT_ID", "shadowspark"),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:  getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioValidateSig:   getEnvAsBool("TWILIO_VALIDATE_SIGNATURES", true),
		TwilioRetryAttempts: getEnvAsInt("TWILIO_RETRY_MAX_ATTEMPTS", 3),
		TwilioRetryBase:     getEnvAsDuration("TWILIO_RETRY_BASE_DELAY", time.Second),

		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
		OpenRouterReferer: getEnv("OPENROUTER_REFERER", "https://shadowspark.tech"),
		OpenRouterTitle:   getEnv("OPENROUTER_TITLE", "ShadowSpark Support"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		MessageQueueURL:     getEnv("MESSAGE_QUEUE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		// SendGrid Email Configuration
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "ShadowSpark Support"),
		EscalationAlertTo:   getEnv("ESCALATION_ALERT_TO", ""),
		EscalationAlertFrom: getEnv("ESCALATION_ALERT_FROM", ""),
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
