package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	BotToken    string
	DatabaseURL string
	Timezone    string
	LogLevel    string
	Environment string

	TickSpec               string        // cron spec for the scheduler tick
	MaxConcurrentSubjects  int           // fan-out bound within one tick
	RetryBaseDelay         time.Duration // backoff base
	RetryMaxDelay          time.Duration // backoff cap
	DeliveryPollStartWeek  int           // gestational week the delivery poll starts
	PregnancyWeekLimit     int           // tracking ends past this week
	LogRetentionDays       int
	MaxPollResponsesPerDay int
	RateLimitPerMinute     int

	EnforceAllowlist bool
	AdminChatIDs     []string
	AllowlistChatIDs []string

	AdminWebEnabled    bool
	AdminWebPort       int
	AdminWebUser       string
	AdminWebPassword   string
	AdminWebSessionTTL time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.Timezone = getEnv("TIMEZONE", "Asia/Jakarta")
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	cfg.TickSpec = getEnv("TICK_SPEC", "@every 30s")
	cfg.MaxConcurrentSubjects = getEnvInt("MAX_CONCURRENT_SUBJECTS", 8)
	cfg.DeliveryPollStartWeek = getEnvInt("DELIVERY_POLL_START_WEEK", 39)
	cfg.PregnancyWeekLimit = getEnvInt("PREGNANCY_WEEK_LIMIT", 42)
	cfg.LogRetentionDays = getEnvInt("LOG_RETENTION_DAYS", 180)
	cfg.MaxPollResponsesPerDay = getEnvInt("POLL_MAX_RESPONSES_PER_DAY", 2)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 20)

	var err error
	if cfg.RetryBaseDelay, err = getEnvDuration("RETRY_BASE_DELAY", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = getEnvDuration("RETRY_MAX_DELAY", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AdminWebSessionTTL, err = getEnvDuration("ADMIN_WEB_SESSION_TTL", 8*time.Hour); err != nil {
		return nil, err
	}

	cfg.EnforceAllowlist = getEnvBool("ENFORCE_ALLOWLIST", false)
	cfg.AdminChatIDs = splitList(os.Getenv("ADMIN_CHAT_IDS"))
	cfg.AllowlistChatIDs = splitList(os.Getenv("ALLOWLIST_CHAT_IDS"))

	cfg.AdminWebEnabled = getEnvBool("ADMIN_WEB_ENABLED", true)
	cfg.AdminWebPort = getEnvInt("ADMIN_WEB_PORT", 3030)
	cfg.AdminWebUser = getEnv("ADMIN_WEB_USER", "admin")
	cfg.AdminWebPassword = strings.TrimSpace(os.Getenv("ADMIN_WEB_PASSWORD"))
	if cfg.AdminWebEnabled && cfg.AdminWebPassword == "" {
		return nil, fmt.Errorf("ADMIN_WEB_PASSWORD is not set (required while ADMIN_WEB_ENABLED)")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
