package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	SQLitePath    string
	LocalTimezone *time.Location

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushTimeout     time.Duration
	PushTTLSeconds  int
	TickInterval    time.Duration

	UploadDir      string
	MaxUploadBytes int64

	OpenWeatherAPIKey string
	DefaultCity       string
	WeatherCacheTTL   time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	NotifyWhatsAppTo     string
}

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Local")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", timezoneName, err)
		location = time.Local
	}

	return &Config{
		Port:          getenvDefault("PORT", "8080"),
		Env:           getenvDefault("ENV", "development"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getenvDefault("SQLITE_PATH", "waterit.db"),
		LocalTimezone: location,

		VAPIDPublicKey:  strings.TrimSpace(os.Getenv("VAPID_PUBLIC_KEY")),
		VAPIDPrivateKey: strings.TrimSpace(os.Getenv("VAPID_PRIVATE_KEY")),
		VAPIDSubject:    strings.TrimSpace(getenvDefault("VAPID_SUBJECT", "mailto:admin@example.com")),
		PushTimeout:     ParseDurationEnv("PUSH_TIMEOUT", 10*time.Second),
		PushTTLSeconds:  ParseIntEnv("PUSH_TTL_SECONDS", 24*60*60),
		TickInterval:    ParseDurationEnv("TICK_INTERVAL", time.Minute),

		UploadDir:      getenvDefault("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(ParseIntEnv("MAX_UPLOAD_BYTES", 16*1024*1024)),

		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		DefaultCity:       getenvDefault("DEFAULT_CITY", "San Francisco"),
		WeatherCacheTTL:   ParseDurationEnv("WEATHER_CACHE_TTL", 10*time.Minute),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           ParseIntEnv("REDIS_DB", 0),

		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		NotifyWhatsAppTo:     os.Getenv("NOTIFY_WHATSAPP_TO"),
	}
}

// PushConfigured reports whether both VAPID keys are present.
func (c *Config) PushConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// WhatsAppConfigured reports whether reminders should be mirrored over WhatsApp.
func (c *Config) WhatsAppConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" &&
		c.TwilioWhatsAppNumber != "" && c.NotifyWhatsAppTo != ""
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseDurationEnv returns the duration value for an environment variable or the provided default.
// Non-positive durations are rejected.
func ParseDurationEnv(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		log.Printf("config: unable to parse %s=%q as positive duration: %v", key, value, err)
		return def
	}
	return parsed
}
