package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                 string
	AppEnv                  string
	AppPort                 string
	AppRelease              string
	DatabaseURL             string
	RedisURL                string
	NATSURL                 string
	EventsChannel           string
	JWTSecret               string
	CloudinaryCloudName     string
	CloudinaryAPIKey        string
	CloudinaryAPISecret     string
	CloudinaryUploadFolder  string
	ConfirmationTTL         time.Duration
	UploadMaxSizeMB         int
	SentryDSN               string
	RequireApprovedActivity bool
	RateLimitMax            int
	RateLimitWindow         time.Duration
	CORSAllowOrigins        string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CREDIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Activity Credit API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "credit")
	v.SetDefault("cloudinary.folder", "credit/attachments")
	v.SetDefault("confirmation.ttl", "5m")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("applications.require_approved", false)
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("cors.allow_origins", "*")

	confirmationTTL, err := parseDuration(v, "confirmation.ttl", 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid confirmation ttl: %w", err)
	}
	rateWindow, err := parseDuration(v, "rate_limit.window", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:                 v.GetString("app.name"),
		AppEnv:                  v.GetString("app.env"),
		AppPort:                 v.GetString("app.port"),
		AppRelease:              v.GetString("app.release"),
		DatabaseURL:             v.GetString("database.url"),
		RedisURL:                v.GetString("redis.url"),
		NATSURL:                 v.GetString("nats.url"),
		EventsChannel:           v.GetString("events.channel"),
		JWTSecret:               v.GetString("jwt.secret"),
		CloudinaryCloudName:     v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:        v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:     v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:  v.GetString("cloudinary.folder"),
		ConfirmationTTL:         confirmationTTL,
		UploadMaxSizeMB:         v.GetInt("upload.max_size_mb"),
		SentryDSN:               v.GetString("sentry.dsn"),
		RequireApprovedActivity: v.GetBool("applications.require_approved"),
		RateLimitMax:            v.GetInt("rate_limit.max"),
		RateLimitWindow:         rateWindow,
		CORSAllowOrigins:        v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis url must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}
