/**
 * @description
 * This package handles the configuration management for the claim-service. It uses the
 * Viper library to read configuration from environment variables and an optional .env
 * file, providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Minimum length of a payment secret key that is treated as real.
const minPaymentSecretKeyLength = 20

const placeholderPaymentSecretKey = "your_stripe_secret_key"

// Config holds all the configuration variables for the claim-service.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix           string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	EventsExchange           string `mapstructure:"EVENTS_EXCHANGE"`
	GooglePlacesAPIKey       string `mapstructure:"GOOGLE_PLACES_API_KEY"`
	GooglePlacesBaseURL      string `mapstructure:"GOOGLE_PLACES_BASE_URL"`
	StripeSecretKey          string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret      string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	ClientURL                string `mapstructure:"CLIENT_URL"`
	APIBaseURL               string `mapstructure:"API_BASE_URL"`
	ClaimTokenSecret         string `mapstructure:"CLAIM_TOKEN_SECRET"`
	ClaimTokenTTLMinutes     int    `mapstructure:"CLAIM_TOKEN_TTL_MINUTES"`
	AllowSimulatedPayments   bool   `mapstructure:"ALLOW_SIMULATED_PAYMENTS"`
	BcryptCost               int    `mapstructure:"BCRYPT_COST"`
	SearchRateLimitPerMinute int    `mapstructure:"SEARCH_RATE_LIMIT_PER_MINUTE"`
	PlaceCacheTTLSeconds     int    `mapstructure:"PLACE_CACHE_TTL_SECONDS"`
	SubscriptionSweepSpec    string `mapstructure:"SUBSCRIPTION_SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables and an optional .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIN_CONNS", 2)
	viper.SetDefault("REDIS_KEY_PREFIX", "claim")
	viper.SetDefault("EVENTS_EXCHANGE", "claim_events")
	viper.SetDefault("GOOGLE_PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place")
	viper.SetDefault("CLIENT_URL", "http://localhost:3000")
	viper.SetDefault("API_BASE_URL", "http://localhost:8080")
	viper.SetDefault("CLAIM_TOKEN_TTL_MINUTES", 1440)
	viper.SetDefault("ALLOW_SIMULATED_PAYMENTS", true)
	viper.SetDefault("BCRYPT_COST", 12)
	viper.SetDefault("SEARCH_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("PLACE_CACHE_TTL_SECONDS", 300)
	viper.SetDefault("SUBSCRIPTION_SWEEP_SCHEDULE", "*/15 * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("DB_MAX_CONNS")
	_ = viper.BindEnv("DB_MIN_CONNS")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("GOOGLE_PLACES_API_KEY")
	_ = viper.BindEnv("GOOGLE_PLACES_BASE_URL")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("CLIENT_URL")
	_ = viper.BindEnv("API_BASE_URL", "API_BASE_URL", "NEXT_PUBLIC_API_URL")
	_ = viper.BindEnv("CLAIM_TOKEN_SECRET")
	_ = viper.BindEnv("CLAIM_TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("ALLOW_SIMULATED_PAYMENTS")
	_ = viper.BindEnv("BCRYPT_COST")
	_ = viper.BindEnv("SEARCH_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PLACE_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("SUBSCRIPTION_SWEEP_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.normalize()
	return
}

func (c *Config) normalize() {
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.RabbitMQURL = strings.TrimSpace(c.RabbitMQURL)
	c.GooglePlacesAPIKey = strings.TrimSpace(c.GooglePlacesAPIKey)
	c.StripeSecretKey = strings.TrimSpace(c.StripeSecretKey)
	c.StripeWebhookSecret = strings.TrimSpace(c.StripeWebhookSecret)
	c.GooglePlacesBaseURL = strings.TrimSuffix(strings.TrimSpace(c.GooglePlacesBaseURL), "/")

	c.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(c.RedisKeyPrefix), ":")
	if c.RedisKeyPrefix == "" {
		c.RedisKeyPrefix = "claim"
	}
	if c.DBMaxConns <= 0 {
		c.DBMaxConns = 10
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		c.DBMinConns = 0
	}
	if c.ClaimTokenTTLMinutes <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive claim token ttl; using default\" ttl_minutes=%d", c.ClaimTokenTTLMinutes)
		c.ClaimTokenTTLMinutes = 1440
	}
	// bcrypt rejects costs outside [4, 31].
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		log.Printf("level=warn component=config msg=\"invalid bcrypt cost; using default\" cost=%d", c.BcryptCost)
		c.BcryptCost = 12
	}
	if c.SearchRateLimitPerMinute < 0 {
		c.SearchRateLimitPerMinute = 0
	}
	if c.PlaceCacheTTLSeconds < 0 {
		c.PlaceCacheTTLSeconds = 0
	}
}

// PaymentsConfigured reports whether a real payment provider key is present.
// Empty keys, the sample placeholder and obviously truncated keys put the
// subscription flow into mock mode.
func (c Config) PaymentsConfigured() bool {
	key := strings.TrimSpace(c.StripeSecretKey)
	if key == "" || strings.Contains(key, placeholderPaymentSecretKey) {
		return false
	}
	return len(key) >= minPaymentSecretKeyLength
}
