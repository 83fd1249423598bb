package config

import (
	"log"
	"os"
	"time"
)

type Config struct {
	Token            string
	ReviewChannelID  string
	PublishChannelID string
	ModeratorID      string
	RateLimit        time.Duration

	KimiURL       string
	KimiAuthToken string

	HTTPAddr   string
	AdminToken string
	JWTSecret  string
}

func Load() Config {
	rateLimit, err := time.ParseDuration(getenv("RATE_LIMIT", "5s"))
	if err != nil {
		log.Printf("Invalid RATE_LIMIT, using default: %v", err)
		rateLimit = 5 * time.Second
	}

	return Config{
		Token:            os.Getenv("DISCORD_TOKEN"),
		ReviewChannelID:  os.Getenv("REVIEW_CHANNEL_ID"),
		PublishChannelID: os.Getenv("PUBLISH_CHANNEL_ID"),
		ModeratorID:      os.Getenv("MODERATOR_ID"),
		RateLimit:        rateLimit,
		KimiURL:          getenv("KIMI_URL", ""),
		KimiAuthToken:    os.Getenv("KIMI_AUTH_TOKEN"),
		HTTPAddr:         getenv("HTTP_ADDR", ":8090"),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
