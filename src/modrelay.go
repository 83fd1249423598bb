package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonthink/modrelay/src/bot"
	"github.com/anonthink/modrelay/src/config"
	"github.com/anonthink/modrelay/src/kimi"
	"github.com/anonthink/modrelay/src/webserver"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.Token == "" {
		log.Fatal("DISCORD_TOKEN not set")
	}
	if cfg.ReviewChannelID == "" {
		log.Fatal("REVIEW_CHANNEL_ID not set")
	}
	if cfg.PublishChannelID == "" {
		log.Fatal("PUBLISH_CHANNEL_ID not set")
	}
	if cfg.ModeratorID == "" {
		log.Fatal("MODERATOR_ID not set")
	}

	transcriber := kimi.NewTranscriber(kimi.NewClient(cfg.KimiURL, cfg.KimiAuthToken))

	b, err := bot.New(bot.Config{
		Token:            cfg.Token,
		ModeratorID:      cfg.ModeratorID,
		ReviewChannelID:  cfg.ReviewChannelID,
		PublishChannelID: cfg.PublishChannelID,
		RateLimit:        cfg.RateLimit,
		Transcriber:      transcriber,
	})
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("bot start: %v", err)
	}

	var srv *webserver.Server
	if cfg.JWTSecret != "" {
		srv = webserver.New(webserver.Config{
			Addr:       cfg.HTTPAddr,
			AdminToken: cfg.AdminToken,
			JWTSecret:  cfg.JWTSecret,
		}, b.Engine())
		srv.Start()
	} else {
		log.Printf("JWT_SECRET not set, HTTP API disabled")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Stop(ctx)
		cancel()
	}
	b.Stop()
}
