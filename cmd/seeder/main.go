// cmd/seeder/main.go
package main

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/qrneighbor/sms-dispatch/internal/config"
	"github.com/qrneighbor/sms-dispatch/internal/db"
	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/phone"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
)

// Seeds a couple of businesses and subscribers for local development.
func main() {
	godotenv.Load()

	cfg, err := config.Load(context.Background())
	if err != nil {
		logger.Init(logger.Config{})
		logger.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(logger.Config{Level: cfg.LogLevel})
	log := logger.WithComponent("seeder")

	conn, err := db.Open(cfg.Postgres.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.EnsureSchema(conn); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	businessRepo := &repository.BusinessRepository{DB: conn}
	subscriberRepo := &repository.SubscriberRepository{DB: conn}

	businesses := []*model.Business{
		{
			Key:            "joes-pizza",
			SenderNumber:   "+15559998888",
			WelcomeMessage: "Welcome to Joe's Pizza! Show this text for 10% off. Reply STOP to unsubscribe.",
		},
		{
			Key:            "main-st-barbers",
			SenderNumber:   "+15559997777",
			WelcomeMessage: "Thanks for signing up at Main St Barbers. Reply STOP to unsubscribe.",
		},
	}

	for _, b := range businesses {
		if err := businessRepo.Create(b); err != nil {
			log.Fatal().Err(err).Str("key", b.Key).Msg("failed to seed business")
		}
		log.Info().Str("key", b.Key).Int("id", b.ID).Msg("seeded business")
	}

	subscribers := []struct {
		business string
		phone    string
		name     string
	}{
		{"joes-pizza", "+15551230001", "Alice"},
		{"joes-pizza", "+15551230002", "Bob"},
		{"main-st-barbers", "+15551230003", "Carol"},
	}

	for _, s := range subscribers {
		normalized, err := phone.Normalize(s.phone)
		if err != nil {
			log.Fatal().Err(err).Str("phone", s.phone).Msg("bad seed phone")
		}
		sub := &model.Subscriber{BusinessKey: s.business, Phone: normalized, Name: s.name}
		if err := subscriberRepo.Create(sub); err != nil {
			log.Fatal().Err(err).Str("phone", s.phone).Msg("failed to seed subscriber")
		}
		log.Info().Str("business", s.business).Str("phone", normalized).Msg("seeded subscriber")
	}

	log.Info().Msg("seeding complete")
}
