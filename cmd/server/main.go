// cmd/server/main.go
package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/qrneighbor/sms-dispatch/internal/config"
	"github.com/qrneighbor/sms-dispatch/internal/controller"
	"github.com/qrneighbor/sms-dispatch/internal/db"
	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/provider"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
	"github.com/qrneighbor/sms-dispatch/internal/service"
)

func main() {
	// Load .env before anything reads the environment.
	godotenv.Load()

	cfg, err := config.Load(context.Background())
	if err != nil {
		logger.Init(logger.Config{})
		logger.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, JSONOutput: cfg.IsProduction()})
	log := logger.WithComponent("server")

	conn, err := db.Open(cfg.Postgres.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.EnsureSchema(conn); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	businessRepo := &repository.BusinessRepository{DB: conn}
	subscriberRepo := &repository.SubscriberRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}
	jobRepo := &repository.JobRepository{DB: conn}

	primary, secondary := buildProviders(cfg)
	log.Info().Str("primary", primary.Name()).Str("fallback", secondary.Name()).Msg("provider order configured")

	ledger := service.NewLedgerService(messageRepo)
	dispatcher := service.NewDispatcher(primary, secondary, ledger)
	subscriberService := service.NewSubscriberService(subscriberRepo, businessRepo, dispatcher)
	inboundService := service.NewInboundService(businessRepo, subscriberRepo, dispatcher)
	campaignService := service.NewCampaignService(campaignRepo, jobRepo, businessRepo, subscriberService, dispatcher, ledger)

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	subscriberController := &controller.SubscriberController{SubscriberService: subscriberService}
	webhookController := controller.NewWebhookController(inboundService, ledger)

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/send", campaignController.SendCampaign)
	r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)

	// Lead capture
	r.Post("/subscribers", subscriberController.CreateSubscriber)

	// Provider callbacks
	r.Post("/webhooks/sms/inbound", webhookController.InboundSMS)
	r.Post("/webhooks/sms/status", webhookController.DeliveryStatus)

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("server running")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// buildProviders returns (primary, fallback) in configured order.
func buildProviders(cfg *config.Config) (provider.Sender, provider.Sender) {
	twilio := provider.NewTwilio(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.StatusWebhookURL())
	telnyx := provider.NewTelnyx(cfg.Telnyx.APIKey, cfg.Telnyx.MessagingProfileID, cfg.StatusWebhookURL())

	if cfg.PrimaryProvider == provider.NameTelnyx {
		return telnyx, twilio
	}
	return twilio, telnyx
}
