// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/qrneighbor/sms-dispatch/internal/config"
	"github.com/qrneighbor/sms-dispatch/internal/db"
	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/provider"
	"github.com/qrneighbor/sms-dispatch/internal/queue"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
	"github.com/qrneighbor/sms-dispatch/internal/scheduler"
	"github.com/qrneighbor/sms-dispatch/internal/service"
)

// The worker runs the two halves of scheduled sending: the tick loop that
// claims due jobs and the consumer that executes them.
func main() {
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Init(logger.Config{})
		logger.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, JSONOutput: cfg.IsProduction()})
	log := logger.WithComponent("worker")

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

	ledger := service.NewLedgerService(messageRepo)
	dispatcher := service.NewDispatcher(primary, secondary, ledger)
	subscriberService := service.NewSubscriberService(subscriberRepo, businessRepo, dispatcher)
	campaignService := service.NewCampaignService(campaignRepo, jobRepo, businessRepo, subscriberService, dispatcher, ledger)

	q, err := queue.DialAMQP(cfg.AMQP.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer q.Close()

	err = q.Subscribe(scheduler.Topic, func(payload []byte) error {
		var job scheduler.JobPayload
		if err := json.Unmarshal(payload, &job); err != nil {
			log.Warn().Err(err).Msg("invalid job payload, dropping")
			return nil
		}
		return campaignService.RunDue(ctx, job.JobID, job.ClaimToken)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe")
	}

	interval, err := time.ParseDuration(cfg.Scheduler.TickInterval)
	if err != nil {
		log.Warn().Str("value", cfg.Scheduler.TickInterval).Msg("bad tick interval, using 1m")
		interval = time.Minute
	}

	sched := scheduler.New(jobRepo, q, interval)
	log.Info().Dur("interval", interval).Msg("worker running, waiting for due jobs")

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("scheduler stopped")
	}
}

func buildProviders(cfg *config.Config) (provider.Sender, provider.Sender) {
	twilio := provider.NewTwilio(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.StatusWebhookURL())
	telnyx := provider.NewTelnyx(cfg.Telnyx.APIKey, cfg.Telnyx.MessagingProfileID, cfg.StatusWebhookURL())

	if cfg.PrimaryProvider == provider.NameTelnyx {
		return telnyx, twilio
	}
	return twilio, telnyx
}
