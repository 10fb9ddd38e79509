package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/honeynil/CrowdfundServiceTochka/internal/api"
	"github.com/honeynil/CrowdfundServiceTochka/internal/config"
	"github.com/honeynil/CrowdfundServiceTochka/internal/handler"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/kafka"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/observability"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository/memory"
	core "github.com/honeynil/CrowdfundServiceTochka/internal/repository/postgres"
	service "github.com/honeynil/CrowdfundServiceTochka/internal/services"
	_ "github.com/lib/pq"
)

type stores struct {
	campaigns repository.CampaignRepository
	donations repository.DonationRepository
	reviews   repository.ReviewRepository
	messages  repository.MessageRepository
	close     func() error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("using in-memory stores, data is lost on restart")
		donations := memory.NewDonationRepository()
		return &stores{
			campaigns: memory.NewCampaignRepository(donations),
			donations: donations,
			reviews:   memory.NewReviewRepository(),
			messages:  memory.NewMessageRepository(),
			close:     func() error { return nil },
		}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &stores{
		campaigns: core.NewPostgresCampaignRepository(db),
		donations: core.NewPostgresDonationRepository(db),
		reviews:   core.NewPostgresReviewRepository(db),
		messages:  core.NewPostgresMessageRepository(db),
		close:     db.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Logs, metrics, traces
	shutdownTracing := observability.Setup(ctx, "crowdfund-service", cfg.LogLevel, cfg.OTLPEndpoint)
	defer shutdownTracing(context.Background())

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer st.close()

	var redisClient redis.RedisClient = redis.Noop{}
	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		redisClient = client
	} else {
		slog.Warn("REDIS_ADDR not set, running without cache and idempotency locks")
	}
	defer redisClient.Close()

	var producer kafka.KafkaProducer = kafka.NoopProducer{}
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers)
	} else {
		slog.Warn("KAFKA_BROKERS not set, donation events are dropped")
	}
	defer producer.Close()

	settings := service.Settings{
		DonationsTopic: cfg.KafkaDonationsTopic,
		ReconcileTopic: cfg.KafkaReconcileTopic,
		CacheTTL:       cfg.CacheTTL,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	l := ledger.New(st.donations)
	campaigns := service.NewCampaignService(st.campaigns, l, redisClient, settings)
	h := handler.NewHandler(handler.Services{
		Campaigns:  campaigns,
		Donations:  service.NewDonationService(st.campaigns, l, campaigns, redisClient, producer, settings),
		Reviews:    service.NewReviewService(st.reviews, settings),
		Messages:   service.NewMessageService(st.messages, settings),
		Dashboards: service.NewDashboardService(st.campaigns, l, st.messages, settings),
	})

	// Reconcile requests from partial failures
	if len(cfg.KafkaBrokers) > 0 {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaReconcileTopic, cfg.KafkaGroupID, campaigns)
		go consumer.Consume(ctx)
		defer consumer.Close()
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.SetupRouter(h, cfg.JWTSecret),
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
