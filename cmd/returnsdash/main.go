package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"returnsdash/internal/audit"
	"returnsdash/internal/config"
	"returnsdash/internal/db"
	"returnsdash/internal/gateway"
	"returnsdash/internal/kafka"
	"returnsdash/internal/metrics"
	taskprocessor "returnsdash/internal/processor"
	"returnsdash/internal/repository"
	"returnsdash/internal/server"
	"returnsdash/internal/service"
	"returnsdash/internal/session"
	"returnsdash/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	cfg := config.MustLoad()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit pipeline: stdout always, DB + Kafka outbox when configured.
	processors := []audit.Processor{&audit.StdoutProcessor{Filter: cfg.AuditFilter}}
	if cfg.AuditDSN != "" {
		database, err := db.OpenAudit(cfg.AuditDSN, cfg.MigrationsDir)
		if err != nil {
			log.Fatalf("Error in connection to audit db: %v", err)
		}
		defer database.Close()
		processors = append(processors, audit.NewDBProcessor(database))

		if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
			taskRepo := repository.NewPostgresTaskRepository(database)
			processors = append(processors, audit.NewOutboxProcessor(taskRepo))

			producer, err := kafka.NewSaramaProducer(brokers)
			if err != nil {
				log.Fatalf("failed to init kafka producer: %v", err)
			}
			defer producer.Close()

			proc := taskprocessor.NewTaskProcessor(taskRepo, producer, cfg.KafkaTopic, 5*time.Second, 100)
			go proc.Start(ctx)

			if cfg.AuditTail {
				go kafka.StartSaramaConsumer(ctx, brokers, cfg.KafkaGroupID, []string{cfg.KafkaTopic})
			}
		}
	}

	auditPool := audit.NewPool(audit.PoolConfig{
		BatchSize:   10,
		Timeout:     2 * time.Second,
		ChannelSize: 256,
	}, processors...)
	auditPool.Start(ctx, 2)

	sessions, err := session.Open(cfg.SessionPath)
	if err != nil {
		log.Fatalf("failed to open session storage: %v", err)
	}
	defer sessions.Close()

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout)
	st := store.New(cfg.SuccessMessageTTL)
	m := metrics.New(prometheus.DefaultRegisterer)

	svc := service.NewDashboardService(gw, st, sessions, auditPool, m, cfg.TrustMerchantAggregates)
	svc.Load(ctx)

	srv := server.NewServer(svc, auditPool, cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
