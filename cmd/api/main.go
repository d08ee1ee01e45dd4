package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/talent/internal/api"
	"example.com/talent/internal/auth"
	"example.com/talent/internal/config"
	"example.com/talent/internal/domain"
	"example.com/talent/internal/outbox"
	"example.com/talent/internal/persistence/memory"
	persistence "example.com/talent/internal/persistence/postgres"
	"example.com/talent/internal/storage"
	httptransport "example.com/talent/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo       domain.Repository
		dispatcher *outbox.Dispatcher
	)
	switch cfg.RepositoryBackend {
	case config.BackendMemory:
		log.Printf("using in-memory repository; events are not published")
		repo = memory.NewInMemoryRepository()
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		repo = persistence.NewRepository(pool)
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, nil)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithClaimLease(cfg.OutboxClaimLease),
			outbox.WithRetryBackoff(cfg.DLQBaseDelay),
		)
		go dispatcher.Start(ctx)
	default:
		log.Fatalf("unknown REPOSITORY_BACKEND %q", cfg.RepositoryBackend)
	}

	var opts []domain.Option
	if cfg.Storage.Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.Config{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			Bucket:        cfg.Storage.Bucket,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			UsePathStyle:  cfg.Storage.UsePathStyle,
		})
		if err != nil {
			log.Fatalf("failed to configure avatar storage: %v", err)
		}
		opts = append(opts, domain.WithAvatarStore(store, cfg.Storage.AvatarMaxBytes))
	} else {
		log.Printf("STORAGE_BUCKET not set; avatar uploads disabled")
	}

	service := domain.NewService(repo, time.Now, opts...)

	handler := api.NewHandler(service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.RequestLogger(nil, httptransport.CORS(cfg.CORSOrigin, authMiddleware.Wrap(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("talent-service listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
