package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/talent/internal/config"
	"example.com/talent/internal/consumer"
)

func main() {
	cfg := config.Load()
	if len(cfg.ConsumerTopics) == 0 {
		log.Fatal("CONSUMER_TOPICS is empty; nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	done := consumeTopics(ctx, cfg, consumer.NewPersistenceHandler(pool))

	<-ctx.Done()
	log.Println("consumer shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("consumers did not stop within %s", cfg.ShutdownTimeout)
	}
}

// consumeTopics starts one processor per configured topic, all sharing the
// consumer group, and returns a channel closed once every reader has stopped.
func consumeTopics(ctx context.Context, cfg config.Config, handler consumer.Handler) <-chan struct{} {
	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := newReader(cfg, topic)
		proc := consumer.NewProcessor(reader, handler,
			consumer.WithLogger(log.New(log.Writer(), "[consumer "+topic+"] ", log.LstdFlags)))

		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			defer reader.Close()

			log.Printf("consuming %s as %s", topic, cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consumer for %s stopped: %v", topic, err)
			}
		}(topic)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func newReader(cfg config.Config, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           topic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})
}
