package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/outbox"
	"github.com/radieske/crash-game-platform/internal/shared/cache"
	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/db"
	sharedkafka "github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
	"github.com/radieske/crash-game-platform/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("outbox-dispatcher", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "outbox-dispatcher"), zap.String("env", cfg.Env))

	// Conexão com Postgres (tabela outbox)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka producer compartilhado: o tópico vai em cada linha do outbox
	writer := sharedkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	// Redis para o espelho pub/sub dos websockets
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Métricas Prometheus do dispatcher
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "outbox_events_dispatched_total", Help: "eventos publicados por tópico"}, []string{"topic"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "outbox_events_failed_total", Help: "falhas de publicação por tópico"}, []string{"topic"})
	prometheus.MustRegister(dispatched, failed)

	st := store.NewPostgres(pg)
	publisher := outbox.NewMirrorPublisher(
		outbox.NewKafkaPublisher(writer),
		rdb,
		cfg.RedisMirrorChannel,
		log,
	)

	disp := outbox.NewDispatcher(st, publisher, log, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	disp.OnDispatched = func(topic string) { dispatched.WithLabelValues(topic).Inc() }
	disp.OnError = func(topic string) { failed.WithLabelValues(topic).Inc() }

	// Servidor HTTP para métricas e health check
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := pg.PingContext(ctx); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	// SIGINT/SIGTERM encerram o loop de varredura
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := disp.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("dispatcher", zap.Error(err))
	}
}
