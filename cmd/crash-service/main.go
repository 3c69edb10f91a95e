package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	chttp "github.com/radieske/crash-game-platform/internal/crash-service/http"
	"github.com/radieske/crash-game-platform/internal/game"
	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/shared/config"
	"github.com/radieske/crash-game-platform/internal/shared/db"
	"github.com/radieske/crash-game-platform/internal/shared/logger"
	"github.com/radieske/crash-game-platform/internal/shared/metrics"
	"github.com/radieske/crash-game-platform/internal/store"
	"github.com/radieske/crash-game-platform/internal/transfer"
)

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("crash-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "crash-service"), zap.String("env", cfg.Env))

	// Conexão com Postgres (carteira, rodadas, apostas e outbox)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Monta store, ledger e engines sobre a mesma conexão
	st := store.NewPostgres(pg)
	led := ledger.New(st, nil)
	bets := game.NewBetEngine(st, led, nil)
	rounds := game.NewRoundEngine(st, bets, nil)
	transfers := transfer.New(st, led, nil)

	api := chttp.NewServer(log, led, bets, rounds, transfers)

	// Servidor HTTP público da API
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort, // ex: 8084
		Handler: api.Router(),
	}

	// Servidor de métricas e health check (goroutine própria)
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Inicia servidor principal da API
	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
