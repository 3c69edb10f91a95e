// Package outbox drena os eventos pendentes gravados nas transações de
// negócio e os publica fora da transação (entrega at-least-once).
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/store"
)

// Publisher entrega um evento do outbox para o mundo externo.
type Publisher interface {
	Publish(ctx context.Context, ev store.OutboxEvent) error
}

// Dispatcher percorre o outbox em lotes num ticker e publica cada evento.
// Falha de publicação incrementa retry_count; o evento volta na próxima
// varredura até estourar o limite de tentativas.
type Dispatcher struct {
	store     store.Store
	publisher Publisher
	logger    *zap.Logger

	pollInterval time.Duration
	batchSize    int

	// Ganchos de instrumentação dos mains (contadores prometheus)
	OnDispatched func(topic string)
	OnError      func(topic string)
}

// NewDispatcher instancia o dispatcher do outbox
func NewDispatcher(s store.Store, p Publisher, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		store:        s,
		publisher:    p,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run bloqueia drenando o outbox até o contexto ser cancelado.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher iniciado",
		zap.Duration("poll_interval", d.pollInterval),
		zap.Int("batch_size", d.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher encerrando")
			return ctx.Err()
		case <-ticker.C:
			if err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("falha na varredura do outbox", zap.Error(err))
			}
		}
	}
}

// DrainOnce processa um único lote de eventos pendentes.
// Exposto separado do loop pra facilitar teste determinístico.
func (d *Dispatcher) DrainOnce(ctx context.Context) error {
	pending, err := d.store.PendingEvents(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, ev := range pending {
		if err := d.publisher.Publish(ctx, ev); err != nil {
			d.logger.Warn("falha ao publicar evento do outbox",
				zap.Int64("event_id", ev.ID),
				zap.String("topic", ev.Topic),
				zap.Int("retry_count", ev.RetryCount),
				zap.Error(err),
			)
			if d.OnError != nil {
				d.OnError(ev.Topic)
			}
			if mErr := d.store.MarkEventFailed(ctx, ev.ID, err.Error()); mErr != nil {
				return mErr
			}
			continue
		}

		if err := d.store.MarkEventSent(ctx, ev.ID); err != nil {
			return err
		}
		if d.OnDispatched != nil {
			d.OnDispatched(ev.Topic)
		}
		d.logger.Debug("evento publicado",
			zap.Int64("event_id", ev.ID),
			zap.String("topic", ev.Topic),
		)
	}
	return nil
}
