package outbox

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/crash-game-platform/internal/shared/kafka"
	"github.com/radieske/crash-game-platform/internal/store"
)

// KafkaPublisher entrega os eventos no tópico gravado em cada linha do outbox.
type KafkaPublisher struct {
	writer *sharedkafka.Writer
}

// NewKafkaPublisher instancia o publisher kafka
func NewKafkaPublisher(w *sharedkafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev store.OutboxEvent) error {
	return sharedkafka.WriteJSON(ctx, p.writer, ev.Topic, ev.Key, ev.Payload)
}

// MirrorPublisher encadeia o publisher primário com um espelho redis pub/sub
// para fan-out de baixa latência aos websockets. O espelho é best-effort:
// falha no redis não bloqueia nem re-enfileira o evento.
type MirrorPublisher struct {
	primary Publisher
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// NewMirrorPublisher instancia o publisher com espelho redis
func NewMirrorPublisher(primary Publisher, rdb *redis.Client, channel string, logger *zap.Logger) *MirrorPublisher {
	return &MirrorPublisher{primary: primary, rdb: rdb, channel: channel, logger: logger}
}

func (p *MirrorPublisher) Publish(ctx context.Context, ev store.OutboxEvent) error {
	if err := p.primary.Publish(ctx, ev); err != nil {
		return err
	}

	if err := p.rdb.Publish(ctx, p.channel, ev.Payload).Err(); err != nil {
		p.logger.Warn("falha no espelho redis",
			zap.String("channel", p.channel),
			zap.String("topic", ev.Topic),
			zap.Error(err),
		)
	}
	return nil
}
