package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"coderoom/internal/models"
)

// Channel carries room lifecycle events for other services to consume.
const Channel = "coderoom:rooms"

// Publisher emits room events over redis pub/sub. Delivery is
// fire-and-forget: a publish failure is logged and never reaches the
// coordinator's control flow.
type Publisher struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewPublisher(rdb *redis.Client, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{rdb: rdb, log: log}
}

func (p *Publisher) Publish(ctx context.Context, ev models.RoomEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("room event marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		p.log.Warn("room event publish failed",
			zap.String("type", ev.Type), zap.String("roomId", ev.RoomID), zap.Error(err))
	}
}
