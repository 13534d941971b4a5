package consumer

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"marketplace-service/internal/cache"
	"marketplace-service/internal/entity"
	"marketplace-service/internal/events"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Consumer keeps the product cache in step with confirmed orders.
type Consumer struct {
	reader MessageReader
	cache  cache.ProductCache
}

func NewConsumer(reader MessageReader, productCache cache.ProductCache) *Consumer {
	return &Consumer{reader: reader, cache: productCache}
}

// Run reads order events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error().Err(err).Msg("Error reading message")
			continue
		}
		c.HandleMessage(ctx, msg)
	}
}

// HandleMessage evicts the products of a sub-order once its stock has been
// deducted. Other events are ignored.
func (c *Consumer) HandleMessage(ctx context.Context, msg kafka.Message) {
	evt, err := events.ParseMessage(msg)
	if err != nil {
		logger.Error().Err(err).Str("key", string(msg.Key)).Msg("Error decoding order event")
		return
	}
	if evt.Type != events.StatusChanged || evt.Status != entity.StatusConfirmed {
		return
	}

	ids := make([]int64, 0, len(evt.Items))
	for _, it := range evt.Items {
		ids = append(ids, it.ProductID)
	}
	if err := c.cache.Delete(ctx, ids...); err != nil {
		logger.Error().Err(err).Int64("sub_order_id", evt.SubOrderID).Msg("Error evicting products from cache")
		return
	}
	logger.Info().Int64("sub_order_id", evt.SubOrderID).Int("products", len(ids)).Msg("Evicted confirmed products from cache")
}
