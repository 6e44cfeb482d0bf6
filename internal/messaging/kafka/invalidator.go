package kafka

import (
	"context"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vinyl/internal/cache"
)

// NewInvalidationHandler возвращает MessageHandler, сбрасывающий read-кэш
// каталога на каждое событие каталога или заказа. Так инстансы без
// локальной мутации узнают об изменениях витрины; гранулярность грубая,
// любое событие сбрасывает весь кэш.
func NewInvalidationHandler(invalidator cache.Invalidator, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "cache-invalidation-consumer")
	}

	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		envelope, err := ParseEnvelope(message)
		if err != nil {
			// Битое сообщение ретраить бессмысленно: логируем и пропускаем.
			logger.WithError(err).WithFields(log.Fields{
				"topic":  message.Topic,
				"offset": message.Offset,
			}).Warn("skipping malformed event")
			return nil
		}

		if err := invalidator.InvalidateAll(ctx); err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"event_type":   envelope.EventType,
				"aggregate_id": envelope.AggregateID,
			}).Warn("cache invalidation failed")
			return err
		}

		logger.WithFields(log.Fields{
			"event_type":   envelope.EventType,
			"aggregate_id": envelope.AggregateID,
		}).Debug("cache invalidated on event")
		return nil
	}
}
