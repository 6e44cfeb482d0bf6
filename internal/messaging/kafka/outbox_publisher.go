package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka, раскладывая их
// по топикам по типу агрегата: события каталога и события заказов живут
// в разных топиках.
type OutboxTopicPublisher struct {
	producer     *Producer
	catalogTopic string
	orderTopic   string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{
		producer:     producer,
		catalogTopic: TopicCatalogEvents,
		orderTopic:   TopicOrderEvents,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := EventEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topicFor(event.AggregateType), key, envelope)
}

// topicFor выбирает топик по типу агрегата. Неизвестные агрегаты идут в
// топик каталога, чтобы событие не потерялось.
func (p *OutboxTopicPublisher) topicFor(aggregateType string) string {
	switch aggregateType {
	case "order":
		return p.orderTopic
	default:
		return p.catalogTopic
	}
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
