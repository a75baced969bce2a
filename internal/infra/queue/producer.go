package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch Publisher
	mu sync.Mutex
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

func (p *RabbitMQProducer) PublishEnrich(ctx context.Context, task EnrichTask) error {
	return p.publish(ctx, EnrichRoute, task.TaskID, task)
}

func (p *RabbitMQProducer) PublishCampaign(ctx context.Context, task CampaignTask) error {
	return p.publish(ctx, CampaignRoute, task.TaskID, task)
}

func (p *RabbitMQProducer) PublishScrape(ctx context.Context, task ScrapeTask) error {
	return p.publish(ctx, ScrapeRoute, task.TaskID, task)
}

func (p *RabbitMQProducer) PublishImport(ctx context.Context, task ImportTask) error {
	return p.publish(ctx, ImportRoute, task.TaskID, task)
}

func (p *RabbitMQProducer) publish(ctx context.Context, route Route, taskID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s task: %w", route.Kind, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		route.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    taskID,
			Type:         route.Kind,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s task: %w", route.Kind, err)
	}
	return nil
}
