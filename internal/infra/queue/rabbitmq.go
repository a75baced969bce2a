package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "ex.leadforge"
	DLXName      = "ex.leadforge.dlx" // Dead Letter Exchange
)

// Route ties a task kind to its queue, dead-letter queue and routing key.
type Route struct {
	Kind       string
	Queue      string
	DLQ        string
	RoutingKey string
}

var (
	EnrichRoute   = Route{Kind: "enrich", Queue: "q.enrich", DLQ: "q.enrich.dlq", RoutingKey: "k.enrich"}
	CampaignRoute = Route{Kind: "campaign", Queue: "q.campaign", DLQ: "q.campaign.dlq", RoutingKey: "k.campaign"}
	ScrapeRoute   = Route{Kind: "scrape", Queue: "q.scrape", DLQ: "q.scrape.dlq", RoutingKey: "k.scrape"}
	ImportRoute   = Route{Kind: "import", Queue: "q.import", DLQ: "q.import.dlq", RoutingKey: "k.import"}
)

var Routes = []Route{EnrichRoute, CampaignRoute, ScrapeRoute, ImportRoute}

type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

// setupTopology declares the work exchange, the dead-letter exchange and one
// queue pair per route. A nacked message lands in the route's DLQ.
func setupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	for _, r := range Routes {
		if _, err := ch.QueueDeclare(r.DLQ, true, false, false, false, nil); err != nil {
			return err
		}
		if err := ch.QueueBind(r.DLQ, r.RoutingKey, DLXName, false, nil); err != nil {
			return err
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    DLXName,
			"x-dead-letter-routing-key": r.RoutingKey,
		}
		if _, err := ch.QueueDeclare(r.Queue, true, false, false, false, args); err != nil {
			return err
		}
		if err := ch.QueueBind(r.Queue, r.RoutingKey, ExchangeName, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.Ch != nil {
		r.Ch.Close()
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}
