package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
)

// RoutingKey is used for every LeadSynced event.
const RoutingKey = "lead.synced"

// publisher is the part of *amqp.Channel the notifier uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes LeadSynced events to a RabbitMQ exchange.
type AMQPNotifier struct {
	ch       publisher
	exchange string
	closeFn  func() error
}

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, eris.Wrap(err, "notify: amqp dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "notify: amqp channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "notify: declare exchange %s", exchange)
	}

	return &AMQPNotifier{
		ch:       ch,
		exchange: exchange,
		closeFn: func() error {
			ch.Close() //nolint:errcheck
			return conn.Close()
		},
	}, nil
}

func (n *AMQPNotifier) Send(ctx context.Context, lead model.Lead) error {
	body, err := json.Marshal(newLeadSynced(lead))
	if err != nil {
		return eris.Wrap(err, "notify: marshal lead event")
	}

	err = n.ch.PublishWithContext(ctx, n.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    lead.ID,
		Timestamp:    time.Now().UTC(),
		Type:         "LeadSynced",
		Body:         body,
	})
	if err != nil {
		return eris.Wrapf(err, "notify: publish lead %s", lead.ID)
	}
	return nil
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() error {
	if n.closeFn == nil {
		return nil
	}
	return eris.Wrap(n.closeFn(), "notify: amqp close")
}
