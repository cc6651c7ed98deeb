package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// QueueConfig описывает очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Topology — обменник и привязанные к нему очереди.
type Topology struct {
	Exchange string
	Queues   []QueueConfig
}

const (
	// SubscriptionsExchange — обменник событий синхронизации подписок.
	SubscriptionsExchange = "subscriptions"
	// SyncedRoutingKey — ключ события «статус подписки синхронизирован».
	SyncedRoutingKey = "synced"
	// StoreExchange — обменник уведомлений магазина приложений.
	StoreExchange = "store"
	// TransactionRoutingKey — ключ подписанных транзакций из магазина.
	TransactionRoutingKey = "transaction"
)

// SubscriptionTopology возвращает топологию событий синхронизации.
func SubscriptionTopology() Topology {
	return Topology{
		Exchange: SubscriptionsExchange,
		Queues: []QueueConfig{
			{QueueName: "subscriptions.synced", RoutingKey: SyncedRoutingKey},
		},
	}
}

// StoreTopology возвращает топологию уведомлений магазина с указанной очередью.
func StoreTopology(queue string) Topology {
	return Topology{
		Exchange: StoreExchange,
		Queues: []QueueConfig{
			{QueueName: queue, RoutingKey: TransactionRoutingKey},
		},
	}
}

// SetupChannel открывает канал и объявляет топологию: прямой durable-обменник
// и durable-очереди, привязанные к нему.
func SetupChannel(conn *amqp.Connection, topology Topology) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		topology.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range topology.Queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, topology.Exchange, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
