package queue

import (
	"github.com/streadway/amqp"

	"github.com/qrneighbor/sms-dispatch/internal/logger"
)

// AMQPQueue is the RabbitMQ-backed Queue used between the scheduler tick
// and the worker. Topics map to durable queues.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQP(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(topic string, payload []byte) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		declared.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		},
	)
}

// Subscribe consumes the topic on a background goroutine. A handler error
// requeues the delivery up to three times before it is dropped.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	declared, err := q.declare(topic)
	if err != nil {
		return err
	}

	msgs, err := q.ch.Consume(
		declared.Name,
		"",
		false, // autoAck off for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	log := logger.WithComponent("amqp")
	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				var retryCount int32
				if v, ok := d.Headers["x-retry-count"].(int32); ok {
					retryCount = v
				}
				if retryCount < 3 {
					log.Warn().Err(err).Int32("retry", retryCount).Msg("handler failed, requeueing")
					d.Nack(false, true)
					continue
				}
				log.Error().Err(err).Msg("handler failed, dropping delivery")
			}
			d.Ack(false)
		}
	}()
	return nil
}

var _ Queue = (*AMQPQueue)(nil)
