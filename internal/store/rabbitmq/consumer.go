package rabbitmq

import (
	"encoding/json"
	"errors"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrBadMessage = errors.New("rabbitmq: bad job message")

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares the topology and limits unacked deliveries to
// prefetch.
func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue}, nil
}

func (c *Consumer) Queue() string { return c.queue }

// Deliveries starts consuming with manual acks.
func (c *Consumer) Deliveries() (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.queue, "", false, false, false, false, nil)
}

// Closed reports connection loss.
func (c *Consumer) Closed() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// DecodeJob reads the job id and attempt number of a delivery.
func DecodeJob(d amqp.Delivery) (JobMessage, int, error) {
	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil {
		return JobMessage{}, 0, errors.Join(ErrBadMessage, err)
	}
	m.JobID = strings.TrimSpace(m.JobID)
	if m.JobID == "" {
		return JobMessage{}, 0, ErrBadMessage
	}
	return m, attemptOf(d.Headers), nil
}

func attemptOf(h amqp.Table) int {
	var n int
	switch v := h[AttemptHeader].(type) {
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case int:
		n = v
	case int16:
		n = int(v)
	case int8:
		n = int(v)
	}
	if n < 1 {
		return 1
	}
	return n
}
