package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AttemptHeader counts deliveries of one turn job, starting at 1.
const AttemptHeader = "x-attempt"

// JobMessage is the body of a turn job delivery.
type JobMessage struct {
	JobID string `json:"job_id"`
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishJob queues the first attempt of a turn job.
func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	return p.publish(ctx, p.queue, jobID, 1, 0)
}

// PublishRetry parks the job in the retry queue; it comes back to the main
// queue after delay.
func (p *Publisher) PublishRetry(ctx context.Context, jobID string, attempt int, delay time.Duration) error {
	return p.publish(ctx, retryQueue(p.queue), jobID, attempt, delay)
}

func (p *Publisher) publish(ctx context.Context, routingKey, jobID string, attempt int, delay time.Duration) error {
	msg, err := newPublishing(jobID, attempt, delay)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",         // default exchange
		routingKey, // routing key = queue
		false,
		false,
		msg,
	)
}

func newPublishing(jobID string, attempt int, delay time.Duration) (amqp.Publishing, error) {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return amqp.Publishing{}, err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{AttemptHeader: int32(attempt)},
	}
	if delay > 0 {
		// per-message TTL in milliseconds
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return msg, nil
}
