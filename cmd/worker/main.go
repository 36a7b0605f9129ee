package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/app"
	"github.com/suPer8Hu/macrolog/internal/chat"
	"github.com/suPer8Hu/macrolog/internal/config"
	"github.com/suPer8Hu/macrolog/internal/store/rabbitmq"
)

// maxAttempts bounds deliveries of one job, the first included.
const maxAttempts = 3

type jobRunner interface {
	RunJob(ctx context.Context, jobID string, retriesLeft bool) error
}

type retryPublisher interface {
	PublishRetry(ctx context.Context, jobID string, attempt int, delay time.Duration) error
}

func main() {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatalf("worker: RABBIT_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, false)
	if err != nil {
		log.Fatalf("worker: init err=%v", err)
	}
	defer a.Close()

	// bounded by prefetch and pool size
	concurrency := cfg.WorkerConcurrency

	cons, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, concurrency)
	if err != nil {
		log.Fatalf("worker: rabbit consumer err=%v", err)
	}
	defer cons.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("worker: rabbit publisher err=%v", err)
	}
	defer pub.Close()

	connLost := cons.Closed()
	msgs, err := cons.Deliveries()
	if err != nil {
		log.Fatalf("worker: consume err=%v", err)
	}

	log.Printf("worker started, queue=%s concurrency=%d provider=%s", cons.Queue(), concurrency, cfg.AIProvider)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, workerID, a.Chat, pub, d)
			}
		}(i)
	}

	err = dispatch(ctx, msgs, connLost, jobs)
	close(jobs)
	wg.Wait()
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Printf("worker stopped")
}

// dispatch feeds deliveries to the pool until ctx ends (nil) or the broker
// goes away (error).
func dispatch(ctx context.Context, msgs <-chan amqp.Delivery, connLost <-chan *amqp.Error, jobs chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			return nil

		case cerr := <-connLost:
			return fmt.Errorf("rabbit connection lost: %v", cerr)

		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

// handleDelivery runs one job and settles the delivery. A retryable
// completion failure with attempts left is re-published with a backoff and
// acked. A job cut short by shutdown is handed back to the queue. Anything
// else that fails is nacked into the dead-letter queue.
func handleDelivery(ctx context.Context, workerID int, runner jobRunner, retrier retryPublisher, d amqp.Delivery) {
	m, attempt, err := rabbitmq.DecodeJob(d)
	if err != nil {
		log.Printf("worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err = runner.RunJob(ctx, m.JobID, attempt < maxAttempts)
	cost := time.Since(start)

	if err == nil {
		if cost > 2*time.Second {
			log.Printf("job_timing worker=%d job=%s attempt=%d total=%s", workerID, m.JobID, attempt, cost)
		}
		if err := d.Ack(false); err != nil {
			log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
		}
		return
	}

	if ctx.Err() != nil || errors.Is(err, chat.ErrJobInterrupted) {
		log.Printf("worker=%d job %s interrupted attempt=%d cost=%s err=%v", workerID, m.JobID, attempt, cost, err)
		_ = d.Nack(false, true)
		return
	}

	var aerr *ai.Error
	if attempt < maxAttempts && errors.As(err, &aerr) && aerr.Retryable() {
		delay := retryDelay(attempt)
		log.Printf("worker=%d job %s attempt=%d retry in %s cost=%s err=%v", workerID, m.JobID, attempt, delay, cost, err)
		if perr := retrier.PublishRetry(ctx, m.JobID, attempt+1, delay); perr != nil {
			// the job is queued again; hand the delivery back as-is
			log.Printf("worker=%d retry publish failed job=%s err=%v", workerID, m.JobID, perr)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	log.Printf("worker=%d job %s failed attempt=%d cost=%s err=%v", workerID, m.JobID, attempt, cost, err)
	_ = d.Nack(false, false)
}

// retryDelay doubles from 2s: 2s, 4s, 8s...
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<(attempt-1)) * 2 * time.Second
}
