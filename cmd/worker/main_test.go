package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/macrolog/internal/ai"
	"github.com/suPer8Hu/macrolog/internal/chat"
	"github.com/suPer8Hu/macrolog/internal/store/rabbitmq"
)

type fakeAck struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeRunner struct {
	err         error
	jobID       string
	retriesLeft bool
}

func (f *fakeRunner) RunJob(ctx context.Context, jobID string, retriesLeft bool) error {
	f.jobID, f.retriesLeft = jobID, retriesLeft
	return f.err
}

type fakeRetrier struct {
	err     error
	calls   int
	attempt int
	delay   time.Duration
}

func (f *fakeRetrier) PublishRetry(ctx context.Context, jobID string, attempt int, delay time.Duration) error {
	f.calls++
	f.attempt, f.delay = attempt, delay
	return f.err
}

func delivery(ack *fakeAck, body string, attempt int32) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(body),
		Headers:      amqp.Table{rabbitmq.AttemptHeader: attempt},
	}
}

func TestHandleDeliverySuccessAcks(t *testing.T) {
	ack, run, retry := &fakeAck{}, &fakeRunner{}, &fakeRetrier{}
	handleDelivery(context.Background(), 0, run, retry, delivery(ack, `{"job_id":"J1"}`, 1))

	if ack.acks != 1 || ack.nacks != 0 || retry.calls != 0 {
		t.Fatalf("unexpected settlement %+v retries=%d", ack, retry.calls)
	}
	if run.jobID != "J1" || !run.retriesLeft {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestHandleDeliveryRetriesRetryableErrors(t *testing.T) {
	ack, retry := &fakeAck{}, &fakeRetrier{}
	run := &fakeRunner{err: &ai.Error{Kind: ai.KindTimeout}}
	handleDelivery(context.Background(), 0, run, retry, delivery(ack, `{"job_id":"J1"}`, 2))

	if retry.calls != 1 || retry.attempt != 3 || retry.delay != 4*time.Second {
		t.Fatalf("unexpected retry %+v", retry)
	}
	if ack.acks != 1 || ack.nacks != 0 {
		t.Fatalf("original delivery should be acked: %+v", ack)
	}
}

func TestHandleDeliveryLastAttemptGoesToDLQ(t *testing.T) {
	ack, retry := &fakeAck{}, &fakeRetrier{}
	run := &fakeRunner{err: &ai.Error{Kind: ai.KindNetwork}}
	handleDelivery(context.Background(), 0, run, retry, delivery(ack, `{"job_id":"J1"}`, maxAttempts))

	if run.retriesLeft {
		t.Fatalf("last attempt must not leave retries")
	}
	if retry.calls != 0 || ack.nacks != 1 || ack.requeue {
		t.Fatalf("expected nack without requeue: %+v retries=%d", ack, retry.calls)
	}
}

func TestHandleDeliveryPermanentErrorGoesToDLQ(t *testing.T) {
	ack, retry := &fakeAck{}, &fakeRetrier{}
	run := &fakeRunner{err: &ai.Error{Kind: ai.KindContentFilter}}
	handleDelivery(context.Background(), 0, run, retry, delivery(ack, `{"job_id":"J1"}`, 1))

	if retry.calls != 0 || ack.nacks != 1 || ack.requeue {
		t.Fatalf("expected dead-letter: %+v", ack)
	}
}

func TestHandleDeliveryRetryPublishFailureRequeues(t *testing.T) {
	ack := &fakeAck{}
	retry := &fakeRetrier{err: errors.New("broker down")}
	run := &fakeRunner{err: &ai.Error{Kind: ai.KindTimeout}}
	handleDelivery(context.Background(), 0, run, retry, delivery(ack, `{"job_id":"J1"}`, 1))

	if ack.nacks != 1 || !ack.requeue {
		t.Fatalf("expected requeue: %+v", ack)
	}
}

func TestHandleDeliveryBadMessage(t *testing.T) {
	ack, run, retry := &fakeAck{}, &fakeRunner{}, &fakeRetrier{}
	handleDelivery(context.Background(), 0, run, retry, delivery(ack, `{}`, 1))

	if ack.nacks != 1 || ack.requeue || run.jobID != "" {
		t.Fatalf("bad message should be dead-lettered without running: %+v", ack)
	}
}

func TestHandleDeliveryShutdownRequeues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack, retry := &fakeAck{}, &fakeRetrier{}
	run := &fakeRunner{err: fmt.Errorf("%w: %w", chat.ErrJobInterrupted, &ai.Error{Kind: ai.KindCanceled})}
	handleDelivery(ctx, 0, run, retry, delivery(ack, `{"job_id":"J1"}`, maxAttempts))

	if retry.calls != 0 {
		t.Fatalf("shutdown must not schedule a retry")
	}
	if ack.acks != 0 || ack.nacks != 1 || !ack.requeue {
		t.Fatalf("expected the delivery back on the queue: %+v", ack)
	}
}

func TestDispatchStopsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan amqp.Delivery, 1)
	jobs := make(chan amqp.Delivery, 1)
	msgs <- amqp.Delivery{DeliveryTag: 7}

	done := make(chan error, 1)
	go func() { done <- dispatch(ctx, msgs, make(chan *amqp.Error), jobs) }()

	if d := <-jobs; d.DeliveryTag != 7 {
		t.Fatalf("unexpected delivery %d", d.DeliveryTag)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown should not be an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatch did not stop")
	}
}

func TestDispatchReportsBrokerLoss(t *testing.T) {
	connLost := make(chan *amqp.Error, 1)
	connLost <- &amqp.Error{Code: 320, Reason: "CONNECTION_FORCED"}
	err := dispatch(context.Background(), make(chan amqp.Delivery), connLost, make(chan amqp.Delivery))
	if err == nil || !strings.Contains(err.Error(), "CONNECTION_FORCED") {
		t.Fatalf("expected connection loss error, got %v", err)
	}

	msgs := make(chan amqp.Delivery)
	close(msgs)
	if err := dispatch(context.Background(), msgs, make(chan *amqp.Error), make(chan amqp.Delivery)); err == nil {
		t.Fatalf("expected error when the delivery channel closes")
	}
}

func TestRetryDelay(t *testing.T) {
	for attempt, want := range map[int]time.Duration{0: 2 * time.Second, 1: 2 * time.Second, 2: 4 * time.Second, 3: 8 * time.Second} {
		if got := retryDelay(attempt); got != want {
			t.Errorf("retryDelay(%d) = %s, want %s", attempt, got, want)
		}
	}
}
