package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange        = "reservas.notifications"
	Queue           = "reservas.notifications.q"
	DeadLetter      = "reservas.dlx"
	DeadLetterQueue = "reservas.notifications.dlq"
	routingKey      = "notify"
)

// Job is the message body on the notifications queue.
type Job struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	ReservationID int64     `json:"reservation_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Declare creates the exchange, the work queue and its dead-letter queue.
// It is idempotent.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", Exchange, err)
	}
	if err := ch.ExchangeDeclare(DeadLetter, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadLetter, err)
	}
	if _, err := ch.QueueDeclare(Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadLetter,
		"x-dead-letter-routing-key": "dlq",
	}); err != nil {
		return fmt.Errorf("declare %s: %w", Queue, err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadLetterQueue, err)
	}
	if err := ch.QueueBind(Queue, routingKey, Exchange, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(DeadLetterQueue, "dlq", DeadLetter, false, nil)
}

// Publisher queues notification jobs and waits for the broker's confirm.
// It satisfies the same Confirmation/Reminder contract as Mailer.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	acks <-chan amqp.Confirmation
	mu   sync.Mutex

	log *slog.Logger
}

func DialPublisher(url string, log *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := Declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{conn: conn, ch: ch, acks: ch.NotifyPublish(make(chan amqp.Confirmation, 1)), log: log}, nil
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Publisher) Ping() error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, kind Kind, reservationID int64) error {
	job := Job{ID: uuid.NewString(), Kind: kind, ReservationID: reservationID, CreatedAt: time.Now().UTC()}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
		MessageId:    job.ID,
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    job.CreatedAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}

	select {
	case conf := <-p.acks:
		if !conf.Ack {
			return errors.New("publish NACK from broker")
		}
		p.log.Debug("Notify:Publish:Queued", "job_id", job.ID, "kind", kind, "reservation_id", reservationID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) Confirmation(ctx context.Context, id int64) error {
	return p.Publish(ctx, KindConfirmation, id)
}

func (p *Publisher) Reminder(ctx context.Context, id int64) error {
	return p.Publish(ctx, KindReminder, id)
}

// ErrDLQ marks a job that must not be retried.
var ErrDLQ = errors.New("dead_letter")

type Deliverer interface {
	Deliver(ctx context.Context, kind Kind, id int64) error
}

// Worker consumes notification jobs and hands them to a Deliverer,
// normally a Mailer.
type Worker struct {
	Deliverer Deliverer
	Prefetch  int
	Timeout   time.Duration
	Log       *slog.Logger
}

// Handle processes one message body. Malformed bodies return ErrDLQ.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", ErrDLQ, err)
	}
	if job.ReservationID <= 0 || (job.Kind != KindConfirmation && job.Kind != KindReminder) {
		return fmt.Errorf("%w: bad job %+v", ErrDLQ, job)
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.Deliverer.Deliver(ctx, job.Kind, job.ReservationID)
}

// Run consumes until ctx is done. A failed job is requeued once, then dead
// lettered.
func (w *Worker) Run(ctx context.Context, url string) error {
	log := w.Log
	if log == nil {
		log = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := Declare(ch); err != nil {
		return err
	}
	prefetch := w.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return err
	}
	const consumerTag = "reservas-notify"
	msgs, err := ch.Consume(Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	log.Info("Notify:Worker:Consuming", "queue", Queue, "prefetch", prefetch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range msgs {
			err := w.Handle(ctx, d.Body)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrDLQ) || d.Redelivered:
				log.Error("Notify:Worker:DeadLettered", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, false)
			default:
				log.Warn("Notify:Worker:Requeued", "message_id", d.MessageId, "error", err)
				_ = d.Nack(false, true)
			}
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Notify:Worker:Shutdown")
		_ = ch.Cancel(consumerTag, false)
		<-done
		return nil
	case <-done:
		return errors.New("notification consumer closed")
	}
}
