package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"media-translator/internal/gateway"
)

const (
	// DefaultExchange is the topic exchange the service publishes status on.
	DefaultExchange = "task_status"
	// DefaultConnectAttempts bounds dial retries at startup.
	DefaultConnectAttempts = 5
	// DefaultConnectBackoff is the pause between dial attempts.
	DefaultConnectBackoff = 5 * time.Second
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("status subscriber closed")

// Channel is the subset of *amqp.Channel the subscriber uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Options configures the subscriber. Zero values use the defaults.
type Options struct {
	Exchange        string
	ConnectAttempts int
	ConnectBackoff  time.Duration
	Logger          *slog.Logger
}

// Subscriber turns status messages from RabbitMQ into per-job update streams.
type Subscriber struct {
	exchange string
	open     func() (Channel, error)
	logger   *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

// RoutingKey is the binding key for one job's status messages.
func RoutingKey(jobID string) string {
	return "task." + jobID
}

// Connect dials url, retrying a fixed number of times before giving up.
func Connect(ctx context.Context, url string, opts Options) (*Subscriber, error) {
	opts = withDefaults(opts)

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		opts.Logger.Warn("amqp dial failed", "attempt", attempt, "max_attempts", opts.ConnectAttempts, "error", err)
		if attempt == opts.ConnectAttempts {
			return nil, fmt.Errorf("connect amqp after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.ConnectBackoff):
		}
	}

	s := NewSubscriber(func() (Channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}, opts)
	s.conn = conn
	return s, nil
}

// NewSubscriber builds a subscriber over an arbitrary channel factory.
func NewSubscriber(open func() (Channel, error), opts Options) *Subscriber {
	opts = withDefaults(opts)
	return &Subscriber{
		exchange: opts.Exchange,
		open:     open,
		logger:   opts.Logger,
	}
}

func withDefaults(opts Options) Options {
	if opts.Exchange == "" {
		opts.Exchange = DefaultExchange
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = DefaultConnectAttempts
	}
	if opts.ConnectBackoff <= 0 {
		opts.ConnectBackoff = DefaultConnectBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

// Subscribe binds a private queue to jobID's routing key. The returned channel
// closes on a terminal status, when the broker closes the consumer, or when ctx ends.
func (s *Subscriber) Subscribe(ctx context.Context, jobID string) (<-chan gateway.Update, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	ch, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	deliveries, err := s.bind(ch, jobID)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	logger := s.logger.With("job_id", jobID, "exchange", s.exchange)
	logger.Info("status subscription started")

	updates := make(chan gateway.Update, 4)
	go func() {
		defer close(updates)
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					logger.Info("status subscription closed by broker")
					return
				}
				taskID, snapshot, err := gateway.DecodeStatus("queue", delivery.Body)
				if err != nil {
					logger.Debug("status message dropped", "error", err)
					continue
				}
				if taskID != "" && taskID != jobID {
					continue
				}
				select {
				case updates <- gateway.Update{Snapshot: snapshot}:
				case <-ctx.Done():
					return
				}
				if snapshot.Status.IsTerminal() {
					return
				}
			}
		}
	}()

	return updates, nil
}

func (s *Subscriber) bind(ch Channel, jobID string) (<-chan amqp.Delivery, error) {
	if err := ch.ExchangeDeclare(s.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", s.exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare status queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKey(jobID), s.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind status queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume status queue: %w", err)
	}
	return deliveries, nil
}

// Close shuts the broker connection. Active subscriptions end.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
