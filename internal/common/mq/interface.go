package mq

import (
	"context"
	"time"
)

// MessageQueue is the queue surface used by the judge service.
type MessageQueue interface {
	Producer
	Consumer

	// Ping verifies the broker connection is alive.
	Ping(ctx context.Context) error

	// Close stops consumers and releases the producer.
	Close() error
}

// Producer publishes messages.
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer delivers messages of subscribed topics to handlers.
type Consumer interface {
	// Subscribe registers handler for topic. Consumption begins on Start,
	// or immediately when the consumer is already started.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error

	Start() error

	// Stop cancels all subscriptions and waits for in-flight handlers.
	Stop() error
}

// Message is one queue record.
type Message struct {
	ID        string            `json:"id"`
	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Expiration drops the message when it is older than this on delivery.
	Expiration time.Duration `json:"expiration"`
}

// HandlerFunc processes one message. A non-nil error triggers a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// SubscribeOptions tunes one subscription.
type SubscribeOptions struct {
	// ConsumerGroup defaults to "codejudge-<topic>".
	ConsumerGroup string

	// Concurrency is the number of handler goroutines. Default 1.
	Concurrency int

	// MaxRetries is the retry budget per message. Default 3.
	MaxRetries int

	// RetryDelay is the pause between attempts. Default 1s.
	RetryDelay time.Duration

	// DeadLetterTopic receives messages that exhausted their retries.
	DeadLetterTopic string

	MessageTTL time.Duration
}

// SetDefaults fills unset options.
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a message with the given body.
func NewMessage(body []byte) *Message {
	return &Message{
		Body:       body,
		Headers:    make(map[string]string),
		Timestamp:  time.Now(),
		MaxRetries: 3,
	}
}

// SetHeader sets a header value.
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value.
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}

// Expired reports whether the message outlived its expiration at now.
func (m *Message) Expired(now time.Time) bool {
	if m.Expiration <= 0 || m.Timestamp.IsZero() {
		return false
	}
	return now.Sub(m.Timestamp) > m.Expiration
}
