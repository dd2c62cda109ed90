package mq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	headerID         = "x-message-id"
	headerTimestamp  = "x-message-ts"
	headerRetryCount = "x-message-retry"
	headerMaxRetries = "x-message-max-retries"
	headerExpiration = "x-message-expiration-ms"
)

// KafkaConfig defines the broker connection.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientId"`

	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	// Compression is one of gzip, snappy, lz4, zstd or empty for none.
	Compression string `yaml:"compression"`

	MinBytes int           `yaml:"minBytes"`
	MaxBytes int           `yaml:"maxBytes"`
	MaxWait  time.Duration `yaml:"maxWait"`

	DialTimeout time.Duration `yaml:"dialTimeout"`
}

func (c *KafkaConfig) setDefaults() {
	if c.ClientID == "" {
		c.ClientID = "codejudge"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.MinBytes == 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = 10 << 20
	}
	if c.MaxWait == 0 {
		c.MaxWait = time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// KafkaQueue implements MessageQueue on segmentio/kafka-go.
type KafkaQueue struct {
	config KafkaConfig
	writer *kafka.Writer
	dialer *kafka.Dialer

	mu            sync.Mutex
	subscriptions []*kafkaSubscription
	started       bool
	closed        bool
}

// messageCommitter is the part of kafka.Reader used after handling.
type messageCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaSubscription struct {
	topic   string
	handler HandlerFunc
	opts    SubscribeOptions
	baseCtx context.Context
	publish func(ctx context.Context, topic string, message *Message) error

	reader  *kafka.Reader
	limiter *TokenLimiter
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewKafkaQueue creates a Kafka-backed message queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, appErr.New(appErr.QueueError).WithMessage("brokers are required")
	}
	cfg.setDefaults()

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   cfg.DialTimeout,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Compression:  parseCompression(cfg.Compression),
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}

	return &KafkaQueue{
		config: cfg,
		writer: writer,
		dialer: dialer,
	}, nil
}

// Publish writes one message. The message ID is used as the partition key.
func (k *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return appErr.New(appErr.QueuePublishFailed).WithMessage("message is nil")
	}
	if topic == "" {
		return appErr.New(appErr.QueuePublishFailed).WithMessage("topic is required")
	}
	if err := k.writer.WriteMessages(ctx, toKafkaMessage(topic, message)); err != nil {
		return appErr.Wrapf(err, appErr.QueuePublishFailed, "publish to %s failed", topic)
	}
	return nil
}

// Subscribe registers a handler for topic.
func (k *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" {
		return appErr.New(appErr.QueueError).WithMessage("topic is required")
	}
	if handler == nil {
		return appErr.New(appErr.QueueError).WithMessage("handler is required")
	}
	var options SubscribeOptions
	if opts != nil {
		options = *opts
	}
	options.SetDefaults()
	if options.ConsumerGroup == "" {
		options.ConsumerGroup = fmt.Sprintf("codejudge-%s", topic)
	}

	sub := &kafkaSubscription{
		topic:   topic,
		handler: handler,
		opts:    options,
		baseCtx: ctx,
		publish: k.Publish,
		limiter: NewTokenLimiter(options.Concurrency),
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return appErr.New(appErr.QueueError).WithMessage("message queue is closed")
	}
	k.subscriptions = append(k.subscriptions, sub)
	if k.started {
		k.startSubscription(sub)
	}
	return nil
}

// Start begins consuming every registered subscription.
func (k *KafkaQueue) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return appErr.New(appErr.QueueError).WithMessage("message queue is closed")
	}
	if k.started {
		return nil
	}
	for _, sub := range k.subscriptions {
		k.startSubscription(sub)
	}
	k.started = true
	return nil
}

// Stop cancels consumers and waits for in-flight handlers.
func (k *KafkaQueue) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, sub := range k.subscriptions {
		if sub.cancel != nil {
			sub.cancel()
		}
	}
	for _, sub := range k.subscriptions {
		sub.wg.Wait()
		if sub.reader != nil {
			_ = sub.reader.Close()
			sub.reader = nil
		}
	}
	k.started = false
	return nil
}

// Ping dials the first broker.
func (k *KafkaQueue) Ping(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "dial kafka failed")
	}
	return conn.Close()
}

// Close stops consumers and closes the producer.
func (k *KafkaQueue) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	_ = k.Stop()
	return k.writer.Close()
}

func (k *KafkaQueue) startSubscription(sub *kafkaSubscription) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.config.Brokers,
		Topic:       sub.topic,
		GroupID:     sub.opts.ConsumerGroup,
		Dialer:      k.dialer,
		MinBytes:    k.config.MinBytes,
		MaxBytes:    k.config.MaxBytes,
		MaxWait:     k.config.MaxWait,
		StartOffset: kafka.LastOffset,
	})
	sub.reader = reader
	if sub.baseCtx == nil {
		sub.baseCtx = context.Background()
	}
	sub.ctx, sub.cancel = context.WithCancel(sub.baseCtx)

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		for {
			if err := sub.limiter.Acquire(sub.ctx); err != nil {
				return
			}
			msg, err := reader.FetchMessage(sub.ctx)
			if err != nil {
				sub.limiter.Release()
				if errors.Is(err, context.Canceled) || sub.ctx.Err() != nil {
					return
				}
				logger.Warn(sub.ctx, "fetch message failed", zap.String("topic", sub.topic), zap.Error(err))
				sleepCtx(sub.ctx, 100*time.Millisecond)
				continue
			}
			sub.wg.Add(1)
			go func(m kafka.Message) {
				defer sub.wg.Done()
				defer sub.limiter.Release()
				sub.handle(reader, m)
			}(msg)
		}
	}()
}

// handle runs the handler with retries and commits the offset once the
// message is done, dead-lettered or expired.
func (sub *kafkaSubscription) handle(committer messageCommitter, msg kafka.Message) {
	m := fromKafkaMessage(msg)
	if m.MaxRetries == 0 {
		m.MaxRetries = sub.opts.MaxRetries
	}
	if m.Expiration == 0 && sub.opts.MessageTTL > 0 {
		m.Expiration = sub.opts.MessageTTL
	}
	commit := func() {
		if err := committer.CommitMessages(sub.ctx, msg); err != nil {
			logger.Warn(sub.ctx, "commit message failed", zap.String("topic", sub.topic), zap.Error(err))
		}
	}
	if m.Expired(time.Now()) {
		logger.Warn(sub.ctx, "drop expired message", zap.String("topic", sub.topic), zap.String("id", m.ID))
		commit()
		return
	}

	for {
		err := sub.handler(sub.ctx, m)
		if err == nil {
			commit()
			return
		}
		m.RetryCount++
		if m.RetryCount > m.MaxRetries || sub.ctx.Err() != nil {
			logger.Error(sub.ctx, "message handling failed",
				zap.String("topic", sub.topic),
				zap.String("id", m.ID),
				zap.Int("attempts", m.RetryCount),
				zap.Error(err),
			)
			if sub.opts.DeadLetterTopic != "" && sub.publish != nil {
				if perr := sub.publish(sub.ctx, sub.opts.DeadLetterTopic, m); perr != nil {
					logger.Error(sub.ctx, "publish dead letter failed", zap.String("id", m.ID), zap.Error(perr))
				}
			}
			commit()
			return
		}
		sleepCtx(sub.ctx, sub.opts.RetryDelay)
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func toKafkaMessage(topic string, message *Message) kafka.Message {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	headers := make([]kafka.Header, 0, len(message.Headers)+5)
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if message.ID != "" {
		headers = append(headers, kafka.Header{Key: headerID, Value: []byte(message.ID)})
	}
	headers = append(headers, kafka.Header{Key: headerTimestamp, Value: []byte(message.Timestamp.Format(time.RFC3339Nano))})
	if message.RetryCount != 0 {
		headers = append(headers, kafka.Header{Key: headerRetryCount, Value: []byte(strconv.Itoa(message.RetryCount))})
	}
	if message.MaxRetries != 0 {
		headers = append(headers, kafka.Header{Key: headerMaxRetries, Value: []byte(strconv.Itoa(message.MaxRetries))})
	}
	if message.Expiration > 0 {
		headers = append(headers, kafka.Header{Key: headerExpiration, Value: []byte(strconv.FormatInt(message.Expiration.Milliseconds(), 10))})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
		Time:    message.Timestamp,
	}
}

func fromKafkaMessage(msg kafka.Message) *Message {
	m := &Message{
		Body:      msg.Value,
		Headers:   make(map[string]string),
		Timestamp: msg.Time,
	}
	for _, h := range msg.Headers {
		switch h.Key {
		case headerID:
			m.ID = string(h.Value)
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, string(h.Value)); err == nil {
				m.Timestamp = ts
			}
		case headerRetryCount:
			if v, err := strconv.Atoi(string(h.Value)); err == nil && v >= 0 {
				m.RetryCount = v
			}
		case headerMaxRetries:
			if v, err := strconv.Atoi(string(h.Value)); err == nil && v >= 0 {
				m.MaxRetries = v
			}
		case headerExpiration:
			if v, err := strconv.ParseInt(string(h.Value), 10, 64); err == nil && v > 0 {
				m.Expiration = time.Duration(v) * time.Millisecond
			}
		default:
			m.Headers[h.Key] = string(h.Value)
		}
	}
	if m.ID == "" {
		m.ID = string(msg.Key)
	}
	return m
}
