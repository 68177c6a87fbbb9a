package mq

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"offlinejudge/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reserved headers carry Message metadata across the broker.
const (
	headerID         = "x-judge-msg-id"
	headerTimestamp  = "x-judge-msg-ts"
	headerRetryCount = "x-judge-msg-attempt"
	headerMaxRetries = "x-judge-msg-max-attempts"
	headerExpiration = "x-judge-msg-ttl-ms"

	fetchBackoff = 100 * time.Millisecond
)

var (
	errQueueClosed   = errors.New("message queue is closed")
	errTopicRequired = errors.New("topic is required")
)

// KafkaConfig configures the run queue connection.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientId"`

	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`

	MinBytes int           `yaml:"minBytes"`
	MaxBytes int           `yaml:"maxBytes"`
	MaxWait  time.Duration `yaml:"maxWait"`

	DialTimeout time.Duration `yaml:"dialTimeout"`
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.ClientID == "" {
		c.ClientID = "offlinejudge"
	}
	// Runs are published one at a time; batching only adds latency.
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return c
}

// KafkaQueue is the MessageQueue used for asynchronous runs.
type KafkaQueue struct {
	cfg    KafkaConfig
	dialer *kafka.Dialer
	writer *kafka.Writer

	mu      sync.Mutex
	subs    []*consumer
	running bool
	closed  bool
}

// consumer is one topic subscription with its reader and handler goroutines.
type consumer struct {
	topic   string
	handler HandlerFunc
	opts    SubscribeOptions
	parent  context.Context

	reader *kafka.Reader
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaQueue builds a producer for cfg.Brokers. Consumers are created on Start.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	cfg = cfg.withDefaults()
	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: cfg.DialTimeout, DualStack: true}
	transport := &kafka.Transport{
		ClientID: cfg.ClientID,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
	return &KafkaQueue{
		cfg:    cfg,
		dialer: dialer,
		writer: &kafka.Writer{
			Addr: kafka.TCP(cfg.Brokers...),
			// Keyed by run id so redeliveries of one run stay ordered.
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchSize:              cfg.BatchSize,
			BatchTimeout:           cfg.BatchTimeout,
			AllowAutoTopicCreation: true,
			Transport:              transport,
		},
	}, nil
}

// Publish writes message to topic.
func (k *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	switch {
	case topic == "":
		return errTopicRequired
	case message == nil:
		return errors.New("message is nil")
	}
	return k.writer.WriteMessages(ctx, toKafkaMessage(topic, message))
}

// Subscribe registers handler for topic. When the queue is already running the
// consumer starts immediately.
func (k *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" {
		return errTopicRequired
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	var options SubscribeOptions
	if opts != nil {
		options = *opts
	}
	options = options.withDefaults()
	if options.ConsumerGroup == "" {
		options.ConsumerGroup = k.cfg.ClientID + "-" + topic
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := &consumer{topic: topic, handler: handler, opts: options, parent: ctx}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errQueueClosed
	}
	k.subs = append(k.subs, c)
	if k.running {
		k.launch(c)
	}
	return nil
}

// Start launches every registered consumer.
func (k *KafkaQueue) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errQueueClosed
	}
	if !k.running {
		for _, c := range k.subs {
			k.launch(c)
		}
		k.running = true
	}
	return nil
}

// Stop cancels consumers and waits for in-flight handlers to return.
func (k *KafkaQueue) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, c := range k.subs {
		if c.cancel != nil {
			c.cancel()
		}
	}
	for _, c := range k.subs {
		c.wg.Wait()
		if c.reader == nil {
			continue
		}
		if err := c.reader.Close(); err != nil {
			logger.Warn(context.Background(), "close kafka reader failed", zap.String("topic", c.topic), zap.Error(err))
		}
		c.reader = nil
	}
	k.running = false
	return nil
}

// Ping dials the first broker.
func (k *KafkaQueue) Ping(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.cfg.Brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close stops consumers and flushes the producer. Later calls are no-ops.
func (k *KafkaQueue) Close() error {
	k.mu.Lock()
	wasClosed := k.closed
	k.closed = true
	k.mu.Unlock()
	if wasClosed {
		return nil
	}
	_ = k.Stop()
	return k.writer.Close()
}

func (k *KafkaQueue) launch(c *consumer) {
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.cfg.Brokers,
		Topic:       c.topic,
		GroupID:     c.opts.ConsumerGroup,
		Dialer:      k.dialer,
		MinBytes:    k.cfg.MinBytes,
		MaxBytes:    k.cfg.MaxBytes,
		MaxWait:     k.cfg.MaxWait,
		StartOffset: kafka.LastOffset,
	})
	c.ctx, c.cancel = context.WithCancel(c.parent)

	inbox := make(chan kafka.Message, c.opts.Concurrency)
	c.wg.Add(1 + c.opts.Concurrency)
	go func() {
		defer c.wg.Done()
		defer close(inbox)
		k.fetch(c, inbox)
	}()
	for i := 0; i < c.opts.Concurrency; i++ {
		go func() {
			defer c.wg.Done()
			for msg := range inbox {
				k.dispatch(c, msg)
			}
		}()
	}
	logger.Info(c.ctx, "kafka consumer started",
		zap.String("topic", c.topic),
		zap.String("group", c.opts.ConsumerGroup),
		zap.Int("concurrency", c.opts.Concurrency),
	)
}

// fetch pulls messages into inbox. With a limiter, a slot is held from fetch
// until dispatch finishes so the consumer never holds more runs than it can judge.
func (k *KafkaQueue) fetch(c *consumer, inbox chan<- kafka.Message) {
	release := func() {
		if c.opts.Limiter != nil {
			c.opts.Limiter.Release()
		}
	}
	for c.ctx.Err() == nil {
		if c.opts.Limiter != nil {
			if err := c.opts.Limiter.Acquire(c.ctx); err != nil {
				return
			}
		}
		msg, err := c.reader.FetchMessage(c.ctx)
		if err != nil {
			release()
			if c.ctx.Err() != nil {
				return
			}
			logger.Warn(c.ctx, "kafka fetch failed", zap.String("topic", c.topic), zap.Error(err))
			time.Sleep(fetchBackoff)
			continue
		}
		select {
		case inbox <- msg:
		case <-c.ctx.Done():
			release()
			return
		}
	}
}

// dispatch runs the handler with in-place retries; exhausted messages go to
// the dead letter topic when one is configured.
func (k *KafkaQueue) dispatch(c *consumer, raw kafka.Message) {
	if c.opts.Limiter != nil {
		defer c.opts.Limiter.Release()
	}
	msg := fromKafkaMessage(raw)
	if msg.MaxRetries == 0 {
		msg.MaxRetries = c.opts.MaxRetries
	}
	if msg.Expiration == 0 {
		msg.Expiration = c.opts.MessageTTL
	}
	if msg.Expired(time.Now()) {
		logger.Info(c.ctx, "drop expired message", zap.String("topic", c.topic), zap.String("message_id", msg.ID))
		k.commit(c, raw)
		return
	}

	for {
		err := c.handler(c.ctx, msg)
		if err == nil {
			k.commit(c, raw)
			return
		}
		if c.ctx.Err() != nil {
			return
		}
		msg.RetryCount++
		if msg.RetryCount > msg.MaxRetries {
			logger.Error(c.ctx, "message retries exhausted",
				zap.String("topic", c.topic),
				zap.String("message_id", msg.ID),
				zap.Int("attempts", msg.RetryCount),
				zap.Error(err),
			)
			if dlq := c.opts.DeadLetterTopic; dlq != "" {
				if pubErr := k.Publish(c.ctx, dlq, msg); pubErr != nil {
					logger.Error(c.ctx, "publish dead letter failed", zap.String("topic", dlq), zap.Error(pubErr))
				}
			}
			k.commit(c, raw)
			return
		}
		timer := time.NewTimer(c.opts.RetryDelay)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (k *KafkaQueue) commit(c *consumer, raw kafka.Message) {
	if err := c.reader.CommitMessages(c.ctx, raw); err != nil && c.ctx.Err() == nil {
		logger.Warn(c.ctx, "kafka commit failed",
			zap.String("topic", c.topic),
			zap.Int64("offset", raw.Offset),
			zap.Error(err),
		)
	}
}

func toKafkaMessage(topic string, m *Message) kafka.Message {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	reserved := map[string]string{headerTimestamp: m.Timestamp.Format(time.RFC3339Nano)}
	if m.ID != "" {
		reserved[headerID] = m.ID
	}
	if m.RetryCount > 0 {
		reserved[headerRetryCount] = strconv.Itoa(m.RetryCount)
	}
	if m.MaxRetries > 0 {
		reserved[headerMaxRetries] = strconv.Itoa(m.MaxRetries)
	}
	if m.Expiration > 0 {
		reserved[headerExpiration] = strconv.FormatInt(m.Expiration.Milliseconds(), 10)
	}

	headers := make([]kafka.Header, 0, len(m.Headers)+len(reserved))
	for _, set := range []map[string]string{m.Headers, reserved} {
		for key, val := range set {
			headers = append(headers, kafka.Header{Key: key, Value: []byte(val)})
		}
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(m.ID),
		Value:   m.Body,
		Headers: headers,
		Time:    m.Timestamp,
	}
}

func fromKafkaMessage(raw kafka.Message) *Message {
	m := &Message{
		ID:        string(raw.Key),
		Body:      raw.Value,
		Headers:   make(map[string]string, len(raw.Headers)),
		Timestamp: raw.Time,
	}
	for _, h := range raw.Headers {
		val := string(h.Value)
		switch h.Key {
		case headerID:
			m.ID = val
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
				m.Timestamp = ts
			}
		case headerRetryCount:
			m.RetryCount = nonNegative(val)
		case headerMaxRetries:
			m.MaxRetries = nonNegative(val)
		case headerExpiration:
			m.Expiration = time.Duration(nonNegative(val)) * time.Millisecond
		default:
			m.Headers[h.Key] = val
		}
	}
	return m
}

// nonNegative parses a header counter; malformed or negative values read as zero.
func nonNegative(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
