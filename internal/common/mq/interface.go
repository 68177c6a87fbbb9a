// Package mq carries asynchronous run requests between the HTTP front end and
// the judge workers.
package mq

import (
	"context"
	"time"
)

const (
	defaultConcurrency = 1
	defaultMaxRetries  = 3
	defaultRetryDelay  = time.Second
)

// MessageQueue publishes messages and dispatches them to subscribed handlers.
// Subscriptions made before Start begin consuming on Start; later ones begin
// immediately.
type MessageQueue interface {
	Publish(ctx context.Context, topic string, message *Message) error
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error
	Start() error
	Stop() error
	Ping(ctx context.Context) error
	Close() error
}

// Message is one queued unit of work. Headers travel with the message;
// the remaining metadata is carried in reserved transport headers.
type Message struct {
	ID        string
	Body      []byte
	Headers   map[string]string
	Timestamp time.Time

	// RetryCount counts failed deliveries so far; MaxRetries of zero means the
	// subscriber's limit applies.
	RetryCount int
	MaxRetries int

	// Expiration is measured from Timestamp; zero never expires.
	Expiration time.Duration
}

// HandlerFunc handles one message. Returning an error schedules a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// FetchLimiter is acquired before every fetch and released once the fetched
// message has been handled.
type FetchLimiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// SubscribeOptions tunes one subscription. Zero fields take defaults.
type SubscribeOptions struct {
	ConsumerGroup   string
	Concurrency     int
	MaxRetries      int
	RetryDelay      time.Duration
	DeadLetterTopic string
	MessageTTL      time.Duration
	Limiter         FetchLimiter
}

func (o SubscribeOptions) withDefaults() SubscribeOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	return o
}

// NewMessage stamps body with id and the current time.
func NewMessage(id string, body []byte) *Message {
	return &Message{ID: id, Body: body, Headers: map[string]string{}, Timestamp: time.Now(), MaxRetries: defaultMaxRetries}
}

func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = map[string]string{}
	}
	m.Headers[key] = value
}

func (m *Message) GetHeader(key string) (string, bool) {
	v, ok := m.Headers[key]
	return v, ok
}

// Expired reports whether m is past its expiration at now.
func (m *Message) Expired(now time.Time) bool {
	if m.Expiration <= 0 || m.Timestamp.IsZero() {
		return false
	}
	return now.Sub(m.Timestamp) > m.Expiration
}
