package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"offlinejudge/internal/common/mq"
	"offlinejudge/internal/judge/model"
	appErr "offlinejudge/pkg/errors"
)

// RunPublisher enqueues runs for asynchronous judging.
type RunPublisher interface {
	PublishRun(ctx context.Context, msg model.RunMessage) error
}

// MQRunPublisher publishes run messages to a message queue.
type MQRunPublisher struct {
	queue mq.MessageQueue
	topic string
}

// NewMQRunPublisher creates a new MQ run publisher.
func NewMQRunPublisher(queue mq.MessageQueue, topic string) *MQRunPublisher {
	return &MQRunPublisher{queue: queue, topic: topic}
}

// Topic returns the topic runs are published to.
func (p *MQRunPublisher) Topic() string { return p.topic }

// PublishRun publishes msg keyed by its run id.
func (p *MQRunPublisher) PublishRun(ctx context.Context, msg model.RunMessage) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("run publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("run topic is required")
	}
	if msg.RunID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal run message failed: %w", err)
	}
	message := mq.NewMessage(msg.RunID, payload)
	if msg.TraceID != "" {
		message.SetHeader("trace_id", msg.TraceID)
	}
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "publish run failed")
	}
	return nil
}
