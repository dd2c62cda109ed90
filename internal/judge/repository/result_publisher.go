package repository

import (
	"context"
	"encoding/json"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

// ResultPublisher announces finished asynchronous tasks.
type ResultPublisher interface {
	PublishResult(ctx context.Context, msg model.JudgeResultMessage) error
}

// MQResultPublisher publishes results to a message queue topic.
type MQResultPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQResultPublisher creates a new MQ result publisher.
func NewMQResultPublisher(producer mq.Producer, topic string) *MQResultPublisher {
	return &MQResultPublisher{producer: producer, topic: topic}
}

// PublishResult publishes one result keyed by task id.
func (p *MQResultPublisher) PublishResult(ctx context.Context, msg model.JudgeResultMessage) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("result publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("result topic is required")
	}
	if msg.ID == "" {
		return appErr.ValidationError("id", "required")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return appErr.Wrapf(err, appErr.QueueMessageInvalid, "encode result failed")
	}
	message := mq.NewMessage(payload)
	message.ID = msg.ID
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.QueuePublishFailed, "publish result failed")
	}
	return nil
}
