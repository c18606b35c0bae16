package commission

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
)

// Publisher is a JobSink backed by a Pub/Sub topic, for deployments that run
// charge workers as a separate process.
type Publisher struct {
	topic *pubsub.Publisher
	logg  *logger.Logger
}

// NewPublisher builds a Pub/Sub-backed job sink.
func NewPublisher(topic *pubsub.Publisher, logg *logger.Logger) (*Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("charge topic publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Publisher{topic: topic, logg: logg}, nil
}

// Submit publishes the job and waits for the broker to accept it.
func (p *Publisher) Submit(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding charge job: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"op":            job.Op,
			"process_token": job.ProcessToken,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing charge job: %w", err)
	}
	return nil
}

// Consumer drains the charge subscription and runs each job.
type Consumer struct {
	runner       *Runner
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer builds a charge job consumer.
func NewConsumer(runner *Runner, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if runner == nil {
		return nil, fmt.Errorf("job runner required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("charge subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{runner: runner, subscription: subscription, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	op := msg.Attributes["op"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"op":         op,
	})

	if op != OpChargeCommission {
		c.logg.Info(logCtx, "skipping unknown operation")
		return processResult{ack: true}
	}

	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		c.logg.Error(logCtx, "failed to decode charge job", err)
		return processResult{ack: true}
	}

	// Run failures mean the outcome could not be recorded; redeliver so the
	// token eventually completes. The charge lock and the exactly-once
	// completion keep redelivery from double charging.
	if err := c.runner.Run(ctx, job); err != nil {
		c.logg.Error(logCtx, "charge job processing failed", err)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

var _ JobSink = (*Publisher)(nil)
