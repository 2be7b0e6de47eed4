package conversation

import (
	"context"
	"fmt"

	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// Publisher hands inbound messages to the job queue so the webhook
// can acknowledge Twilio before any model work happens.
type Publisher struct {
	queue  jobQueue
	logger *logging.Logger
}

func NewPublisher(queue jobQueue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger.Component("publisher")}
}

func (p *Publisher) EnqueueMessage(ctx context.Context, msg InboundMessage) error {
	if ctx == nil {
		ctx = context.Background()
	}

	env, body, err := sealJob(msg)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: enqueue job: %w", err)
	}

	p.logger.Debug("job enqueued",
		"job_id", env.JobID,
		"channel", msg.ChannelType,
		"channel_message_id", msg.ChannelMessageID)
	return nil
}
