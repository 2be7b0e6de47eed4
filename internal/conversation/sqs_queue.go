package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSQueue is the production jobQueue. Long polling keeps the worker
// fleet cheap when traffic is idle; visibility timeout on the queue
// itself provides redelivery for jobs that are never deleted.
type SQSQueue struct {
	client *sqs.Client
	url    string
}

func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("conversation: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("conversation: SQS queue URL cannot be empty")
	}
	return &SQSQueue{client: client, url: queueURL}
}

func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("conversation: sqs send: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]jobDelivery, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(wait / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: sqs receive: %w", err)
	}

	deliveries := make([]jobDelivery, len(out.Messages))
	for i, m := range out.Messages {
		deliveries[i] = jobDelivery{
			MessageID: aws.ToString(m.MessageId),
			Body:      aws.ToString(m.Body),
			Receipt:   aws.ToString(m.ReceiptHandle),
		}
	}
	return deliveries, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receipt string) error {
	if receipt == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("conversation: sqs delete: %w", err)
	}
	return nil
}
