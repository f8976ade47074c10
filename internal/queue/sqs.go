package queue

import (
	"context"
	"fmt"
	"time"

	types "FrameForge/pkg"
	"FrameForge/pkg/awsconf"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// sqsAPI is the subset of *sqs.Client in use.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue uses queue URLs as queue references.
type SQSQueue struct {
	client            sqsAPI
	delaySeconds      int32
	visibilityTimeout int32
}

func NewSQSQueue(ctx context.Context, cfg types.QueueConfig) (*SQSQueue, error) {
	awsConfig, err := awsconf.Load(ctx, cfg.SQS)
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsConfig, func(o *sqs.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg.SQS)
	})
	return newSQSQueue(client, cfg), nil
}

func newSQSQueue(client sqsAPI, cfg types.QueueConfig) *SQSQueue {
	return &SQSQueue{
		client:            client,
		delaySeconds:      cfg.PublishDelaySec,
		visibilityTimeout: cfg.VisibilityTimeoutSec,
	}
}

func (q *SQSQueue) Publish(ctx context.Context, queueRef string, body []byte) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueRef),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: q.delaySeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to send sqs message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Poll(ctx context.Context, queueRef string, max int32, wait time.Duration) ([]Message, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueRef),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     int32(wait / time.Second),
	}
	if q.visibilityTimeout > 0 {
		in.VisibilityTimeout = q.visibilityTimeout
	}

	out, err := q.client.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to receive sqs messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *SQSQueue) Ack(ctx context.Context, queueRef string, msg Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueRef),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete sqs message %s: %w", msg.ID, err)
	}
	return nil
}

// Nack leaves the message alone; SQS redelivers it once its visibility
// timeout expires.
func (q *SQSQueue) Nack(context.Context, string, Message) error {
	return nil
}
