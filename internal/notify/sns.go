package notify

import (
	"context"
	"fmt"

	"FrameForge/internal/job"
	types "FrameForge/pkg"
	"FrameForge/pkg/awsconf"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSNotifier struct {
	client snsAPI
	logger *zap.Logger
}

func NewSNSNotifier(ctx context.Context, cfg types.AWSConfig, logger *zap.Logger) (*SNSNotifier, error) {
	awsConfig, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := sns.NewFromConfig(awsConfig, func(o *sns.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg)
	})
	return &SNSNotifier{client: client, logger: logger.Named("notify")}, nil
}

func (n *SNSNotifier) Send(ctx context.Context, p Params) error {
	if err := checkParams(p); err != nil {
		return err
	}
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		Subject:  aws.String(p.Subject),
		Message:  aws.String(p.Message),
		TopicArn: aws.String(p.TopicARN),
	})
	if err != nil {
		return job.NewError(job.ErrNotification, "notify", fmt.Errorf("sns publish failed: %w", err))
	}
	n.logger.Debug("Notification published",
		zap.String("topic", p.TopicARN),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
