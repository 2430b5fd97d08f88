package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SendAPI is the SQS call SQSClient needs.
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient sends queue messages to AWS SQS.
type SQSClient struct {
	client   SendAPI
	queueURL string
}

// NewSQSClient constructs an SQS-backed queue client from the default AWS
// credential chain.
func NewSQSClient(ctx context.Context, queueURL, region string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("queue url is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSClientWith(sqs.NewFromConfig(cfg), queueURL), nil
}

// NewSQSClientWith wraps an existing SQS client.
func NewSQSClientWith(client SendAPI, queueURL string) *SQSClient {
	return &SQSClient{client: client, queueURL: queueURL}
}

// Send delivers a message to the configured SQS queue.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

var _ Client = (*SQSClient)(nil)
