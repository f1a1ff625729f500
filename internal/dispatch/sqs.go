package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/pipeline"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

// SQSAPI is the part of the SQS client used by the dispatcher
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDispatcher sends failed webhooks to the failed-webhooks queue
type SQSDispatcher struct {
	client   SQSAPI
	queueURL string
	logger   *slog.Logger
}

// NewSQSDispatcher creates a dispatcher sending to queueURL
func NewSQSDispatcher(client SQSAPI, queueURL string) *SQSDispatcher {
	return &SQSDispatcher{
		client:   client,
		queueURL: queueURL,
		logger:   logger.NewLogger("sqs-dispatcher"),
	}
}

func stringAttribute(value string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}

func (d *SQSDispatcher) Dispatch(ctx context.Context, item pipeline.PipelineItem) error {
	msg := NewRetryMessage(item)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal retry message: %w", err)
	}

	out, err := d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"PK":     stringAttribute(msg.Key.PartitionKey),
			"SK":     stringAttribute(msg.Key.SortKey),
			"status": stringAttribute(string(webhooks.StatusFailed)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send retry message: %w", err)
	}

	d.logger.Info("Sent webhook retry",
		"message_id", aws.ToString(out.MessageId),
		"pk", msg.Key.PartitionKey,
		"retries", msg.Retries,
	)
	return nil
}

var _ pipeline.RetryDispatcher = (*SQSDispatcher)(nil)
