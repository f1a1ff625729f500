// Package sqsbatch adapts the pipeline to Lambda SQS event source mappings with
// partial batch responses.
package sqsbatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/sarathsp06/hookline/internal/dispatch"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/pipeline"
)

// Handler processes batches of retry messages delivered by SQS
type Handler struct {
	processor dispatch.BatchProcessor
	logger    *slog.Logger
}

// NewHandler creates a handler backed by processor
func NewHandler(processor dispatch.BatchProcessor) *Handler {
	return &Handler{
		processor: processor,
		logger:    logger.NewLogger("sqs-batch"),
	}
}

// Handle runs every message through the pipeline and reports the unresolved
// ones as batch item failures so SQS redelivers only those
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	triggers := make([]pipeline.Trigger, 0, len(event.Records))
	for _, record := range event.Records {
		var msg dispatch.RetryMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil || msg.Key.IsZero() {
			// Permanent parse failure, acknowledge so it is not redelivered
			h.logger.Error("Dropping malformed retry message",
				"message_id", record.MessageId,
				"error", err,
			)
			continue
		}
		triggers = append(triggers, msg.Trigger(record.MessageId))
	}
	if len(triggers) == 0 {
		return response, nil
	}

	result := h.processor.ProcessBatch(ctx, triggers)
	for _, id := range result.RetryItemIDs {
		response.BatchItemFailures = append(response.BatchItemFailures,
			events.SQSBatchItemFailure{ItemIdentifier: id},
		)
	}

	h.logger.Info("Processed SQS batch",
		"records", len(event.Records),
		"failures", len(response.BatchItemFailures),
	)
	return response, nil
}
