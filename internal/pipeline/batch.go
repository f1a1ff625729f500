package pipeline

import "github.com/sarathsp06/hookline/internal/webhooks"

// BatchResult lists the batch items the transport should redeliver
type BatchResult struct {
	RetryItemIDs []string `json:"retryItemIds"`
}

// Empty reports whether every item in the batch was resolved
func (r BatchResult) Empty() bool {
	return len(r.RetryItemIDs) == 0
}

// BuildBatchResult selects the items that are stuck: failed and not handed to
// the retry channel, or carrying an unexpected fault. Completed, duplicate,
// escalated and redispatched items count as resolved, and so do items
// rejected with a validation error, which no redelivery can fix.
func BuildBatchResult(items []PipelineItem) BatchResult {
	result := BatchResult{RetryItemIDs: []string{}}
	for _, item := range items {
		if retryable(item) {
			result.RetryItemIDs = append(result.RetryItemIDs, item.BatchItemID)
		}
	}
	return result
}

func retryable(item PipelineItem) bool {
	if item.Faulted() {
		return true
	}
	if webhooks.IsValidation(item.Err) {
		return false
	}
	return item.Stage == webhooks.StageFailed && !item.Redispatched
}
