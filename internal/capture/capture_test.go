package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarathsp06/hookline/internal/webhooks"
)

const bigCommercePayload = `{"hash":"abc","scope":"order.created","created_at":1700000000}`

// racingStore reports every key as unseen, then defers to the wrapped store
type racingStore struct {
	webhooks.Store
}

func (racingStore) GetStatus(context.Context, webhooks.WebhookKey) (webhooks.StatusRecord, error) {
	return webhooks.StatusRecord{}, webhooks.ErrNotFound
}

type brokenStore struct {
	webhooks.Store
	getErr error
	putErr error
}

func (s brokenStore) GetStatus(context.Context, webhooks.WebhookKey) (webhooks.StatusRecord, error) {
	if s.getErr != nil {
		return webhooks.StatusRecord{}, s.getErr
	}
	return webhooks.StatusRecord{}, webhooks.ErrNotFound
}

func (s brokenStore) PutNew(context.Context, webhooks.WebhookRecord, webhooks.StatusRecord) error {
	return s.putErr
}

func TestCapture_IsIdempotent(t *testing.T) {
	store := webhooks.NewMemoryStore()
	service := NewService(webhooks.DefaultAdapters(), store)
	ctx := context.Background()

	first := service.Capture(ctx, webhooks.OriginBigCommerce, []byte(bigCommercePayload))
	require.Equal(t, Accepted, first.Result)
	assert.Equal(t, "WH#ABC", first.Key.PartitionKey)

	second := service.Capture(ctx, webhooks.OriginBigCommerce, []byte(bigCommercePayload))
	assert.Equal(t, Duplicate, second.Result)
	assert.Equal(t, first.Key, second.Key)
	assert.NoError(t, second.Err)
	assert.Equal(t, 1, store.Len())

	status, err := store.GetStatus(ctx, first.Key)
	require.NoError(t, err)
	assert.Equal(t, webhooks.StatusReceived, status.Status)
	assert.Equal(t, 0, status.Retries)
}

func TestCapture_ManyPayloadsStoredOnce(t *testing.T) {
	store := webhooks.NewMemoryStore()
	service := NewService(webhooks.DefaultAdapters(), store)
	ctx := context.Background()

	payloads := []string{
		`{"id":"evt_1","type":"invoice.paid","created":1}`,
		`{"id":"evt_2","type":"invoice.paid","created":2}`,
		`{"id":"evt_3","type":"charge.refunded","created":3}`,
	}
	for _, payload := range payloads {
		assert.Equal(t, Accepted, service.Capture(ctx, webhooks.OriginStripe, []byte(payload)).Result)
		assert.Equal(t, Duplicate, service.Capture(ctx, webhooks.OriginStripe, []byte(payload)).Result)
	}
	assert.Equal(t, len(payloads), store.Len())
}

func TestCapture_RaceBetweenProbeAndWriteIsDuplicate(t *testing.T) {
	store := webhooks.NewMemoryStore()
	ctx := context.Background()
	require.Equal(t, Accepted, NewService(webhooks.DefaultAdapters(), store).
		Capture(ctx, webhooks.OriginBigCommerce, []byte(bigCommercePayload)).Result)

	racing := NewService(webhooks.DefaultAdapters(), racingStore{Store: store})
	outcome := racing.Capture(ctx, webhooks.OriginBigCommerce, []byte(bigCommercePayload))
	assert.Equal(t, Duplicate, outcome.Result)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, 1, store.Len())
}

func TestCapture_UnknownOriginIsRejectedWithoutRetry(t *testing.T) {
	service := NewService(webhooks.DefaultAdapters(), webhooks.NewMemoryStore())

	outcome := service.Capture(context.Background(), "shopify", []byte(`{"id":"1"}`))
	assert.Equal(t, Rejected, outcome.Result)
	assert.True(t, webhooks.IsValidation(outcome.Err))
	assert.False(t, outcome.Retryable())
	assert.NotEmpty(t, outcome.Reason)
}

func TestCapture_MalformedPayloadIsRejected(t *testing.T) {
	service := NewService(webhooks.DefaultAdapters(), webhooks.NewMemoryStore())

	outcome := service.Capture(context.Background(), webhooks.OriginStripe, []byte(`{"type":"invoice.paid"}`))
	assert.Equal(t, Rejected, outcome.Result)
	assert.False(t, outcome.Retryable())
}

func TestCapture_StorageFailuresAreRetryable(t *testing.T) {
	tests := map[string]brokenStore{
		"probe fails": {getErr: errors.New("connection reset")},
		"write fails": {putErr: errors.New("deadlock detected")},
	}

	for name, store := range tests {
		t.Run(name, func(t *testing.T) {
			service := NewService(webhooks.DefaultAdapters(), store)
			outcome := service.Capture(context.Background(), webhooks.OriginBigCommerce, []byte(bigCommercePayload))
			assert.Equal(t, Rejected, outcome.Result)
			assert.True(t, outcome.Retryable())
			assert.Equal(t, webhooks.TextCodeStorage, webhooks.TextCode(outcome.Err))
		})
	}
}
