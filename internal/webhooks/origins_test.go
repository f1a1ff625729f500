package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigCommerceAdapter(t *testing.T) {
	payload := []byte(`{"scope":"store/order/created","store_id":"1025646","data":{"type":"order","id":250},"hash":"abc","created_at":1700000000,"producer":"stores/xyz"}`)
	adapters := DefaultAdapters()

	key, err := adapters.DeriveKey(OriginBigCommerce, payload)
	require.NoError(t, err)
	assert.Equal(t, WebhookKey{PartitionKey: "WH#ABC", SortKey: SortKeyWebhook}, key)

	record, err := adapters.Normalize(OriginBigCommerce, payload)
	require.NoError(t, err)
	assert.Equal(t, key, record.Key)
	assert.Equal(t, OriginBigCommerce, record.Origin)
	assert.Equal(t, "store/order/created", record.EventType)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), record.CreatedAt)
	assert.JSONEq(t, string(payload), string(record.Payload))
}

func TestStripeAdapter(t *testing.T) {
	payload := []byte(`{"id":"evt_1NG8Du2eZvKYlo2CUI79vXWy","object":"event","type":"invoice.paid","created":1686089970}`)

	record, err := DefaultAdapters().Normalize(OriginStripe, payload)
	require.NoError(t, err)
	assert.Equal(t, "WH#EVT_1NG8DU2EZVKYLO2CUI79VXWY", record.Key.PartitionKey)
	assert.Equal(t, "invoice.paid", record.EventType)
	assert.Equal(t, int64(1686089970), record.CreatedAt.Unix())
}

func TestStripeAdapter_FallsBackToCreatedAt(t *testing.T) {
	record, err := StripeAdapter{}.Normalize([]byte(`{"id":"evt_1","type":"charge.succeeded","created_at":1700000000}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), record.CreatedAt.Unix())
}

func TestDeriveKey_IsDeterministic(t *testing.T) {
	payload := []byte(`{"hash":"d41d8cd9","scope":"store/product/updated","created_at":1}`)
	first, err := BigCommerceAdapter{}.DeriveKey(payload)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := BigCommerceAdapter{}.DeriveKey(payload)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAdapters_UnsupportedOrigin(t *testing.T) {
	_, err := DefaultAdapters().DeriveKey("shopify", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestAdapters_MalformedPayload(t *testing.T) {
	tests := map[string]struct {
		origin  Origin
		payload string
	}{
		"bigcommerce not json": {OriginBigCommerce, `not-json`},
		"bigcommerce no hash":  {OriginBigCommerce, `{"scope":"store/order/created"}`},
		"stripe missing id":    {OriginStripe, `{"type":"invoice.paid"}`},
		"stripe blank id":      {OriginStripe, `{"id":"  "}`},
		"stripe wrong id type": {OriginStripe, `{"id":42}`},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DefaultAdapters().DeriveKey(tt.origin, []byte(tt.payload))
			require.Error(t, err)
			assert.Equal(t, TextCodeValidation, TextCode(err))
		})
	}
}

func TestOriginFromPath(t *testing.T) {
	tests := []struct {
		path   string
		origin Origin
		ok     bool
	}{
		{"/webhooks/bigcommerce", OriginBigCommerce, true},
		{"/webhooks/stripe", OriginStripe, true},
		{"/webhooks/Stripe/", OriginStripe, true},
		{"/webhooks/shopify", "", false},
		{"/hooks/stripe", "", false},
		{"/webhooks/stripe/extra", "", false},
		{"/", "", false},
	}

	for _, tt := range tests {
		origin, ok := OriginFromPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.origin, origin, tt.path)
	}
}
