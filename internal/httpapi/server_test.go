package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarathsp06/hookline/internal/capture"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

type failingStore struct {
	webhooks.Store
}

func (failingStore) GetStatus(context.Context, webhooks.WebhookKey) (webhooks.StatusRecord, error) {
	return webhooks.StatusRecord{}, errors.New("connection refused")
}

type rejectAll struct{}

func (rejectAll) Verify(*http.Request, webhooks.Origin, []byte) error {
	return errors.New("bad signature")
}

func post(t *testing.T, handler http.Handler, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))

	var response Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return rec, response
}

const payload = `{"hash":"abc","scope":"order.created","created_at":1700000000}`

func TestCaptureEndpoint(t *testing.T) {
	service := capture.NewService(webhooks.DefaultAdapters(), webhooks.NewMemoryStore())
	handler := NewServer(service, nil).Handler()

	rec, response := post(t, handler, "/webhooks/bigcommerce", payload)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, response.Accepted)
	assert.False(t, response.Duplicate)
	assert.Equal(t, "WH#ABC", response.Key)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, response = post(t, handler, "/webhooks/bigcommerce", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, response.Accepted)
	assert.True(t, response.Duplicate)
}

func TestCaptureEndpointRejections(t *testing.T) {
	service := capture.NewService(webhooks.DefaultAdapters(), webhooks.NewMemoryStore())
	handler := NewServer(service, nil).Handler()

	rec, response := post(t, handler, "/webhooks/shopify", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, response.Accepted)
	assert.NotEmpty(t, response.Reason)

	rec, _ = post(t, handler, "/webhooks/stripe", `{"type":"invoice.paid"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptureEndpointStorageFailure(t *testing.T) {
	service := capture.NewService(webhooks.DefaultAdapters(), failingStore{})
	handler := NewServer(service, nil).Handler()

	rec, response := post(t, handler, "/webhooks/bigcommerce", payload)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, response.Accepted)
}

func TestCaptureEndpointVerifier(t *testing.T) {
	store := webhooks.NewMemoryStore()
	service := capture.NewService(webhooks.DefaultAdapters(), store)
	handler := NewServer(service, rejectAll{}).Handler()

	rec, _ := post(t, handler, "/webhooks/bigcommerce", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, store.Len())
}

func TestCaptureEndpointMethod(t *testing.T) {
	handler := NewServer(capture.NewService(webhooks.DefaultAdapters(), webhooks.NewMemoryStore()), nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
