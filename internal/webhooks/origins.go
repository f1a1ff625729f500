package webhooks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OriginAdapter maps a raw provider payload to its identity key and stored record.
// Implementations must be pure: the same payload always yields the same key.
type OriginAdapter interface {
	Origin() Origin
	DeriveKey(payload []byte) (WebhookKey, error)
	Normalize(payload []byte) (WebhookRecord, error)
}

// Adapters is a registry of origin adapters
type Adapters map[Origin]OriginAdapter

// DefaultAdapters returns the adapters for every supported provider
func DefaultAdapters() Adapters {
	return NewAdapters(BigCommerceAdapter{}, StripeAdapter{})
}

// NewAdapters builds a registry from the given adapters
func NewAdapters(adapters ...OriginAdapter) Adapters {
	registry := make(Adapters, len(adapters))
	for _, adapter := range adapters {
		registry[adapter.Origin()] = adapter
	}
	return registry
}

// Lookup returns the adapter for origin, or a ValidationError if it is unsupported
func (a Adapters) Lookup(origin Origin) (OriginAdapter, error) {
	adapter, ok := a[Origin(strings.ToLower(strings.TrimSpace(string(origin))))]
	if !ok {
		return nil, ValidationError(
			fmt.Sprintf("webhooks: origin %q not supported", origin),
			map[string]any{"origin": string(origin)},
		)
	}
	return adapter, nil
}

// DeriveKey derives the composite key for a payload from origin
func (a Adapters) DeriveKey(origin Origin, payload []byte) (WebhookKey, error) {
	adapter, err := a.Lookup(origin)
	if err != nil {
		return WebhookKey{}, err
	}
	return adapter.DeriveKey(payload)
}

// Normalize maps a payload from origin to its stored record
func (a Adapters) Normalize(origin Origin, payload []byte) (WebhookRecord, error) {
	adapter, err := a.Lookup(origin)
	if err != nil {
		return WebhookRecord{}, err
	}
	return adapter.Normalize(payload)
}

// OriginFromPath resolves the origin from a capture path such as /webhooks/stripe
func OriginFromPath(path string) (Origin, bool) {
	trimmed := strings.Trim(path, "/")
	prefix, name, found := strings.Cut(trimmed, "/")
	if !found || prefix != "webhooks" || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	origin := Origin(strings.ToLower(name))
	switch origin {
	case OriginBigCommerce, OriginStripe:
		return origin, true
	}
	return "", false
}

// KeyFor builds the payload record key for a provider event id
func KeyFor(id string) WebhookKey {
	return WebhookKey{
		PartitionKey: "WH#" + strings.ToUpper(id),
		SortKey:      SortKeyWebhook,
	}
}

// BigCommerceAdapter handles BigCommerce webhooks, identified by their hash
type BigCommerceAdapter struct{}

type bigCommercePayload struct {
	Hash      string `json:"hash"`
	Scope     string `json:"scope"`
	CreatedAt int64  `json:"created_at"`
}

func (BigCommerceAdapter) Origin() Origin { return OriginBigCommerce }

func (a BigCommerceAdapter) DeriveKey(payload []byte) (WebhookKey, error) {
	body, err := a.decode(payload)
	if err != nil {
		return WebhookKey{}, err
	}
	return KeyFor(body.Hash), nil
}

func (a BigCommerceAdapter) Normalize(payload []byte) (WebhookRecord, error) {
	body, err := a.decode(payload)
	if err != nil {
		return WebhookRecord{}, err
	}
	return WebhookRecord{
		Key:       KeyFor(body.Hash),
		Origin:    OriginBigCommerce,
		EventType: body.Scope,
		CreatedAt: time.Unix(body.CreatedAt, 0).UTC(),
		Payload:   append(json.RawMessage(nil), payload...),
	}, nil
}

func (BigCommerceAdapter) decode(payload []byte) (bigCommercePayload, error) {
	var body bigCommercePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return body, ValidationError("webhooks: malformed bigcommerce payload", map[string]any{"error": err.Error()})
	}
	if strings.TrimSpace(body.Hash) == "" {
		return body, ValidationError("webhooks: bigcommerce payload hash is required", nil)
	}
	return body, nil
}

// StripeAdapter handles Stripe events, identified by their event id
type StripeAdapter struct{}

type stripePayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Created   int64  `json:"created"`
	CreatedAt int64  `json:"created_at"`
}

func (StripeAdapter) Origin() Origin { return OriginStripe }

func (a StripeAdapter) DeriveKey(payload []byte) (WebhookKey, error) {
	body, err := a.decode(payload)
	if err != nil {
		return WebhookKey{}, err
	}
	return KeyFor(body.ID), nil
}

func (a StripeAdapter) Normalize(payload []byte) (WebhookRecord, error) {
	body, err := a.decode(payload)
	if err != nil {
		return WebhookRecord{}, err
	}
	created := body.Created
	if created == 0 {
		created = body.CreatedAt
	}
	return WebhookRecord{
		Key:       KeyFor(body.ID),
		Origin:    OriginStripe,
		EventType: body.Type,
		CreatedAt: time.Unix(created, 0).UTC(),
		Payload:   append(json.RawMessage(nil), payload...),
	}, nil
}

func (StripeAdapter) decode(payload []byte) (stripePayload, error) {
	var body stripePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return body, ValidationError("webhooks: malformed stripe payload", map[string]any{"error": err.Error()})
	}
	if strings.TrimSpace(body.ID) == "" {
		return body, ValidationError("webhooks: stripe event id is required", nil)
	}
	return body, nil
}
