package webhooks

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It honors the same conditional-write
// contract as the SQL repository.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]WebhookRecord
	statuses map[string]StatusRecord
	now      func() time.Time

	// OnCapture, when set, is called after a successful PutNew. It plays the
	// role of the change-feed.
	OnCapture func(WebhookRecord)
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  map[string]WebhookRecord{},
		statuses: map[string]StatusRecord{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryStore) GetStatus(ctx context.Context, key WebhookKey) (StatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return StatusRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[key.PartitionKey]
	if !ok {
		return StatusRecord{}, ErrNotFound
	}
	return status, nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, key WebhookKey) (WebhookRecord, error) {
	if err := ctx.Err(); err != nil {
		return WebhookRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key.PartitionKey]
	if !ok {
		return WebhookRecord{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) PutNew(ctx context.Context, record WebhookRecord, status StatusRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	pk := record.Key.PartitionKey
	if _, exists := s.records[pk]; exists {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	if _, exists := s.statuses[pk]; exists {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	status.Key = record.Key
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = s.now()
	}
	s.records[pk] = record
	s.statuses[pk] = status
	hook := s.OnCapture
	s.mu.Unlock()

	if hook != nil {
		hook(record)
	}
	return nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, key WebhookKey, from *Status, to Status, incrementRetries bool) (StatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return StatusRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.statuses[key.PartitionKey]
	if !ok {
		return StatusRecord{}, ErrNotFound
	}
	if from != nil && current.Status != *from {
		return StatusRecord{}, ErrConditionFailed
	}
	current.Status = to
	if incrementRetries {
		current.Retries++
	}
	current.UpdatedAt = s.now()
	s.statuses[key.PartitionKey] = current
	return current, nil
}

// Len returns the number of captured records
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ Store = (*MemoryStore)(nil)
