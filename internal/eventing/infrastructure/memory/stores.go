// Package memory holds in-process eventing stores for tests and local runs.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"wms-core/internal/eventing"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

type outboxEntry struct {
	record eventing.OutboxRecord
	status string
}

// OutboxStore keeps outbox records in insertion order.
type OutboxStore struct {
	mu      sync.Mutex
	seq     int
	entries []*outboxEntry
	byEvent map[string]struct{}
}

// NewOutboxStore constructs an empty outbox.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{byEvent: make(map[string]struct{})}
}

// Insert appends a pending record; duplicate event ids are ignored.
func (s *OutboxStore) Insert(_ context.Context, env eventing.Envelope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEvent[env.EventID]; ok {
		return "", nil
	}
	s.seq++
	id := strconv.Itoa(s.seq)
	s.entries = append(s.entries, &outboxEntry{
		record: eventing.OutboxRecord{ID: id, Envelope: env},
		status: StatusPending,
	})
	s.byEvent[env.EventID] = struct{}{}
	return id, nil
}

// ListPending returns up to limit pending records.
func (s *OutboxStore) ListPending(_ context.Context, limit int) ([]eventing.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []eventing.OutboxRecord
	for _, entry := range s.entries {
		if entry.status != StatusPending {
			continue
		}
		out = append(out, entry.record)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkSent marks a record as sent.
func (s *OutboxStore) MarkSent(_ context.Context, id string) error {
	return s.mark(id, StatusSent)
}

// MarkFailed marks a record as failed.
func (s *OutboxStore) MarkFailed(_ context.Context, id string) error {
	return s.mark(id, StatusFailed)
}

// Statuses returns "type:status" for each record in insertion order.
func (s *OutboxStore) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.record.Envelope.EventType+":"+entry.status)
	}
	return out
}

// Len returns the number of stored records.
func (s *OutboxStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *OutboxStore) mark(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.record.ID == id {
			entry.status = status
			return nil
		}
	}
	return errors.New("memory outbox: record not found")
}

// ProcessedStore tracks processed event ids per consumer.
type ProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewProcessedStore constructs an empty store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]struct{})}
}

// HasProcessed reports whether the event was processed by consumer.
func (s *ProcessedStore) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[consumerName+"/"+eventID]
	return ok, nil
}

// MarkProcessed records the event as processed.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	_, err := s.TryMark(ctx, eventID, consumerName)
	return err
}

// TryMark records the event and reports whether it was new.
func (s *ProcessedStore) TryMark(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := consumerName + "/" + eventID
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

// DeadLetter is one recorded failure.
type DeadLetter struct {
	Envelope eventing.Envelope
	Error    string
	Attempts int
}

// DLQStore keeps dead letters by event id.
type DLQStore struct {
	mu      sync.Mutex
	order   []string
	letters map[string]*DeadLetter
}

// NewDLQStore constructs an empty dead-letter store.
func NewDLQStore() *DLQStore {
	return &DLQStore{letters: make(map[string]*DeadLetter)}
}

// RecordFailure upserts a dead letter.
func (s *DLQStore) RecordFailure(_ context.Context, env eventing.Envelope, err error) error {
	if env.EventID == "" {
		return errors.New("memory dlq: empty event id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	message := ""
	if err != nil {
		message = err.Error()
	}
	if letter, ok := s.letters[env.EventID]; ok {
		letter.Envelope = env
		letter.Error = message
		letter.Attempts++
		return nil
	}
	s.letters[env.EventID] = &DeadLetter{Envelope: env, Error: message, Attempts: 1}
	s.order = append(s.order, env.EventID)
	return nil
}

// Letters returns dead letters in first-seen order.
func (s *DLQStore) Letters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetter, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.letters[id])
	}
	return out
}
