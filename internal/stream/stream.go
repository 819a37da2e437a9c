package stream

import (
	"context"
	"sync"
	"time"

	"asoandina.org/internal/journal"
	"asoandina.org/internal/money"
)

// PostingEvent describes one committed journal entry for live consumers
// (the treasury dashboard subscribes over SSE).
type PostingEvent struct {
	EntryID     string    `json:"entry_id"`
	Sequence    uint64    `json:"sequence"`
	EntryType   string    `json:"entry_type"`
	Description string    `json:"description"`
	Reversal    bool      `json:"reversal"`
	TotalCents  int64     `json:"total_cents"`
	Total       string    `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}

// FromEntry builds the event for a freshly posted entry. The total is the
// entry's debit side, which equals its credit side by construction.
func FromEntry(e journal.Entry) PostingEvent {
	var total int64
	for _, ln := range e.Lines {
		total += ln.DebitCents
	}
	return PostingEvent{
		EntryID:     e.ID,
		Sequence:    e.Sequence,
		EntryType:   string(e.Type),
		Description: e.Description,
		Reversal:    e.Reverses != "",
		TotalCents:  total,
		Total:       money.FormatCents(total),
		Timestamp:   e.PostedAt,
	}
}

// Stream fan-outs posting events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan PostingEvent
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan PostingEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan PostingEvent {
	ch := make(chan PostingEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt PostingEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
