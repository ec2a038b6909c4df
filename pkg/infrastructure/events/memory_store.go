package events

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Subscription identifies a registered handler
type Subscription int

type subscriber struct {
	id     Subscription
	types  map[string]bool
	handle Handler
}

func (s subscriber) wants(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// InMemoryEventStore keeps planning events per scope stream and hands
// each one to the matching subscribers off the caller's goroutine.
// Handlers of one event run in subscription order.
type InMemoryEventStore struct {
	mu      sync.RWMutex
	streams map[string][]int
	log     []Record
	subs    []subscriber
	nextSub Subscription
	logger  *logrus.Logger
	wg      sync.WaitGroup
}

func NewInMemoryEventStore(logger *logrus.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &InMemoryEventStore{
		streams: make(map[string][]int),
		logger:  logger,
	}
}

func (s *InMemoryEventStore) AppendEvent(streamID string, event Event) error {
	if streamID == "" {
		return fmt.Errorf("event %s has no stream", event.Type())
	}

	s.mu.Lock()
	record := Record{
		EventID: event.ID(),
		Kind:    event.Type(),
		Stream:  streamID,
		Payload: event.Data(),
		At:      event.Timestamp(),
		Seq:     len(s.streams[streamID]) + 1,
	}
	s.streams[streamID] = append(s.streams[streamID], len(s.log))
	s.log = append(s.log, record)

	var targets []subscriber
	for _, sub := range s.subs {
		if sub.wants(record.Kind) {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	if len(targets) > 0 {
		s.wg.Add(1)
		go s.deliver(record, targets)
	}
	return nil
}

func (s *InMemoryEventStore) deliver(record Record, targets []subscriber) {
	defer s.wg.Done()
	for _, sub := range targets {
		if err := sub.handle(record); err != nil {
			s.logger.WithFields(logrus.Fields{
				"event":        record.Kind,
				"stream":       record.Stream,
				"subscription": sub.id,
			}).Errorf("error handling event: %v", err)
		}
	}
}

// ReadEvents returns the stream's events from fromVersion on (1-based)
func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromVersion < 1 {
		fromVersion = 1
	}
	positions := s.streams[streamID]
	if fromVersion > len(positions) {
		return []Event{}, nil
	}
	out := make([]Event, 0, len(positions)-fromVersion+1)
	for _, pos := range positions[fromVersion-1:] {
		out = append(out, s.log[pos])
	}
	return out, nil
}

// ReadAllEvents returns every event from a global position on (0-based)
func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}
	if fromPosition >= len(s.log) {
		return []Event{}, nil
	}
	out := make([]Event, 0, len(s.log)-fromPosition)
	for _, r := range s.log[fromPosition:] {
		out = append(out, r)
	}
	return out, nil
}

// Subscribe registers handle for the given event types, or for every
// event when none are given
func (s *InMemoryEventStore) Subscribe(handle Handler, eventTypes ...string) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	sub := subscriber{id: s.nextSub, handle: handle}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}
	s.subs = append(s.subs, sub)
	return sub.id
}

func (s *InMemoryEventStore) Unsubscribe(id Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.id != id {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
}

// Wait blocks until every delivery started so far has finished
func (s *InMemoryEventStore) Wait() {
	s.wg.Wait()
}

// LogHandler writes each event to logger at debug level
func LogHandler(logger *logrus.Logger) Handler {
	return func(e Event) error {
		logger.WithFields(logrus.Fields{
			"event":   e.Type(),
			"stream":  e.StreamID(),
			"version": e.Version(),
			"id":      e.ID(),
		}).Debug("planning event")
		return nil
	}
}
