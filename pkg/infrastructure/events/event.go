package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a fact recorded by a planning job. StreamID is the job scope
// (plan:<header>, mrp:YYYY-MM, ...), Version its position in that stream.
type Event interface {
	ID() string
	Type() string
	StreamID() string
	Data() any
	Timestamp() time.Time
	Version() int
}

// Handler reacts to a delivered event
type Handler func(Event) error

// Publisher is the write side used by application services
type Publisher interface {
	AppendEvent(streamID string, event Event) error
}

// Record is the stored form of an event
type Record struct {
	EventID string    `json:"id"`
	Kind    string    `json:"type"`
	Stream  string    `json:"stream"`
	Payload any       `json:"data"`
	At      time.Time `json:"time"`
	Seq     int       `json:"version"`
}

func (r Record) ID() string           { return r.EventID }
func (r Record) Type() string         { return r.Kind }
func (r Record) StreamID() string     { return r.Stream }
func (r Record) Data() any            { return r.Payload }
func (r Record) Timestamp() time.Time { return r.At }
func (r Record) Version() int         { return r.Seq }

// NewEvent stamps an unversioned event; the store assigns its version
func NewEvent(eventType, streamID string, data any) Event {
	return Record{
		EventID: uuid.NewString(),
		Kind:    eventType,
		Stream:  streamID,
		Payload: data,
		At:      time.Now().UTC(),
	}
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) AppendEvent(string, Event) error { return nil }
