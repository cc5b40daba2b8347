// Package channel provides the bidirectional message channel the hub client
// talks through. A channel owns no protocol semantics: it opens, closes,
// sends JSON values and reports what happened to a single Handler.
package channel

import (
	"errors"
	"strings"
)

// DefaultScheme is prefixed to addresses that carry no WebSocket scheme.
const DefaultScheme = "ws://"

var (
	ErrEmptyAddress = errors.New("empty address")
	ErrClosed       = errors.New("channel closed")
)

// EventType identifies a channel event.
type EventType int

const (
	Opened EventType = iota
	Message
	Closed
	Errored
)

func (t EventType) String() string {
	switch t {
	case Opened:
		return "opened"
	case Message:
		return "message"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Event is delivered to a Handler. Payload is set for Message, Err for
// Errored.
type Event struct {
	Type    EventType
	Payload []byte
	Err     error
}

// Handler receives the events of one channel. It is called from the
// channel's own goroutines and must not block for long.
type Handler func(Event)

// Channel is a single socket-like connection. After Open succeeds the
// handler sees Opened or Errored, then any number of Message events, then at
// most one of Closed or Errored. Nothing is delivered after Close.
type Channel interface {
	Open(address string, h Handler) error
	Send(v any) bool
	Close()
}

// Dialer builds a fresh, unopened Channel.
type Dialer func() Channel

// Normalize prefixes DefaultScheme to an address without a ws:// or wss://
// scheme.
func Normalize(address string) string {
	lower := strings.ToLower(address)
	if strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://") {
		return address
	}
	return DefaultScheme + address
}
