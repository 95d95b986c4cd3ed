package message

import (
	"time"

	"github.com/c360/musestreams/pkg/timestamp"
)

// Meta provides metadata about a message's lifecycle and origin.
// This interface enables tracking of when messages were created,
// when they entered the system, and where they originated.
//
// Using an interface rather than a concrete type allows for:
//   - Custom metadata implementations for specific domains
//   - Extended metadata with additional fields when needed
//   - Easier testing with mock implementations
type Meta interface {
	// CreatedAt returns when the original event or observation occurred.
	// For headset telemetry this is the capture time at the receiver.
	CreatedAt() time.Time

	// ReceivedAt returns when the message entered the processing system.
	// This helps track ingestion latency and message age.
	// May be the same as CreatedAt for real-time streams.
	ReceivedAt() time.Time

	// Source returns the identifier of the message originator.
	// Examples: "oscudp", "osctcp", "musesim"
	// Used for debugging, tracing, and access control.
	Source() string
}

// DefaultMeta provides the standard implementation of the Meta interface.
// Times are held as Unix milliseconds so that a metadata round trip through
// JSON cannot shift precision.
type DefaultMeta struct {
	createdAt  int64 // Unix milliseconds
	receivedAt int64 // Unix milliseconds
	source     string
}

// NewDefaultMeta creates a new DefaultMeta instance with the given
// creation time and source. The received time is automatically set
// to the current time.
func NewDefaultMeta(createdAt time.Time, source string) *DefaultMeta {
	return &DefaultMeta{
		createdAt:  timestamp.ToUnixMs(createdAt),
		receivedAt: timestamp.Now(),
		source:     source,
	}
}

// NewDefaultMetaWithReceivedAt creates a new DefaultMeta instance with
// explicit creation and received times. This is useful for testing
// or when importing recorded sessions.
func NewDefaultMetaWithReceivedAt(createdAt, receivedAt time.Time, source string) *DefaultMeta {
	return &DefaultMeta{
		createdAt:  timestamp.ToUnixMs(createdAt),
		receivedAt: timestamp.ToUnixMs(receivedAt),
		source:     source,
	}
}

// CreatedAt returns when the original event occurred.
func (m *DefaultMeta) CreatedAt() time.Time {
	return timestamp.ToTime(m.createdAt)
}

// ReceivedAt returns when the system received the message.
func (m *DefaultMeta) ReceivedAt() time.Time {
	return timestamp.ToTime(m.receivedAt)
}

// Source returns the origin of the message.
func (m *DefaultMeta) Source() string {
	return m.source
}
