package message

import (
	"fmt"
)

// Keyable interface represents types that can be converted to semantic keys
// using dotted notation. This is the foundation of consistent NATS subject
// construction and storage patterns across the platform.
type Keyable interface {
	// Key returns the dotted notation representation of this semantic type.
	// Examples: "muse.eeg.v1", "muse.battery.v1"
	Key() string
}

// Type provides structured type information for messages.
// It enables type-safe routing and processing by clearly identifying
// the domain, category, and version of each message.
//
// The telemetry types for headset data are defined alongside their
// payloads in this package; see TypeEEG, TypeBattery and friends.
type Type struct {
	// Domain identifies the business or system domain.
	// Example: "muse" for headset telemetry.
	Domain string

	// Category identifies the specific message type within the domain.
	// Examples: "eeg", "accel", "blink", "alpha_relative"
	Category string

	// Version identifies the schema version.
	// Format: "v1", "v2", etc. Enables schema evolution.
	Version string
}

// Key returns the dotted notation representation: "domain.category.version"
// This implements the Keyable interface for unified semantic keys.
func (mt Type) Key() string {
	return fmt.Sprintf("%s.%s.%s", mt.Domain, mt.Category, mt.Version)
}

// String returns the same as Key() for backwards compatibility
func (mt Type) String() string {
	return mt.Key()
}

// IsValid checks if the Type has all required fields populated
// with non-empty values.
func (mt Type) IsValid() bool {
	return mt.Domain != "" && mt.Category != "" && mt.Version != ""
}

// Equal compares two Type instances for equality.
// Returns true if all fields (Domain, Category, Version) are identical.
func (mt Type) Equal(other Type) bool {
	return mt.Domain == other.Domain &&
		mt.Category == other.Category &&
		mt.Version == other.Version
}
