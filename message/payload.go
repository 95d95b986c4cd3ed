package message

import (
	"encoding/json"
	"time"
)

// Payload represents the data carried by a message.
// All message payloads must implement this interface to provide
// schema information, validation, and serialization capabilities.
//
// Payloads may also implement behavioral interfaces (Timeable and
// friends) to expose additional capabilities that can be discovered
// and utilized at runtime.
//
// Example implementation:
//
//	type BatteryPayload struct {
//	    Device DeviceInfo `json:"device"`
//	    Values []int32    `json:"values"`
//	}
//
//	func (p *BatteryPayload) Schema() Type {
//	    return Type{Domain: "muse", Category: "battery", Version: "v1"}
//	}
//
//	func (p *BatteryPayload) Validate() error {
//	    if p.Device.ID == "" {
//	        return errors.New("device ID is required")
//	    }
//	    if len(p.Values) == 0 {
//	        return errors.New("battery vector is empty")
//	    }
//	    return nil
//	}
//
//	func (p *BatteryPayload) MarshalJSON() ([]byte, error) {
//	    // Use alias to avoid infinite recursion
//	    type Alias BatteryPayload
//	    return json.Marshal((*Alias)(p))
//	}
//
//	func (p *BatteryPayload) UnmarshalJSON(data []byte) error {
//	    // Use alias to avoid infinite recursion
//	    type Alias BatteryPayload
//	    return json.Unmarshal(data, (*Alias)(p))
//	}
type Payload interface {
	// Schema returns the Type that defines this payload's structure.
	// This enables type-safe routing and processing throughout the system.
	Schema() Type

	// Validate checks the payload data for correctness.
	// Returns nil if valid, or an error describing the validation failure.
	// Should validate:
	//   - Required fields are present
	//   - Values are within acceptable ranges
	//   - Business rules are satisfied
	Validate() error

	// JSON serialization using standard Go interfaces.
	// Payloads must implement json.Marshaler and json.Unmarshaler
	// for deterministic serialization. The same payload must always
	// produce the same JSON output.
	json.Marshaler
	json.Unmarshaler
}

// Timeable provides temporal information for time-series analysis.
// Payloads implementing this interface can be indexed by time
// and queried temporally.
//
// Services discover the capability at runtime through type assertions:
//
//	if timeable, ok := msg.Payload().(Timeable); ok {
//	    bucket := timeable.Timestamp().Truncate(time.Minute)
//	    // Index by capture minute...
//	}
type Timeable interface {
	// Timestamp returns the observation or event time.
	// This should be the actual time of observation/event, not message
	// creation time (which is in BaseMessage metadata).
	Timestamp() time.Time
}
