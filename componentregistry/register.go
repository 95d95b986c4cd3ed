// Package componentregistry provides component registration for the
// MuseStreams receiver. All transports and outputs are registered here so
// cmd binaries get the full catalog with one call.
package componentregistry

import (
	"errors"

	"github.com/c360/musestreams/component"
	pkgerrors "github.com/c360/musestreams/errors"
	"github.com/c360/musestreams/input/osctcp"
	"github.com/c360/musestreams/input/oscudp"
	"github.com/c360/musestreams/output/natspub"
	"github.com/c360/musestreams/output/recorder"
	"github.com/c360/musestreams/output/wsfeed"
)

// Register registers all MuseStreams components with the provided registry:
//
// Inputs (OSC transports):
//   - oscudp: OSC over UDP, the muse-io default
//   - osctcp: OSC over TCP with length-prefix framing, one source per connection
//
// Outputs (telemetry listeners):
//   - natspub: republishes decoded samples to NATS subjects
//   - wsfeed: broadcasts decoded samples to WebSocket clients
//   - recorder: appends decoded samples to JSONL session files
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	if err := oscudp.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "OSC UDP input registration")
	}
	if err := osctcp.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "OSC TCP input registration")
	}

	if err := natspub.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "NATS output registration")
	}
	if err := wsfeed.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "WebSocket feed registration")
	}
	if err := recorder.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "recorder output registration")
	}

	return nil
}
