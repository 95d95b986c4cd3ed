// Package musestreams receives OSC telemetry from Muse EEG headbands and
// fans the decoded samples out to downstream consumers.
//
// # Overview
//
// A Muse headband paired with muse-io emits a stream of OSC messages over
// UDP or TCP: raw EEG channels, accelerometer readings, battery status,
// derived band powers, blink detection, and experimental mind-state scores.
// MuseStreams listens for that traffic, tracks the per-device configuration
// announced on /muse/config, decodes the positional argument lists into
// typed samples, and dispatches each sample synchronously to every
// registered listener.
//
// # Architecture
//
// Data flows through three stages:
//
//	┌─────────────────────────────────────┐
//	│          Inputs                     │  oscudp, osctcp
//	│  (listen, parse OSC, tag source)    │
//	└─────────────────────────────────────┘
//	           ↓ raw OSC messages
//	┌─────────────────────────────────────┐
//	│          Demultiplexer              │  config tracking,
//	│  (classify, decode, dispatch)       │  address classification
//	└─────────────────────────────────────┘
//	           ↓ typed samples
//	┌─────────────────────────────────────┐
//	│          Outputs                    │  natspub, wsfeed,
//	│  (publish, stream, record)          │  recorder
//	└─────────────────────────────────────┘
//
// Inputs hand every parsed OSC message to the demux with a source key
// identifying the sending device endpoint. The demux keeps the most recent
// headset configuration per source and attaches it to every dispatched
// sample, so listeners always know which device a reading came from.
//
// # Package Layout
//
//   - muse: the wire protocol vocabulary - OSC addresses, telemetry
//     categories, argument decoding, the Listener interface
//   - demux: per-source configuration tracking and synchronous fan-out
//   - input/oscudp, input/osctcp: network listeners for the two muse-io
//     transports (raw datagrams, length-prefixed TCP frames)
//   - output/natspub: publishes JSON envelopes to per-device NATS subjects
//   - output/wsfeed: live WebSocket feed with per-client bounded queues
//   - output/recorder: session capture to JSONL files with size rotation
//   - message: versioned JSON envelope and payload types
//   - component: lifecycle management, registry, and dependency injection
//   - config: layered JSON configuration with environment overrides
//   - metric, health, errors, natsclient: shared infrastructure
//
// # Running
//
// The receiver daemon and a synthetic traffic generator live under cmd/:
//
//	./bin/musestreams --config configs/example.json
//	./bin/musesim --host localhost --port 5000 --serial Muse-1078
//
// Components are enabled and tuned through the configuration file; see the
// config package for the full schema.
package musestreams
