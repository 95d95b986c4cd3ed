// Package natspub provides the NATS output component.
//
// The component implements muse.Listener: every decoded sample it
// receives from the demultiplexer is wrapped in the standard message
// envelope and published to a per-device, per-category NATS subject:
//
//	<prefix>.<device>.<category>          e.g. muse.muse-1078.eeg
//
// The device token is the headset serial number (falling back to MAC
// address, then "unknown"), sanitized for NATS subject grammar. The
// first sample seen from a device additionally publishes the full
// headset configuration on <prefix>.<device>.config so late subscribers
// can recover session identity without having watched the stream from
// the start.
//
// Publishing is fire-and-forget core NATS. A broker outage drops samples
// rather than stalling the demultiplexer; the stream is live telemetry
// and stale samples have no value.
//
// Registered under the factory name "natspub":
//
//	{"subject_prefix": "muse"}
package natspub
