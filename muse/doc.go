// Package muse defines the telemetry vocabulary of a Muse headband as carried
// on the muse-io OSC stream: the device configuration payload, the address
// patterns the stream is demultiplexed on, the positional decoding rules for
// each telemetry category, and the Listener contract that downstream
// consumers implement.
//
// The package is transport-agnostic. It operates on already-parsed OSC
// messages (address pattern plus typed argument list) and never touches the
// wire encoding; see input/oscudp and input/osctcp for the network side and
// package demux for per-source state and fan-out.
//
// # Decoding rules
//
// muse-io varies the argument count of several address patterns at runtime,
// so shape is inferred per message:
//
//   - /muse/eeg carries 4 float channels, plus 2 trailing integer timestamp
//     components when the argument count exceeds 4. The two shapes dispatch
//     to distinct Listener callbacks.
//   - /muse/acc carries 3 float channels, plus 2 trailing integer timestamps
//     when the argument count exceeds 3. Both shapes dispatch to the same
//     callback; the timestamp slice is nil when absent.
//   - /muse/elements/blink is significant only when it carries exactly one
//     integer equal to BlinkDetected. Anything else is swallowed.
//   - Relative band powers and /muse/batt pass through at whatever width the
//     headset sends.
//   - The experimental mellow and concentration scores demand exactly one
//     float argument and degrade to 0.0 otherwise.
//
// Malformed shapes never produce errors: missing fixed-width values decode as
// zero and surplus trailing arguments are ignored. The only decode operation
// that can fail is ParseConfig, since /muse/config carries free-form JSON.
package muse
