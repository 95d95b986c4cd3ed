// Package demux routes decoded Muse OSC messages to registered listeners.
//
// The Demux is the hub of the platform: transports (UDP, TCP) feed it raw
// OSC messages tagged with a source key, and it fans each message out to
// every registered muse.Listener as a typed callback. Routing is driven by
// the message address (see muse.CategoryOf) and gated on configuration:
// until a source has delivered its /muse/config payload, every other
// message from that source is dropped, because listeners are promised a
// non-nil *muse.Config on every callback.
//
// Delivery is synchronous and strictly ordered. Handle decodes the message
// once, snapshots the listener set, and invokes the callback on each
// listener in registration order before returning. A listener that panics
// is isolated: the panic is recovered, reported in Handle's error return,
// and the remaining listeners still receive the message. Listeners may
// call Register or Unregister from inside a callback; the change applies
// from the next message.
//
// Connectionless transports that cannot distinguish senders use SoleSource
// as their key. Connection-oriented transports allocate one key per
// connection and call HandleDisconnect on teardown so a reconnecting
// headset is forced through configuration again.
package demux
