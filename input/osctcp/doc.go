// Package osctcp provides the TCP OSC input component.
//
// muse-io can stream over TCP (muse-io --osc osc.tcp://localhost:5001),
// framing each OSC packet with a 4-byte big-endian length prefix. Unlike
// UDP, a TCP connection identifies its sender, so this input mints a
// fresh source key per accepted connection and the demultiplexer keeps
// independent headset configuration per key: one receiver can serve
// several headsets at once.
//
// When a connection drops, the component tells the demultiplexer to evict
// that source's configuration. A reconnecting headset gets a new key and
// starts unconfigured, which is correct: muse-io re-announces /muse/config
// on every fresh connection.
//
// Registered under the factory name "osctcp"; config mirrors oscudp:
//
//	{"port": 5001, "bind": "0.0.0.0"}
package osctcp
