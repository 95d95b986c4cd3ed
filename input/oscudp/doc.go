// Package oscudp provides the UDP OSC input component.
//
// muse-io streams telemetry as OSC packets over UDP by default
// (muse-io --osc osc.udp://localhost:5000). This component binds a UDP
// socket, parses each datagram as an OSC packet and hands every contained
// message to the demultiplexer synchronously. UDP carries no connection
// identity, so all traffic folds into the single demux.SoleSource stream:
// point exactly one headset at a UDP receiver.
//
// The component follows the standard lifecycle (Initialize, Start, Stop)
// and is registered under the factory name "oscudp":
//
//	{
//	  "type": "input",
//	  "name": "oscudp",
//	  "enabled": true,
//	  "config": {"port": 5000, "bind": "0.0.0.0"}
//	}
//
// There is no buffering between the socket and the demultiplexer: a
// message is fully decoded and delivered to every listener before the
// next datagram is read. Listeners that need to do slow work must hand
// it off themselves.
package oscudp
