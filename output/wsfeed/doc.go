// Package wsfeed provides a WebSocket output component that streams
// decoded headset telemetry to connected browser clients.
//
// The component runs an HTTP server with a single WebSocket endpoint.
// Every decoded sample is wrapped in the standard message envelope,
// marshalled once, and fanned out to all connected clients. Each client
// has its own bounded queue drained by a dedicated writer goroutine, so
// a slow or stalled client never delays the telemetry pipeline: when a
// queue fills, the oldest frames for that client are dropped.
//
// New clients are greeted with the configuration envelope of every
// headset seen so far, so a feed consumer learns the device identity
// before its first sample arrives.
//
// Factory name: "wsfeed". Config:
//
//	{
//	  "port": 8081,
//	  "path": "/ws",
//	  "queue_size": 256
//	}
package wsfeed
