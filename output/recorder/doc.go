// Package recorder provides a file output component that appends decoded
// headset telemetry to JSON Lines session files.
//
// Each Start opens a fresh session file named <prefix>-<unix-millis>.jsonl
// in the configured directory. Listener callbacks marshal the sample
// envelope and buffer the line; a flush goroutine writes the buffer to
// disk once a second or when it fills. When a session file grows past the
// size cap it is closed and a new one opened. Stop flushes, fsyncs and
// closes the current file so a recording survives an unclean host.
//
// Factory name: "recorder". Config:
//
//	{
//	  "directory": "/var/lib/musestreams/recordings",
//	  "file_prefix": "muse",
//	  "max_file_bytes": 134217728,
//	  "buffer_size": 100
//	}
package recorder
