// Package testutil provides shared test helpers for musestreams packages.
//
// # Overview
//
// The testutil package contains OSC message fixtures, a recording listener,
// and an in-memory NATS client used across the component test suites. The
// fixtures build the exact wire shapes muse-io emits so tests exercise real
// argument layouts instead of hand-assembled messages.
//
// # Muse Fixtures
//
// Message builders return ready-to-dispatch *osc.Message values:
//
//   - ConfigMessage: /muse/config carrying a JSON config blob
//   - EEGMessage / EEGMessageWithTimestamps: four-channel EEG samples,
//     optionally with the trailing timestamp pair
//   - AccelMessage: three-axis accelerometer samples
//   - BatteryMessage: four-value battery status
//   - BlinkMessage: blink flag from the elements tree
//
// ConfigJSON builds the JSON payload alone for tests that assert on parsed
// device configuration fields.
//
// # RecordingListener
//
// RecordingListener implements muse.Listener and records every callback it
// receives as a Delivery (category, source, decoded payload). Tests register
// it with a demux and then assert on Deliveries(). WaitForCount polls with a
// timeout for tests that dispatch from another goroutine.
//
//	listener := testutil.NewRecordingListener()
//	router.Register(listener)
//	err := router.Handle(src, testutil.EEGMessage(800, 810, 790, 805))
//	require.NoError(t, err)
//	require.Equal(t, 1, listener.Count())
//
// # MockNATSClient
//
// MockNATSClient is an in-memory stand-in for natsclient.Client. It stores
// published messages per subject and invokes subscription handlers
// synchronously, so unit tests need no NATS server:
//
//	client := testutil.NewMockNATSClient()
//	err := client.Publish(ctx, "muse.eeg", payload)
//	require.NoError(t, err)
//	assert.Equal(t, 1, client.GetMessageCount("muse.eeg"))
//
// Wait and assertion helpers cover async flows:
//
//   - WaitForMessage: polls for the first message on a subject with a timeout
//   - WaitForMessageCount: waits until N messages have been published
//   - AssertMessageReceived: verifies a specific payload was published
//   - AssertNoMessages: verifies a subject stayed quiet
//
// # Thread Safety
//
// RecordingListener and MockNATSClient are safe for concurrent use. Accessors
// return copies, so tests can inspect state while dispatch continues.
//
// # Mock vs Real NATS
//
// Use MockNATSClient for component unit tests. Integration tests that need
// real broker behavior should use the testcontainers-backed
// natsclient.NewTestClient instead.
//
// # See Also
//
//   - muse: address classification and payload decoding
//   - demux: listener registration and dispatch
//   - natsclient: real NATS client wrapper and test containers
package testutil
