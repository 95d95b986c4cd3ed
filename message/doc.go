// Package message defines the typed message envelope that carries headset
// telemetry from the receiver to downstream consumers over NATS, WebSocket
// feeds and session recordings.
//
// # Architecture
//
// Every published event is a Message: a unique ID, a structured Type, a
// typed Payload and lifecycle Meta. The demultiplexer delivers decoded
// readings as listener callbacks; output components wrap those readings in
// the payload types defined here and hand the resulting BaseMessage to
// their transport.
//
// # Message Structure
//
//	Message
//	├── ID        unique instance identifier (UUID)
//	├── Type      domain.category.version, e.g. "muse.eeg.v1"
//	├── Payload   typed telemetry data (EEGPayload, BatteryPayload, ...)
//	└── Meta      created_at, received_at, source
//
// # Telemetry Types
//
// One wire type exists per routed telemetry category, all in the "muse"
// domain at version v1:
//
//	muse.config.v1          ConfigPayload     session announcement with full headset config
//	muse.eeg.v1             EEGPayload        4-channel EEG, optional capture timestamps
//	muse.accel.v1           AccelPayload      3-axis accelerometer, optional capture timestamps
//	muse.battery.v1         BatteryPayload    battery state vector as sent
//	muse.blink.v1           BlinkPayload      confirmed blink detections only
//	muse.alpha_relative.v1  BandPowerPayload  relative band power session scores
//	muse.beta_relative.v1   BandPowerPayload
//	muse.theta_relative.v1  BandPowerPayload
//	muse.delta_relative.v1  BandPowerPayload
//	muse.mellow.v1          ScorePayload      experimental cognitive score
//	muse.concentration.v1   ScorePayload
//
// Every payload embeds DeviceInfo, so a consumer never needs out-of-band
// context to attribute a reading to a headset.
//
// # Payload Registry
//
// BaseMessage.UnmarshalJSON reconstructs typed payloads through a
// package-level registry. The telemetry types above register themselves in
// an init function; additional types register with RegisterPayload:
//
//	func init() {
//	    message.RegisterPayload(myType, func() message.Payload { return &MyPayload{} })
//	}
//
// Decoding a message whose type was never registered fails with a
// classified invalid error rather than producing an untyped payload.
//
// # Wire Format
//
// Messages serialize to a stable JSON envelope. Metadata timestamps are
// Unix milliseconds:
//
//	{
//	  "id": "4567a1f3-...",
//	  "type": {"Domain": "muse", "Category": "battery", "Version": "v1"},
//	  "payload": {
//	    "device": {"id": "1012-ABCD-5001", "preset": "14"},
//	    "values": [7254, 3865, 5, 27],
//	    "captured_at": 1404168081521
//	  },
//	  "meta": {
//	    "created_at": 1404168081521,
//	    "received_at": 1404168081523,
//	    "source": "natspub"
//	  }
//	}
//
// # Usage Example
//
// Publishing a battery reading from a listener callback:
//
//	func (o *Output) ReceiveBattery(config *muse.Config, battery []int32) {
//	    payload := message.NewBatteryPayload(config, battery)
//	    msg := message.NewBaseMessage(payload.Schema(), payload, "natspub")
//	    if err := msg.Validate(); err != nil {
//	        return
//	    }
//	    data, _ := json.Marshal(msg)
//	    o.publish(payload.Schema().Category, data)
//	}
//
// The payload constructors copy the slices the demux hands to listeners,
// so a payload stays valid after the broadcast returns.
//
// # Behavioral Interfaces
//
// Payloads can expose optional capabilities through small interfaces that
// consumers discover with type assertions. The telemetry payloads all
// implement Timeable:
//
//	if timeable, ok := msg.Payload().(Timeable); ok {
//	    age := time.Since(timeable.Timestamp())
//	}
package message
