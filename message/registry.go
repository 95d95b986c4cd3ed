package message

import (
	"fmt"
	"sync"
)

// payloadFactories maps Type keys to factories producing empty payloads
// for UnmarshalJSON. Registration happens in init functions, so by the
// time any message is decoded the table is complete and read-only in
// practice; the mutex covers tests that register their own types.
var (
	payloadFactoriesMu sync.RWMutex
	payloadFactories   = make(map[string]func() Payload)
)

// RegisterPayload makes a payload type available to BaseMessage
// decoding. Each wire type registers exactly once, normally from an init
// function next to the payload definition. Registering a duplicate key
// panics: two factories for one type is a programming error that would
// otherwise surface as undecodable messages far from the cause.
func RegisterPayload(msgType Type, factory func() Payload) {
	if !msgType.IsValid() {
		panic(fmt.Sprintf("message: RegisterPayload with invalid type %q", msgType.String()))
	}
	if factory == nil {
		panic(fmt.Sprintf("message: RegisterPayload with nil factory for %q", msgType.String()))
	}

	payloadFactoriesMu.Lock()
	defer payloadFactoriesMu.Unlock()
	key := msgType.Key()
	if _, exists := payloadFactories[key]; exists {
		panic(fmt.Sprintf("message: payload type %q registered twice", key))
	}
	payloadFactories[key] = factory
}

// newPayload returns an empty payload for the given type, or nil when the
// type is not registered.
func newPayload(msgType Type) Payload {
	payloadFactoriesMu.RLock()
	defer payloadFactoriesMu.RUnlock()
	factory, ok := payloadFactories[msgType.Key()]
	if !ok {
		return nil
	}
	return factory()
}

// RegisteredTypes returns the keys of every registered payload type.
// Primarily useful for diagnostics and discovery endpoints.
func RegisteredTypes() []string {
	payloadFactoriesMu.RLock()
	defer payloadFactoriesMu.RUnlock()
	keys := make([]string, 0, len(payloadFactories))
	for key := range payloadFactories {
		keys = append(keys, key)
	}
	return keys
}
