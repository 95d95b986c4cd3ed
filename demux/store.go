package demux

import (
	"sync"

	"github.com/c360/musestreams/muse"
)

// SourceKey identifies the origin of a message stream. Connection-oriented
// transports mint one key per connection; connectionless transports use
// SoleSource for everything they receive.
type SourceKey string

// SoleSource is the shared key for transports that cannot tell senders
// apart, such as a UDP socket. All datagrams fold into one logical stream.
const SoleSource SourceKey = "udp"

// configStore tracks the first configuration seen from each source.
//
// Entries are write-once: SetIfAbsent keeps the original configuration for
// the lifetime of the source, so a headset that re-announces itself on a
// live connection keeps its initial identity. Evict is the only way to
// clear an entry, and transports call it on disconnect.
type configStore struct {
	mu      sync.RWMutex
	configs map[SourceKey]*muse.Config
}

func newConfigStore() *configStore {
	return &configStore{
		configs: make(map[SourceKey]*muse.Config),
	}
}

// Get returns the stored configuration for source, or nil when the source
// has not configured yet.
func (s *configStore) Get(source SourceKey) *muse.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configs[source]
}

// Has reports whether source already has a stored configuration.
func (s *configStore) Has(source SourceKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.configs[source]
	return ok
}

// SetIfAbsent stores config for source unless an entry already exists.
// It returns true when the entry was stored.
func (s *configStore) SetIfAbsent(source SourceKey, config *muse.Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[source]; ok {
		return false
	}
	s.configs[source] = config
	return true
}

// Evict removes the entry for source. It returns true when an entry was
// present.
func (s *configStore) Evict(source SourceKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[source]; !ok {
		return false
	}
	delete(s.configs, source)
	return true
}

// Len returns the number of configured sources.
func (s *configStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.configs)
}

// Sources returns the keys of all configured sources. Order is not defined.
func (s *configStore) Sources() []SourceKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]SourceKey, 0, len(s.configs))
	for k := range s.configs {
		keys = append(keys, k)
	}
	return keys
}
