package demux

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/musestreams/muse"
)

func TestConfigStore_SetIfAbsent(t *testing.T) {
	store := newConfigStore()
	first := &muse.Config{SerialNumber: "1012-ABCD-5001"}
	second := &muse.Config{SerialNumber: "1012-ABCD-9999"}

	assert.False(t, store.Has("tcp-1"))
	assert.Nil(t, store.Get("tcp-1"))

	require.True(t, store.SetIfAbsent("tcp-1", first))
	assert.True(t, store.Has("tcp-1"))
	assert.Same(t, first, store.Get("tcp-1"))

	// Second write for the same source must not displace the first.
	require.False(t, store.SetIfAbsent("tcp-1", second))
	assert.Same(t, first, store.Get("tcp-1"))
	assert.Equal(t, 1, store.Len())
}

func TestConfigStore_Evict(t *testing.T) {
	store := newConfigStore()
	store.SetIfAbsent("tcp-1", &muse.Config{SerialNumber: "1012-ABCD-5001"})

	assert.True(t, store.Evict("tcp-1"))
	assert.False(t, store.Has("tcp-1"))
	assert.Equal(t, 0, store.Len())

	// Evicting an absent source is a no-op.
	assert.False(t, store.Evict("tcp-1"))

	// After eviction the slot is writable again.
	replacement := &muse.Config{SerialNumber: "1012-ABCD-9999"}
	require.True(t, store.SetIfAbsent("tcp-1", replacement))
	assert.Same(t, replacement, store.Get("tcp-1"))
}

func TestConfigStore_SourcesIndependent(t *testing.T) {
	store := newConfigStore()
	udp := &muse.Config{SerialNumber: "udp-headset"}
	tcp := &muse.Config{SerialNumber: "tcp-headset"}

	store.SetIfAbsent(SoleSource, udp)
	store.SetIfAbsent("tcp-1-10.0.0.7:52114", tcp)

	assert.Same(t, udp, store.Get(SoleSource))
	assert.Same(t, tcp, store.Get("tcp-1-10.0.0.7:52114"))
	assert.ElementsMatch(t,
		[]SourceKey{SoleSource, "tcp-1-10.0.0.7:52114"},
		store.Sources())

	store.Evict("tcp-1-10.0.0.7:52114")
	assert.Same(t, udp, store.Get(SoleSource), "evicting one source must not touch another")
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := newConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := SourceKey(fmt.Sprintf("tcp-%d", n%4))
			store.SetIfAbsent(key, &muse.Config{SerialNumber: string(key)})
			store.Get(key)
			store.Has(key)
			store.Len()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, store.Len())
}
