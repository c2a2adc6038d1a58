package histcache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiflex/jsonhist"
)

func sampleHistogramJSON() []byte {
	return []byte(`{"histogram-type":"json-flex","data-type":"json","buckets":[
		["YV9udW0=",0.5,0,0,7,2,{"type":"singleton","buckets":[[0,0.25],[7,0.25]]}]
	]}`)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	c, err := New(4, nil)
	require.NoError(t, err)
	defer c.Close()

	h, err := jsonhist.FromJSON(sampleHistogramJSON(), jsonhist.BinaryCollator{})
	require.NoError(t, err)
	key := Key{DB: "d", Table: "t", Column: "c"}
	require.NoError(t, c.Put(key, h))

	got, ok := c.Get(key, jsonhist.BinaryCollator{})
	require.True(t, ok, "expected a cache hit")
	assert.Equal(t, h.NumBuckets(), got.NumBuckets())
}

func TestGetMissIncrementsMissCounter(t *testing.T) {
	c, err := New(4, nil)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(Key{DB: "d", Table: "t", Column: "missing"}, jsonhist.BinaryCollator{})
	assert.False(t, ok, "expected a miss")

	_, misses, _, _ := c.Stats()
	assert.Equal(t, uint64(1), misses)
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	c, err := New(2, nil)
	require.NoError(t, err)
	defer c.Close()

	h, err := jsonhist.FromJSON(sampleHistogramJSON(), jsonhist.BinaryCollator{})
	require.NoError(t, err)
	keys := []Key{{Column: "a"}, {Column: "b"}, {Column: "c"}}
	for _, k := range keys {
		require.NoError(t, c.Put(k, h))
	}

	_, ok := c.Get(keys[0], jsonhist.BinaryCollator{})
	assert.False(t, ok, "expected the first-inserted key to have been evicted")

	_, ok = c.Get(keys[2], jsonhist.BinaryCollator{})
	assert.True(t, ok, "expected the most recently inserted key to still be cached")
}

func TestGetOrLoadDedupesConcurrentLoads(t *testing.T) {
	c, err := New(4, nil)
	require.NoError(t, err)
	defer c.Close()

	var loadCount int64
	key := Key{Column: "dedup"}
	load := func() ([]byte, error) {
		atomic.AddInt64(&loadCount, 1)
		return sampleHistogramJSON(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrLoad(key, jsonhist.BinaryCollator{}, load)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), loadCount)
}
