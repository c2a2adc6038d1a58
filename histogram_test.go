package jsonhist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistogramDefaultsMinFrequencyToOne(t *testing.T) {
	h := NewHistogram(nil)
	assert.Equal(t, 1.0, h.MinFrequency)
	assert.Equal(t, 0, h.NumBuckets())
}

func TestNumDistinctValuesEqualsNumBuckets(t *testing.T) {
	h := NewHistogram(nil)
	h.Store = NewBucketStore([]*KeyPathBucket{
		{KeyPath: []byte("a_num")},
		{KeyPath: []byte("b_str")},
	})
	assert.Equal(t, h.NumBuckets(), h.NumDistinctValues())
	assert.Equal(t, 2, h.NumBuckets())
}

func TestCloneDeepCopiesBuckets(t *testing.T) {
	ndv := int64(3)
	minV, maxV := IntPrimitive(0), IntPrimitive(10)
	h := NewHistogram(nil)
	h.Store = NewBucketStore([]*KeyPathBucket{
		{KeyPath: []byte("a_num"), Frequency: 0.5, MinVal: &minV, MaxVal: &maxV, NDV: &ndv},
	})

	clone := h.Clone(NewArena(0))
	require.NotNil(t, clone)
	clone.Store.Buckets[0].Frequency = 0.9
	*clone.Store.Buckets[0].NDV = 99

	assert.Equal(t, 0.5, h.Store.Buckets[0].Frequency, "mutating clone leaked into original frequency")
	assert.Equal(t, int64(3), *h.Store.Buckets[0].NDV, "mutating clone leaked into original NDV")
}

func TestCloneDeepCopiesSubHistogram(t *testing.T) {
	sh := &SubHistogram[int64]{
		Kind:    SubSingleton,
		cmp:     func(a, b int64) int { return int(a - b) },
		extract: extractInt64,
		Singleton: []SingletonEntry[int64]{
			{Value: 0, Frequency: 0.1},
			{Value: 1, Frequency: 0.1},
		},
	}
	h := NewHistogram(nil)
	h.Store = NewBucketStore([]*KeyPathBucket{
		{KeyPath: []byte("objs_arr.0_num"), Frequency: 0.4, ValueType: ValueInt, Sub: sh},
	})

	clone := h.Clone(NewArena(0))
	require.NotNil(t, clone)

	cloneSub, ok := clone.Store.Buckets[0].Sub.(*SubHistogram[int64])
	require.True(t, ok)
	cloneSub.Singleton[0].Frequency = 0.9

	origSub, ok := h.Store.Buckets[0].Sub.(*SubHistogram[int64])
	require.True(t, ok)
	assert.Equal(t, 0.1, origSub.Singleton[0].Frequency, "mutating clone's Sub leaked into original")
}

func TestCloneReturnsNilWhenArenaBudgetExhausted(t *testing.T) {
	h := NewHistogram(nil)
	h.Store = NewBucketStore([]*KeyPathBucket{
		{KeyPath: []byte("a_very_long_key_path_that_costs_bytes"), Frequency: 0.5},
	})

	arena := NewArena(1)
	clone := h.Clone(arena)
	assert.Nil(t, clone, "expected nil clone when arena budget is too small")
}

func TestCloneSucceedsWithUnlimitedArena(t *testing.T) {
	h := NewHistogram(nil)
	h.Store = NewBucketStore([]*KeyPathBucket{{KeyPath: []byte("a_num"), Frequency: 0.5}})

	clone := h.Clone(NewArena(0))
	assert.NotNil(t, clone, "expected a clone with an unlimited-budget arena")
}

func TestCreateReturnsEmptyHistogram(t *testing.T) {
	h := Create("db", "t", "c")
	assert.Equal(t, 0, h.NumBuckets())
	assert.Equal(t, 1.0, h.MinFrequency)
}
