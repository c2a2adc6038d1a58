package jsonhist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistogramWithNumBucket(b *KeyPathBucket) *Histogram {
	h := NewHistogram(BinaryCollator{})
	h.MinFrequency = 1.0
	h.Store = NewBucketStore([]*KeyPathBucket{b})
	return h
}

func TestSelectivityEQAndNEQSumToBase(t *testing.T) {
	sh := &SubHistogram[int64]{
		Kind:    SubSingleton,
		cmp:     func(a, b int64) int { return int(a - b) },
		extract: extractInt64,
		Singleton: []SingletonEntry[int64]{
			{Value: 0, Frequency: 0.1},
			{Value: 1, Frequency: 0.1},
		},
	}
	b := &KeyPathBucket{KeyPath: []byte("a_num"), Frequency: 0.4, ValueType: ValueInt, Sub: sh}
	h := newTestHistogramWithNumBucket(b)

	fn := Func{Kind: FuncJSONUnquoteExtract, Path: []byte("$.a")}
	eq, err := h.Selectivity(fn, OpEQ, []Primitive{IntPrimitive(1)})
	require.NoError(t, err)
	neq, err := h.Selectivity(fn, OpNEQ, []Primitive{IntPrimitive(1)})
	require.NoError(t, err)

	assert.InDelta(t, 0.04, eq, epsilon)
	assert.InDelta(t, b.Base(), eq+neq, epsilon)
}

func TestSelectivityBetweenClipsToBase(t *testing.T) {
	ndv := int64(4)
	minV, maxV := IntPrimitive(0), IntPrimitive(3)
	b := &KeyPathBucket{
		KeyPath: []byte("a_num"), Frequency: 0.4, ValueType: ValueInt,
		MinVal: &minV, MaxVal: &maxV, NDV: &ndv,
	}
	h := newTestHistogramWithNumBucket(b)
	fn := Func{Kind: FuncJSONUnquoteExtract, Path: []byte("$.a")}

	got, err := h.Selectivity(fn, OpBetween, []Primitive{IntPrimitive(0), IntPrimitive(5)})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got, epsilon, "expected selectivity clipped to base")
}

func TestSelectivityBetweenRejectsMisorderedComparands(t *testing.T) {
	h := newTestHistogramWithNumBucket(&KeyPathBucket{KeyPath: []byte("a_num"), Frequency: 1})
	fn := Func{Kind: FuncJSONUnquoteExtract, Path: []byte("$.a")}
	_, err := h.Selectivity(fn, OpBetween, []Primitive{IntPrimitive(5), IntPrimitive(0)})
	assert.Error(t, err, "expected error for a > b")
}

func TestSelectivityInEqualsEQForSingleton(t *testing.T) {
	ndv := int64(4)
	minV, maxV := IntPrimitive(0), IntPrimitive(3)
	b := &KeyPathBucket{
		KeyPath: []byte("a_num"), Frequency: 0.4, ValueType: ValueInt,
		MinVal: &minV, MaxVal: &maxV, NDV: &ndv,
	}
	h := newTestHistogramWithNumBucket(b)
	fn := Func{Kind: FuncJSONUnquoteExtract, Path: []byte("$.a")}

	eq, err := h.Selectivity(fn, OpEQ, []Primitive{IntPrimitive(2)})
	require.NoError(t, err)
	in, err := h.Selectivity(fn, OpIn, []Primitive{IntPrimitive(2)})
	require.NoError(t, err)

	assert.InDelta(t, eq, in, epsilon, "IN([x]) should equal EQ(x)")
}

func TestSelectivityMissingBucketFallsBack(t *testing.T) {
	h := NewHistogram(BinaryCollator{})
	h.MinFrequency = 0.13
	h.Store = NewBucketStore(nil)
	fn := Func{Kind: FuncJSONUnquoteExtract, Path: []byte("$.missing")}

	got, err := h.Selectivity(fn, OpEQ, []Primitive{IntPrimitive(1)})
	require.NoError(t, err)
	assert.InDelta(t, 0.013, got, epsilon)
}

func TestSelectivityIsNullIsNotNullBoundedSum(t *testing.T) {
	b := &KeyPathBucket{KeyPath: []byte("a"), Frequency: 0.7, NullValues: 0.2, ValueType: ValueInt}
	h := newTestHistogramWithNumBucket(b)
	fn := Func{Kind: FuncJSONExtract, Path: []byte("$.a")}

	isNull, err := h.Selectivity(fn, OpIsNull, nil)
	require.NoError(t, err)
	isNotNull, err := h.Selectivity(fn, OpIsNotNull, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, isNull+isNotNull, 1+epsilon)
	assert.InDelta(t, 0.7, isNotNull, epsilon)
	assert.InDelta(t, 0.3, isNull, epsilon)
}

func TestSelectivityIsNullJSONValueUsesBaseFrequency(t *testing.T) {
	b := &KeyPathBucket{KeyPath: []byte("a"), Frequency: 0.7, NullValues: 0.2, ValueType: ValueInt}
	h := newTestHistogramWithNumBucket(b)
	fn := Func{Kind: FuncJSONValue, Path: []byte("$.a")}

	isNotNull, err := h.Selectivity(fn, OpIsNotNull, nil)
	require.NoError(t, err)
	assert.InDelta(t, b.Base(), isNotNull, epsilon)
}

func TestNDVAggregatesAcrossTypeSuffixes(t *testing.T) {
	ndvNum := int64(3)
	ndvStr := int64(5)
	h := NewHistogram(BinaryCollator{})
	h.Store = NewBucketStore([]*KeyPathBucket{
		{KeyPath: []byte("a_num"), NDV: &ndvNum},
		{KeyPath: []byte("a_str"), NDV: &ndvStr},
	})

	fn := Func{Path: []byte("$.a")}
	got, ok := h.NDV(fn)
	require.True(t, ok, "expected NDV to be found")
	assert.Equal(t, int64(8), *got)
}

func TestNDVNoneWhenNoSiblingsExist(t *testing.T) {
	h := NewHistogram(BinaryCollator{})
	h.Store = NewBucketStore(nil)
	_, ok := h.NDV(Func{Path: []byte("$.a")})
	assert.False(t, ok, "expected NDV to report not-found on an empty store")
}
