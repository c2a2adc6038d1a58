package jsonhist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func intSubHistogram(kind SubKind) *SubHistogram[int64] {
	return &SubHistogram[int64]{
		Kind:    kind,
		cmp:     func(a, b int64) int { return int(a - b) },
		extract: extractInt64,
	}
}

func TestSingletonLookupExactMatch(t *testing.T) {
	sh := intSubHistogram(SubSingleton)
	sh.Singleton = []SingletonEntry[int64]{{Value: 0, Frequency: 0.1}, {Value: 1, Frequency: 0.1}}

	res, err := sh.lookup(IntPrimitive(1), 0.4)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, res.Eq, epsilon)
	assert.InDelta(t, 0.04, res.Lt, epsilon)
	assert.InDelta(t, 0.32, res.Gt, epsilon)
}

func TestSingletonLookupBeforeFirst(t *testing.T) {
	sh := intSubHistogram(SubSingleton)
	rest := 0.05
	sh.RestMeanFrequency = &rest
	sh.Singleton = []SingletonEntry[int64]{{Value: 5, Frequency: 0.2}}

	res, err := sh.lookup(IntPrimitive(1), 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, res.Eq, epsilon)
	assert.InDelta(t, 0, res.Lt, epsilon)
	assert.InDelta(t, 1.0, res.Gt, epsilon)
}

func TestSingletonLookupPastEnd(t *testing.T) {
	sh := intSubHistogram(SubSingleton)
	sh.Singleton = []SingletonEntry[int64]{{Value: 1, Frequency: 0.5}}

	res, err := sh.lookup(IntPrimitive(99), 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Eq, epsilon)
	assert.InDelta(t, 1.0, res.Lt, epsilon)
	assert.InDelta(t, 0, res.Gt, epsilon)
}

func TestEquiHeightLookupWithinRange(t *testing.T) {
	sh := intSubHistogram(SubEquiHeight)
	sh.EquiHeight = []EquiHeightEntry[int64]{
		{UpperBound: 10, Frequency: 0.5, NDV: 5},
		{UpperBound: 20, Frequency: 0.5, NDV: 5},
	}

	res, err := sh.lookup(IntPrimitive(15), 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, res.Eq, epsilon)
	assert.InDelta(t, 0.5, res.Lt, epsilon)
	assert.InDelta(t, 0.5, res.Gt, epsilon)
}

func TestEquiHeightLookupPastEndIsErrorNotPanic(t *testing.T) {
	sh := intSubHistogram(SubEquiHeight)
	sh.EquiHeight = []EquiHeightEntry[int64]{{UpperBound: 10, Frequency: 1.0, NDV: 5}}

	_, err := sh.lookup(IntPrimitive(99), 1.0)
	assert.Error(t, err, "expected an error when scanning past the last equi-height entry")
}

func TestSubHistogramLookupTypeMismatch(t *testing.T) {
	sh := intSubHistogram(SubSingleton)
	_, err := sh.lookup(BoolPrimitive(true), 1.0)
	require.Error(t, err)
	he, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrTypeMismatch, he.Kind)
}
