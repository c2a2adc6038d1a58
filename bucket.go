package jsonhist

import (
	"github.com/optiflex/jsonhist/internal/pathindex"
)

// KeyPathBucket holds the per-key-path statistics of §3: a structural
// shape (KeyPath), the fraction of rows resolving there (Frequency), the
// fraction of those that are JSON null (NullValues), the leaf domain
// (ValueType), optional range bounds and NDV, and an optional nested
// sub-histogram.
type KeyPathBucket struct {
	KeyPath    []byte
	Frequency  float64
	NullValues float64
	ValueType  ValueType
	MinVal     *Primitive
	MaxVal     *Primitive
	NDV        *int64
	Sub        subHistogram
}

// Base returns the bucket's base frequency — the maximum contribution it
// can make to any predicate — per the GLOSSARY's "Base frequency".
func (b *KeyPathBucket) Base() float64 {
	return b.Frequency * (1 - b.NullValues)
}

// Lookup estimates (eq, lt, gt) for comparand v against this bucket,
// applying the §4.3 range pre-filter before delegating to the typed
// sub-histogram, the boolean special case, or the no-sub-histogram
// heuristic defaults.
func (b *KeyPathBucket) Lookup(v Primitive) (LookupResult, error) {
	base := b.Base()

	if b.ValueType == ValueBool {
		return b.lookupBool(v, base)
	}

	if b.MinVal != nil && b.MaxVal != nil {
		cmpMin, okMin := compareValues(b.ValueType, v, *b.MinVal)
		cmpMax, okMax := compareValues(b.ValueType, v, *b.MaxVal)
		if okMin && cmpMin < 0 {
			return LookupResult{Eq: 0, Lt: 0, Gt: base}, nil
		}
		if okMax && cmpMax > 0 {
			return LookupResult{Eq: 0, Lt: base, Gt: 0}, nil
		}
	}

	if b.Sub != nil {
		return b.Sub.lookup(v, base)
	}

	if b.NDV != nil && *b.NDV > 0 {
		return LookupResult{
			Eq: base / float64(*b.NDV),
			Lt: base * 0.3,
			Gt: base * 0.3,
		}, nil
	}
	return LookupResult{Eq: base * 0.1, Lt: base * 0.3, Gt: base * 0.3}, nil
}

// lookupBool implements §4.3's "Booleans" rule: equi-height is never used,
// lt/gt are always zero, and eq comes from the matching singleton entry or
// (absent a sub-histogram) the min==max convention.
func (b *KeyPathBucket) lookupBool(v Primitive, base float64) (LookupResult, error) {
	vb, ok := extractBool(v)
	if !ok {
		return LookupResult{}, newErr(ErrTypeMismatch, "", "IS NULL/boolean lookup requires a bool comparand")
	}

	if sh, ok := b.Sub.(*SubHistogram[bool]); ok && sh != nil {
		for _, e := range sh.Singleton {
			if e.Value == vb {
				return LookupResult{Eq: base * e.Frequency}, nil
			}
		}
		return LookupResult{Eq: base * sh.restFrequency()}, nil
	}

	if b.MinVal != nil && b.MaxVal != nil {
		minB, _ := extractBool(*b.MinVal)
		maxB, _ := extractBool(*b.MaxVal)
		if minB == maxB {
			if vb == minB {
				return LookupResult{Eq: base}, nil
			}
			return LookupResult{}, nil
		}
	}

	if b.NDV != nil && *b.NDV > 0 {
		return LookupResult{Eq: base / float64(*b.NDV)}, nil
	}
	return LookupResult{Eq: base * 0.1}, nil
}

// BucketStore is the flat, linearly-iterable array of §4.2. It builds an
// accelerator index lazily so the common case (repeated lookups against
// the same histogram) isn't O(n) per query, while preserving Buckets'
// original order for serialization round-trip.
type BucketStore struct {
	Buckets []*KeyPathBucket
	idx     *pathindex.Index
}

// NewBucketStore wraps the given buckets (taking ownership of the slice,
// not copying it) in a store.
func NewBucketStore(buckets []*KeyPathBucket) *BucketStore {
	return &BucketStore{Buckets: buckets, idx: pathindex.New()}
}

func (s *BucketStore) ensureIndex() {
	if s.idx.Built() {
		return
	}
	paths := make([][]byte, len(s.Buckets))
	for i, b := range s.Buckets {
		paths[i] = b.KeyPath
	}
	s.idx.Build(paths)
}

// Find looks up the bucket with the exact canonical key path.
func (s *BucketStore) Find(path []byte) (*KeyPathBucket, bool) {
	s.ensureIndex()
	i, ok := s.idx.Lookup(path)
	if !ok {
		return nil, false
	}
	return s.Buckets[i], true
}

// LookupTyped drives §4.3 for a typed comparand.
func (s *BucketStore) LookupTyped(path []byte, v Primitive) (LookupResult, bool) {
	b, ok := s.Find(path)
	if !ok {
		return LookupResult{}, false
	}
	res, err := b.Lookup(v)
	if err != nil {
		return LookupResult{}, false
	}
	return res, true
}

// LookupUntyped returns only what can be said without a typed comparand:
// the bucket's base frequency split across (eq, lt, gt) is undefined, so
// callers needing just "does this path resolve" read Eq as the base and
// ignore Lt/Gt.
func (s *BucketStore) LookupUntyped(path []byte) (LookupResult, bool) {
	b, ok := s.Find(path)
	if !ok {
		return LookupResult{}, false
	}
	return LookupResult{Eq: b.Base()}, true
}
