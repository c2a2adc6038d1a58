package jsonhist

import (
	"bytes"
	"math"
)

// ValueType identifies the JSON leaf domain a bucket's values belong to.
type ValueType int

const (
	ValueUnknown ValueType = iota
	ValueInt
	ValueFloat
	ValueBool
	ValueString
)

func (t ValueType) String() string {
	switch t {
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	default:
		return "unknown"
	}
}

// Collator is the collation-aware string comparison service the host
// engine owns (§1: explicitly out of scope as an external collaborator).
// jsonhist never implements real collation rules itself; it only calls
// through this interface.
type Collator interface {
	// Compare returns -1, 0, or 1 the way bytes.Compare does, but under
	// whatever collation the implementation enforces.
	Compare(a, b []byte) int
}

// BinaryCollator is a byte-order collation used as the default when the
// caller supplies none. It is a convenience for tests and standalone use,
// not a substitute for the host's real collation service.
type BinaryCollator struct{}

func (BinaryCollator) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// BucketString is an owned byte buffer plus the collation used to compare
// it, mirroring the host's collation-aware string primitive (§3 Primitive).
type BucketString struct {
	Bytes     []byte
	Collation Collator
}

// NewBucketString copies b into a fresh BucketString under the given
// collation. A nil collation falls back to BinaryCollator at compare time.
func NewBucketString(b []byte, c Collator) BucketString {
	cp := make([]byte, len(b))
	copy(cp, b)
	return BucketString{Bytes: cp, Collation: c}
}

func (s BucketString) collator() Collator {
	if s.Collation != nil {
		return s.Collation
	}
	return BinaryCollator{}
}

// Compare orders s relative to other under s's collation (falling back to
// other's if s carries none).
func (s BucketString) Compare(other BucketString) int {
	c := s.Collation
	if c == nil {
		c = other.Collation
	}
	if c == nil {
		c = BinaryCollator{}
	}
	return c.Compare(s.Bytes, other.Bytes)
}

func (s BucketString) Equal(other BucketString) bool { return s.Compare(other) == 0 }

func (s BucketString) String() string { return string(s.Bytes) }

// Primitive is the tagged scalar of §3: Int(i64) | Float(f64) | Bool(bool) | String(BucketString).
type Primitive struct {
	Type ValueType
	i    int64
	f    float64
	b    bool
	s    BucketString
}

func IntPrimitive(v int64) Primitive     { return Primitive{Type: ValueInt, i: v} }
func FloatPrimitive(v float64) Primitive { return Primitive{Type: ValueFloat, f: v} }
func BoolPrimitive(v bool) Primitive     { return Primitive{Type: ValueBool, b: v} }
func StringPrimitive(s BucketString) Primitive {
	return Primitive{Type: ValueString, s: s}
}

func (p Primitive) Int() (int64, bool) {
	if p.Type != ValueInt {
		return 0, false
	}
	return p.i, true
}

func (p Primitive) Float() (float64, bool) {
	if p.Type != ValueFloat {
		return 0, false
	}
	return p.f, true
}

func (p Primitive) Bool() (bool, bool) {
	if p.Type != ValueBool {
		return 0 == 1, false
	}
	return p.b, true
}

func (p Primitive) Str() (BucketString, bool) {
	if p.Type != ValueString {
		return BucketString{}, false
	}
	return p.s, true
}

// numericValue returns p's value as a float64 for Int/Float primitives.
func numericValue(p Primitive) (float64, bool) {
	switch p.Type {
	case ValueInt:
		return float64(p.i), true
	case ValueFloat:
		return p.f, true
	default:
		return 0, false
	}
}

// extractInt64 coerces a Primitive into the int64 domain. A float comparand
// is truncated toward zero — "truncate and re-dispatch" per §4.3 — rather
// than rejected, since the bucket's domain is fixed and equality simply
// won't match a fractional query value.
func extractInt64(v Primitive) (int64, bool) {
	switch v.Type {
	case ValueInt:
		return v.i, true
	case ValueFloat:
		return int64(math.Trunc(v.f)), true
	default:
		return 0, false
	}
}

// extractFloat64 coerces a Primitive into the float64 domain, promoting an
// int comparand against a float-typed bucket per §4.3.
func extractFloat64(v Primitive) (float64, bool) {
	switch v.Type {
	case ValueFloat:
		return v.f, true
	case ValueInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func extractBool(v Primitive) (bool, bool) {
	if v.Type != ValueBool {
		return false, false
	}
	return v.b, true
}

func extractBucketString(v Primitive) (BucketString, bool) {
	if v.Type != ValueString {
		return BucketString{}, false
	}
	return v.s, true
}

// compareValues orders a relative to b under the domain named by vt,
// returning ok=false when either value cannot be coerced into that domain.
func compareValues(vt ValueType, a, b Primitive) (int, bool) {
	switch vt {
	case ValueInt, ValueFloat:
		af, aok := numericValue(a)
		bf, bok := numericValue(b)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	case ValueString:
		as, aok := a.Str()
		bs, bok := b.Str()
		if !aok || !bok {
			return 0, false
		}
		return as.Compare(bs), true
	case ValueBool:
		ab, aok := a.Bool()
		bb, bok := b.Bool()
		if !aok || !bok {
			return 0, false
		}
		switch {
		case ab == bb:
			return 0, true
		case !ab && bb:
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}

// comparablePrimitives orders two literal comparands of possibly differing
// but numerically compatible types, used to assert BETWEEN(a,b) has a ≤ b.
func comparablePrimitives(a, b Primitive) (int, bool) {
	if a.Type == b.Type {
		return compareValues(a.Type, a, b)
	}
	if (a.Type == ValueInt || a.Type == ValueFloat) && (b.Type == ValueInt || b.Type == ValueFloat) {
		af, _ := numericValue(a)
		bf, _ := numericValue(b)
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}
