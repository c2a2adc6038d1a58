package jsonhist

// Fallback multipliers applied to MinFrequency when a predicate's path has
// no matching bucket (§4.4). These are intentionally fixed constants, not
// tunables, so selectivity estimates stay comparable across histograms.
const (
	fallbackEQ        = 0.1
	fallbackIneq      = 0.3
	fallbackIsNotNull = 0.8
	fallbackIsNull    = 0.2
)

// Selectivity is the §4.4 entry point: given a function-wrapped path, an
// operator, and zero or more literal comparands, it estimates the
// fraction of rows matching the predicate.
func (h *Histogram) Selectivity(fn Func, op Operator, comparands []Primitive) (float64, error) {
	switch op {
	case OpIsNull, OpIsNotNull:
		return h.selIsNull(fn, op)
	}

	var comparandType ValueType
	if len(comparands) > 0 {
		comparandType = comparands[0].Type
	}
	path, err := EncodePath(fn.Path, comparandType, fn.Kind.TypeCertain())
	if err != nil {
		return 0, err
	}

	switch op {
	case OpEQ, OpNEQ:
		return h.selEQ(path, op, comparands)
	case OpLT, OpLE:
		return h.selOrder(path, comparands, true)
	case OpGT, OpGE:
		return h.selOrder(path, comparands, false)
	case OpBetween, OpNotBetween:
		return h.selBetween(path, op, comparands)
	case OpIn, OpNotIn:
		return h.selIn(path, op, comparands)
	default:
		return 0, newErr(ErrUnsupportedFunction, "", "unsupported operator in selectivity")
	}
}

func (h *Histogram) fallback(c float64) float64 {
	return h.MinFrequency * c
}

// baseOf returns the bucket's base frequency for path, or MinFrequency as
// the "path not found" stand-in per §4.4.
func (h *Histogram) baseOf(path []byte) float64 {
	if b, ok := h.Store.Find(path); ok {
		return b.Base()
	}
	return h.MinFrequency
}

func (h *Histogram) selEQ(path []byte, op Operator, comparands []Primitive) (float64, error) {
	if len(comparands) != 1 {
		return 0, newErr(ErrTypeMismatch, "", "EQ/NEQ require exactly one comparand")
	}
	res, ok := h.Store.LookupTyped(path, comparands[0])
	if !ok {
		if op == OpEQ {
			return h.fallback(fallbackEQ), nil
		}
		return h.baseOf(path) - h.fallback(fallbackEQ), nil
	}
	if op == OpEQ {
		return res.Eq, nil
	}
	return h.baseOf(path) - res.Eq, nil
}

func (h *Histogram) selOrder(path []byte, comparands []Primitive, less bool) (float64, error) {
	if len(comparands) != 1 {
		return 0, newErr(ErrTypeMismatch, "", "LT/LE/GT/GE require exactly one comparand")
	}
	res, ok := h.Store.LookupTyped(path, comparands[0])
	if !ok {
		return h.fallback(fallbackIneq), nil
	}
	if less {
		return res.Lt, nil
	}
	return res.Gt, nil
}

func (h *Histogram) selBetween(path []byte, op Operator, comparands []Primitive) (float64, error) {
	if len(comparands) != 2 {
		return 0, newErr(ErrTypeMismatch, "", "BETWEEN/NOT_BETWEEN require exactly two comparands")
	}
	a, b := comparands[0], comparands[1]
	if cmp, ok := comparablePrimitives(a, b); ok && cmp > 0 {
		return 0, newErr(ErrTypeMismatch, "", "BETWEEN requires a <= b")
	}

	base := h.baseOf(path)
	resA, okA := h.Store.LookupTyped(path, a)
	resB, okB := h.Store.LookupTyped(path, b)
	if !okA || !okB {
		v := h.fallback(fallbackIneq)
		if op == OpNotBetween {
			return base - clip(v, base), nil
		}
		return clip(v, base), nil
	}

	between := 1 - resA.Lt - resB.Gt
	between = clip(between, base)
	if op == OpNotBetween {
		return base - between, nil
	}
	return between, nil
}

func (h *Histogram) selIn(path []byte, op Operator, comparands []Primitive) (float64, error) {
	if len(comparands) == 0 {
		return 0, newErr(ErrTypeMismatch, "", "IN/NOT_IN require at least one comparand")
	}
	base := h.baseOf(path)
	sum := 0.0
	for _, c := range comparands {
		res, ok := h.Store.LookupTyped(path, c)
		if ok {
			sum += res.Eq
		} else {
			sum += h.fallback(fallbackEQ)
		}
	}
	in := sum
	if in > base {
		in = base
	}
	if op == OpIn {
		return in, nil
	}
	return base - in, nil
}

// selIsNull implements §4.4's IS NULL / IS NOT NULL dispatch against the
// untyped (suffix-free) bucket for the path. Under JSON_VALUE, IS NOT NULL
// is the bucket's base frequency (path resolves to a non-null value); under
// the other function shapes it is the bucket's Frequency (path resolves at
// all). IS NULL is one minus that. A missing bucket falls back to the
// IS NULL/IS NOT NULL constants rather than EQ/NEQ's.
func (h *Histogram) selIsNull(fn Func, op Operator) (float64, error) {
	path, err := EncodePath(fn.Path, ValueUnknown, false)
	if err != nil {
		return 0, err
	}

	b, ok := h.Store.Find(path)
	if !ok {
		if op == OpIsNull {
			return h.fallback(fallbackIsNull), nil
		}
		return h.fallback(fallbackIsNotNull), nil
	}

	if fn.Kind == FuncJSONValue {
		notEqNull := b.Base()
		if op == OpIsNull {
			return 1 - notEqNull, nil
		}
		return notEqNull, nil
	}

	exists := b.Frequency
	if op == OpIsNull {
		return 1 - exists, nil
	}
	return exists, nil
}

// NDV sums NDV across the three type-suffixed siblings of fn's path
// (`_num`, `_bool`, `_str`), per §4.4's NDV aggregation rule.
func (h *Histogram) NDV(fn Func) (*int64, bool) {
	base, err := EncodePath(fn.Path, ValueUnknown, false)
	if err != nil {
		return nil, false
	}

	var total int64
	found := false
	for _, suffix := range []string{"_num", "_bool", "_str"} {
		path := append(append([]byte{}, base...), suffix...)
		if b, ok := h.Store.Find(path); ok && b.NDV != nil {
			total += *b.NDV
			found = true
		}
	}
	if !found {
		return nil, false
	}
	return &total, true
}

func clip(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
