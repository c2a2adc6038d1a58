package jsonhist

// FuncKind identifies which SQL extraction function surrounds a JSON path
// reference, which determines both whether the leaf type is certain
// (§4.1) and how IS NULL is interpreted (§4.4).
type FuncKind int

const (
	// FuncJSONExtract is bare JSON_EXTRACT: the result is still a JSON
	// value, so the leaf type is not certain and IS NULL means "the path
	// does not exist"; a path holding the JSON null literal still exists.
	FuncJSONExtract FuncKind = iota
	// FuncJSONUnquoteExtract is JSON_UNQUOTE(JSON_EXTRACT(...)) (or the
	// `->>` operator): quoting is stripped, so the leaf type is certain.
	FuncJSONUnquoteExtract
	// FuncJSONValue is JSON_VALUE(...): leaf type is certain, and unlike
	// the other two, both a path that fails to resolve and a present JSON
	// null read as SQL NULL (§4.4's IS NULL special case).
	FuncJSONValue
)

// TypeCertain reports whether this function shape guarantees the
// extracted value's JSON type matches the comparand's declared type,
// enabling a type-suffixed path encoding (§4.1).
func (k FuncKind) TypeCertain() bool {
	return k == FuncJSONUnquoteExtract || k == FuncJSONValue
}

// Func pairs a resolved function shape with the raw path expression it
// wraps.
type Func struct {
	Kind FuncKind
	Path []byte
}

// ResolveFuncKind maps the SQL-level outer/inner function names around a
// JSON path reference onto a FuncKind, per §4.1's edge case: any other
// combination is an UnsupportedFunction error.
func ResolveFuncKind(outer, inner string) (FuncKind, error) {
	switch {
	case outer == "JSON_EXTRACT" && inner == "":
		return FuncJSONExtract, nil
	case outer == "JSON_UNQUOTE" && inner == "JSON_EXTRACT":
		return FuncJSONUnquoteExtract, nil
	case outer == "JSON_VALUE" && inner == "":
		return FuncJSONValue, nil
	default:
		return 0, newErrf(ErrUnsupportedFunction, "", "unsupported function context %q(%q(...))", outer, inner)
	}
}

// Operator is the fixed set of predicate shapes the selectivity engine
// understands (§4.4 / §4.3).
type Operator int

const (
	OpEQ Operator = iota
	OpNEQ
	OpLT
	OpLE
	OpGT
	OpGE
	OpBetween
	OpNotBetween
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
)
