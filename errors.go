// Package jsonhist implements a JSON-path-aware column histogram and the
// selectivity estimation engine built on top of it.
package jsonhist

import "fmt"

// ErrorKind classifies a jsonhist error for diagnostics in the host engine.
type ErrorKind int

const (
	// ErrMissingAttribute means a required field was absent from the
	// serialized form (e.g. a sub_histogram's "type", or max_val when
	// min_val is present).
	ErrMissingAttribute ErrorKind = iota
	// ErrWrongJSONType means a field had a JSON type other than what the
	// wire schema (§6.1) requires at that position.
	ErrWrongJSONType
	// ErrWrongBucketArity means a bucket or sub-histogram entry array had
	// a length outside the schema's allowed set.
	ErrWrongBucketArity
	// ErrOutOfMemory means a clone exceeded the caller-supplied arena budget.
	ErrOutOfMemory
	// ErrUnsupportedPath means the path encoder rejected a path expression
	// (bad prefix, unclosed bracket, too short).
	ErrUnsupportedPath
	// ErrUnsupportedFunction means the surrounding SQL function context
	// could not be resolved to one of JSON_EXTRACT / JSON_UNQUOTE(JSON_EXTRACT) / JSON_VALUE.
	ErrUnsupportedFunction
	// ErrInvalidFrequency means a single frequency value fell outside [0,1]
	// or violated a local invariant (e.g. rest_frequency on a singleton whose
	// entries already sum to 1.0).
	ErrInvalidFrequency
	// ErrInvalidTotalFrequency means a sum of frequencies across entries
	// violated an aggregate invariant (e.g. frequency + null_values > 1), or
	// a bucket's cross-field invariant failed (ndv smaller than the
	// sub-histogram, ndv == 1 with min_val != max_val).
	ErrInvalidTotalFrequency
	// ErrTypeMismatch means a comparand's type could not be reconciled with
	// a bucket's value_type.
	ErrTypeMismatch
	// ErrUnsupportedConfiguration means a structurally valid but disallowed
	// combination was found, e.g. an equi-height sub-histogram under a
	// string-typed bucket (see SPEC_FULL.md, Supplemented Features item 1).
	ErrUnsupportedConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMissingAttribute:
		return "missing-attribute"
	case ErrWrongJSONType:
		return "wrong-json-type"
	case ErrWrongBucketArity:
		return "wrong-bucket-arity"
	case ErrOutOfMemory:
		return "out-of-memory"
	case ErrUnsupportedPath:
		return "unsupported-path"
	case ErrUnsupportedFunction:
		return "unsupported-function"
	case ErrInvalidFrequency:
		return "invalid-frequency"
	case ErrInvalidTotalFrequency:
		return "invalid-total-frequency"
	case ErrTypeMismatch:
		return "type-mismatch"
	case ErrUnsupportedConfiguration:
		return "unsupported-configuration"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by deserialization and
// selectivity paths. Node is a diagnostic reference (a JSON-pointer-ish
// path such as "buckets[3].sub_histogram") used by the host's error
// context; it carries no semantic meaning for control flow.
type Error struct {
	Kind  ErrorKind
	Node  string
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("jsonhist: %s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("jsonhist: %s at %s: %s", e.Kind, e.Node, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind ErrorKind, node, msg string) *Error {
	return &Error{Kind: kind, Node: node, Msg: msg}
}

func newErrf(kind ErrorKind, node, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Node: node, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind ErrorKind, node string, cause error) *Error {
	return &Error{Kind: kind, Node: node, Msg: cause.Error(), cause: cause}
}

// withNode rewrites the diagnostic node of an error produced deeper in the
// call stack, prefixing it with the caller's own position. Non-*Error
// values are wrapped as-is.
func withNode(err error, node string) error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*Error); ok {
		if he.Node == "" {
			he.Node = node
		} else {
			he.Node = node + "." + he.Node
		}
		return he
	}
	return wrapErr(ErrWrongJSONType, node, err)
}
