package jsonhist

import (
	"bytes"
	"encoding/base64"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// wireHistogram mirrors the top-level object of §6.1's serialized form.
type wireHistogram struct {
	HistogramType            string          `json:"histogram-type"`
	DataType                 string          `json:"data-type"`
	NullValues               float64         `json:"null-values"`
	LastUpdated              string          `json:"last-updated"`
	NumberOfBucketsSpecified int             `json:"number-of-buckets-specified"`
	CollationID              int64           `json:"collation-id"`
	SamplingRate             float64         `json:"sampling-rate"`
	Buckets                  [][]interface{} `json:"buckets"`
}

const wireTimeLayout = time.RFC3339

// ToJSON renders the histogram into the §6.1 wire schema.
func (h *Histogram) ToJSON() ([]byte, error) {
	w := wireHistogram{
		HistogramType:            "json-flex",
		DataType:                 h.DataType.String(),
		NullValues:               h.NullValues,
		LastUpdated:              h.LastUpdated.Format(wireTimeLayout),
		NumberOfBucketsSpecified: h.NumberOfBucketsSpecified,
		CollationID:              h.CollationID,
		SamplingRate:             h.SamplingRate,
		Buckets:                  make([][]interface{}, 0, h.NumBuckets()),
	}

	if h.Store != nil {
		for i, b := range h.Store.Buckets {
			row, err := bucketToRow(b)
			if err != nil {
				return nil, withNode(err, bucketNode(i))
			}
			w.Buckets = append(w.Buckets, row)
		}
	}

	return json.Marshal(w)
}

func bucketNode(i int) string {
	return "buckets[" + itoa(i) + "]"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func bucketToRow(b *KeyPathBucket) ([]interface{}, error) {
	row := []interface{}{
		base64.StdEncoding.EncodeToString(b.KeyPath),
		b.Frequency,
		b.NullValues,
	}
	if b.MinVal == nil && b.MaxVal == nil && b.NDV == nil && b.Sub == nil {
		return row, nil
	}

	minRaw, err := primitiveToRaw(b.MinVal)
	if err != nil {
		return nil, err
	}
	maxRaw, err := primitiveToRaw(b.MaxVal)
	if err != nil {
		return nil, err
	}
	row = append(row, minRaw, maxRaw)

	if b.NDV == nil && b.Sub == nil {
		return row, nil
	}
	var ndvRaw interface{}
	if b.NDV != nil {
		ndvRaw = *b.NDV
	}
	row = append(row, ndvRaw)

	if b.Sub == nil {
		return row, nil
	}
	subRaw, err := subHistogramToRaw(b.Sub)
	if err != nil {
		return nil, err
	}
	row = append(row, subRaw)
	return row, nil
}

func primitiveToRaw(p *Primitive) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	switch p.Type {
	case ValueInt:
		v, _ := p.Int()
		return v, nil
	case ValueFloat:
		v, _ := p.Float()
		return v, nil
	case ValueBool:
		v, _ := p.Bool()
		return v, nil
	case ValueString:
		s, _ := p.Str()
		return base64.StdEncoding.EncodeToString(s.Bytes), nil
	default:
		return nil, newErr(ErrWrongJSONType, "", "primitive has no value_type set")
	}
}

func subHistogramToRaw(sub subHistogram) (map[string]interface{}, error) {
	switch sh := sub.(type) {
	case *SubHistogram[int64]:
		return genericSubToRaw(sh, func(v int64) interface{} { return v })
	case *SubHistogram[float64]:
		return genericSubToRaw(sh, func(v float64) interface{} { return v })
	case *SubHistogram[bool]:
		return genericSubToRaw(sh, func(v bool) interface{} { return v })
	case *SubHistogram[BucketString]:
		return genericSubToRaw(sh, func(v BucketString) interface{} {
			return base64.StdEncoding.EncodeToString(v.Bytes)
		})
	default:
		return nil, newErr(ErrWrongJSONType, "", "unknown sub-histogram element type")
	}
}

func genericSubToRaw[T any](sh *SubHistogram[T], toRaw func(T) interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	switch sh.Kind {
	case SubSingleton:
		out["type"] = "singleton"
		buckets := make([][]interface{}, len(sh.Singleton))
		for i, e := range sh.Singleton {
			buckets[i] = []interface{}{toRaw(e.Value), e.Frequency}
		}
		out["buckets"] = buckets
		if sh.RestMeanFrequency != nil {
			out["rest_frequency"] = *sh.RestMeanFrequency
		}
	case SubEquiHeight:
		out["type"] = "equi-height"
		buckets := make([][]interface{}, len(sh.EquiHeight))
		for i, e := range sh.EquiHeight {
			buckets[i] = []interface{}{toRaw(e.UpperBound), e.Frequency, e.NDV}
		}
		out["buckets"] = buckets
	default:
		return nil, newErr(ErrWrongJSONType, "", "unknown sub-histogram kind")
	}
	return out, nil
}

// FromJSON parses raw into a Histogram, validating every bucket and
// sub-histogram invariant named in §3/§9 as it goes. Errors carry a node
// reference identifying where in the document the failure occurred.
func FromJSON(raw []byte, collation Collator) (*Histogram, error) {
	var w wireHistogram
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, wrapErr(ErrWrongJSONType, "", err)
	}

	h := NewHistogram(collation)
	h.DataType = DataTypeJSON
	if w.DataType == "string" {
		h.DataType = DataTypeString
	}
	h.NullValues = w.NullValues
	h.NumberOfBucketsSpecified = w.NumberOfBucketsSpecified
	h.CollationID = w.CollationID
	h.SamplingRate = w.SamplingRate
	if w.LastUpdated != "" {
		t, err := time.Parse(wireTimeLayout, w.LastUpdated)
		if err != nil {
			return nil, newErrf(ErrWrongJSONType, "last-updated", "invalid timestamp: %v", err)
		}
		h.LastUpdated = t
	}

	buckets := make([]*KeyPathBucket, len(w.Buckets))
	for i, row := range w.Buckets {
		b, err := rowToBucket(row, collation)
		if err != nil {
			return nil, withNode(err, bucketNode(i))
		}
		buckets[i] = b
	}
	h.Store = NewBucketStore(buckets)

	if len(buckets) == 0 {
		h.MinFrequency = 1.0
	} else {
		h.MinFrequency = minBucketFrequency(buckets)
	}
	return h, nil
}

func minBucketFrequency(buckets []*KeyPathBucket) float64 {
	min := buckets[0].Frequency
	for _, b := range buckets[1:] {
		if b.Frequency < min {
			min = b.Frequency
		}
	}
	return min
}

func rowToBucket(row []interface{}, collation Collator) (*KeyPathBucket, error) {
	switch len(row) {
	case 3, 5, 6, 7:
	default:
		return nil, newErrf(ErrWrongBucketArity, "", "bucket array has length %d, want 3, 5, 6, or 7", len(row))
	}

	keyPathRaw, ok := row[0].(string)
	if !ok {
		return nil, newErr(ErrWrongJSONType, "key_path", "expected base64 string")
	}
	keyPath, err := base64.StdEncoding.DecodeString(keyPathRaw)
	if err != nil {
		return nil, wrapErr(ErrWrongJSONType, "key_path", err)
	}

	freq, err := rawToFloat(row[1], "frequency")
	if err != nil {
		return nil, err
	}
	nullVal, err := rawToFloat(row[2], "null_values")
	if err != nil {
		return nil, err
	}
	if freq < 0 || freq > 1 {
		return nil, newErrf(ErrInvalidFrequency, "frequency", "frequency %v out of [0,1]", freq)
	}
	if nullVal < 0 || nullVal > 1 {
		return nil, newErrf(ErrInvalidFrequency, "null_values", "null_values %v out of [0,1]", nullVal)
	}
	if freq+nullVal > 1+1e-9 {
		return nil, newErrf(ErrInvalidTotalFrequency, "", "frequency (%v) + null_values (%v) exceeds 1", freq, nullVal)
	}

	b := &KeyPathBucket{
		KeyPath:    keyPath,
		Frequency:  freq,
		NullValues: nullVal,
		ValueType:  valueTypeFromKeyPath(keyPath),
	}
	numericSuffix := strings.HasSuffix(string(keyPath), "_num")

	var subRaw map[string]interface{}
	if len(row) == 7 && row[6] != nil {
		m, ok := row[6].(map[string]interface{})
		if !ok {
			return nil, newErr(ErrWrongJSONType, "sub_histogram", "expected object")
		}
		subRaw = m
	}

	if numericSuffix && b.ValueType == ValueUnknown {
		b.ValueType = ValueInt
		if len(row) >= 5 && row[3] != nil {
			b.ValueType = numericRawType(row[3])
		} else if subRaw != nil {
			b.ValueType = inferNumericDomain(subRaw)
		}
	}

	if len(row) >= 5 {
		minP, err := rawToPrimitive(row[3], b.ValueType, collation, "min_val")
		if err != nil {
			return nil, err
		}
		maxP, err := rawToPrimitive(row[4], b.ValueType, collation, "max_val")
		if err != nil {
			return nil, err
		}
		if (minP == nil) != (maxP == nil) {
			return nil, newErr(ErrMissingAttribute, "min_val/max_val", "min_val and max_val must be present together")
		}
		b.MinVal, b.MaxVal = minP, maxP
	}

	if len(row) >= 6 {
		if row[5] != nil {
			ndv, err := rawToInt(row[5], "ndv")
			if err != nil {
				return nil, err
			}
			b.NDV = &ndv
		}
	}

	if subRaw != nil {
		sub, err := rawToSubHistogram(subRaw, b.ValueType, collation)
		if err != nil {
			return nil, withNode(err, "sub_histogram")
		}
		b.Sub = sub
	}

	if err := validateBucket(b); err != nil {
		return nil, err
	}
	return b, nil
}

// valueTypeFromKeyPath reads the terminal type suffix appended by
// EncodePath (§4.1) off a canonical key path.
func valueTypeFromKeyPath(path []byte) ValueType {
	s := string(path)
	switch {
	case strings.HasSuffix(s, "_num"):
		return ValueUnknown // disambiguated once a value is seen; see rowToBucket
	case strings.HasSuffix(s, "_bool"):
		return ValueBool
	case strings.HasSuffix(s, "_str"):
		return ValueString
	default:
		return ValueUnknown
	}
}

func rawToFloat(raw interface{}, node string) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, wrapErr(ErrWrongJSONType, node, err)
		}
		return f, nil
	default:
		return 0, newErr(ErrWrongJSONType, node, "expected a JSON number")
	}
}

func rawToInt(raw interface{}, node string) (int64, error) {
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, wrapErr(ErrWrongJSONType, node, err)
		}
		return i, nil
	default:
		return 0, newErr(ErrWrongJSONType, node, "expected a JSON integer")
	}
}

// numberLooksIntegral inspects a JSON number's textual form for a
// fractional or exponent marker — the only way to tell MySQL's int/float
// apart once decoded through an interface{}, since JSON itself makes no
// such distinction.
func numberLooksIntegral(s string) bool {
	return !strings.ContainsAny(s, ".eE")
}

// numericRawType inspects a single decoded JSON number and reports whether
// it reads as ValueInt or ValueFloat.
func numericRawType(raw interface{}) ValueType {
	switch v := raw.(type) {
	case json.Number:
		if numberLooksIntegral(v.String()) {
			return ValueInt
		}
		return ValueFloat
	case float64:
		return ValueFloat
	default:
		return ValueInt
	}
}

// inferNumericDomain determines whether a "_num"-suffixed bucket's
// sub-histogram is over int64 or float64 by inspecting its first entry,
// for the case where min_val/max_val are absent. The wire schema (§6.1)
// does not carry an explicit int-vs-float tag, only the JSON number's own
// textual shape.
func inferNumericDomain(subRaw map[string]interface{}) ValueType {
	buckets, _ := subRaw["buckets"].([]interface{})
	if len(buckets) == 0 {
		return ValueInt
	}
	entry, ok := buckets[0].([]interface{})
	if !ok || len(entry) == 0 {
		return ValueInt
	}
	return numericRawType(entry[0])
}

func rawToPrimitive(raw interface{}, vt ValueType, collation Collator, node string) (*Primitive, error) {
	if raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case bool:
		p := BoolPrimitive(v)
		return &p, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, wrapErr(ErrWrongJSONType, node, err)
		}
		p := StringPrimitive(NewBucketString(b, collation))
		return &p, nil
	case float64, json.Number:
		integral := true
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case json.Number:
			integral = numberLooksIntegral(n.String())
			parsed, err := n.Float64()
			if err != nil {
				return nil, wrapErr(ErrWrongJSONType, node, err)
			}
			f = parsed
		}
		if vt == ValueFloat || !integral {
			p := FloatPrimitive(f)
			return &p, nil
		}
		p := IntPrimitive(int64(f))
		return &p, nil
	default:
		return nil, newErr(ErrWrongJSONType, node, "unsupported min_val/max_val JSON type")
	}
}

func rawToSubHistogram(raw map[string]interface{}, vt ValueType, collation Collator) (subHistogram, error) {
	kindRaw, ok := raw["type"].(string)
	if !ok {
		return nil, newErr(ErrMissingAttribute, "type", "sub_histogram missing \"type\"")
	}
	var kind SubKind
	switch kindRaw {
	case "singleton":
		kind = SubSingleton
	case "equi-height":
		kind = SubEquiHeight
	default:
		return nil, newErrf(ErrWrongJSONType, "type", "unknown sub_histogram type %q", kindRaw)
	}

	if kind == SubEquiHeight && vt == ValueString {
		return nil, newErr(ErrUnsupportedConfiguration, "type", "equi-height sub-histograms are not supported for string-typed buckets")
	}

	bucketsRaw, _ := raw["buckets"].([]interface{})

	var restPtr *float64
	if rf, ok := raw["rest_frequency"]; ok && rf != nil {
		f, err := rawToFloat(rf, "rest_frequency")
		if err != nil {
			return nil, err
		}
		restPtr = &f
	}

	switch vt {
	case ValueInt:
		return buildSub(kind, bucketsRaw, restPtr, extractInt64, func(a, b int64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}, rawToIntScalar)
	case ValueFloat:
		return buildSub(kind, bucketsRaw, restPtr, extractFloat64, func(a, b float64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}, rawToFloatScalar)
	case ValueBool:
		return buildSub(kind, bucketsRaw, restPtr, extractBool, func(a, b bool) int {
			switch {
			case a == b:
				return 0
			case !a && b:
				return -1
			default:
				return 1
			}
		}, rawToBoolScalar)
	case ValueString:
		return buildSub(kind, bucketsRaw, restPtr, extractBucketString, func(a, b BucketString) int {
			return a.Compare(b)
		}, func(raw interface{}) (BucketString, error) {
			return rawToBucketStringScalar(raw, collation)
		})
	default:
		return nil, newErr(ErrUnsupportedConfiguration, "", "sub_histogram present without a determinable value_type")
	}
}

func buildSub[T any](
	kind SubKind,
	bucketsRaw []interface{},
	rest *float64,
	extract func(Primitive) (T, bool),
	cmp func(a, b T) int,
	scalar func(interface{}) (T, error),
) (*SubHistogram[T], error) {
	sh := &SubHistogram[T]{Kind: kind, RestMeanFrequency: rest, cmp: cmp, extract: extract}

	switch kind {
	case SubSingleton:
		sum := 0.0
		for i, entryRaw := range bucketsRaw {
			arr, ok := entryRaw.([]interface{})
			if !ok || len(arr) != 2 {
				return nil, newErrf(ErrWrongBucketArity, bucketNode(i), "singleton entry must be [value, frequency]")
			}
			v, err := scalar(arr[0])
			if err != nil {
				return nil, withNode(err, bucketNode(i))
			}
			f, err := rawToFloat(arr[1], "frequency")
			if err != nil {
				return nil, withNode(err, bucketNode(i))
			}
			sh.Singleton = append(sh.Singleton, SingletonEntry[T]{Value: v, Frequency: f})
			sum += f
		}
		if sum >= 1-1e-9 && rest != nil {
			return nil, newErr(ErrInvalidFrequency, "rest_frequency", "rest_frequency must be absent once singleton frequencies already sum to 1.0")
		}
	case SubEquiHeight:
		for i, entryRaw := range bucketsRaw {
			arr, ok := entryRaw.([]interface{})
			if !ok || len(arr) != 3 {
				return nil, newErrf(ErrWrongBucketArity, bucketNode(i), "equi-height entry must be [upper_bound, frequency, ndv]")
			}
			v, err := scalar(arr[0])
			if err != nil {
				return nil, withNode(err, bucketNode(i))
			}
			f, err := rawToFloat(arr[1], "frequency")
			if err != nil {
				return nil, withNode(err, bucketNode(i))
			}
			ndv, err := rawToInt(arr[2], "ndv")
			if err != nil {
				return nil, withNode(err, bucketNode(i))
			}
			sh.EquiHeight = append(sh.EquiHeight, EquiHeightEntry[T]{UpperBound: v, Frequency: f, NDV: ndv})
		}
	}
	return sh, nil
}

func rawToIntScalar(raw interface{}) (int64, error) {
	return rawToInt(raw, "value")
}

func rawToFloatScalar(raw interface{}) (float64, error) {
	return rawToFloat(raw, "value")
}

func rawToBoolScalar(raw interface{}) (bool, error) {
	v, ok := raw.(bool)
	if !ok {
		return false, newErr(ErrWrongJSONType, "value", "expected a JSON boolean")
	}
	return v, nil
}

func rawToBucketStringScalar(raw interface{}, collation Collator) (BucketString, error) {
	s, ok := raw.(string)
	if !ok {
		return BucketString{}, newErr(ErrWrongJSONType, "value", "expected a base64 string")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return BucketString{}, wrapErr(ErrWrongJSONType, "value", err)
	}
	return NewBucketString(b, collation), nil
}

// validateBucket enforces §3's structural invariants across min/max, ndv,
// and sub-histogram, beyond what rowToBucket already checked per-field.
func validateBucket(b *KeyPathBucket) error {
	if b.Sub != nil && (b.NDV == nil || *b.NDV < int64(b.Sub.Len())) {
		return newErr(ErrInvalidTotalFrequency, "ndv", "ndv must be present and >= the number of sub-histogram entries")
	}
	if b.NDV != nil && *b.NDV == 1 {
		if b.MinVal == nil || b.MaxVal == nil {
			return newErr(ErrMissingAttribute, "min_val/max_val", "ndv == 1 requires min_val == max_val")
		}
		c, ok := compareValues(b.ValueType, *b.MinVal, *b.MaxVal)
		if !ok || c != 0 {
			return newErr(ErrInvalidTotalFrequency, "min_val/max_val", "ndv == 1 requires min_val == max_val")
		}
	}
	return nil
}
