package paramset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/vitaliisemenov/configd/internal/cderrors"
)

// Value is a single typed parameter value. It is stored internally as
// a decoded JSON value (scalar, string, list, nested object, or 1-D/2-D
// array) and never carries its own name; the containing Set owns that.
type Value struct {
	raw any
}

// NewValue wraps a decoded JSON value into a Value. Native Go numeric
// types (the ones callers reach for when constructing a Value
// directly, rather than via ParseSet/ParseUpdateObject) are normalized
// to json.Number so the typed-cast methods below see one
// representation regardless of origin.
func NewValue(raw any) Value {
	return Value{raw: normalizeNative(raw)}
}

func normalizeNative(raw any) any {
	switch t := raw.(type) {
	case json.Number, string, bool, nil, []any, map[string]any:
		return t
	case int:
		return json.Number(fmt.Sprintf("%d", t))
	case int8:
		return json.Number(fmt.Sprintf("%d", t))
	case int16:
		return json.Number(fmt.Sprintf("%d", t))
	case int32:
		return json.Number(fmt.Sprintf("%d", t))
	case int64:
		return json.Number(fmt.Sprintf("%d", t))
	case uint:
		return json.Number(fmt.Sprintf("%d", t))
	case uint8:
		return json.Number(fmt.Sprintf("%d", t))
	case uint16:
		return json.Number(fmt.Sprintf("%d", t))
	case uint32:
		return json.Number(fmt.Sprintf("%d", t))
	case uint64:
		return json.Number(fmt.Sprintf("%d", t))
	case float32:
		return json.Number(fmt.Sprintf("%g", t))
	case float64:
		return json.Number(fmt.Sprintf("%g", t))
	default:
		return raw
	}
}

// decodeJSON decodes a single JSON value, preserving the distinction
// between integer and floating-point literals via json.Number so that
// numeric casts can apply the widening rules in §4.A.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeDecoded(v), nil
}

// normalizeDecoded walks a decoded value, leaving json.Number scalars
// as they are and recursing into arrays/objects so the stored representation is
// consistent regardless of how it was produced (decode vs. direct
// construction from Go values).
func normalizeDecoded(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeDecoded(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeDecoded(e)
		}
		return out
	default:
		return v
	}
}

// Raw returns the underlying decoded value.
func (v Value) Raw() any {
	return v.raw
}

// MarshalJSON re-encodes the underlying value, preserving json.Number
// literals exactly as received (so "42" stays "42", not "42.0").
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// Equal reports structural equality between two values, following
// json.Number semantics (numeric equality, not textual).
func (v Value) Equal(other Value) bool {
	return valuesEqual(v.raw, other.raw)
}

func valuesEqual(a, b any) bool {
	an, aIsNum := a.(json.Number)
	bn, bIsNum := b.(json.Number)
	if aIsNum && bIsNum {
		af, aerr := an.Float64()
		bf, berr := bn.Float64()
		return aerr == nil && berr == nil && af == bf
	}
	if aIsNum != bIsNum {
		return false
	}
	aArr, aIsArr := a.([]any)
	bArr, bIsArr := b.([]any)
	if aIsArr && bIsArr {
		if len(aArr) != len(bArr) {
			return false
		}
		for i := range aArr {
			if !valuesEqual(aArr[i], bArr[i]) {
				return false
			}
		}
		return true
	}
	if aIsArr != bIsArr {
		return false
	}
	aMap, aIsMap := a.(map[string]any)
	bMap, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		if len(aMap) != len(bMap) {
			return false
		}
		for k, av := range aMap {
			bv, ok := bMap[k]
			if !ok || !valuesEqual(av, bv) {
				return false
			}
		}
		return true
	}
	return a == b
}

// Int64 casts the value to a signed 64-bit integer. A JSON float
// literal is only accepted if it has no fractional part; otherwise
// ValueCastingError is returned.
func (v Value) Int64() (int64, error) {
	n, ok := v.raw.(json.Number)
	if !ok {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value is not numeric")
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, cderrors.New(cderrors.KindValueCastingError, fmt.Sprintf("%q does not fit in int64", n.String()))
	}
	return int64(f), nil
}

// Uint64 casts the value to an unsigned 64-bit integer, rejecting
// negative values.
func (v Value) Uint64() (uint64, error) {
	i, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "negative value does not fit in unsigned type")
	}
	return uint64(i), nil
}

// Int32 casts to a signed 32-bit integer, returning ValueCastingError
// on overflow.
func (v Value) Int32() (int32, error) {
	i, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value out of range for int32")
	}
	return int32(i), nil
}

// Int16 casts to a signed 16-bit integer, returning ValueCastingError
// on overflow.
func (v Value) Int16() (int16, error) {
	i, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if i < math.MinInt16 || i > math.MaxInt16 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value out of range for int16")
	}
	return int16(i), nil
}

// Int8 casts to a signed 8-bit integer, returning ValueCastingError
// on overflow.
func (v Value) Int8() (int8, error) {
	i, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if i < math.MinInt8 || i > math.MaxInt8 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value out of range for int8")
	}
	return int8(i), nil
}

// Uint32 casts to an unsigned 32-bit integer, rejecting negative
// values and overflow.
func (v Value) Uint32() (uint32, error) {
	i, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	if i > math.MaxUint32 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value out of range for uint32")
	}
	return uint32(i), nil
}

// Uint16 casts to an unsigned 16-bit integer, rejecting negative
// values and overflow.
func (v Value) Uint16() (uint16, error) {
	i, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	if i > math.MaxUint16 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value out of range for uint16")
	}
	return uint16(i), nil
}

// Uint8 casts to an unsigned 8-bit integer, rejecting negative values
// and overflow.
func (v Value) Uint8() (uint8, error) {
	i, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	if i > math.MaxUint8 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value out of range for uint8")
	}
	return uint8(i), nil
}

// Float64 casts the value to a 64-bit float. A JSON integer literal
// (e.g. 42 instead of 42.0) is accepted and widened, per §4.A.
func (v Value) Float64() (float64, error) {
	n, ok := v.raw.(json.Number)
	if !ok {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value is not numeric")
	}
	f, err := n.Float64()
	if err != nil {
		return 0, cderrors.New(cderrors.KindValueCastingError, fmt.Sprintf("%q is not a valid float", n.String()))
	}
	return f, nil
}

// Float32 casts the value to a 32-bit float, returning
// ValueCastingError if it does not fit without overflowing to
// infinity.
func (v Value) Float32() (float32, error) {
	f, err := v.Float64()
	if err != nil {
		return 0, err
	}
	if f > math.MaxFloat32 || f < -math.MaxFloat32 {
		return 0, cderrors.New(cderrors.KindValueCastingError, "value out of range for float32")
	}
	return float32(f), nil
}

// String returns the value unchanged if it is a JSON string.
func (v Value) String() (string, error) {
	s, ok := v.raw.(string)
	if !ok {
		return "", cderrors.New(cderrors.KindValueCastingError, "value is not a string")
	}
	return s, nil
}

// Array casts the value to a 1-D sequence of Values. Heterogeneous
// elements are permitted at this layer (element-level casting happens
// when the caller reads an individual element); nested arrays/objects
// remain as-is.
func (v Value) Array() ([]Value, error) {
	arr, ok := v.raw.([]any)
	if !ok {
		return nil, cderrors.New(cderrors.KindValueCastingError, "value is not an array")
	}
	out := make([]Value, len(arr))
	for i, e := range arr {
		out[i] = Value{raw: e}
	}
	return out, nil
}

// Array2D casts the value to a sequence of sequences, yielding
// ValueCastingError if any element is not itself an array.
func (v Value) Array2D() ([][]Value, error) {
	rows, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([][]Value, len(rows))
	for i, row := range rows {
		inner, err := row.Array()
		if err != nil {
			return nil, cderrors.New(cderrors.KindValueCastingError, "array element is not itself an array")
		}
		out[i] = inner
	}
	return out, nil
}
