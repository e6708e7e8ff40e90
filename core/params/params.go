// Package params provides the typed parameter sets passed between the tuner,
// the persisted study and the model constructors.
package params

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// Kind is the type tag of a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

func parseKind(s string) Kind {
	switch s {
	case "int":
		return KindInt
	case "float":
		return KindFloat
	case "string":
		return KindString
	case "bool":
		return KindBool
	default:
		return KindInvalid
	}
}

// Value is a single typed hyperparameter value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func Int(v int) Value         { return Value{kind: KindInt, i: int64(v)} }
func Float(v float64) Value   { return Value{kind: KindFloat, f: v} }
func String(v string) Value   { return Value{kind: KindString, s: v} }
func Bool(v bool) Value       { return Value{kind: KindBool, b: v} }
func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsInt returns the integer value. Floats with an integral value convert.
func (v Value) AsInt() (int, bool) {
	switch v.kind {
	case KindInt:
		return int(v.i), true
	case KindFloat:
		if v.f == math.Trunc(v.f) {
			return int(v.f), true
		}
	}
	return 0, false
}

// AsFloat returns the numeric value as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }

// Interface returns the value as a plain Go value.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return int(v.i)
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBool:
		return v.b
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return "<invalid>"
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	}
	return true
}

type jsonValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value with its type tag so ints survive a round trip.
func (v Value) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Type: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	switch parseKind(jv.Type) {
	case KindInt:
		var i int64
		if err := json.Unmarshal(jv.Value, &i); err != nil {
			return err
		}
		*v = Value{kind: KindInt, i: i}
	case KindFloat:
		var f float64
		if err := json.Unmarshal(jv.Value, &f); err != nil {
			return err
		}
		*v = Float(f)
	case KindString:
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return err
		}
		*v = String(s)
	case KindBool:
		var b bool
		if err := json.Unmarshal(jv.Value, &b); err != nil {
			return err
		}
		*v = Bool(b)
	default:
		return errors.Newf("params: unknown value type %q", jv.Type)
	}
	return nil
}

// UnmarshalYAML lets configuration files write plain scalars.
func (v *Value) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromInterface converts a decoded scalar into a Value.
func FromInterface(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case int:
		return Int(x), nil
	case int64:
		return Value{kind: KindInt, i: x}, nil
	case uint64:
		return Value{kind: KindInt, i: int64(x)}, nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case Value:
		return x, nil
	}
	return Value{}, errors.Newf("params: unsupported value %v (%T)", raw, raw)
}

// Set maps parameter names to values.
type Set map[string]Value

// Clone returns an independent copy. A nil set stays nil.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Int returns the named integer parameter or def when absent or not integral.
func (s Set) Int(name string, def int) int {
	if v, ok := s[name]; ok {
		if i, ok := v.AsInt(); ok {
			return i
		}
	}
	return def
}

// Float returns the named numeric parameter or def.
func (s Set) Float(name string, def float64) float64 {
	if v, ok := s[name]; ok {
		if f, ok := v.AsFloat(); ok {
			return f
		}
	}
	return def
}

// String returns the named string parameter or def.
func (s Set) String(name string, def string) string {
	if v, ok := s[name]; ok {
		if str, ok := v.AsString(); ok {
			return str
		}
	}
	return def
}

// Equal reports whether both sets hold the same names and values.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Map returns the set as plain Go values, for logging.
func (s Set) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(s))
	for k, v := range s {
		out[k] = v.Interface()
	}
	return out
}

func (s Set) GoString() string {
	return fmt.Sprintf("params.Set%v", s.Map())
}

// FromMap converts decoded values into a Set.
func FromMap(m map[string]interface{}) (Set, error) {
	out := make(Set, len(m))
	for k, raw := range m {
		v, err := FromInterface(raw)
		if err != nil {
			return nil, errors.NewConfigurationError(k, err.Error(), raw)
		}
		out[k] = v
	}
	return out, nil
}

// Merge combines fixed and searched parameters. On a name collision the
// searched value wins.
func Merge(fixed, searched Set) Set {
	out := make(Set, len(fixed)+len(searched))
	for k, v := range fixed {
		out[k] = v
	}
	for k, v := range searched {
		out[k] = v
	}
	return out
}
