// Package jsonval provides an immutable JSON value type with structural
// equality and a total order.
//
// Two values are equal when they represent the same logical JSON document,
// regardless of how they were serialized: whitespace, object key order and
// number spelling ("1" vs "1.0", "1e2" vs "100") do not matter. Every value
// has exactly one canonical serialization, produced by [Value.String], which
// makes canonical strings usable as map keys.
package jsonval

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the JSON type of a [Value].
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Member is a single key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. The zero value is JSON null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	a    []Value
	// Members sorted by key. Duplicate keys are resolved at parse time,
	// last occurrence wins, matching encoding/json.
	o []Member
}

// NewNull returns the JSON null value.
func NewNull() Value { return Value{} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

// NewNumber returns a numeric value.
func NewNumber(n float64) Value { return Value{kind: Number, n: n} }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: String, s: s} }

// NewArray returns an array value holding the given elements.
func NewArray(elems ...Value) Value {
	a := make([]Value, len(elems))
	copy(a, elems)
	return Value{kind: Array, a: a}
}

// NewObject returns an object value. Member order does not matter.
func NewObject(members ...Member) Value {
	byKey := make(map[string]Value, len(members))
	for _, m := range members {
		byKey[m.Key] = m.Value
	}
	return objectFromMap(byKey)
}

func objectFromMap(byKey map[string]Value) Value {
	o := make([]Member, 0, len(byKey))
	for k, v := range byKey {
		o = append(o, Member{Key: k, Value: v})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return Value{kind: Object, o: o}
}

// Parse decodes a JSON document into a Value.
func Parse(data []byte) (Value, error) {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("failed to parse JSON value: %w", err)
	}
	if dec.More() {
		return Value{}, fmt.Errorf("trailing data after JSON value")
	}
	return fromAny(raw)
}

// ParseString is like [Parse] but takes a string.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

// MustParse is like [Parse] but panics on error. Intended for literals.
func MustParse(s string) Value {
	v, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func fromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(x), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x, err)
		}
		return NewNumber(n), nil
	case string:
		return NewString(x), nil
	case []any:
		a := make([]Value, len(x))
		for i, e := range x {
			v, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			a[i] = v
		}
		return Value{kind: Array, a: a}, nil
	case map[string]any:
		byKey := make(map[string]Value, len(x))
		for k, e := range x {
			v, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			byKey[k] = v
		}
		return objectFromMap(byKey), nil
	}
	return Value{}, fmt.Errorf("unsupported JSON type %T", raw)
}

// Kind returns the JSON type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool { return v.kind == Null }

// AsBool returns the boolean content, or false if the value is not a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == Bool }

// AsNumber returns the numeric content, or false if the value is not a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == Number }

// AsString returns the string content, or false if the value is not a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == String }

// AsArray returns the elements, or false if the value is not an array.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != Array {
		return nil, false
	}
	a := make([]Value, len(v.a))
	copy(a, v.a)
	return a, true
}

// AsObject returns the members sorted by key, or false if the value is not an
// object.
func (v Value) AsObject() ([]Member, bool) {
	if v.kind != Object {
		return nil, false
	}
	o := make([]Member, len(v.o))
	copy(o, v.o)
	return o, true
}

// Get returns the member value for key, or false if the value is not an
// object or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	i := sort.Search(len(v.o), func(i int) bool { return v.o[i].Key >= key })
	if i < len(v.o) && v.o[i].Key == key {
		return v.o[i].Value, true
	}
	return Value{}, false
}

// String returns the canonical serialization: minimal whitespace, object keys
// sorted, numbers in shortest round-trip form.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case Null:
		sb.WriteString("null")
	case Bool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case Number:
		sb.WriteString(formatNumber(v.n))
	case String:
		data, _ := json.Marshal(v.s)
		sb.Write(data)
	case Array:
		sb.WriteByte('[')
		for i, e := range v.a {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.write(sb)
		}
		sb.WriteByte(']')
	case Object:
		sb.WriteByte('{')
		for i, m := range v.o {
			if i > 0 {
				sb.WriteByte(',')
			}
			data, _ := json.Marshal(m.Key)
			sb.Write(data)
			sb.WriteByte(':')
			m.Value.write(sb)
		}
		sb.WriteByte('}')
	}
}

// formatNumber matches the encoding/json float encoding so that canonical
// output stays valid JSON for the full float64 range.
func formatNumber(n float64) string {
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return "null"
	}
	abs := math.Abs(n)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(n, format, -1, 64)
	if format == 'e' {
		// Trim the leading zero of a two-digit exponent, like encoding/json.
		if i := strings.LastIndexByte(s, 'e'); i >= 0 {
			exp := s[i+1:]
			if len(exp) >= 3 && (exp[0] == '-' || exp[0] == '+') && exp[1] == '0' {
				s = s[:i+2] + exp[2:]
			}
		}
	}
	return s
}

// Equal reports structural equality.
func (v Value) Equal(w Value) bool { return v.Compare(w) == 0 }

// Compare returns -1, 0 or 1. Values of different kinds order as
// null < bool < number < string < array < object; within a kind the order is
// the natural one (false < true, numeric, lexicographic, element-wise).
func (v Value) Compare(w Value) int {
	if v.kind != w.kind {
		if v.kind < w.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case Null:
		return 0
	case Bool:
		switch {
		case v.b == w.b:
			return 0
		case w.b:
			return -1
		}
		return 1
	case Number:
		switch {
		case v.n < w.n:
			return -1
		case v.n > w.n:
			return 1
		}
		return 0
	case String:
		return strings.Compare(v.s, w.s)
	case Array:
		for i := range min(len(v.a), len(w.a)) {
			if c := v.a[i].Compare(w.a[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(v.a), len(w.a))
	case Object:
		for i := range min(len(v.o), len(w.o)) {
			if c := strings.Compare(v.o[i].Key, w.o[i].Key); c != 0 {
				return c
			}
			if c := v.o[i].Value.Compare(w.o[i].Value); c != 0 {
				return c
			}
		}
		return cmpInt(len(v.o), len(w.o))
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler using the canonical form.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
