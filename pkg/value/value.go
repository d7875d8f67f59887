/*
Package value implements the single tagged value type that flows through
the query engine: Null | Bool | Int | Float | String | Array | Object
(spec §9 Design Notes). Using one concrete type instead of `any` lets the
lexer, parser, executor, and index subsystem share one set of comparison,
coercion, and JSON marshaling rules: equality across Int/Float compares
numerically, ordering treats Null as smallest, and truthiness coercion
matches the FILTER clause's rules (bool -> value; null -> false; 0 / "" /
[] / {} -> false).
*/
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

// Value is SoliDB's dynamic JSON-like value.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	obj  map[string]Value
	// keys preserves insertion order for Object values so RETURN/encoding
	// is deterministic; obj is the lookup index.
	keys []string
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Array(items []Value) Value   { return Value{kind: KindArray, arr: items} }

// Object builds an Object value preserving the given key order.
func Object(keys []string, fields map[string]Value) Value {
	return Value{kind: KindObject, obj: fields, keys: append([]string(nil), keys...)}
}

// NewObject starts an empty, ordered object builder.
func NewObject() *ObjectBuilder {
	return &ObjectBuilder{fields: map[string]Value{}}
}

// ObjectBuilder accumulates key/value pairs in insertion order.
type ObjectBuilder struct {
	keys   []string
	fields map[string]Value
}

func (b *ObjectBuilder) Set(key string, v Value) *ObjectBuilder {
	if _, exists := b.fields[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.fields[key] = v
	return b
}

func (b *ObjectBuilder) Build() Value {
	return Object(b.keys, b.fields)
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool     { return v.b }
func (v Value) AsInt() int64     { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsString() string { return v.s }
func (v Value) AsArray() []Value { return v.arr }

// AsObject returns the field map; use Keys for deterministic iteration order.
func (v Value) AsObject() map[string]Value { return v.obj }
func (v Value) Keys() []string             { return v.keys }

// Field looks up an object field, returning Null if absent or v is not an object.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	f, ok := v.obj[name]
	return f, ok
}

// IsNumber reports whether v holds an Int or Float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// Number returns v's numeric value as a float64, regardless of Int/Float kind.
func (v Value) Number() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Truthy implements the FILTER clause coercion rules (spec §4.3).
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) != 0
	case KindObject:
		return len(v.keys) != 0
	}
	return false
}

// typeRank orders Kinds for cross-type comparison: null < bool < number < string,
// with array/object ranked above string (not ordered by the query language but
// needed for a total order inside sort/index code).
func typeRank(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return 2
	case KindString:
		return 3
	case KindArray:
		return 4
	case KindObject:
		return 5
	}
	return 6
}

// Compare implements SoliDB's total order: Null is smallest; Int/Float
// compare numerically regardless of kind; ties within a type compare
// structurally. Returns -1, 0, or 1.
func Compare(a, b Value) int {
	if a.kind == KindNull && b.kind == KindNull {
		return 0
	}
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindInt, KindFloat:
		af, bf := a.Number(), b.Number()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	case KindArray:
		n := len(a.arr)
		if len(b.arr) < n {
			n = len(b.arr)
		}
		for i := 0; i < n; i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a.arr) < len(b.arr):
			return -1
		case len(a.arr) > len(b.arr):
			return 1
		}
		return 0
	case KindObject:
		ak, bk := append([]string(nil), a.keys...), append([]string(nil), b.keys...)
		sort.Strings(ak)
		sort.Strings(bk)
		n := len(ak)
		if len(bk) < n {
			n = len(bk)
		}
		for i := 0; i < n; i++ {
			if ak[i] != bk[i] {
				if ak[i] < bk[i] {
					return -1
				}
				return 1
			}
			if c := Compare(a.obj[ak[i]], b.obj[bk[i]]); c != 0 {
				return c
			}
		}
		switch {
		case len(ak) < len(bk):
			return -1
		case len(ak) > len(bk):
			return 1
		}
		return 0
	}
	return 0
}

// Equal reports structural equality with Int/Float compared numerically.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.Number() == b.Number()
	}
	if a.kind != b.kind {
		return false
	}
	return Compare(a, b) == 0
}

// NormalizeNumber coerces a whole-number float to an Int, used by the
// index-backed equality optimization (spec §4.3 opt 1) so index lookup
// keys match however the literal was written in the query text.
func NormalizeNumber(v Value) Value {
	if v.kind == KindFloat && v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
		return Int(int64(v.f))
	}
	return v
}

// FromJSON converts a decoded encoding/json value (as produced by
// json.Unmarshal into `any`) into a Value.
func FromJSON(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case float64:
		return NormalizeNumber(Float(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i)
		}
		f, _ := x.Float64()
		return Float(f)
	case string:
		return String(x)
	case []any:
		items := make([]Value, len(x))
		for i, it := range x {
			items[i] = FromJSON(it)
		}
		return Array(items)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make(map[string]Value, len(x))
		for k, v := range x {
			fields[k] = FromJSON(v)
		}
		return Object(keys, fields)
	default:
		return Null()
	}
}

// ToJSON converts a Value into a plain `any` tree suitable for json.Marshal.
func ToJSON(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, it := range v.arr {
			out[i] = ToJSON(it)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, f := range v.obj {
			out[k] = ToJSON(f)
		}
		return out
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToJSON(v))
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromJSON(raw)
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	default:
		b, _ := json.Marshal(ToJSON(v))
		return string(b)
	}
}
