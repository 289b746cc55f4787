// Package namespace defines the shared-state vocabulary: the slot
// enumeration the Manager serves, and the tagged-union Value type used for
// the recursively-shaped per-tick readings snapshot.
package namespace

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindObject
	KindArray
)

// Value is a tagged-union value type standing in for the original
// prototype's cyclic ReadingT = Union[float, str, Dict[str, ReadingT], ...]
// type. Go has no native recursive union, so each variant is reified
// explicitly rather than leaned on via interface{}, per the design note on
// cyclic type references.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	obj  map[string]Value
	arr  []Value
}

func Number(f float64) Value           { return Value{kind: KindNumber, num: f} }
func String(s string) Value            { return Value{kind: KindString, str: s} }
func Bool(b bool) Value                { return Value{kind: KindBool, b: b} }
func Object(m map[string]Value) Value  { return Value{kind: KindObject, obj: m} }
func Array(a []Value) Value            { return Value{kind: KindArray, arr: a} }
func Null() Value                      { return Value{kind: KindNull} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// MarshalJSON renders each variant as its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindObject:
		return json.Marshal(v.obj)
	case KindArray:
		return json.Marshal(v.arr)
	default:
		return nil, fmt.Errorf("namespace: unknown Value kind %d", v.kind)
	}
}

// UnmarshalJSON reconstructs a Value from its JSON shape, inferring variant
// from the token type (objects and arrays recurse).
func (v *Value) UnmarshalJSON(data []byte) error {
	var probe interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*v = fromAny(probe)
	return nil
}

func fromAny(a interface{}) Value {
	switch x := a.(type) {
	case nil:
		return Null()
	case float64:
		return Number(x)
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case []interface{}:
		arr := make([]Value, len(x))
		for i, e := range x {
			arr[i] = fromAny(e)
		}
		return Array(arr)
	case map[string]interface{}:
		obj := make(map[string]Value, len(x))
		for k, e := range x {
			obj[k] = fromAny(e)
		}
		return Object(obj)
	default:
		return Null()
	}
}
