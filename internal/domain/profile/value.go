package profile

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind enumerates the closed set of feature value types.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindStringList
	KindDate
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindStringList:
		return "string_list"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the six feature value types. The zero
// Value is a false bool.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	list []string
	t    time.Time
}

func BoolValue(v bool) Value     { return Value{kind: KindBool, b: v} }
func IntValue(v int64) Value     { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

func StringListValue(v []string) Value {
	return Value{kind: KindStringList, list: v}
}

func DateValue(v time.Time) Value { return Value{kind: KindDate, t: v} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Float widens ints so numeric comparisons work across both kinds.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// String returns the string form; dates render as YYYY-MM-DD.
func (v Value) String() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindDate:
		return v.t.Format("2006-01-02"), true
	default:
		return "", false
	}
}

func (v Value) StringList() ([]string, bool) {
	if v.kind != KindStringList {
		return nil, false
	}
	return v.list, true
}

func (v Value) Date() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.t, true
}

// MarshalJSON renders the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var inner interface{}
	switch v.kind {
	case KindBool:
		inner = v.b
	case KindInt:
		inner = v.i
	case KindFloat:
		inner = v.f
	case KindString:
		inner = v.s
	case KindStringList:
		inner = v.list
	case KindDate:
		inner = v.t.Format("2006-01-02")
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
	return json.Marshal(map[string]interface{}{
		"kind":  v.kind.String(),
		"value": inner,
	})
}
