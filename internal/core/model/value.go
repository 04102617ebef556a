package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agenthands/papergraph/internal/core/normalize"
)

type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Value is one entry of a property bag: null, string, number, bool, an
// ordered list of values or a nested map.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
	m    Properties
}

// Properties is the open property bag carried by nodes and edges.
type Properties map[string]Value

func Null() Value                  { return Value{} }
func String(s string) Value        { return Value{kind: KindString, str: s} }
func Number(n float64) Value       { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value    { return Value{kind: KindList, list: items} }
func Map(p Properties) Value       { return Value{kind: KindMap, m: p} }
func (v Value) Kind() ValueKind    { return v.kind }
func (v Value) IsNull() bool       { return v.kind == KindNull }
func (v Value) Items() []Value     { return v.list }
func (v Value) Fields() Properties { return v.m }

func Strings(items []string) Value {
	vals := make([]Value, len(items))
	for i, s := range items {
		vals[i] = String(s)
	}
	return List(vals...)
}

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }

// Text renders scalars as text and lists as a comma separated join of their items.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindList:
		out := ""
		for i, item := range v.list {
			if i > 0 {
				out += ", "
			}
			out += item.Text()
		}
		return out
	case KindMap:
		data, _ := json.Marshal(v)
		return string(data)
	}
	return ""
}

// Empty reports null, empty strings, empty lists and empty maps.
func (v Value) Empty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return len(v.m) == 0
	}
	return false
}

// Interface converts the value to plain Go values (string, float64, bool, []any, map[string]any, nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		return v.m.Interface()
	}
	return nil
}

// FromAny converts decoded JSON or plain Go values. Unsupported types are
// rendered with fmt.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case []string:
		return Strings(t)
	case []any:
		vals := make([]Value, len(t))
		for i, item := range t {
			vals[i] = FromAny(item)
		}
		return List(vals...)
	case map[string]any:
		return Map(PropertiesFromMap(t))
	case Properties:
		return Map(t)
	}
	return String(fmt.Sprint(x))
}

// Sanitize strips control characters from every string reachable from v.
func (v Value) Sanitize() Value {
	switch v.kind {
	case KindString:
		return String(normalize.SanitizeString(v.str))
	case KindList:
		vals := make([]Value, len(v.list))
		for i, item := range v.list {
			vals[i] = item.Sanitize()
		}
		return List(vals...)
	case KindMap:
		return Map(v.m.Sanitize())
	}
	return v
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

func PropertiesFromMap(m map[string]any) Properties {
	if m == nil {
		return nil
	}
	p := make(Properties, len(m))
	for k, v := range m {
		p[k] = FromAny(v)
	}
	return p
}

func (p Properties) Interface() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// Sanitize returns a copy with control characters stripped from keys and strings.
func (p Properties) Sanitize() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[normalize.SanitizeString(k)] = v.Sanitize()
	}
	return out
}

func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every key of incoming into p, overwriting existing keys.
func (p Properties) Merge(incoming Properties) Properties {
	if p == nil {
		p = make(Properties, len(incoming))
	}
	for k, v := range incoming {
		p[k] = v
	}
	return p
}

// String returns the string stored under key, or "".
func (p Properties) String(key string) string {
	s, _ := p[key].AsString()
	return s
}

func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeProperties parses a JSON object into a property bag; empty input yields nil.
func DecodeProperties(data []byte) (Properties, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p Properties
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return p, nil
}

// EncodeProperties renders a property bag as a JSON object, "{}" when empty.
func EncodeProperties(p Properties) ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}
