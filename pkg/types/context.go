package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValueKind identifica o tipo de um valor de contexto
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindMap
)

// Value is a context value restricted to a closed set of serializable kinds
// (string, number, bool, nested map). This keeps the payload sent to external
// sinks well-defined instead of an open interface{} bag.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	m    Context
}

// Context bolsa de dados de diagnóstico anexada a eventos e incidentes
type Context map[string]Value

// S constrói um valor string
func S(v string) Value { return Value{kind: KindString, str: v} }

// N constrói um valor numérico
func N(v float64) Value { return Value{kind: KindNumber, num: v} }

// B constrói um valor booleano
func B(v bool) Value { return Value{kind: KindBool, b: v} }

// M constrói um valor de mapa aninhado
func M(v Context) Value { return Value{kind: KindMap, m: v} }

// Kind returns the value's kind
func (v Value) Kind() ValueKind { return v.kind }

// String returns the string payload (zero value for other kinds)
func (v Value) String() string { return v.str }

// Number returns the numeric payload (zero value for other kinds)
func (v Value) Number() float64 { return v.num }

// Bool returns the boolean payload (zero value for other kinds)
func (v Value) Bool() bool { return v.b }

// Map returns the nested map payload (nil for other kinds)
func (v Value) Map() Context { return v.m }

// MarshalJSON encodes the value as its native JSON kind. Non-finite numbers
// are encoded as strings since JSON has no representation for them.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(fmt.Sprintf("%v", v.num))
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		return json.Marshal(v.m)
	default:
		return json.Marshal(nil)
	}
}

// UnmarshalJSON decodes JSON strings, numbers, booleans and objects into the
// matching kind. Arrays and nulls are rejected: callers must flatten them
// before reporting.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = S(t)
	case float64:
		*v = N(t)
	case bool:
		*v = B(t)
	case map[string]interface{}:
		nested := make(Context, len(t))
		for k, rv := range t {
			encoded, err := json.Marshal(rv)
			if err != nil {
				return err
			}
			var nv Value
			if err := nv.UnmarshalJSON(encoded); err != nil {
				return fmt.Errorf("context key %q: %w", k, err)
			}
			nested[k] = nv
		}
		*v = M(nested)
	default:
		return fmt.Errorf("unsupported context value type %T", raw)
	}
	return nil
}

// Merge returns a new context with entries from other overriding entries
// from c. Either side may be nil.
func (c Context) Merge(other Context) Context {
	merged := make(Context, len(c)+len(other))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Flatten converts the context into plain interface{} values for collaborators
// that expect loosely typed maps (sarama payloads, logrus fields).
func (c Context) Flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for k, v := range c {
		switch v.kind {
		case KindString:
			out[k] = v.str
		case KindNumber:
			out[k] = v.num
		case KindBool:
			out[k] = v.b
		case KindMap:
			out[k] = v.m.Flatten()
		}
	}
	return out
}
