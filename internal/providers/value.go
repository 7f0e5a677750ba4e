package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags a field value so the merge rules are a total function over a
// closed set instead of open-ended type inspection.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindList
	KindBool
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is a tagged variant for one extracted field. Built once at ingestion
// (FromAny) from the decoded provider payload; never reflected on afterwards.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	List []string
	Bool bool
	Obj  map[string]any
}

func Null() Value                   { return Value{Kind: KindNull} }
func Number(f float64) Value        { return Value{Kind: KindNumber, Num: f} }
func Text(s string) Value           { return Value{Kind: KindText, Str: s} }
func List(items []string) Value     { return Value{Kind: KindList, List: items} }
func Boolean(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Object(m map[string]any) Value { return Value{Kind: KindObject, Obj: m} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// FromAny converts a JSON-decoded value into a tagged Value. List elements
// are stringified so union merging has set semantics.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		if strings.TrimSpace(t) == "" {
			return Null()
		}
		return Text(t)
	case bool:
		return Boolean(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			items = append(items, stringify(it))
		}
		return List(items)
	case []string:
		return List(t)
	case map[string]any:
		return Object(t)
	default:
		return Text(stringify(t))
	}
}

// Any converts back to a plain JSON-encodable value for persistence/export.
func (v Value) Any() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindText:
		return v.Str
	case KindList:
		return v.List
	case KindBool:
		return v.Bool
	case KindObject:
		return v.Obj
	default:
		return nil
	}
}

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindText:
		return v.Str == o.Str
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	case KindObject:
		return fmt.Sprint(v.Obj) == fmt.Sprint(o.Obj)
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FieldsFromAny tags every entry of a decoded JSON object.
func FieldsFromAny(m map[string]any) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, raw := range m {
		out[k] = FromAny(raw)
	}
	return out
}

// FieldsToAny untags a field map for JSON encoding.
func FieldsToAny(m map[string]Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}

// Clamp01 bounds confidences and quality scores to [0,1].
func Clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", t), "0"), ".")
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
