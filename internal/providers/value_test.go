package providers

import (
	"encoding/json"
	"testing"
)

func TestFromAnyTagging(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"empty string", "   ", KindNull},
		{"number", 42.5, KindNumber},
		{"text", "INV-001", KindText},
		{"bool", true, KindBool},
		{"list", []any{"a", "b"}, KindList},
		{"object", map[string]any{"k": "v"}, KindObject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromAny(tc.in); got.Kind != tc.want {
				t.Errorf("FromAny(%v).Kind = %v, want %v", tc.in, got.Kind, tc.want)
			}
		})
	}
}

func TestFromAnyStringifiesListElements(t *testing.T) {
	v := FromAny([]any{"alice", 2.0, true})
	if v.Kind != KindList {
		t.Fatalf("Kind = %v, want list", v.Kind)
	}
	want := []string{"alice", "2", "true"}
	for i, s := range want {
		if v.List[i] != s {
			t.Errorf("List[%d] = %q, want %q", i, v.List[i], s)
		}
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	fields := map[string]Value{
		"total":   Number(99.9),
		"vendor":  Text("Acme"),
		"parties": List([]string{"a", "b"}),
		"missing": Null(),
	}
	b, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[string]Value
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for k, v := range fields {
		if !back[k].Equal(v) {
			t.Errorf("field %q = %+v, want %+v", k, back[k], v)
		}
	}
}

func TestResultAccessors(t *testing.T) {
	r := InferenceResult{Fields: map[string]Value{
		"type":       Text("contract"),
		"confidence": Number(1.7),
		"empty":      Null(),
	}}
	if got := r.Label(); got != "contract" {
		t.Errorf("Label = %q, want contract", got)
	}
	if got := r.Confidence(); got != 1 {
		t.Errorf("Confidence = %v, want clamped 1", got)
	}
	if got := r.NonNull(); got != 2 {
		t.Errorf("NonNull = %d, want 2", got)
	}

	empty := InferenceResult{}
	if got := empty.Label(); got != LabelUnknown {
		t.Errorf("Label on empty = %q, want %q", got, LabelUnknown)
	}
	if got := empty.Confidence(); got != 0 {
		t.Errorf("Confidence on empty = %v, want 0", got)
	}
}

func TestClamp01(t *testing.T) {
	if Clamp01(-0.3) != 0 {
		t.Error("negative not clamped to 0")
	}
	if Clamp01(2.1) != 1 {
		t.Error("overflow not clamped to 1")
	}
	if Clamp01(0.42) != 0.42 {
		t.Error("in-range value changed")
	}
}
