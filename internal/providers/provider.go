package providers

import (
	"context"
)

type Task string

const (
	TaskClassify Task = "classify"
	TaskExtract  Task = "extract"
)

// LabelUnknown is the sentinel classification label. Paired with
// ProviderNone it marks the defined valid-but-empty outcome, never an error.
const (
	LabelUnknown = "unknown"
	ProviderNone = "none"
)

// InferenceRequest carries one task for one document. Prompt is fully
// formatted by the prompts collaborator before it gets here. Immutable once
// created.
type InferenceRequest struct {
	Text       string
	Task       Task
	Prompt     string
	SchemaHint map[string]string
}

// InferenceResult is one provider invocation's output. Never mutated after
// creation.
type InferenceResult struct {
	Fields       map[string]Value `json:"fields"`
	ProviderID   string           `json:"provider_id"`
	RawLatencyMs int64            `json:"latency_ms"`
}

// Label reads the classification label, defaulting to the unknown sentinel.
func (r InferenceResult) Label() string {
	if v, ok := r.Fields["type"]; ok && v.Kind == KindText {
		return v.Str
	}
	return LabelUnknown
}

// Confidence reads the classification confidence clamped to [0,1].
func (r InferenceResult) Confidence() float64 {
	if v, ok := r.Fields["confidence"]; ok && v.Kind == KindNumber {
		return Clamp01(v.Num)
	}
	return 0
}

// NonNull counts populated fields.
func (r InferenceResult) NonNull() int {
	n := 0
	for _, v := range r.Fields {
		if !v.IsNull() {
			n++
		}
	}
	return n
}

// Client is one inference backend behind a uniform contract. Adapters are
// stateless aside from cached HTTP clients and rate limiters.
type Client interface {
	ID() string
	Capabilities() []Task
	Probe(ctx context.Context) error
	Invoke(ctx context.Context, req InferenceRequest) (InferenceResult, error)
}

// Handle is the orchestrator's view of a configured provider. Availability is
// probed once at construction and cached for the orchestrator's lifetime.
type Handle struct {
	ID           string        `json:"id"`
	Priority     int           `json:"priority"`
	Capabilities map[Task]bool `json:"capabilities"`
	Available    bool          `json:"available"`
	Client       Client        `json:"-"`
}

func (h *Handle) Supports(task Task) bool { return h.Capabilities[task] }
