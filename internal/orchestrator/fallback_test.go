package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docmindlabs/docmind/internal/providers"
)

// fakeClient is the in-memory provider used across the orchestrator tests.
type fakeClient struct {
	id     string
	caps   []providers.Task
	invoke func(ctx context.Context, req providers.InferenceRequest) (providers.InferenceResult, error)
	calls  atomic.Int32
}

func (f *fakeClient) ID() string                     { return f.id }
func (f *fakeClient) Capabilities() []providers.Task { return f.caps }
func (f *fakeClient) Probe(context.Context) error    { return nil }
func (f *fakeClient) Invoke(ctx context.Context, req providers.InferenceRequest) (providers.InferenceResult, error) {
	f.calls.Add(1)
	return f.invoke(ctx, req)
}

func bothTasks() []providers.Task {
	return []providers.Task{providers.TaskClassify, providers.TaskExtract}
}

func classification(id, label string, conf float64) providers.InferenceResult {
	return providers.InferenceResult{
		Fields: map[string]providers.Value{
			"type":       providers.Text(label),
			"confidence": providers.Number(conf),
		},
		ProviderID: id,
	}
}

func extraction(id string, fields map[string]providers.Value) providers.InferenceResult {
	return providers.InferenceResult{Fields: fields, ProviderID: id}
}

func newTestRegistry(clients ...providers.Client) *providers.Registry {
	priority := map[string]int{}
	for i, c := range clients {
		priority[c.ID()] = len(clients) - i
	}
	return providers.NewRegistry(context.Background(), clients, priority, time.Second)
}

func TestFallbackStopsAtFirstAcceptedResult(t *testing.T) {
	first := &fakeClient{id: "openai", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return classification("openai", "invoice", 0.92), nil
	}}
	second := &fakeClient{id: "gemini", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		t.Error("second provider should not be invoked")
		return providers.InferenceResult{}, nil
	}}

	f := NewFallback(newTestRegistry(first, second), NewValidator(nil, nil))
	res := f.Classify(context.Background(), "invoice total: $500 payment due", "classify this")

	if res.ProviderID != "openai" {
		t.Errorf("provider = %s, want openai", res.ProviderID)
	}
	if res.Label() != "invoice" || res.Confidence() != 0.92 {
		t.Errorf("result = %+v", res)
	}
}

func TestFallbackSkipsFailingProvider(t *testing.T) {
	timesOut := &fakeClient{id: "openai", caps: bothTasks(), invoke: func(ctx context.Context, _ providers.InferenceRequest) (providers.InferenceResult, error) {
		return providers.InferenceResult{}, context.DeadlineExceeded
	}}
	healthy := &fakeClient{id: "gemini", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return classification("gemini", "invoice", 0.9), nil
	}}
	never := &fakeClient{id: "ollama", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		t.Error("third provider should never be reached")
		return providers.InferenceResult{}, nil
	}}

	f := NewFallback(newTestRegistry(timesOut, healthy, never), NewValidator(nil, nil))
	res := f.Classify(context.Background(), "invoice total: $500", "classify this")

	if res.ProviderID != "gemini" {
		t.Errorf("provider = %s, want gemini", res.ProviderID)
	}
	if timesOut.calls.Load() != 1 {
		t.Errorf("first provider invoked %d times, want 1", timesOut.calls.Load())
	}
	if never.calls.Load() != 0 {
		t.Errorf("third provider invoked %d times, want 0", never.calls.Load())
	}
}

func TestFallbackRejectedResultTriesNext(t *testing.T) {
	lowConf := &fakeClient{id: "openai", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return classification("openai", "invoice", 0.4), nil
	}}
	highConf := &fakeClient{id: "gemini", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return classification("gemini", "invoice", 0.85), nil
	}}

	f := NewFallback(newTestRegistry(lowConf, highConf), NewValidator(nil, nil))
	res := f.Classify(context.Background(), "invoice total: $500", "classify this")

	if res.ProviderID != "gemini" {
		t.Errorf("provider = %s, want gemini after low-confidence rejection", res.ProviderID)
	}
}

func TestFallbackClassifySentinelOnExhaustion(t *testing.T) {
	broken := &fakeClient{id: "openai", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return providers.InferenceResult{}, context.DeadlineExceeded
	}}

	f := NewFallback(newTestRegistry(broken), NewValidator(nil, nil))
	res := f.Classify(context.Background(), "text", "prompt")

	if res.ProviderID != providers.ProviderNone {
		t.Errorf("provider = %s, want %s", res.ProviderID, providers.ProviderNone)
	}
	if res.Label() != providers.LabelUnknown || res.Confidence() != 0 {
		t.Errorf("sentinel = %+v, want unknown/0", res)
	}
}

func TestFallbackExtractSentinelOnExhaustion(t *testing.T) {
	sparse := &fakeClient{id: "openai", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		// below the field floor, always rejected
		return extraction("openai", map[string]providers.Value{"total_amount": providers.Number(10)}), nil
	}}

	f := NewFallback(newTestRegistry(sparse), NewValidator(nil, nil))
	res := f.Extract(context.Background(), "text", "invoice", "prompt")

	if res.ProviderID != providers.ProviderNone || len(res.Fields) != 0 {
		t.Errorf("sentinel = %+v, want empty fields and provider none", res)
	}
}

func TestFallbackExtractAcceptsRichResult(t *testing.T) {
	rich := &fakeClient{id: "openai", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return extraction("openai", map[string]providers.Value{
			"invoice_number": providers.Text("INV-1"),
			"total_amount":   providers.Number(500),
			"currency":       providers.Text("USD"),
		}), nil
	}}

	f := NewFallback(newTestRegistry(rich), NewValidator(nil, nil))
	res := f.Extract(context.Background(), "invoice total: $500", "invoice", "prompt")

	if res.ProviderID != "openai" || res.NonNull() != 3 {
		t.Errorf("result = %+v, want accepted openai extraction", res)
	}
}

func TestFallbackSkipsIncapableProvider(t *testing.T) {
	classifyOnly := &fakeClient{id: "classifier", caps: []providers.Task{providers.TaskClassify}, invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		t.Error("classify-only provider must not receive extraction work")
		return providers.InferenceResult{}, nil
	}}
	extractor := &fakeClient{id: "extractor", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return extraction("extractor", map[string]providers.Value{
			"invoice_number": providers.Text("INV-2"),
			"total_amount":   providers.Number(42),
			"currency":       providers.Text("USD"),
		}), nil
	}}

	f := NewFallback(newTestRegistry(classifyOnly, extractor), NewValidator(nil, nil))
	res := f.Extract(context.Background(), "text", "invoice", "prompt")

	if res.ProviderID != "extractor" {
		t.Errorf("provider = %s, want extractor", res.ProviderID)
	}
}
