package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClient struct {
	id       string
	caps     []Task
	probeErr error
}

func (s *stubClient) ID() string           { return s.id }
func (s *stubClient) Capabilities() []Task { return s.caps }
func (s *stubClient) Probe(context.Context) error {
	return s.probeErr
}
func (s *stubClient) Invoke(context.Context, InferenceRequest) (InferenceResult, error) {
	return InferenceResult{ProviderID: s.id}, nil
}

func TestRegistryPriorityOrder(t *testing.T) {
	clients := []Client{
		&stubClient{id: "ollama", caps: []Task{TaskClassify, TaskExtract}},
		&stubClient{id: "openai", caps: []Task{TaskClassify, TaskExtract}},
		&stubClient{id: "gemini", caps: []Task{TaskClassify, TaskExtract}},
	}
	priority := map[string]int{"openai": 3, "gemini": 2, "ollama": 1}

	reg := NewRegistry(context.Background(), clients, priority, time.Second)

	want := []string{"openai", "gemini", "ollama"}
	handles := reg.Handles()
	if len(handles) != len(want) {
		t.Fatalf("got %d handles, want %d", len(handles), len(want))
	}
	for i, id := range want {
		if handles[i].ID != id {
			t.Errorf("handles[%d] = %s, want %s", i, handles[i].ID, id)
		}
	}
}

func TestRegistryProbeFailureMarksUnavailable(t *testing.T) {
	clients := []Client{
		&stubClient{id: "openai", caps: []Task{TaskClassify}, probeErr: errors.New("dial refused")},
		&stubClient{id: "gemini", caps: []Task{TaskClassify}},
	}
	reg := NewRegistry(context.Background(), clients, map[string]int{"openai": 2, "gemini": 1}, time.Second)

	if h := reg.Lookup("openai"); h == nil || h.Available {
		t.Errorf("openai should be registered but unavailable, got %+v", h)
	}
	capable := reg.Capable(TaskClassify)
	if len(capable) != 1 || capable[0].ID != "gemini" {
		t.Errorf("Capable(classify) = %+v, want only gemini", capable)
	}
}

func TestRegistryCapableFiltersTask(t *testing.T) {
	clients := []Client{
		&stubClient{id: "openai", caps: []Task{TaskClassify, TaskExtract}},
		&stubClient{id: "classifier-only", caps: []Task{TaskClassify}},
	}
	reg := NewRegistry(context.Background(), clients, nil, time.Second)

	extractors := reg.Capable(TaskExtract)
	if len(extractors) != 1 || extractors[0].ID != "openai" {
		t.Errorf("Capable(extract) = %+v, want only openai", extractors)
	}
}

func TestMapTransportErr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	if err := mapTransportErr(ctx, "openai", ctx.Err()); !errors.Is(err, ErrTimeout) {
		t.Errorf("deadline err = %v, want ErrTimeout", err)
	}
	if err := mapTransportErr(context.Background(), "openai", errors.New("conn reset")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("transport err = %v, want ErrUnavailable", err)
	}
}
