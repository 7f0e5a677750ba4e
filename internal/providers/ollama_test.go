package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaInvokeParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != false {
			t.Error("streaming must be disabled")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": `{"type": "invoice", "confidence": 0.9}`,
		})
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "qwen2.5:7b", 5*time.Second)
	res, err := c.Invoke(context.Background(), InferenceRequest{Task: TaskClassify, Prompt: "classify"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.ProviderID != "ollama" || res.Label() != "invoice" {
		t.Errorf("result = %+v", res)
	}
}

func TestOllamaInvokeHTTPErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "qwen2.5:7b", 5*time.Second)
	_, err := c.Invoke(context.Background(), InferenceRequest{Task: TaskExtract, Prompt: "extract"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestOllamaInvokeProseIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "I could not find any fields."})
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "qwen2.5:7b", 5*time.Second)
	_, err := c.Invoke(context.Background(), InferenceRequest{Task: TaskExtract, Prompt: "extract"})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestOllamaProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "qwen2.5:7b", 5*time.Second)
	if err := c.Probe(context.Background()); err != nil {
		t.Errorf("Probe: %v", err)
	}

	srv.Close()
	if err := c.Probe(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("probe against closed server = %v, want ErrUnavailable", err)
	}
}

func TestOllamaInvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// drain the body so the server notices the client going away
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "qwen2.5:7b", 50*time.Millisecond)
	_, err := c.Invoke(context.Background(), InferenceRequest{Task: TaskExtract, Prompt: "extract"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestOllamaDryRun(t *testing.T) {
	c := NewOllama("http://localhost:0", "qwen2.5:7b", time.Second)
	c.DryRun = true
	res, err := c.Invoke(context.Background(), InferenceRequest{Task: TaskClassify, Prompt: "classify"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Label() != "invoice" {
		t.Errorf("dry run result = %+v", res)
	}
}
