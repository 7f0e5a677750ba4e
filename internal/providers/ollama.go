package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docmindlabs/docmind/internal/telemetry"
)

// Ollama talks to a local model server. No key, no rate limit; the box is
// ours.
type Ollama struct {
	URL, Model string
	Timeout    time.Duration
	DryRun     bool

	client *http.Client
}

func NewOllama(url, model string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Ollama{
		URL:     strings.TrimRight(url, "/"),
		Model:   model,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Ollama) ID() string           { return "ollama" }
func (c *Ollama) Capabilities() []Task { return []Task{TaskClassify, TaskExtract} }

func (c *Ollama) Probe(ctx context.Context) error {
	if c.DryRun {
		return nil
	}
	req, _ := http.NewRequestWithContext(ctx, "GET", c.URL+"/api/tags", nil)
	resp, err := c.client.Do(req)
	if err != nil {
		return mapTransportErr(ctx, c.ID(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unavailable(c.ID(), jsonError("probe http "+resp.Status))
	}
	return nil
}

func (c *Ollama) Invoke(ctx context.Context, r InferenceRequest) (InferenceResult, error) {
	if c.DryRun {
		return dryRunResult(c.ID(), r), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body := map[string]any{
		"model":       c.Model,
		"prompt":      systemPrompt(r.Task) + "\n\n" + r.Prompt,
		"stream":      false,
		"temperature": taskTemperature(r.Task),
	}
	b, _ := json.Marshal(body)

	log := telemetry.L().With().Str("provider", c.ID()).Int("body_len", len(b)).Logger()

	req, _ := http.NewRequestWithContext(ctx, "POST", c.URL+"/api/generate", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	t0 := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("ollama_request_failed")
		return InferenceResult{}, mapTransportErr(ctx, c.ID(), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Str("status", resp.Status).Msg("ollama_http_error")
		return InferenceResult{}, unavailable(c.ID(), jsonError("http "+resp.Status))
	}

	var out struct {
		Response string `json:"response"`
	}
	_ = json.Unmarshal(raw, &out)

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return InferenceResult{}, malformed(c.ID(), jsonError("empty response"))
	}

	fields, err := ParseFields(c.ID(), text)
	if err != nil {
		return InferenceResult{}, err
	}
	return InferenceResult{
		Fields:       fields,
		ProviderID:   c.ID(),
		RawLatencyMs: time.Since(t0).Milliseconds(),
	}, nil
}
