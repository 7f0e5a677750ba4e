package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/docmindlabs/docmind/internal/telemetry"
)

type OpenAI struct {
	Key, Model string
	Timeout    time.Duration
	DryRun     bool

	client  *http.Client
	limiter *rate.Limiter
}

func NewOpenAI(key, model string, timeout time.Duration, rps, burst int) *OpenAI {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &OpenAI{
		Key:     key,
		Model:   model,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *OpenAI) ID() string           { return "openai" }
func (c *OpenAI) Capabilities() []Task { return []Task{TaskClassify, TaskExtract} }

func (c *OpenAI) Probe(ctx context.Context) error {
	if c.Key == "" {
		return unavailable(c.ID(), jsonError("missing api key"))
	}
	if c.DryRun {
		return nil
	}
	req, _ := http.NewRequestWithContext(ctx, "GET", "https://api.openai.com/v1/models", nil)
	req.Header.Set("Authorization", "Bearer "+c.Key)
	resp, err := c.client.Do(req)
	if err != nil {
		return mapTransportErr(ctx, c.ID(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unavailable(c.ID(), jsonError("probe http "+resp.Status))
	}
	return nil
}

func (c *OpenAI) Invoke(ctx context.Context, r InferenceRequest) (InferenceResult, error) {
	if c.DryRun {
		return dryRunResult(c.ID(), r), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return InferenceResult{}, mapTransportErr(ctx, c.ID(), err)
	}

	body := map[string]any{
		"model":           c.Model,
		"temperature":     taskTemperature(r.Task),
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt(r.Task)},
			{"role": "user", "content": r.Prompt},
		},
	}

	b, _ := json.Marshal(body)
	log := telemetry.L().With().Str("provider", c.ID()).Int("body_len", len(b)).Logger()

	req, _ := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+c.Key)
	req.Header.Set("Content-Type", "application/json")

	t0 := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("openai_request_failed")
		return InferenceResult{}, mapTransportErr(ctx, c.ID(), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	log.Debug().Int("body_len", len(raw)).Msg("openai_response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Str("status", resp.Status).RawJSON("body", raw).Msg("openai_http_error")
		return InferenceResult{}, unavailable(c.ID(), jsonError("http "+resp.Status))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	_ = json.Unmarshal(raw, &out)
	if len(out.Choices) == 0 {
		return InferenceResult{}, malformed(c.ID(), jsonError("no choices in response"))
	}
	if out.Choices[0].FinishReason == "content_filter" {
		return InferenceResult{}, blocked(c.ID(), "content_filter")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return InferenceResult{}, malformed(c.ID(), jsonError("empty content"))
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

func systemPrompt(task Task) string {
	if task == TaskClassify {
		return "You are a document classifier. Respond only with valid JSON."
	}
	return "You are a precise data extraction specialist. Extract all fields accurately and respond only with valid JSON."
}

func taskTemperature(task Task) float64 {
	if task == TaskExtract {
		return 0.2
	}
	return 0.1
}

func dryRunResult(id string, r InferenceRequest) InferenceResult {
	log := telemetry.L().With().Str("provider", id).Logger()
	log.Info().Msg("dry_run_enabled")
	if r.Task == TaskClassify {
		return InferenceResult{
			Fields:     map[string]Value{"type": Text("invoice"), "confidence": Number(0.9)},
			ProviderID: id, RawLatencyMs: 1,
		}
	}
	return InferenceResult{
		Fields: map[string]Value{
			"invoice_number": Text("SIM-001"),
			"total_amount":   Number(100),
			"currency":       Text("USD"),
		},
		ProviderID: id, RawLatencyMs: 1,
	}
}
