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

type Anthropic struct {
	Key, Model string
	Timeout    time.Duration
	DryRun     bool

	client  *http.Client
	limiter *rate.Limiter
}

func NewAnthropic(key, model string, timeout time.Duration, rps, burst int) *Anthropic {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &Anthropic{
		Key:     key,
		Model:   model,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Anthropic) ID() string           { return "anthropic" }
func (c *Anthropic) Capabilities() []Task { return []Task{TaskClassify, TaskExtract} }

func (c *Anthropic) Probe(ctx context.Context) error {
	if c.Key == "" {
		return unavailable(c.ID(), jsonError("missing api key"))
	}
	if c.DryRun {
		return nil
	}
	req, _ := http.NewRequestWithContext(ctx, "GET", "https://api.anthropic.com/v1/models", nil)
	req.Header.Set("x-api-key", c.Key)
	req.Header.Set("anthropic-version", "2023-06-01")
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

func (c *Anthropic) Invoke(ctx context.Context, r InferenceRequest) (InferenceResult, error) {
	if c.DryRun {
		return dryRunResult(c.ID(), r), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return InferenceResult{}, mapTransportErr(ctx, c.ID(), err)
	}

	maxTokens := 512
	if r.Task == TaskExtract {
		maxTokens = 2048
	}
	body := map[string]any{
		"model":      c.Model,
		"max_tokens": maxTokens,
		"system":     systemPrompt(r.Task),
		"messages": []map[string]any{
			{"role": "user", "content": r.Prompt},
		},
	}
	b, _ := json.Marshal(body)

	log := telemetry.L().With().Str("provider", c.ID()).Int("body_len", len(b)).Logger()

	req, _ := http.NewRequestWithContext(ctx, "POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(b))
	req.Header.Set("x-api-key", c.Key)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	t0 := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("anthropic_request_failed")
		return InferenceResult{}, mapTransportErr(ctx, c.ID(), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Str("status", resp.Status).RawJSON("body", raw).Msg("anthropic_http_error")
		return InferenceResult{}, unavailable(c.ID(), jsonError("http "+resp.Status))
	}

	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	_ = json.Unmarshal(raw, &out)

	if out.StopReason == "refusal" {
		return InferenceResult{}, blocked(c.ID(), out.StopReason)
	}
	if len(out.Content) == 0 {
		return InferenceResult{}, malformed(c.ID(), jsonError("empty content"))
	}

	text := strings.TrimSpace(out.Content[0].Text)
	if text == "" {
		return InferenceResult{}, malformed(c.ID(), jsonError("empty text"))
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
