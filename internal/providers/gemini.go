package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/docmindlabs/docmind/internal/telemetry"
)

type Gemini struct {
	Key, Model string
	Timeout    time.Duration
	DryRun     bool

	client  *http.Client
	limiter *rate.Limiter
}

func NewGemini(key, model string, timeout time.Duration, rps, burst int) *Gemini {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &Gemini{
		Key:     key,
		Model:   model,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Gemini) ID() string           { return "gemini" }
func (c *Gemini) Capabilities() []Task { return []Task{TaskClassify, TaskExtract} }

func (c *Gemini) Probe(ctx context.Context) error {
	if c.Key == "" {
		return unavailable(c.ID(), jsonError("missing api key"))
	}
	if c.DryRun {
		return nil
	}
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s", c.Model)
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	req.Header.Set("X-goog-api-key", c.Key)
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

func (c *Gemini) Invoke(ctx context.Context, r InferenceRequest) (InferenceResult, error) {
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
		"contents": []any{
			map[string]any{
				"role": "user",
				"parts": []any{
					map[string]string{"text": systemPrompt(r.Task) + "\n\n" + r.Prompt},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":      taskTemperature(r.Task),
			"maxOutputTokens":  maxTokens,
			"responseMimeType": "application/json",
		},
		"safetySettings": geminiSafetyOff,
	}

	b, errBody := json.Marshal(body)
	if errBody != nil {
		return InferenceResult{}, malformed(c.ID(), errBody)
	}

	log := telemetry.L().With().Str("provider", c.ID()).Int("body_len", len(b)).Logger()
	log.Debug().Msg("gemini_request")

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", c.Model)
	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-goog-api-key", c.Key)

	t0 := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("gemini_request_failed")
		return InferenceResult{}, mapTransportErr(ctx, c.ID(), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	log.Debug().Int("status_code", resp.StatusCode).Int("body_len", len(raw)).Msg("gemini_response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Str("status", resp.Status).RawJSON("body", raw).Msg("gemini_http_error")
		return InferenceResult{}, unavailable(c.ID(), jsonError("http "+resp.Status))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback *struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	_ = json.Unmarshal(raw, &out)

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return InferenceResult{}, blocked(c.ID(), out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) > 0 && out.Candidates[0].FinishReason == "SAFETY" {
		return InferenceResult{}, blocked(c.ID(), "SAFETY")
	}

	var text string
	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		text = out.Candidates[0].Content.Parts[0].Text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return InferenceResult{}, malformed(c.ID(), jsonError("empty candidates"))
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

// business documents trip the default filters often enough that we opt out
var geminiSafetyOff = []map[string]string{
	{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"},
	{"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_NONE"},
	{"category": "HARM_CATEGORY_SEXUALLY_EXPLICIT", "threshold": "BLOCK_NONE"},
	{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "BLOCK_NONE"},
}
