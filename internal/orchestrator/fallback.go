package orchestrator

import (
	"context"

	"github.com/docmindlabs/docmind/internal/providers"
	"github.com/docmindlabs/docmind/internal/telemetry"
)

// Fallback tries providers one at a time in descending priority and returns
// the first result that both succeeds and passes validation. Strictly
// sequential: one call in flight, no per-provider retries.
type Fallback struct {
	registry  *providers.Registry
	validator *Validator
}

func NewFallback(registry *providers.Registry, validator *Validator) *Fallback {
	return &Fallback{registry: registry, validator: validator}
}

// Classify returns the first accepted classification, or the sentinel
// (label "unknown", confidence 0, provider "none") when every provider is
// exhausted. The sentinel is a valid outcome, not an error.
func (f *Fallback) Classify(ctx context.Context, text, prompt string) providers.InferenceResult {
	req := providers.InferenceRequest{Text: text, Task: providers.TaskClassify, Prompt: prompt}

	for _, h := range f.registry.Handles() {
		if !h.Available || !h.Supports(providers.TaskClassify) {
			continue
		}
		log := telemetry.L().With().Str("provider", h.ID).Logger()

		res, err := h.Client.Invoke(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("classify_attempt_failed")
			continue
		}
		verdict := f.validator.Classification(text, res)
		if verdict.Accepted {
			log.Info().Str("type", res.Label()).Float64("confidence", res.Confidence()).Msg("classify_accepted")
			return res
		}
		log.Warn().Str("reason", verdict.Reason).Msg("classify_rejected")
	}

	telemetry.L().Error().Msg("classify_all_providers_exhausted")
	return SentinelClassification()
}

// Extract returns the first accepted extraction, or the sentinel empty
// result when every provider is exhausted.
func (f *Fallback) Extract(ctx context.Context, text, docType, prompt string) providers.InferenceResult {
	req := providers.InferenceRequest{Text: text, Task: providers.TaskExtract, Prompt: prompt}

	for _, h := range f.registry.Handles() {
		if !h.Available || !h.Supports(providers.TaskExtract) {
			continue
		}
		log := telemetry.L().With().Str("provider", h.ID).Str("doc_type", docType).Logger()

		res, err := h.Client.Invoke(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("extract_attempt_failed")
			continue
		}
		verdict := f.validator.Extraction(ctx, text, docType, res)
		if verdict.Accepted {
			log.Info().Int("fields", res.NonNull()).Msg("extract_accepted")
			return res
		}
		log.Warn().Str("reason", verdict.Reason).Msg("extract_rejected")
	}

	telemetry.L().Error().Msg("extract_all_providers_exhausted")
	return SentinelExtraction()
}

// SentinelClassification is the defined all-providers-exhausted outcome for
// classification.
func SentinelClassification() providers.InferenceResult {
	return providers.InferenceResult{
		Fields: map[string]providers.Value{
			"type":       providers.Text(providers.LabelUnknown),
			"confidence": providers.Number(0),
		},
		ProviderID: providers.ProviderNone,
	}
}

// SentinelExtraction is the defined all-providers-exhausted outcome for
// extraction.
func SentinelExtraction() providers.InferenceResult {
	return providers.InferenceResult{
		Fields:     map[string]providers.Value{},
		ProviderID: providers.ProviderNone,
	}
}
