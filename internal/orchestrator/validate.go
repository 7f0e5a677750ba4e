package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docmindlabs/docmind/internal/prompts"
	"github.com/docmindlabs/docmind/internal/providers"
	"github.com/docmindlabs/docmind/internal/telemetry"
)

// Verdict is the validation agent's decision on one provider result.
type Verdict struct {
	Accepted       bool           `json:"accepted"`
	QualityScore   float64        `json:"quality_score"`
	Reason         string         `json:"reason"`
	SuggestedFixes map[string]any `json:"suggested_fixes,omitempty"`
}

const (
	minConfidence   = 0.7
	minFields       = 3
	minJudgeQuality = 0.6
)

// DefaultSignatures are the lexical guards for labels whose documents carry
// predictable vocabulary. A classified label missing all of its signature
// terms in the source text is rejected.
var DefaultSignatures = map[string][]string{
	"invoice": {"invoice", "bill", "payment", "total", "amount", "$"},
}

var verdictSchema = jsonschema.MustCompileString("verdict.json", `{
	"type": "object",
	"properties": {
		"is_valid": {"type": "boolean"},
		"quality_score": {"type": "number"},
		"reason": {"type": "string"},
		"missing_fields": {"type": "array"}
	},
	"required": ["is_valid"]
}`)

// Validator decides whether a single result is trustworthy enough to accept
// without corroboration. Judge failures always degrade to acceptance: the
// pipeline prefers forward progress over aggressive rejection.
type Validator struct {
	judge      providers.Client
	signatures map[string][]string
}

func NewValidator(judge providers.Client, signatures map[string][]string) *Validator {
	if signatures == nil {
		signatures = DefaultSignatures
	}
	return &Validator{judge: judge, signatures: signatures}
}

// Classification applies the cheap heuristics: confidence floor, unknown
// sentinel, keyword signatures.
func (v *Validator) Classification(text string, res providers.InferenceResult) Verdict {
	conf := res.Confidence()
	if conf < minConfidence {
		return Verdict{Reason: fmt.Sprintf("low confidence: %.2f", conf), QualityScore: conf}
	}
	label := res.Label()
	if label == providers.LabelUnknown {
		return Verdict{Reason: "classification is unknown", QualityScore: conf}
	}
	if keywords, ok := v.signatures[label]; ok {
		lower := strings.ToLower(text)
		hit := false
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				hit = true
				break
			}
		}
		if !hit {
			return Verdict{Reason: "missing " + label + " keywords", QualityScore: conf}
		}
	}
	return Verdict{Accepted: true, QualityScore: conf, Reason: "valid classification"}
}

// Extraction rejects sparse results outright, then escalates to a judge
// model. is_valid OR quality_score > 0.6 accepts; any judge failure accepts
// by default.
func (v *Validator) Extraction(ctx context.Context, text, docType string, res providers.InferenceResult) Verdict {
	if res.NonNull() < minFields {
		return Verdict{Reason: "too few fields extracted"}
	}
	if v.judge == nil {
		return Verdict{Accepted: true, Reason: "no judge configured, assuming OK"}
	}

	log := telemetry.L().With().Str("judge", v.judge.ID()).Str("doc_type", docType).Logger()

	prompt := prompts.Judge(docType, text, providers.FieldsToAny(res.Fields))
	out, err := v.judge.Invoke(ctx, providers.InferenceRequest{
		Text:   text,
		Task:   providers.TaskExtract,
		Prompt: prompt,
	})
	if err != nil {
		log.Error().Err(err).Msg("judge_call_failed")
		return Verdict{Accepted: true, Reason: "validation error, assuming OK"}
	}

	raw := providers.FieldsToAny(out.Fields)
	if err := validateVerdict(raw); err != nil {
		log.Error().Err(err).Msg("judge_verdict_invalid")
		return Verdict{Accepted: true, Reason: "validation error, assuming OK"}
	}

	isValid, _ := raw["is_valid"].(bool)
	quality := 0.0
	if q, ok := out.Fields["quality_score"]; ok && q.Kind == providers.KindNumber {
		quality = providers.Clamp01(q.Num)
	}
	reason := "unknown"
	if r, ok := out.Fields["reason"]; ok && r.Kind == providers.KindText {
		reason = r.Str
	}

	log.Info().Bool("is_valid", isValid).Float64("quality", quality).Msg("judge_verdict")

	return Verdict{
		Accepted:       isValid || quality > minJudgeQuality,
		QualityScore:   quality,
		Reason:         reason,
		SuggestedFixes: raw,
	}
}

func validateVerdict(raw map[string]any) error {
	// round-trip so the schema library sees plain decoded-JSON types
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return verdictSchema.Validate(doc)
}
