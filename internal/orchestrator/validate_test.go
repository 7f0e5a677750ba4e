package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/docmindlabs/docmind/internal/providers"
)

const invoiceText = "INVOICE #42\nBill to: Acme\nTotal: $500.00\nPayment due on receipt."

func richExtraction() providers.InferenceResult {
	return extraction("openai", map[string]providers.Value{
		"invoice_number": providers.Text("INV-42"),
		"total_amount":   providers.Number(500),
		"currency":       providers.Text("USD"),
		"vendor_name":    providers.Text("Acme"),
	})
}

func judgeReturning(fields map[string]any) *fakeClient {
	return &fakeClient{id: "judge", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return providers.InferenceResult{
			Fields:     providers.FieldsFromAny(fields),
			ProviderID: "judge",
		}, nil
	}}
}

func TestClassificationLowConfidenceRejected(t *testing.T) {
	v := NewValidator(nil, nil)
	verdict := v.Classification(invoiceText, classification("openai", "invoice", 0.5))
	if verdict.Accepted {
		t.Errorf("confidence 0.5 accepted, want rejection: %+v", verdict)
	}
}

func TestClassificationUnknownRejected(t *testing.T) {
	v := NewValidator(nil, nil)
	verdict := v.Classification(invoiceText, classification("openai", "unknown", 0.99))
	if verdict.Accepted {
		t.Errorf("unknown label accepted, want rejection: %+v", verdict)
	}
}

func TestClassificationKeywordGuard(t *testing.T) {
	v := NewValidator(nil, nil)

	noSignal := "Dear team, see you at the offsite next week. Cheers."
	if verdict := v.Classification(noSignal, classification("openai", "invoice", 0.9)); verdict.Accepted {
		t.Errorf("invoice label without invoice vocabulary accepted: %+v", verdict)
	}
	if verdict := v.Classification(invoiceText, classification("openai", "invoice", 0.9)); !verdict.Accepted {
		t.Errorf("invoice label with invoice vocabulary rejected: %+v", verdict)
	}
}

func TestClassificationUnguardedLabelAccepted(t *testing.T) {
	v := NewValidator(nil, nil)
	// no signature list for contracts, confidence alone decides
	verdict := v.Classification("some agreement text", classification("openai", "contract", 0.8))
	if !verdict.Accepted {
		t.Errorf("contract at 0.8 rejected: %+v", verdict)
	}
}

func TestExtractionTooFewFieldsRejected(t *testing.T) {
	v := NewValidator(judgeReturning(map[string]any{"is_valid": true}), nil)
	res := extraction("openai", map[string]providers.Value{
		"total_amount": providers.Number(500),
		"currency":     providers.Text("USD"),
		"tax":          providers.Null(),
	})
	verdict := v.Extraction(context.Background(), invoiceText, "invoice", res)
	if verdict.Accepted {
		t.Errorf("two non-null fields accepted, want rejection: %+v", verdict)
	}
}

func TestExtractionJudgeValidAccepts(t *testing.T) {
	v := NewValidator(judgeReturning(map[string]any{
		"is_valid":      true,
		"quality_score": 0.3,
		"reason":        "fields match",
	}), nil)
	verdict := v.Extraction(context.Background(), invoiceText, "invoice", richExtraction())
	if !verdict.Accepted {
		t.Errorf("is_valid=true rejected: %+v", verdict)
	}
}

func TestExtractionJudgeQualityAloneAccepts(t *testing.T) {
	v := NewValidator(judgeReturning(map[string]any{
		"is_valid":      false,
		"quality_score": 0.8,
		"reason":        "minor gaps",
	}), nil)
	verdict := v.Extraction(context.Background(), invoiceText, "invoice", richExtraction())
	if !verdict.Accepted {
		t.Errorf("quality 0.8 rejected despite is_valid=false: %+v", verdict)
	}
	if verdict.QualityScore != 0.8 {
		t.Errorf("quality = %v, want 0.8", verdict.QualityScore)
	}
}

func TestExtractionJudgeBothLowRejects(t *testing.T) {
	v := NewValidator(judgeReturning(map[string]any{
		"is_valid":      false,
		"quality_score": 0.2,
		"reason":        "wrong totals",
	}), nil)
	verdict := v.Extraction(context.Background(), invoiceText, "invoice", richExtraction())
	if verdict.Accepted {
		t.Errorf("is_valid=false quality=0.2 accepted: %+v", verdict)
	}
	if verdict.Reason != "wrong totals" {
		t.Errorf("reason = %q, want judge reason", verdict.Reason)
	}
}

func TestExtractionJudgeErrorDefaultsToAccept(t *testing.T) {
	failing := &fakeClient{id: "judge", caps: bothTasks(), invoke: func(context.Context, providers.InferenceRequest) (providers.InferenceResult, error) {
		return providers.InferenceResult{}, errors.New("judge down")
	}}
	v := NewValidator(failing, nil)
	verdict := v.Extraction(context.Background(), invoiceText, "invoice", richExtraction())
	if !verdict.Accepted {
		t.Errorf("judge failure rejected result, want default accept: %+v", verdict)
	}
	if verdict.Reason != "validation error, assuming OK" {
		t.Errorf("reason = %q", verdict.Reason)
	}
}

func TestExtractionMalformedVerdictDefaultsToAccept(t *testing.T) {
	// verdict missing the required is_valid key fails schema validation
	v := NewValidator(judgeReturning(map[string]any{"quality_score": 0.1}), nil)
	verdict := v.Extraction(context.Background(), invoiceText, "invoice", richExtraction())
	if !verdict.Accepted {
		t.Errorf("malformed verdict rejected result, want default accept: %+v", verdict)
	}
}

func TestExtractionNoJudgeAccepts(t *testing.T) {
	v := NewValidator(nil, nil)
	verdict := v.Extraction(context.Background(), invoiceText, "invoice", richExtraction())
	if !verdict.Accepted {
		t.Errorf("rich result with no judge rejected: %+v", verdict)
	}
}
