package prompts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry owns prompt authoring. The orchestration core only ever sees the
// fully formatted text. Templates carry a {text} substitution point and can
// be overridden per deployment by dropping files into the prompts directory.
type Registry struct {
	classify string
	extract  map[string]string
}

const (
	classifyMaxChars = 3000
	judgeMaxChars    = 1000
)

var extractFiles = map[string]string{
	"invoice":         "invoice_extraction.txt",
	"contract":        "contract_extraction.txt",
	"email":           "email_extraction.txt",
	"meeting_minutes": "meeting_extraction.txt",
}

// Load reads template overrides from dir, falling back to the built-in
// defaults. dir may be empty.
func Load(dir string) *Registry {
	r := &Registry{
		classify: defaultClassification,
		extract: map[string]string{
			"invoice":         defaultInvoice,
			"contract":        defaultContract,
			"email":           defaultEmail,
			"meeting_minutes": defaultMeeting,
		},
	}
	if dir == "" {
		return r
	}
	if b, err := os.ReadFile(filepath.Join(dir, "classification.txt")); err == nil {
		r.classify = string(b)
	}
	for docType, name := range extractFiles {
		if b, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			r.extract[docType] = string(b)
		}
	}
	return r
}

// Classification formats the classification prompt over a bounded text
// prefix.
func (r *Registry) Classification(text string) string {
	return strings.ReplaceAll(r.classify, "{text}", truncate(text, classifyMaxChars))
}

// Extraction formats the per-type extraction prompt. Unknown types fall back
// to the invoice template, the broadest one.
func (r *Registry) Extraction(docType, text string) string {
	tpl, ok := r.extract[docType]
	if !ok {
		tpl = r.extract["invoice"]
	}
	return strings.ReplaceAll(tpl, "{text}", text)
}

// Types lists the document types with extraction templates, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.extract))
	for t := range r.extract {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Judge formats the extraction-quality judge prompt from the original text,
// the document type and the extracted fields.
func Judge(docType, text string, fields map[string]any) string {
	data, _ := json.MarshalIndent(fields, "", "  ")
	var b strings.Builder
	b.WriteString("You are a data quality validator. Review this document extraction and determine if it's accurate and complete.\n\n")
	b.WriteString("Document type: ")
	b.WriteString(docType)
	b.WriteString("\nOriginal text:\n")
	b.WriteString(truncate(text, judgeMaxChars))
	b.WriteString("\n\nExtracted data:\n")
	b.Write(data)
	b.WriteString(`

Evaluate:
1. Are the extracted values accurate based on the text?
2. Are important fields missing?
3. Are any values obviously wrong?

Respond with JSON:
{
  "is_valid": true/false,
  "reason": "explanation",
  "missing_fields": ["field1", "field2"],
  "quality_score": 0.0-1.0
}
`)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

const defaultClassification = `You are a document classifier for a legal firm. Analyze the following document text and classify it into one of these types:

INVOICE: Contains billing information, line items, amounts, payment details, vendor/client information
CONTRACT: Contains legal agreements, terms and conditions, parties involved, signatures, effective dates
EMAIL: Contains to/from fields, subject line, email addresses, informal communication
MEETING_MINUTES: Contains attendees, agenda items, decisions made, action items, meeting date

Document text:
{text}

Respond ONLY with a JSON object in this exact format:
{"type": "invoice", "confidence": 0.95}

Valid types are: invoice, contract, email, meeting_minutes`

const defaultInvoice = `Extract the following fields from this invoice document:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "invoice_number": "the invoice number or ID",
  "invoice_date": "the invoice date",
  "client_name": "the client or customer name",
  "vendor_name": "the vendor or company issuing invoice",
  "total_amount": the total amount as a number,
  "currency": "the currency code (USD, CAD, etc)",
  "subtotal": the subtotal as a number,
  "tax": the tax amount as a number,
  "payment_method": "payment method used",
  "involved_parties": ["list", "of", "all", "parties"]
}

If a field is not found, use null. For amounts, use numbers without currency symbols.`

const defaultContract = `Extract the following fields from this contract document:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "contract_id": "contract reference number",
  "contract_date": "contract date",
  "parties": ["party 1", "party 2"],
  "contract_value": the contract value as a number,
  "currency": "currency code",
  "effective_date": "when contract starts",
  "expiry_date": "when contract ends",
  "key_terms": "brief summary of key terms",
  "contract_type": "type of contract",
  "involved_parties": ["all parties mentioned"]
}

If a field is not found, use null.`

const defaultEmail = `Extract the following fields from this email:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "sender": "sender email or name",
  "recipients": ["recipient1", "recipient2"],
  "email_date": "email date",
  "subject": "email subject line",
  "key_points": "brief summary of main points",
  "involved_parties": ["all people mentioned"]
}

If a field is not found, use null.`

const defaultMeeting = `Extract the following fields from these meeting minutes:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "meeting_date": "date of meeting",
  "meeting_title": "meeting title or topic",
  "attendees": ["person1", "person2"],
  "agenda_items": ["item1", "item2"],
  "decisions": ["decision1", "decision2"],
  "action_items": [
    {"task": "what to do", "assignee": "who", "deadline": "when"}
  ],
  "involved_parties": ["all people mentioned"]
}

If a field is not found, use null.`
