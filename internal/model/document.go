package model

import (
	"database/sql"
	"time"
)

// Document is one ingested text document and its final (merged or single)
// extraction outcome.
type Document struct {
	ID             int64           `db:"id" json:"id"`
	Filename       string          `db:"filename" json:"filename,omitempty"`
	Text           string          `db:"text" json:"-"`
	Strategy       string          `db:"strategy" json:"strategy"`
	Status         string          `db:"status" json:"status"`
	DocType        string          `db:"doc_type" json:"doc_type"`
	Confidence     float64         `db:"confidence" json:"confidence"`
	ClassifiedBy   string          `db:"classified_by" json:"classified_by"`
	FieldsJSON     sql.NullString  `db:"fields_json" json:"-"`
	AgreementJSON  sql.NullString  `db:"agreement_json" json:"-"`
	ProvidersCSV   sql.NullString  `db:"providers_csv" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// ExtractionRun is one provider's raw contribution to a document.
type ExtractionRun struct {
	ID         int64     `db:"id" json:"id"`
	DocumentID int64     `db:"document_id" json:"document_id"`
	Provider   string    `db:"provider" json:"provider"`
	Task       string    `db:"task" json:"task"`
	FieldsJSON string    `db:"fields_json" json:"fields_json"`
	LatencyMs  int64     `db:"latency_ms" json:"latency_ms"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
