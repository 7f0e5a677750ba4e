package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/docmindlabs/docmind/internal/providers"
	"github.com/docmindlabs/docmind/internal/telemetry"
)

// Service persists final results to disk: one JSON file per document plus a
// flattened row appended to a master CSV. It consumes plain field mappings;
// serialization details stay out of the orchestration core.
type Service struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) *Service {
	return &Service{dir: dir}
}

// Document is the exported shape.
type Document struct {
	DocumentID    int64              `json:"document_id"`
	DocumentType  string             `json:"document_type"`
	Confidence    float64            `json:"confidence"`
	Providers     []string           `json:"providers"`
	Fields        map[string]any     `json:"fields"`
	Agreement     map[string]float64 `json:"agreement,omitempty"`
}

// SaveJSON writes <type>_<id>.json under the json subdirectory.
func (s *Service) SaveJSON(doc Document) error {
	dir := filepath.Join(s.dir, "json")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%d.json", doc.DocumentType, doc.DocumentID)
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		return err
	}
	telemetry.L().Info().Str("file", name).Msg("export_json_saved")
	return nil
}

// AppendCSV appends one flattened row to the master CSV. Rows are aligned to
// the file's header: a column the row lacks stays empty, and a row that
// introduces new columns rewrites the file with the extended header so every
// earlier row keeps its positions. Documents of different types share the one
// master file. List values are JSON-encoded in their cells.
func (s *Service) AppendCSV(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.dir, "master_data.csv")

	flat := map[string]string{
		"document_id":   fmt.Sprint(doc.DocumentID),
		"document_type": doc.DocumentType,
		"confidence":    fmt.Sprintf("%.4f", doc.Confidence),
	}
	for k, v := range flatten(doc.Fields) {
		flat["field_"+k] = v
	}

	header, rows, existed, err := readMaster(path)
	if err != nil {
		return err
	}
	if !existed {
		header = make([]string, 0, len(flat))
		for k := range flat {
			header = append(header, k)
		}
		sort.Strings(header)
	}

	known := make(map[string]bool, len(header))
	for _, c := range header {
		known[c] = true
	}
	var added []string
	for k := range flat {
		if !known[k] {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	header = append(header, added...)

	row := make([]string, len(header))
	for i, c := range header {
		row[i] = flat[c]
	}

	if !existed || len(added) > 0 {
		// pad earlier rows out to the extended header and rewrite
		for i := range rows {
			for len(rows[i]) < len(header) {
				rows[i] = append(rows[i], "")
			}
		}
		return writeMaster(path, header, append(rows, row))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func readMaster(path string) (header []string, rows [][]string, existed bool, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, true, err
	}
	if len(all) == 0 {
		return nil, nil, false, nil
	}
	return all[0], all[1:], true, nil
}

func writeMaster(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// SaveMerged is the usual entry point for the pipeline.
func (s *Service) SaveMerged(docID int64, docType string, confidence float64, fields map[string]providers.Value, agreement map[string]float64, contributors []string) {
	doc := Document{
		DocumentID:   docID,
		DocumentType: docType,
		Confidence:   confidence,
		Providers:    contributors,
		Fields:       providers.FieldsToAny(fields),
		Agreement:    agreement,
	}
	if err := s.SaveJSON(doc); err != nil {
		telemetry.L().Warn().Err(err).Msg("export_json_failed")
	}
	if err := s.AppendCSV(doc); err != nil {
		telemetry.L().Warn().Err(err).Msg("export_csv_failed")
	}
}

// flatten collapses nested maps with underscore-joined keys and JSON-encodes
// lists for CSV compatibility.
func flatten(m map[string]any) map[string]string {
	out := map[string]string{}
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, inner := range t {
				key := k
				if prefix != "" {
					key = prefix + "_" + k
				}
				walk(key, inner)
			}
		case nil:
			out[prefix] = ""
		case string:
			out[prefix] = t
		case []string:
			b, _ := json.Marshal(t)
			out[prefix] = string(b)
		case []any:
			b, _ := json.Marshal(t)
			out[prefix] = string(b)
		default:
			out[prefix] = fmt.Sprint(t)
		}
	}
	walk("", m)
	delete(out, "")
	return out
}
