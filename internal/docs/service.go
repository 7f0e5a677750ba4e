package docs

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/docmindlabs/docmind/internal/cache"
	"github.com/docmindlabs/docmind/internal/export"
	"github.com/docmindlabs/docmind/internal/model"
	"github.com/docmindlabs/docmind/internal/orchestrator"
	"github.com/docmindlabs/docmind/internal/prompts"
	"github.com/docmindlabs/docmind/internal/providers"
	"github.com/docmindlabs/docmind/internal/telemetry"
	"github.com/docmindlabs/docmind/internal/ws"
)

const (
	StrategyFallback = "fallback"
	StrategyEnsemble = "ensemble"
)

// Service runs the classify-then-extract pipeline for one stored document.
type Service struct {
	db       *sqlx.DB
	rdb      *redis.Client
	fallback *orchestrator.Fallback
	ensemble *orchestrator.Ensemble
	prompts  *prompts.Registry
	exporter *export.Service
}

func NewService(db *sqlx.DB, rdb *redis.Client, fb *orchestrator.Fallback, en *orchestrator.Ensemble, pr *prompts.Registry, ex *export.Service) *Service {
	return &Service{db: db, rdb: rdb, fallback: fb, ensemble: en, prompts: pr, exporter: ex}
}

// ProcessAsync runs the pipeline in the background. Every failure path marks
// the document errored instead of surfacing; the sentinel empty outcome still
// completes the document.
func (s *Service) ProcessAsync(docID int64) {
	go func() {
		log := telemetry.L().With().Int64("doc_id", docID).Logger()
		log.Info().Str("stage", "start").Msg("process_document")

		ctx := context.Background()

		lockKey := "lock:doc:" + strconv.FormatInt(docID, 10)
		if !cache.AcquireLock(ctx, s.rdb, lockKey) {
			log.Warn().Msg("lock_exists_skip")
			return
		}
		defer cache.ReleaseLock(ctx, s.rdb, lockKey)

		var row struct {
			Text     string `db:"text"`
			Strategy string `db:"strategy"`
		}
		if err := s.db.Get(&row, `SELECT text, strategy FROM documents WHERE id=?`, docID); err != nil {
			log.Error().Err(err).Msg("document_not_found")
			s.markError(docID, err)
			return
		}

		// stage 1: classification
		docType, confidence, classifiedBy := s.classify(ctx, row.Strategy, row.Text)
		s.saveClassification(docID, docType, confidence, classifiedBy)
		ws.Broadcast(docID, ws.EventDocClassified, classifiedBy, map[string]any{
			"doc_type": docType, "confidence": confidence,
		})
		log.Info().Str("doc_type", docType).Float64("confidence", confidence).Str("by", classifiedBy).Msg("classified")

		// stage 2: extraction
		merged := s.extract(ctx, docID, row.Strategy, row.Text, docType)

		if err := s.saveMerged(docID, merged); err != nil {
			log.Error().Err(err).Msg("save_merged_failed")
			s.markError(docID, err)
			return
		}

		s.exporter.SaveMerged(docID, docType, confidence, merged.Fields, merged.AgreementStats, merged.ContributingProviders)

		_, _ = s.db.Exec(`UPDATE documents SET status=? WHERE id=?`, model.StatusCompleted, docID)
		if ws.HasSubscribers(docID) {
			ws.Broadcast(docID, ws.EventDocCompleted, "", map[string]any{
				"doc_type": docType,
				"fields":   providers.FieldsToAny(merged.Fields),
			})
		}
		log.Info().Str("stage", "completed").Msg("process_document")
	}()
}

func (s *Service) classify(ctx context.Context, strategy, text string) (string, float64, string) {
	prompt := s.prompts.Classification(text)

	if strategy == StrategyEnsemble {
		label, confidence, used := s.ensemble.Classify(ctx, text, prompt)
		by := providers.ProviderNone
		if len(used) > 0 {
			by = strings.Join(used, ",")
		}
		return label, confidence, by
	}

	res := s.fallback.Classify(ctx, text, prompt)
	return res.Label(), res.Confidence(), res.ProviderID
}

func (s *Service) extract(ctx context.Context, docID int64, strategy, text, docType string) orchestrator.MergedResult {
	prompt := s.prompts.Extraction(docType, text)

	if strategy == StrategyEnsemble {
		merged, results := s.ensemble.Extract(ctx, text, docType, prompt)
		for _, r := range results {
			s.saveRun(docID, r)
			if ws.HasSubscribers(docID) {
				ws.Broadcast(docID, ws.EventDocRunAdded, r.ProviderID, providers.FieldsToAny(r.Fields))
			}
		}
		return merged
	}

	res := s.fallback.Extract(ctx, text, docType, prompt)
	if res.ProviderID == providers.ProviderNone {
		// sentinel empty outcome: valid, just thin
		return orchestrator.MergedResult{
			Fields:         map[string]providers.Value{},
			AgreementStats: map[string]float64{},
		}
	}
	s.saveRun(docID, res)
	if ws.HasSubscribers(docID) {
		ws.Broadcast(docID, ws.EventDocRunAdded, res.ProviderID, providers.FieldsToAny(res.Fields))
	}
	return orchestrator.Merge([]providers.InferenceResult{res})
}

func (s *Service) saveClassification(docID int64, docType string, confidence float64, by string) {
	_, _ = s.db.Exec(`UPDATE documents SET doc_type=?, confidence=?, classified_by=? WHERE id=?`,
		docType, confidence, by, docID)
}

func (s *Service) saveRun(docID int64, r providers.InferenceResult) {
	fields, err := json.Marshal(providers.FieldsToAny(r.Fields))
	if err != nil {
		return
	}
	_, _ = s.db.Exec(`INSERT INTO extraction_runs(document_id,provider,task,fields_json,latency_ms)
			VALUES(?,?,?,?,?)
			ON DUPLICATE KEY UPDATE fields_json=VALUES(fields_json), latency_ms=VALUES(latency_ms)`,
		docID, r.ProviderID, string(providers.TaskExtract), string(fields), r.RawLatencyMs)
}

func (s *Service) saveMerged(docID int64, merged orchestrator.MergedResult) error {
	fields, err := json.Marshal(providers.FieldsToAny(merged.Fields))
	if err != nil {
		return err
	}
	agreement, err := json.Marshal(merged.AgreementStats)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE documents SET fields_json=?, agreement_json=?, providers_csv=? WHERE id=?`,
		string(fields), string(agreement), strings.Join(merged.ContributingProviders, ","), docID)
	return err
}

func (s *Service) markError(docID int64, err error) {
	_, _ = s.db.Exec(`UPDATE documents SET status=? WHERE id=?`, model.StatusError, docID)
	ws.Broadcast(docID, ws.EventDocError, "", err.Error())
}
