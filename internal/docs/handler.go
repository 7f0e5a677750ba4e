package docs

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/docmindlabs/docmind/internal/config"
	"github.com/docmindlabs/docmind/internal/export"
	"github.com/docmindlabs/docmind/internal/middleware"
	"github.com/docmindlabs/docmind/internal/model"
	"github.com/docmindlabs/docmind/internal/orchestrator"
	"github.com/docmindlabs/docmind/internal/prompts"
	"github.com/docmindlabs/docmind/internal/providers"
	"github.com/docmindlabs/docmind/internal/telemetry"
	"github.com/docmindlabs/docmind/internal/ws"
)

type Handler struct {
	cfg      *config.Config
	db       *sqlx.DB
	registry *providers.Registry
	prompts  *prompts.Registry
	svc      *Service
}

// buildClients wires one adapter per configured backend. A provider without
// credentials is simply not configured.
func buildClients(cfg *config.Config) []providers.Client {
	var list []providers.Client
	if cfg.OpenAIKey != "" {
		c := providers.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.ProviderTimeout, cfg.ProviderRPS, cfg.ProviderBurst)
		c.DryRun = cfg.ProviderDryRun
		list = append(list, c)
	}
	if cfg.AnthropicKey != "" {
		c := providers.NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel, cfg.ProviderTimeout, cfg.ProviderRPS, cfg.ProviderBurst)
		c.DryRun = cfg.ProviderDryRun
		list = append(list, c)
	}
	if cfg.GeminiKey != "" {
		c := providers.NewGemini(cfg.GeminiKey, cfg.GeminiModel, cfg.ProviderTimeout, cfg.ProviderRPS, cfg.ProviderBurst)
		c.DryRun = cfg.ProviderDryRun
		list = append(list, c)
	}
	if cfg.OllamaURL != "" {
		c := providers.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.ProviderTimeout)
		c.DryRun = cfg.ProviderDryRun
		list = append(list, c)
	}
	return list
}

func NewHandler(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) *Handler {
	clients := buildClients(cfg)
	registry := providers.NewRegistry(context.Background(), clients, cfg.PriorityRank(), cfg.ProbeTimeout)

	var judge providers.Client
	for _, cl := range clients {
		if cl.ID() == cfg.JudgeProvider {
			judge = cl
			break
		}
	}

	validator := orchestrator.NewValidator(judge, nil)
	fb := orchestrator.NewFallback(registry, validator)
	en := orchestrator.NewEnsemble(registry, orchestrator.NewHistory(cfg.HistoryCap))
	pr := prompts.Load(cfg.PromptsDir)
	ex := export.New(cfg.ExportDir)

	svc := NewService(db, rdb, fb, en, pr, ex)
	return &Handler{cfg: cfg, db: db, registry: registry, prompts: pr, svc: svc}
}

type createRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Strategy string `json:"strategy"`
}

func (h *Handler) CreateDocument(c *fiber.Ctx) error {
	rid, _ := c.Locals(middleware.ReqIDKey).(string)
	log := telemetry.L().With().Str("req_id", rid).Logger()

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid json body"})
	}
	if req.Text == "" {
		return c.Status(400).JSON(fiber.Map{"error": "text required"})
	}
	if len(req.Text) > h.cfg.MaxTextBytes {
		return c.Status(413).JSON(fiber.Map{"error": "text too large"})
	}
	switch req.Strategy {
	case "":
		req.Strategy = h.cfg.DefaultStrategy
	case StrategyFallback, StrategyEnsemble:
	default:
		return c.Status(400).JSON(fiber.Map{"error": "strategy must be fallback or ensemble"})
	}

	res, err := h.db.Exec(`
  INSERT INTO documents (filename, text, strategy, status)
  VALUES (?, ?, ?, ?)`,
		req.Filename, req.Text, req.Strategy, model.StatusProcessing)
	if err != nil {
		log.Error().Err(err).Msg("document_insert_failed")
		return c.Status(500).JSON(fiber.Map{"error": "db fail"})
	}

	docID, _ := res.LastInsertId()
	log.Info().Int64("doc_id", docID).Str("strategy", req.Strategy).Msg("document_created")
	ws.Broadcast(docID, ws.EventDocCreated, "", fiber.Map{"id": docID})

	h.svc.ProcessAsync(docID)
	return c.JSON(fiber.Map{"id": docID, "status": model.StatusProcessing, "strategy": req.Strategy})
}

func (h *Handler) ListDocuments(c *fiber.Ctx) error {
	var docs []model.Document
	if err := h.db.Select(&docs, `
        SELECT id,filename,strategy,status,doc_type,confidence,classified_by,created_at,updated_at
        FROM documents ORDER BY id DESC LIMIT 200`); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "db fail"})
	}
	return c.JSON(docs)
}

func (h *Handler) GetDocument(c *fiber.Ctx) error {
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)
	var doc model.Document
	if err := h.db.Get(&doc, `
        SELECT id,filename,strategy,status,doc_type,confidence,classified_by,
               fields_json,agreement_json,providers_csv,created_at,updated_at
        FROM documents WHERE id=?`, id); err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "not found"})
	}

	out := fiber.Map{
		"id":            doc.ID,
		"filename":      doc.Filename,
		"strategy":      doc.Strategy,
		"status":        doc.Status,
		"doc_type":      doc.DocType,
		"confidence":    doc.Confidence,
		"classified_by": doc.ClassifiedBy,
		"created_at":    doc.CreatedAt,
		"updated_at":    doc.UpdatedAt,
	}
	if doc.FieldsJSON.Valid {
		var fields map[string]any
		_ = json.Unmarshal([]byte(doc.FieldsJSON.String), &fields)
		out["fields"] = fields
	}
	if doc.AgreementJSON.Valid {
		var agreement map[string]float64
		_ = json.Unmarshal([]byte(doc.AgreementJSON.String), &agreement)
		out["agreement"] = agreement
	}
	if doc.ProvidersCSV.Valid {
		out["providers"] = doc.ProvidersCSV.String
	}
	return c.JSON(out)
}

func (h *Handler) ListRuns(c *fiber.Ctx) error {
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)
	var exists int64
	if err := h.db.Get(&exists, `SELECT id FROM documents WHERE id=?`, id); err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "not found"})
	}
	var runs []model.ExtractionRun
	_ = h.db.Select(&runs, `SELECT id,document_id,provider,task,fields_json,latency_ms,created_at
		FROM extraction_runs WHERE document_id=? ORDER BY id ASC`, id)
	return c.JSON(runs)
}

func (h *Handler) ListProviders(c *fiber.Ctx) error {
	return c.JSON(h.registry.Handles())
}

// ListDocTypes returns the document types with extraction templates, so
// clients know what classifications to expect.
func (h *Handler) ListDocTypes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"types": h.prompts.Types()})
}
