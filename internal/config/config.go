package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort string
	DBDSN           string
	RedisAddr       string
	RedisDB         int
	CORSOrigins     []string

	OpenAIKey, OpenAIModel       string
	AnthropicKey, AnthropicModel string
	GeminiKey, GeminiModel       string
	OllamaURL, OllamaModel       string

	// orchestration
	ProviderPriority []string // highest first
	ProviderTimeout  time.Duration
	ProbeTimeout     time.Duration
	ProviderRPS      int
	ProviderBurst    int
	ProviderDryRun   bool
	JudgeProvider    string
	HistoryCap       int
	DefaultStrategy  string // fallback | ensemble

	PromptsDir string
	ExportDir  string

	MaxTextBytes int
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:           get("APP_ENV", "dev"),
		AppPort:          get("APP_PORT", "8080"),
		DBDSN:            must("DB_DSN"),
		RedisAddr:        get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:          atoi(get("REDIS_DB", "0")),
		CORSOrigins:      split(get("CORS_ORIGINS", "http://localhost:5173")),
		OpenAIKey:        get("OPENAI_API_KEY", ""),
		OpenAIModel:      get("OPENAI_MODEL", "gpt-4o"),
		AnthropicKey:     get("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   get("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		GeminiKey:        get("GEMINI_API_KEY", ""),
		GeminiModel:      get("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaURL:        get("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:      get("OLLAMA_MODEL", "qwen2.5:7b"),
		ProviderPriority: split(get("PROVIDER_PRIORITY", "openai,gemini,ollama")),
		ProviderTimeout:  mustDuration(get("PROVIDER_TIMEOUT", "60s")),
		ProbeTimeout:     mustDuration(get("PROBE_TIMEOUT", "3s")),
		ProviderRPS:      atoi(get("PROVIDER_RPS", "2")),
		ProviderBurst:    atoi(get("PROVIDER_BURST", "2")),
		ProviderDryRun:   parseBool(get("PROVIDER_DRY_RUN", "false")),
		JudgeProvider:    get("VALIDATION_JUDGE", "openai"),
		HistoryCap:       atoi(get("HISTORY_CAP", "100")),
		DefaultStrategy:  get("DEFAULT_STRATEGY", "fallback"),
		PromptsDir:       get("PROMPTS_DIR", "prompts"),
		ExportDir:        get("EXPORT_DIR", "data/output"),
		MaxTextBytes:     atoi(get("MAX_TEXT_BYTES", "1048576")),
	}
	return c
}

// PriorityRank maps provider ids to a descending rank: the first entry of
// PROVIDER_PRIORITY gets the highest number.
func (c *Config) PriorityRank() map[string]int {
	out := make(map[string]int, len(c.ProviderPriority))
	for i, id := range c.ProviderPriority {
		out[id] = len(c.ProviderPriority) - i
	}
	return out
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}

func atoi(s string) int                   { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool             { b, _ := strconv.ParseBool(s); return b }
func mustDuration(s string) time.Duration { d, _ := time.ParseDuration(s); return d }

func split(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
