package telemetry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAccessorLogsDirectly(t *testing.T) {
	var buf bytes.Buffer
	orig := log
	log = zerolog.New(&buf)
	defer func() { log = orig }()

	L().Info().Str("stage", "boot").Msg("ready")

	out := buf.String()
	if !strings.Contains(out, `"stage":"boot"`) || !strings.Contains(out, `"message":"ready"`) {
		t.Errorf("log output = %q", out)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(func(_, d string) string { return d })
	if cfg.Level != "info" || !cfg.JSON || cfg.File != "app.log" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxBackups != 3 || cfg.MaxAgeDays != 28 {
		t.Errorf("rotation defaults = %+v", cfg)
	}
}
