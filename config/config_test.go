package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/schemagen/usrgen/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	is := is.New(t)
	cfg := writeAndLoad(t, `
input_dir: defs
output_dir: out
targets: [pydantic, zod]
empty_variant: error
concurrency: 2
logging:
  level: debug
  format: json
watch:
  debounce: 1s
pydantic:
  extra: forbid
zod:
  import_path: zod/v4
`)
	is.Equal(cfg.InputDir, "defs")
	is.Equal(cfg.OutputDir, "out")
	is.Equal(cfg.Targets, []string{"pydantic", "zod"})
	is.Equal(cfg.EmptyVariant, config.EmptyError)
	is.Equal(cfg.Concurrency, 2)
	is.Equal(cfg.Logging.Level, "debug")
	is.Equal(cfg.Watch.Debounce, time.Second)
	is.Equal(cfg.Target("pydantic"), map[string]any{"extra": "forbid"})
	is.Equal(cfg.Target("zod")["import_path"], "zod/v4")
	is.True(cfg.Target("sqlalchemy") == nil)
}

func TestLoad_Defaults(t *testing.T) {
	is := is.New(t)
	cfg := writeAndLoad(t, "{}\n")
	is.Equal(cfg.InputDir, "schemas")
	is.Equal(cfg.OutputDir, "generated")
	is.Equal(cfg.Targets, []string{"pydantic"})
	is.Equal(cfg.EmptyVariant, config.EmptyWarn)
	is.Equal(cfg.Concurrency, 8)
	is.Equal(cfg.LineEndings, "lf")
	is.Equal(cfg.Logging.Format, "console")
	is.Equal(cfg.Watch.Debounce, 500*time.Millisecond)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	is := is.New(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	is.NoErr(err)
	is.Equal(cfg, config.Default())
}

func TestLoad_EnvExpansion(t *testing.T) {
	is := is.New(t)
	t.Setenv("SCHEMA_ROOT", "/srv/schemas")
	cfg := writeAndLoad(t, "input_dir: ${SCHEMA_ROOT}/v1\n")
	is.Equal(cfg.InputDir, "/srv/schemas/v1")
}

func TestEnvOverridesFile(t *testing.T) {
	is := is.New(t)
	t.Setenv("USRGEN_OUTPUT_DIR", "build")
	t.Setenv("USRGEN_TARGETS", "zod, jsonschema,")
	t.Setenv("USRGEN_LOG_LEVEL", "warn")
	t.Setenv("USRGEN_EMPTY_VARIANT", "allow")
	cfg := writeAndLoad(t, "output_dir: out\ntargets: [pydantic]\n")
	is.Equal(cfg.OutputDir, "build")
	is.Equal(cfg.Targets, []string{"zod", "jsonschema"})
	is.Equal(cfg.Logging.Level, "warn")
	is.Equal(cfg.EmptyVariant, config.EmptyAllow)
}

func TestEnvOverrides_Invalid(t *testing.T) {
	is := is.New(t)
	t.Setenv("USRGEN_CONCURRENCY", "many")
	_, err := writeAndLoadErr(t, "{}\n")
	is.True(err != nil)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"duplicate target", "targets: [zod, zod]\n"},
		{"empty target", "targets: ['']\n"},
		{"policy", "empty_variant: sometimes\n"},
		{"concurrency", "concurrency: -1\n"},
		{"line endings", "line_endings: cr\n"},
		{"log level", "logging: {level: loud}\n"},
		{"log format", "logging: {format: xml}\n"},
		{"target config", "pydantic: forbid\n"},
		{"yaml", "targets: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			_, err := writeAndLoadErr(t, tt.content)
			is.True(err != nil)
		})
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "usrgen.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
