package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROBE_DB", "")
	t.Setenv("MODEL_ADDR", "")
	t.Setenv("PROBE_SEED", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "probe_runs.db" || cfg.ModelAddr != "localhost:50051" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	p := cfg.Probe()
	if p.MinEditDistance != 30 || p.MinLength != 40 || p.MaxLength != 60 || p.Epsilon != 1e-3 {
		t.Errorf("structural defaults not carried: %+v", p)
	}
	if p.Search.PopSize != 80 || p.Search.MaxIters != 40 || p.Bootstrap.ThresholdAttempts != 300 {
		t.Errorf("search/bootstrap defaults not carried: %+v", p)
	}
}

func TestLoadFileOverridesSomeKeys(t *testing.T) {
	t.Setenv("PROBE_DB", "")
	t.Setenv("MODEL_ADDR", "")
	t.Setenv("PROBE_SEED", "")
	path := writeFile(t, `
min_edit_distance: 25
timeout: 90s
char_deletion: false
search:
  max_iters: 10
bootstrap:
  similarity_threshold: 0.75
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Probe()
	if p.MinEditDistance != 25 || p.Timeout != 90*time.Second || p.CharDeletion {
		t.Errorf("file keys not applied: %+v", p)
	}
	if p.Search.MaxIters != 10 || p.Search.PopSize != 80 {
		t.Errorf("nested search keys: %+v", p.Search)
	}
	if p.Bootstrap.SimilarityThreshold != 0.75 || p.Bootstrap.TopK != 50 {
		t.Errorf("nested bootstrap keys: %+v", p.Bootstrap)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROBE_DB", "/tmp/runs.db")
	t.Setenv("MODEL_ADDR", "models:9000")
	t.Setenv("PROBE_SEED", "1234")
	path := writeFile(t, "db: file.db\nmodel_addr: file:1\nseed: 7\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "/tmp/runs.db" || cfg.ModelAddr != "models:9000" || cfg.Seed != 1234 {
		t.Errorf("env did not win: %+v", cfg)
	}
	if cfg.Probe().Search.Seed != 1234 {
		t.Error("seed not passed to the search")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("PROBE_SEED", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "search: [not, a, map]")); err == nil {
		t.Error("expected parse error")
	}

	_, err := Load(writeFile(t, "min_length: 70\nepsilon: 2\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "min_length") || !strings.Contains(err.Error(), "epsilon") {
		t.Errorf("expected both problems reported, got %v", err)
	}

	t.Setenv("PROBE_SEED", "abc")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric seed")
	}
}
