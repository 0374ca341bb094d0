package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  environment: test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Feature.MinRows != 300 {
		t.Errorf("expected min_rows=300, got %d", cfg.Feature.MinRows)
	}
	if cfg.Feature.RSIPeriod != 14 || cfg.Feature.BollingerPeriod != 20 {
		t.Errorf("unexpected indicator windows: %+v", cfg.Feature)
	}
	if cfg.Forecast.Steps != 144 || cfg.Forecast.Interval != 10*time.Minute {
		t.Errorf("unexpected forecast defaults: %+v", cfg.Forecast)
	}
	if cfg.Backtest.InitialBalance != 10_000_000 || cfg.Backtest.FeeRate != 0.05 ||
		cfg.Backtest.MaxInventory != 5 || cfg.Backtest.TargetMargin != 0.10 {
		t.Errorf("unexpected backtest defaults: %+v", cfg.Backtest)
	}
	if cfg.Model.Trees != 200 || cfg.Model.Seed != 42 || cfg.Model.TrainRatio != 0.8 {
		t.Errorf("unexpected model defaults: %+v", cfg.Model)
	}
}

func TestLoad_ParsesTargetsAndDurations(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: test
forecast:
  steps: 6
  interval: 1h
analysis:
  concurrency: 3
  targets:
    - keyword: 원한
      grade: 유물
    - keyword: 아드레날린
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Forecast.Interval != time.Hour {
		t.Errorf("expected interval 1h, got %s", cfg.Forecast.Interval)
	}
	if len(cfg.Analysis.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(cfg.Analysis.Targets))
	}
	if cfg.Analysis.Targets[0].Keyword != "원한" || cfg.Analysis.Targets[0].Grade != "유물" {
		t.Errorf("unexpected first target: %+v", cfg.Analysis.Targets[0])
	}
	if cfg.Analysis.Targets[1].Grade != "" {
		t.Errorf("expected empty grade, got %q", cfg.Analysis.Targets[1].Grade)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: test
backtest:
  fee_rate: 1.5
  max_inventory: 0
  target_margin: 0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"backtest.fee_rate", "backtest.max_inventory", "backtest.target_margin"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestAppConfig_Location(t *testing.T) {
	loc, err := AppConfig{Timezone: "Asia/Seoul"}.Location()
	if err != nil {
		t.Fatalf("Location returned error: %v", err)
	}
	if _, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone(); offset != 9*3600 {
		t.Errorf("expected +09:00, got %d", offset)
	}

	if loc, err := (AppConfig{}).Location(); err != nil || loc != time.UTC {
		t.Errorf("empty timezone should be UTC, got %v %v", loc, err)
	}

	path := writeConfig(t, "app:\n  environment: test\n  timezone: Mars/Olympus\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "app.timezone") {
		t.Errorf("expected timezone validation error, got %v", err)
	}
}

func TestValidate_RejectsNaN(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: test
model:
  train_ratio: .nan
backtest:
  initial_balance: .nan
  fee_rate: .nan
  target_margin: .inf
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for NaN values")
	}
	for _, want := range []string{"model.train_ratio", "backtest.initial_balance", "backtest.fee_rate", "backtest.target_margin"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}
