package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/xx6620/lostark-quant/internal/backtest"
	"github.com/xx6620/lostark-quant/internal/config"
	"github.com/xx6620/lostark-quant/internal/feature"
	"github.com/xx6620/lostark-quant/internal/market"
	"github.com/xx6620/lostark-quant/internal/model"
	"github.com/xx6620/lostark-quant/internal/monitor"
	"github.com/xx6620/lostark-quant/internal/store"
)

var errUnknownItem = errors.New("unknown item")

type fakeSource struct {
	mu     sync.Mutex
	series map[string][]market.PriceRecord
	calls  int
}

func (f *fakeSource) LoadItemSeries(_ context.Context, filter market.Filter) ([]market.PriceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	records, ok := f.series[filter.Keyword]
	if !ok {
		return nil, errUnknownItem
	}
	return records, nil
}

func syntheticSeries(id int64, name string, n int) []market.PriceRecord {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	records := make([]market.PriceRecord, n)
	for i := range records {
		price := 1000 + 150*math.Sin(float64(i)/12) + float64(i%7)*5
		records[i] = market.PriceRecord{
			Date:   start.Add(time.Duration(i) * market.SampleInterval),
			ItemID: id,
			Name:   name,
			Grade:  "유물",
			Price:  math.Round(price),
		}
	}
	return records
}

func testOptions() Options {
	return Options{
		Feature: feature.DefaultConfig(),
		Train: model.TrainConfig{
			Forest:     model.ForestConfig{Trees: 5, MaxDepth: 4, MinSamplesLeaf: 2, Seed: 1},
			TrainRatio: 0.8,
		},
		Backtest:         backtest.DefaultConfig(),
		ForecastSteps:    6,
		ForecastInterval: 10 * time.Minute,
		Concurrency:      2,
	}
}

func newTestMonitor(t *testing.T) *monitor.Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc, err := monitor.NewService(st, nil, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestAnalyze_ProducesFullReport(t *testing.T) {
	source := &fakeSource{series: map[string][]market.PriceRecord{
		"원한": syntheticSeries(1, "원한 각인서", 600),
	}}
	mon := newTestMonitor(t)
	p, err := New(testOptions(), source, mon, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	report, err := p.Analyze(context.Background(), Target{Keyword: "원한", Grade: "유물"})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if report.FeatureRows != 600-market.PointsPerDay {
		t.Errorf("feature rows = %d", report.FeatureRows)
	}
	if report.Training.TrainRows != model.SplitIndex(report.FeatureRows, 0.8) {
		t.Errorf("train rows = %d", report.Training.TrainRows)
	}
	if report.Training.TrainRows+report.Training.TestRows != report.FeatureRows {
		t.Errorf("split does not cover all rows: %+v", report.Training)
	}
	if len(report.Backtest.EquityCurve) != report.Training.TestRows {
		t.Errorf("backtest must run on the held-out split, got %d steps", len(report.Backtest.EquityCurve))
	}
	if report.Snapshot.Item.ID != 1 || report.Snapshot.CurrentPrice != source.series["원한"][599].Price {
		t.Errorf("unexpected snapshot %+v", report.Snapshot)
	}

	if len(report.Forecast) != 6 {
		t.Fatalf("expected 6 forecast points, got %d", len(report.Forecast))
	}
	last := source.series["원한"][599].Date
	if !report.Forecast[0].Date.Equal(last.Add(10 * time.Minute)) {
		t.Errorf("forecast must start one interval after the last record, got %s", report.Forecast[0].Date)
	}

	events, err := mon.ListEvents(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected analysis, backtest and forecast events, got %d", len(events))
	}
}

func TestAnalyze_CachesIdenticalRuns(t *testing.T) {
	source := &fakeSource{series: map[string][]market.PriceRecord{
		"원한": syntheticSeries(1, "원한 각인서", 500),
	}}
	p, err := New(testOptions(), source, nil, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	var runs int
	var mu sync.Mutex
	p.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		runs++
		return time.Unix(int64(runs), 0)
	}

	var wg sync.WaitGroup
	reports := make([]*Report, 4)
	for i := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := p.Analyze(context.Background(), Target{Keyword: "원한"})
			if err != nil {
				t.Errorf("Analyze returned error: %v", err)
				return
			}
			reports[i] = r
		}()
	}
	wg.Wait()

	if runs != 1 {
		t.Fatalf("expected a single analysis, got %d", runs)
	}
	for _, r := range reports {
		if r == nil || r.Target.Keyword != "원한" {
			t.Fatalf("unexpected report %+v", r)
		}
	}

	source.mu.Lock()
	source.series["원한"] = syntheticSeries(1, "원한 각인서", 501)
	source.mu.Unlock()
	if _, err := p.Analyze(context.Background(), Target{Keyword: "원한"}); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if runs != 2 {
		t.Fatalf("new data must invalidate the cache, runs=%d", runs)
	}
}

func TestAnalyze_InsufficientData(t *testing.T) {
	source := &fakeSource{series: map[string][]market.PriceRecord{
		"짧은": syntheticSeries(2, "짧은 물건", 200),
	}}
	mon := newTestMonitor(t)
	p, err := New(testOptions(), source, mon, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = p.Analyze(context.Background(), Target{Keyword: "짧은"})
	var insufficient *feature.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}

	events, err := mon.ListEvents(context.Background(), monitor.EventError, 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one error event, got %d (%v)", len(events), err)
	}
}

func TestRun_ContinuesAfterFailures(t *testing.T) {
	source := &fakeSource{series: map[string][]market.PriceRecord{
		"원한": syntheticSeries(1, "원한 각인서", 500),
		"짧은": syntheticSeries(2, "짧은 물건", 100),
	}}
	p, err := New(testOptions(), source, nil, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	targets := []Target{{Keyword: "짧은"}, {Keyword: "없음"}, {Keyword: "원한"}}
	outcomes, err := p.Run(context.Background(), targets)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if !errors.Is(outcomes[0].Err, feature.ErrInsufficientData) {
		t.Errorf("outcome 0: expected insufficient data, got %v", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, errUnknownItem) {
		t.Errorf("outcome 1: expected source error, got %v", outcomes[1].Err)
	}
	if outcomes[2].Err != nil || outcomes[2].Report == nil {
		t.Errorf("outcome 2: expected a report, got %v", outcomes[2].Err)
	}
	for i, o := range outcomes {
		if o.Target != targets[i] {
			t.Errorf("outcome %d target %v, want %v", i, o.Target, targets[i])
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	source := &fakeSource{series: map[string][]market.PriceRecord{}}
	p, err := New(testOptions(), source, nil, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx, []Target{{Keyword: "원한"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(testOptions(), nil, nil, nil); err == nil {
		t.Error("expected error for nil source")
	}

	opts := testOptions()
	opts.Backtest.FeeRate = 2
	if _, err := New(opts, &fakeSource{}, nil, nil); !errors.Is(err, backtest.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Feature:  config.FeatureConfig{RSIPeriod: 10, BollingerPeriod: 30, BollingerStdDev: 2.5, MinRows: 100},
		Model:    config.ModelConfig{Trees: 7, MaxDepth: 3, MinSamplesLeaf: 1, Seed: 9, TrainRatio: 0.7},
		Forecast: config.ForecastConfig{Steps: 12, Interval: time.Hour},
		Backtest: config.BacktestConfig{InitialBalance: 1000, FeeRate: 0.01, MaxInventory: 2, TargetMargin: 0.2},
		Analysis: config.AnalysisConfig{Concurrency: 3, Targets: []config.TargetConfig{{Keyword: "a", Grade: "b"}}},
	}
	opts := OptionsFromConfig(cfg)
	if opts.Feature.Indicator.BollingerPeriod != 30 || opts.Feature.MinRows != 100 {
		t.Errorf("unexpected feature options %+v", opts.Feature)
	}
	if opts.Train.Forest.Trees != 7 || opts.Train.TrainRatio != 0.7 {
		t.Errorf("unexpected train options %+v", opts.Train)
	}
	if opts.Backtest.MaxInventory != 2 || opts.ForecastSteps != 12 || opts.ForecastInterval != time.Hour || opts.Concurrency != 3 {
		t.Errorf("unexpected options %+v", opts)
	}

	targets := TargetsFromConfig(cfg.Analysis.Targets)
	if len(targets) != 1 || targets[0] != (Target{Keyword: "a", Grade: "b"}) || targets[0].String() != "a/b" {
		t.Errorf("unexpected targets %+v", targets)
	}
}
