package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xx6620/lostark-quant/internal/backtest"
	"github.com/xx6620/lostark-quant/internal/config"
	"github.com/xx6620/lostark-quant/internal/feature"
	"github.com/xx6620/lostark-quant/internal/forecast"
	"github.com/xx6620/lostark-quant/internal/indicator"
	"github.com/xx6620/lostark-quant/internal/market"
	"github.com/xx6620/lostark-quant/internal/model"
	"github.com/xx6620/lostark-quant/internal/monitor"
)

// SeriesSource 提供单个物品的价格序列。
type SeriesSource interface {
	LoadItemSeries(ctx context.Context, filter market.Filter) ([]market.PriceRecord, error)
}

// Target 为一个分析目标。
type Target struct {
	Keyword string `json:"keyword"`
	Grade   string `json:"grade"`
}

func (t Target) String() string {
	if t.Grade == "" {
		return t.Keyword
	}
	return t.Keyword + "/" + t.Grade
}

// TargetsFromConfig 转换配置中的分析目标。
func TargetsFromConfig(targets []config.TargetConfig) []Target {
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		out = append(out, Target{Keyword: t.Keyword, Grade: t.Grade})
	}
	return out
}

// Options 汇总一次分析所需的全部参数。
type Options struct {
	Feature          feature.Config
	Train            model.TrainConfig
	Backtest         backtest.Config
	ForecastSteps    int
	ForecastInterval time.Duration
	Concurrency      int
}

// OptionsFromConfig 从配置构建分析参数。
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Feature: feature.Config{
			Indicator: indicator.Config{
				RSIPeriod:       cfg.Feature.RSIPeriod,
				BollingerPeriod: cfg.Feature.BollingerPeriod,
				BollingerStdDev: cfg.Feature.BollingerStdDev,
			},
			MinRows: cfg.Feature.MinRows,
		},
		Train: model.TrainConfig{
			Forest: model.ForestConfig{
				Trees:          cfg.Model.Trees,
				MaxDepth:       cfg.Model.MaxDepth,
				MinSamplesLeaf: cfg.Model.MinSamplesLeaf,
				Seed:           cfg.Model.Seed,
			},
			TrainRatio: cfg.Model.TrainRatio,
		},
		Backtest: backtest.Config{
			InitialBalance: cfg.Backtest.InitialBalance,
			FeeRate:        cfg.Backtest.FeeRate,
			MaxInventory:   cfg.Backtest.MaxInventory,
			TargetMargin:   cfg.Backtest.TargetMargin,
		},
		ForecastSteps:    cfg.Forecast.Steps,
		ForecastInterval: cfg.Forecast.Interval,
		Concurrency:      cfg.Analysis.Concurrency,
	}
}

// TrainingSummary 为留出集评估摘要。
type TrainingSummary struct {
	TrainRows int           `json:"train_rows"`
	TestRows  int           `json:"test_rows"`
	RMSE      float64       `json:"rmse"`
	R2        float64       `json:"r2"`
	Duration  time.Duration `json:"duration"`
}

// Report 为单个目标的完整分析结果。
type Report struct {
	Target         Target            `json:"target"`
	Snapshot       market.Snapshot   `json:"snapshot"`
	Reset          market.ResetStats `json:"reset"`
	FeatureRows    int               `json:"feature_rows"`
	Training       TrainingSummary   `json:"training"`
	BacktestConfig backtest.Config   `json:"backtest_config"`
	Backtest       backtest.Result   `json:"backtest"`
	Forecast       []forecast.Point  `json:"forecast"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Outcome 为批量分析中单个目标的结果，Err 非空时 Report 为空。
type Outcome struct {
	Target Target
	Report *Report
	Err    error
}

// Pipeline 串联数据加载、特征、训练、回测与预测。
type Pipeline struct {
	opts       Options
	source     SeriesSource
	builder    *feature.Builder
	trainer    *model.Trainer
	forecaster *forecast.Forecaster
	monitor    *monitor.Service
	logger     *zap.Logger
	now        func() time.Time

	group singleflight.Group
	cache *resultCache
}

// New 创建分析流水线。monitorSvc 可为空。
func New(opts Options, source SeriesSource, monitorSvc *monitor.Service, logger *zap.Logger) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("pipeline: source 不能为空")
	}
	if err := opts.Backtest.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.ForecastSteps < 0 {
		return nil, fmt.Errorf("pipeline: %w: %d", forecast.ErrInvalidSteps, opts.ForecastSteps)
	}
	if opts.ForecastInterval <= 0 {
		opts.ForecastInterval = market.SampleInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		opts:       opts,
		source:     source,
		builder:    feature.NewBuilder(opts.Feature, logger),
		trainer:    model.NewTrainer(opts.Train, logger),
		forecaster: forecast.NewForecaster(nil, logger),
		monitor:    monitorSvc,
		logger:     logger,
		now:        time.Now,
		cache:      newResultCache(),
	}, nil
}

// Analyze 对单个目标执行完整分析。
//
// 同一物品、同一数据版本与参数的并发请求只计算一次，结果缓存复用。
func (p *Pipeline) Analyze(ctx context.Context, target Target) (*Report, error) {
	records, err := p.source.LoadItemSeries(ctx, market.Filter{Keyword: target.Keyword, Grade: target.Grade})
	if err != nil {
		p.recordError(ctx, monitor.StatusError, "加载价格失败", err, target)
		return nil, fmt.Errorf("pipeline: 加载 %s 价格失败: %w", target, err)
	}

	key := cacheKey(records, p.opts)
	if report, ok := p.cache.get(key); ok {
		p.logger.Debug("命中分析缓存", zap.Stringer("target", target))
		return withTarget(report, target), nil
	}

	v, err, shared := p.group.Do(key, func() (interface{}, error) {
		if report, ok := p.cache.get(key); ok {
			return report, nil
		}
		report, err := p.analyze(ctx, target, records)
		if err != nil {
			return nil, err
		}
		p.cache.put(key, report)
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.logger.Debug("合并重复分析请求", zap.Stringer("target", target))
	}
	return withTarget(v.(*Report), target), nil
}

func (p *Pipeline) analyze(ctx context.Context, target Target, records []market.PriceRecord) (*Report, error) {
	snapshot, err := market.Summarize(records)
	if err != nil {
		p.recordError(ctx, monitor.StatusError, "汇总价格失败", err, target)
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	ds, err := p.builder.Build(records)
	if err != nil {
		status := monitor.StatusError
		if errors.Is(err, feature.ErrInsufficientData) {
			status = monitor.StatusInsufficientData
		}
		p.recordError(ctx, status, "特征生成失败", err, target)
		return nil, fmt.Errorf("pipeline: %s: %w", target, err)
	}

	trained, err := p.trainer.Train(ctx, ds)
	if err != nil {
		p.recordError(ctx, monitor.StatusError, "模型训练失败", err, target)
		return nil, fmt.Errorf("pipeline: %s: %w", target, err)
	}

	result, err := backtest.Simulate(trained.TestDates, trained.Actual, trained.Predicted, p.opts.Backtest)
	if err != nil {
		p.recordError(ctx, monitor.StatusError, "投资模拟失败", err, target)
		return nil, fmt.Errorf("pipeline: %s: %w", target, err)
	}

	points, err := p.forecaster.Forecast(trained.Model, ds.Rows, ds.Columns, p.opts.ForecastSteps, p.opts.ForecastInterval)
	if err != nil {
		p.recordError(ctx, monitor.StatusError, "未来预测失败", err, target)
		return nil, fmt.Errorf("pipeline: %s: %w", target, err)
	}

	report := &Report{
		Target:      target,
		Snapshot:    snapshot,
		Reset:       market.ResetImpact(records),
		FeatureRows: ds.Len(),
		Training: TrainingSummary{
			TrainRows: trained.SplitIndex,
			TestRows:  len(trained.Actual),
			RMSE:      trained.RMSE,
			R2:        trained.R2,
			Duration:  trained.Duration,
		},
		BacktestConfig: p.opts.Backtest,
		Backtest:       result,
		Forecast:       points,
		GeneratedAt:    p.now().UTC(),
	}

	if p.monitor != nil {
		p.monitor.RecordAnalysis(ctx, monitor.AnalysisRunPayload{
			Item:         snapshot.Item,
			Records:      len(records),
			Rows:         ds.Len(),
			TrainRows:    trained.SplitIndex,
			TestRows:     len(trained.Actual),
			RMSE:         trained.RMSE,
			R2:           trained.R2,
			TrainSeconds: trained.Duration.Seconds(),
		})
		p.monitor.RecordBacktest(ctx, snapshot.Item, p.opts.Backtest, result)
		p.monitor.RecordForecast(ctx, snapshot.Item, points)
	}

	p.logger.Info("分析完成",
		zap.Stringer("target", target),
		zap.String("item", snapshot.Item.Label()),
		zap.Int("rows", ds.Len()),
		zap.Float64("final_asset_value", result.FinalAssetValue),
		zap.Float64("roi_percent", result.ROIPercent),
		zap.Int("trades", len(result.Trades)),
	)

	return report, nil
}

// Run 并发分析多个目标，返回顺序与 targets 一致。
//
// 单个目标失败不会中止其它目标；数据不足只记录警告。仅在 ctx 取消时返回错误。
func (p *Pipeline) Run(ctx context.Context, targets []Target) ([]Outcome, error) {
	outcomes := make([]Outcome, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			report, err := p.Analyze(gctx, target)
			outcomes[i] = Outcome{Target: target, Report: report, Err: err}

			switch {
			case err == nil:
			case errors.Is(err, feature.ErrInsufficientData):
				p.logger.Warn("数据不足，跳过该目标", zap.Stringer("target", target), zap.Error(err))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				p.logger.Error("分析失败", zap.Stringer("target", target), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, fmt.Errorf("pipeline: 批量分析中断: %w", err)
	}
	return outcomes, nil
}

func (p *Pipeline) recordError(ctx context.Context, status, msg string, err error, target Target) {
	if p.monitor == nil {
		return
	}
	p.monitor.RecordError(ctx, status, msg, err, map[string]interface{}{
		"keyword": target.Keyword,
		"grade":   target.Grade,
	})
}

// withTarget 返回带调用方目标的浅拷贝，缓存条目本身不被修改。
func withTarget(report *Report, target Target) *Report {
	cp := *report
	cp.Target = target
	return &cp
}
